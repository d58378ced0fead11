// Package handlers is the thin HTTP boundary over the registration store:
// request decoding, contract invocation, fault-to-status mapping. All real
// semantics live in internal/storage.
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scorefluence/prelaunch/internal/mailer"
	"github.com/scorefluence/prelaunch/internal/storage"
	"github.com/scorefluence/prelaunch/pkg/config"
	"github.com/scorefluence/prelaunch/pkg/logger"
)

type Handlers struct {
	selector *storage.Selector
	mailer   mailer.Service
	cfg      *config.Config
}

func New(selector *storage.Selector, mail mailer.Service, cfg *config.Config) *Handlers {
	return &Handlers{
		selector: selector,
		mailer:   mail,
		cfg:      cfg,
	}
}

// Routes mounts the public and admin endpoints.
func (h *Handlers) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Get("/register", h.PublicStats)
	r.Post("/verify", h.Verify)
	r.Get("/verify", h.CheckToken)

	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", h.AdminStats)
		r.Get("/registrations", h.ListRegistrations)
	})
}

// store resolves the active backend and annotates the request context with
// its kind for logging.
func (h *Handlers) store(r *http.Request) (storage.Store, context.Context) {
	store := h.selector.Store(r.Context())
	ctx := context.WithValue(r.Context(), logger.StoreKindKey, string(store.Kind()))
	return store, ctx
}
