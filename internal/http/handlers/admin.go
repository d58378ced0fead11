package handlers

import (
	"net/http"

	"github.com/scorefluence/prelaunch/internal/http/response"
	"github.com/scorefluence/prelaunch/internal/storage"
	"github.com/scorefluence/prelaunch/pkg/logger"
)

// AdminStats returns the full stats snapshot including the raw pending and
// total counts and the synthetic floor.
func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	store, ctx := h.store(r)

	stats, err := store.Stats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to compute stats", "error", err)
		response.WriteError(w, http.StatusInternalServerError, "Could not fetch registration stats", response.CodeInternalError)
		return
	}

	response.WriteJSON(w, http.StatusOK, stats)
}

// ListRegistrations returns every registration, on backends that can
// enumerate them.
func (h *Handlers) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	store, ctx := h.store(r)

	lister, ok := store.(storage.Lister)
	if !ok {
		response.WriteError(w, http.StatusNotImplemented,
			"The active storage backend does not support listing registrations", response.CodeInvalidInput)
		return
	}

	regs, err := lister.AllRegistrations(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list registrations", "error", err)
		response.WriteError(w, http.StatusInternalServerError, "Could not list registrations", response.CodeInternalError)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"registrations": regs,
		"count":         len(regs),
	})
}
