package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/scorefluence/prelaunch/internal/domain"
	"github.com/scorefluence/prelaunch/internal/http/response"
	"github.com/scorefluence/prelaunch/internal/mailer"
	"github.com/scorefluence/prelaunch/pkg/logger"
)

// Register handles POST /register: persists a pending registration and
// requests delivery of the verification email. Delivery failure does not
// fail the registration.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteError(w, http.StatusBadRequest, "Invalid JSON format", response.CodeInvalidInput)
		return
	}
	req.Normalize()

	store, ctx := h.store(r)

	reg, err := store.AddRegistration(ctx, req.Email, req.FullName)
	if err != nil {
		response.WriteStorageError(w, r, err)
		return
	}

	verifyURL := mailer.VerificationURL(h.cfg.Server.BaseURL, reg.VerificationToken)
	if err := h.mailer.SendVerificationEmail(reg.Email, reg.FullName, verifyURL, reg.VerificationToken); err != nil {
		logger.ErrorContext(ctx, "failed to send verification email", "error", err, "registration_id", reg.ID)
	}

	response.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":      reg.ID,
		"message": "Registration successful! Please check your email to verify your account.",
	})
}

// PublicStats handles GET /register: the social-proof counter. Only the
// display count is exposed; raw internal counts are admin-only.
func (h *Handlers) PublicStats(w http.ResponseWriter, r *http.Request) {
	store, ctx := h.store(r)

	stats, err := store.Stats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to compute stats", "error", err)
		response.WriteError(w, http.StatusInternalServerError, "Could not fetch registration stats", response.CodeInternalError)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"displayCount": stats.DisplayCount,
	})
}
