package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/scorefluence/prelaunch/internal/domain"
	"github.com/scorefluence/prelaunch/internal/http/response"
	"github.com/scorefluence/prelaunch/internal/storage"
)

// Verify handles POST /verify: consumes the token and transitions the
// registration to registered.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		response.WriteError(w, http.StatusBadRequest, "Verification token is required", response.CodeInvalidInput)
		return
	}

	store, ctx := h.store(r)

	reg, err := store.VerifyRegistration(ctx, req.Token)
	if err != nil {
		response.WriteStorageError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"message":    "Email verified successfully! Welcome to Scorefluence.",
		"email":      reg.Email,
		"verifiedAt": reg.VerifiedAt,
	})
}

// CheckToken handles GET /verify?token=: a validity probe that never
// mutates state, used by the verification page before it posts.
func (h *Handlers) CheckToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.WriteError(w, http.StatusBadRequest, "Verification token is required", response.CodeInvalidInput)
		return
	}

	store, ctx := h.store(r)

	reg, err := store.RegistrationByToken(ctx, token)
	if err != nil {
		response.WriteStorageError(w, r, err)
		return
	}
	if reg == nil {
		response.WriteStorageError(w, r, storage.ErrInvalidToken)
		return
	}
	if reg.Expired(time.Now()) {
		response.WriteStorageError(w, r, storage.ErrTokenExpired)
		return
	}
	if !reg.Pending() {
		response.WriteStorageError(w, r, storage.ErrAlreadyVerified)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":     true,
		"email":     reg.Email,
		"expiresAt": reg.VerificationExpiresAt,
	})
}
