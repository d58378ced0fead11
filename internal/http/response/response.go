// Package response writes structured JSON bodies and maps storage faults to
// HTTP statuses and stable error codes.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scorefluence/prelaunch/internal/storage"
	"github.com/scorefluence/prelaunch/pkg/logger"
)

// ErrorResponse is the JSON shape of every error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Error codes surfaced to clients.
const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInvalidEmail    = "INVALID_EMAIL"
	CodeInvalidFullName = "INVALID_FULL_NAME"
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeExpiredToken    = "EXPIRED_TOKEN"
	CodeAlreadyVerified = "ALREADY_VERIFIED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes a structured JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteStorageError translates the storage error taxonomy into an HTTP
// response. The first six sentinels are expected user-facing outcomes;
// anything else is an operational failure reported as a 500.
func WriteStorageError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidEmail):
		WriteError(w, http.StatusBadRequest, "Please enter a valid email address", CodeInvalidEmail)
	case errors.Is(err, storage.ErrInvalidFullName):
		WriteError(w, http.StatusBadRequest, "Full name is required and must be at least 2 characters", CodeInvalidFullName)
	case errors.Is(err, storage.ErrDuplicateEmail):
		WriteError(w, http.StatusConflict, "This email is already registered for pre-launch access", CodeEmailExists)
	case errors.Is(err, storage.ErrInvalidToken):
		WriteError(w, http.StatusBadRequest, "Invalid verification link. Please try registering again.", CodeInvalidToken)
	case errors.Is(err, storage.ErrTokenExpired):
		WriteError(w, http.StatusBadRequest, "Verification link has expired. Please register again to receive a new link.", CodeExpiredToken)
	case errors.Is(err, storage.ErrAlreadyVerified):
		WriteError(w, http.StatusBadRequest, "This email has already been verified.", CodeAlreadyVerified)
	default:
		logger.ErrorContext(r.Context(), "storage operation failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "Something went wrong. Please try again later.", CodeInternalError)
	}
}
