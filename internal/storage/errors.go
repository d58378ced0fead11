package storage

import "errors"

var (
	// ErrInvalidEmail is returned when the submitted address fails the syntactic check.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidFullName is returned by backends that require a display name of at least 2 characters.
	ErrInvalidFullName = errors.New("full name is required and must be at least 2 characters")
	// ErrDuplicateEmail is returned when the normalized email already has a registration.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidToken is returned when no registration holds the given verification token.
	ErrInvalidToken = errors.New("invalid verification token")
	// ErrTokenExpired is returned when the verification window has closed.
	ErrTokenExpired = errors.New("verification token has expired")
	// ErrAlreadyVerified is returned when the registration was verified before.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrBackendUnavailable is returned when a durable backend cannot be reached or initialized.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
)
