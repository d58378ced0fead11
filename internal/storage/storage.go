// Package storage defines the registration store contract and its four
// interchangeable backends: in-process memory, a local JSON file, Postgres,
// and a hosted Supabase table. Every backend satisfies the same semantics;
// they differ only in durability and concurrency discipline.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/scorefluence/prelaunch/internal/domain"
)

// Kind identifies a storage backend implementation.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindFile     Kind = "file"
	KindPostgres Kind = "postgres"
	KindSupabase Kind = "supabase"
)

// TokenTTL is the verification window, fixed at creation and never extended.
const TokenTTL = 24 * time.Hour

// Store is the contract every backend implements. Callers depend on this
// interface only; the active implementation is chosen by the Selector.
type Store interface {
	// AddRegistration persists a new pending registration with a fresh
	// verification token expiring TokenTTL from now. Returns
	// ErrInvalidEmail, ErrInvalidFullName or ErrDuplicateEmail on the
	// expected failure paths.
	AddRegistration(ctx context.Context, email, fullName string) (*domain.Registration, error)

	// RegistrationByToken is a pure lookup. A missing token yields
	// (nil, nil), not an error.
	RegistrationByToken(ctx context.Context, token string) (*domain.Registration, error)

	// VerifyRegistration atomically transitions the matching pending
	// registration to registered, stamps verifiedAt and clears the token
	// and expiry. Two concurrent calls with the same token must not both
	// succeed. Returns ErrInvalidToken, ErrTokenExpired or
	// ErrAlreadyVerified.
	VerifyRegistration(ctx context.Context, token string) (*domain.Registration, error)

	// Stats computes counts, advances the persisted fake base count when
	// the time-derived floor has moved past it, and returns the snapshot.
	Stats(ctx context.Context) (*domain.Stats, error)

	// Kind reports which backend this is.
	Kind() Kind

	// RequiresFullName reports whether AddRegistration rejects a missing
	// display name. The durable backends require one; memory and file
	// accept registrations without it.
	RequiresFullName() bool

	// Close releases backend resources. Safe to call on every kind.
	Close()
}

// Lister is implemented by backends that can enumerate every registration.
// Used by the admin listing and the migration command.
type Lister interface {
	AllRegistrations(ctx context.Context) ([]domain.Registration, error)
}

// Importer is implemented by backends that accept a bulk load of records,
// used when migrating data between backends. fakeBase seeds the synthetic
// stats floor; zero means keep the destination's current floor.
type Importer interface {
	Import(ctx context.Context, regs []domain.Registration, fakeBase int) error
}

// Clearer removes every registration. Test-only; no production code path
// deletes records.
type Clearer interface {
	Clear(ctx context.Context) error
}

// NewToken returns a fresh 256-bit random token as a 64-character hex
// string. Tokens carry no embedded structure, deliberately: they are not
// decodable and not time-ordered.
func NewToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// The synthetic floor under the public display count: a fixed baseline that
// grows by a fixed amount per elapsed day since the campaign epoch.
const (
	fakeBase          = 2847
	fakeDailyIncrease = 35
)

var fakeBaseEpoch = time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)

// fakeBaseCountAt returns the time-derived floor at the given instant.
// Backends persist the result and only ever raise it, so the displayed
// number is monotonic even if the clock steps backwards.
func fakeBaseCountAt(now time.Time) int {
	days := int(now.Sub(fakeBaseEpoch) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	return fakeBase + days*fakeDailyIncrease
}
