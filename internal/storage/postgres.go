package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scorefluence/prelaunch/internal/domain"
)

const registrationColumns = `id, email, full_name, status, created_at, verification_token, verification_expires_at, verified_at`

// PostgresStore persists registrations in a relational table. Email
// uniqueness is backed by a database constraint in addition to the existence
// check, and the verify path is a single conditional UPDATE so the database
// serializes concurrent attempts on the same token. Timestamps are generated
// server-side to avoid clock skew between caller and store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return s, nil
}

func (s *PostgresStore) Kind() Kind             { return KindPostgres }
func (s *PostgresStore) RequiresFullName() bool { return true }

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS registrations (
    id                      BIGSERIAL PRIMARY KEY,
    email                   TEXT NOT NULL UNIQUE,
    full_name               TEXT NOT NULL,
    status                  TEXT NOT NULL DEFAULT 'pending',
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
    verification_token      TEXT,
    verification_expires_at TIMESTAMPTZ,
    verified_at             TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_registrations_token ON registrations (verification_token);
CREATE TABLE IF NOT EXISTS stats (
    id              SMALLINT PRIMARY KEY DEFAULT 1,
    fake_base_count BIGINT NOT NULL,
    last_updated    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`)
	return err
}

func (s *PostgresStore) AddRegistration(ctx context.Context, email, fullName string) (*domain.Registration, error) {
	normalized := domain.NormalizeEmail(email)
	if !domain.ValidEmail(normalized) {
		return nil, ErrInvalidEmail
	}
	trimmed := strings.TrimSpace(fullName)
	if len(trimmed) < 2 {
		return nil, ErrInvalidFullName
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var existing int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM registrations WHERE email = $1`, normalized).Scan(&existing)
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing registration: %w", err)
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
INSERT INTO registrations (email, full_name, status, verification_token, verification_expires_at)
VALUES ($1, $2, 'pending', $3, now() + interval '24 hours')
RETURNING `+registrationColumns, normalized, trimmed, token)

	reg, err := scanRegistration(row)
	if err != nil {
		// The unique constraint backs up the existence check against
		// concurrent inserts of the same email.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresStore) RegistrationByToken(ctx context.Context, token string) (*domain.Registration, error) {
	if token == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	row := s.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE verification_token = $1`, token)
	reg, err := scanRegistration(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup registration by token: %w", err)
	}
	return reg, nil
}

func (s *PostgresStore) VerifyRegistration(ctx context.Context, token string) (*domain.Registration, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	// Transition, stamp and clear in one conditional UPDATE. At most one of
	// N concurrent callers matches the row.
	row := s.pool.QueryRow(ctx, `
UPDATE registrations
SET status = 'registered',
    verified_at = now(),
    verification_token = NULL,
    verification_expires_at = NULL
WHERE verification_token = $1
  AND status = 'pending'
  AND verification_expires_at > now()
RETURNING `+registrationColumns, token)

	reg, err := scanRegistration(row)
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("verify registration: %w", err)
	}

	// The UPDATE matched nothing: distinguish unknown token, expired token
	// and already-verified for the caller.
	var status string
	var expiresAt *time.Time
	err = s.pool.QueryRow(ctx,
		`SELECT status, verification_expires_at FROM registrations WHERE verification_token = $1`, token).
		Scan(&status, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("inspect registration: %w", err)
	}
	if status == domain.StatusRegistered {
		return nil, ErrAlreadyVerified
	}
	if expiresAt != nil && time.Now().After(*expiresAt) {
		return nil, ErrTokenExpired
	}
	return nil, ErrInvalidToken
}

func (s *PostgresStore) Stats(ctx context.Context) (*domain.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var registered, pending, total int
	err := s.pool.QueryRow(ctx, `
SELECT count(*) FILTER (WHERE status = 'registered'),
       count(*) FILTER (WHERE status = 'pending'),
       count(*)
FROM registrations`).Scan(&registered, &pending, &total)
	if err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}

	// Upsert keeps the floor monotonic: GREATEST never lowers a persisted
	// value, even when the computed floor lags it.
	var fakeBase int
	var lastUpdated time.Time
	err = s.pool.QueryRow(ctx, `
INSERT INTO stats (id, fake_base_count)
VALUES (1, $1)
ON CONFLICT (id) DO UPDATE
SET fake_base_count = GREATEST(stats.fake_base_count, EXCLUDED.fake_base_count),
    last_updated = now()
RETURNING fake_base_count, last_updated`, fakeBaseCountAt(time.Now())).Scan(&fakeBase, &lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("advance stats floor: %w", err)
	}

	return &domain.Stats{
		TotalRegistered: registered,
		TotalPending:    pending,
		Total:           total,
		FakeBaseCount:   fakeBase,
		DisplayCount:    fakeBase + registered,
		LastUpdated:     lastUpdated,
	}, nil
}

func (s *PostgresStore) AllRegistrations(ctx context.Context) ([]domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT `+registrationColumns+` FROM registrations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []domain.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `TRUNCATE registrations`)
	return err
}

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var (
		id        int64
		token     *string
		expiresAt *time.Time
		reg       domain.Registration
	)
	err := row.Scan(&id, &reg.Email, &reg.FullName, &reg.Status, &reg.CreatedAt, &token, &expiresAt, &reg.VerifiedAt)
	if err != nil {
		return nil, err
	}
	reg.ID = strconv.FormatInt(id, 10)
	if token != nil {
		reg.VerificationToken = *token
	}
	reg.VerificationExpiresAt = expiresAt
	return &reg, nil
}
