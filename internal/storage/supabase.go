package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/scorefluence/prelaunch/internal/domain"
)

// SupabaseStore keeps registrations in a hosted table reached over the
// PostgREST API. Existence checks and updates are separate network calls;
// the verify path guards the mutation with an is_verified filter but the
// expiry check still happens client-side, so concurrent verifies have a
// narrower-than-naive yet nonzero race window. Weaker guarantee than the
// relational backend, by contract of the hosted API.
type SupabaseStore struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client

	now func() time.Time
}

func NewSupabaseStore(baseURL, serviceKey string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

func (s *SupabaseStore) Kind() Kind             { return KindSupabase }
func (s *SupabaseStore) RequiresFullName() bool { return true }
func (s *SupabaseStore) Close()                 {}

// supabaseRow mirrors the hosted table schema. Verification state is a
// boolean there, not a status string.
type supabaseRow struct {
	ID                    int64      `json:"id,omitempty"`
	Email                 string     `json:"email"`
	FullName              string     `json:"full_name,omitempty"`
	IsVerified            bool       `json:"is_verified"`
	CreatedAt             time.Time  `json:"created_at,omitempty"`
	VerificationToken     *string    `json:"verification_token,omitempty"`
	VerificationExpiresAt *time.Time `json:"verification_expires_at,omitempty"`
	VerifiedAt            *time.Time `json:"verified_at,omitempty"`
}

func (r *supabaseRow) registration() *domain.Registration {
	reg := &domain.Registration{
		ID:                    strconv.FormatInt(r.ID, 10),
		Email:                 r.Email,
		FullName:              r.FullName,
		Status:                domain.StatusPending,
		CreatedAt:             r.CreatedAt,
		VerificationExpiresAt: r.VerificationExpiresAt,
		VerifiedAt:            r.VerifiedAt,
	}
	if r.IsVerified {
		reg.Status = domain.StatusRegistered
	}
	if r.VerificationToken != nil {
		reg.VerificationToken = *r.VerificationToken
	}
	return reg
}

// rowFilter holds PostgREST query parameters. Filter values carry their
// operator prefix ("eq.<value>").
type rowFilter struct {
	Select     string `url:"select,omitempty"`
	Email      string `url:"email,omitempty"`
	Token      string `url:"verification_token,omitempty"`
	IsVerified string `url:"is_verified,omitempty"`
	Limit      int    `url:"limit,omitempty"`
}

func eq(value string) string { return "eq." + value }

func (s *SupabaseStore) do(ctx context.Context, method, table string, filter any, body any) ([]byte, error) {
	endpoint := s.baseURL + "/rest/v1/" + table
	if filter != nil {
		values, err := query.Values(filter)
		if err != nil {
			return nil, fmt.Errorf("encode query: %w", err)
		}
		if encoded := values.Encode(); encoded != "" {
			endpoint += "?" + encoded
		}
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrBackendUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("supabase %s %s: status %d: %s", method, table, resp.StatusCode, truncate(raw))
	}
	return raw, nil
}

func truncate(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}

func (s *SupabaseStore) rowsByToken(ctx context.Context, token string) ([]supabaseRow, error) {
	raw, err := s.do(ctx, http.MethodGet, "registrations", rowFilter{Token: eq(token), Limit: 1}, nil)
	if err != nil {
		return nil, err
	}
	var rows []supabaseRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode registrations: %w", err)
	}
	return rows, nil
}

func (s *SupabaseStore) AddRegistration(ctx context.Context, email, fullName string) (*domain.Registration, error) {
	normalized := domain.NormalizeEmail(email)
	if !domain.ValidEmail(normalized) {
		return nil, ErrInvalidEmail
	}
	trimmed := strings.TrimSpace(fullName)
	if len(trimmed) < 2 {
		return nil, ErrInvalidFullName
	}

	// Existence check and insert are separate calls; the hosted table's
	// unique constraint still rejects a racing duplicate.
	raw, err := s.do(ctx, http.MethodGet, "registrations",
		rowFilter{Select: "email", Email: eq(normalized), Limit: 1}, nil)
	if err != nil {
		return nil, err
	}
	var existing []supabaseRow
	if err := json.Unmarshal(raw, &existing); err != nil {
		return nil, fmt.Errorf("decode existence check: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrDuplicateEmail
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiresAt := now.Add(TokenTTL)
	insert := supabaseRow{
		Email:                 normalized,
		FullName:              trimmed,
		IsVerified:            false,
		CreatedAt:             now,
		VerificationToken:     &token,
		VerificationExpiresAt: &expiresAt,
	}

	raw, err = s.do(ctx, http.MethodPost, "registrations", nil, []supabaseRow{insert})
	if err != nil {
		return nil, err
	}
	var created []supabaseRow
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("decode insert response: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("%w: insert returned no rows", ErrBackendUnavailable)
	}
	return created[0].registration(), nil
}

func (s *SupabaseStore) RegistrationByToken(ctx context.Context, token string) (*domain.Registration, error) {
	if token == "" {
		return nil, nil
	}
	rows, err := s.rowsByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].registration(), nil
}

func (s *SupabaseStore) VerifyRegistration(ctx context.Context, token string) (*domain.Registration, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	rows, err := s.rowsByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrInvalidToken
	}
	current := rows[0].registration()
	if !current.Pending() {
		return nil, ErrAlreadyVerified
	}
	if current.Expired(s.now()) {
		return nil, ErrTokenExpired
	}

	verifiedAt := s.now().UTC()
	patch := map[string]any{
		"is_verified":             true,
		"verified_at":             verifiedAt,
		"verification_token":      nil,
		"verification_expires_at": nil,
	}
	// The is_verified filter keeps a racing second verify from matching:
	// only one PATCH sees the row unverified.
	raw, err := s.do(ctx, http.MethodPatch, "registrations",
		rowFilter{Token: eq(token), IsVerified: eq("false")}, patch)
	if err != nil {
		return nil, err
	}
	var updated []supabaseRow
	if err := json.Unmarshal(raw, &updated); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if len(updated) == 0 {
		return nil, ErrAlreadyVerified
	}
	return updated[0].registration(), nil
}

// supabaseStats mirrors the hosted stats view.
type supabaseStats struct {
	TotalRegistrations    int `json:"total_registrations"`
	VerifiedRegistrations int `json:"verified_registrations"`
	PendingRegistrations  int `json:"pending_registrations"`
}

// Stats reads the hosted stats view. Unlike the other backends this path
// hard-fails when no stats row exists and reports no synthetic floor; the
// display count is the verified count alone.
func (s *SupabaseStore) Stats(ctx context.Context) (*domain.Stats, error) {
	raw, err := s.do(ctx, http.MethodGet, "stats",
		struct {
			Select string `url:"select"`
		}{Select: "total_registrations,verified_registrations,pending_registrations"}, nil)
	if err != nil {
		return nil, err
	}

	var rows []supabaseStats
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no stats records found in supabase")
	}

	st := rows[0]
	return &domain.Stats{
		TotalRegistered: st.VerifiedRegistrations,
		TotalPending:    st.PendingRegistrations,
		Total:           st.TotalRegistrations,
		FakeBaseCount:   0,
		DisplayCount:    st.VerifiedRegistrations,
	}, nil
}
