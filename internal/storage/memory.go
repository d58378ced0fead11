package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scorefluence/prelaunch/internal/domain"
)

// MemoryStore keeps the registration collection in process memory. Data is
// lost on restart, so it serves only as the last-resort fallback when no
// durable backend can be initialized.
type MemoryStore struct {
	mu            sync.Mutex
	registrations []*domain.Registration
	fakeBaseCount int
	lastUpdated   time.Time

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	s.fakeBaseCount = fakeBaseCountAt(s.now())
	s.lastUpdated = s.now()
	return s
}

func (s *MemoryStore) Kind() Kind             { return KindMemory }
func (s *MemoryStore) RequiresFullName() bool { return false }
func (s *MemoryStore) Close()                 {}

func (s *MemoryStore) AddRegistration(ctx context.Context, email, fullName string) (*domain.Registration, error) {
	normalized := domain.NormalizeEmail(email)
	if !domain.ValidEmail(normalized) {
		return nil, ErrInvalidEmail
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.registrations {
		if r.Email == normalized {
			return nil, ErrDuplicateEmail
		}
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(TokenTTL)
	reg := &domain.Registration{
		ID:                    uuid.NewString(),
		Email:                 normalized,
		FullName:              trimName(fullName),
		Status:                domain.StatusPending,
		CreatedAt:             now,
		VerificationToken:     token,
		VerificationExpiresAt: &expiresAt,
	}
	s.registrations = append(s.registrations, reg)

	out := *reg
	return &out, nil
}

func (s *MemoryStore) RegistrationByToken(ctx context.Context, token string) (*domain.Registration, error) {
	if token == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.registrations {
		if r.VerificationToken == token {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) VerifyRegistration(ctx context.Context, token string) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reg *domain.Registration
	if token != "" {
		for _, r := range s.registrations {
			if r.VerificationToken == token {
				reg = r
				break
			}
		}
	}
	if reg == nil {
		return nil, ErrInvalidToken
	}

	now := s.now()
	if reg.Expired(now) {
		return nil, ErrTokenExpired
	}
	if !reg.Pending() {
		return nil, ErrAlreadyVerified
	}

	reg.Status = domain.StatusRegistered
	verifiedAt := now
	reg.VerifiedAt = &verifiedAt
	reg.VerificationToken = ""
	reg.VerificationExpiresAt = nil

	out := *reg
	return &out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var registered, pending int
	for _, r := range s.registrations {
		switch r.Status {
		case domain.StatusRegistered:
			registered++
		case domain.StatusPending:
			pending++
		}
	}

	now := s.now()
	if current := fakeBaseCountAt(now); current > s.fakeBaseCount {
		s.fakeBaseCount = current
		s.lastUpdated = now
	}

	return &domain.Stats{
		TotalRegistered: registered,
		TotalPending:    pending,
		Total:           len(s.registrations),
		FakeBaseCount:   s.fakeBaseCount,
		DisplayCount:    s.fakeBaseCount + registered,
		LastUpdated:     s.lastUpdated,
	}, nil
}

func (s *MemoryStore) AllRegistrations(ctx context.Context) ([]domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Registration, 0, len(s.registrations))
	for _, r := range s.registrations {
		out = append(out, *r)
	}
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registrations = nil
	return nil
}

func trimName(name string) string {
	return strings.TrimSpace(name)
}
