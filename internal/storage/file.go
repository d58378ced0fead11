package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scorefluence/prelaunch/internal/domain"
	"github.com/scorefluence/prelaunch/pkg/logger"
)

// fileDocument is the on-disk layout: the whole registration collection plus
// the persisted stats floor in a single JSON document.
type fileDocument struct {
	Registrations []*domain.Registration `json:"registrations"`
	Stats         fileStats              `json:"stats"`
}

type fileStats struct {
	FakeBaseCount int       `json:"fakeBaseCount"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// FileStore persists registrations in one JSON file. Reads parse the whole
// document; writes serialize to a temp file and rename over the original, so
// a crash mid-write leaves the previous contents intact. The mutex covers
// in-process callers only; concurrent writers from other processes can still
// race (documented limitation).
type FileStore struct {
	mu   sync.Mutex
	path string

	now func() time.Time
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, now: time.Now}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", ErrBackendUnavailable, err)
	}
	// Bootstrap the document so a first read never fails.
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(s.emptyDocument()); err != nil {
			return nil, fmt.Errorf("%w: bootstrap data file: %v", ErrBackendUnavailable, err)
		}
	}
	return s, nil
}

func (s *FileStore) Kind() Kind             { return KindFile }
func (s *FileStore) RequiresFullName() bool { return false }
func (s *FileStore) Close()                 {}

func (s *FileStore) emptyDocument() *fileDocument {
	return &fileDocument{
		Registrations: []*domain.Registration{},
		Stats: fileStats{
			FakeBaseCount: fakeBaseCountAt(s.now()),
			LastUpdated:   s.now(),
		},
	}
}

// read loads and parses the whole document. A missing or corrupt file
// degrades to an empty document rather than failing the request.
func (s *FileStore) read() (*fileDocument, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.emptyDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("data file corrupt, starting from empty document", "path", s.path, "error", err)
		return s.emptyDocument(), nil
	}
	if doc.Registrations == nil {
		doc.Registrations = []*domain.Registration{}
	}
	return &doc, nil
}

// write serializes the document to <path>.tmp and atomically renames it over
// the data file.
func (s *FileStore) write(doc *fileDocument) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode data file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write temp data file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

func (s *FileStore) AddRegistration(ctx context.Context, email, fullName string) (*domain.Registration, error) {
	normalized := domain.NormalizeEmail(email)
	if !domain.ValidEmail(normalized) {
		return nil, ErrInvalidEmail
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, r := range doc.Registrations {
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
	doc.Registrations = append(doc.Registrations, reg)

	if err := s.write(doc); err != nil {
		return nil, err
	}

	out := *reg
	return &out, nil
}

func (s *FileStore) RegistrationByToken(ctx context.Context, token string) (*domain.Registration, error) {
	if token == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, r := range doc.Registrations {
		if r.VerificationToken == token {
			out := *r
			return &out, nil
		}
	}
	return nil, nil
}

func (s *FileStore) VerifyRegistration(ctx context.Context, token string) (*domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	var reg *domain.Registration
	if token != "" {
		for _, r := range doc.Registrations {
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

	if err := s.write(doc); err != nil {
		return nil, err
	}

	out := *reg
	return &out, nil
}

func (s *FileStore) Stats(ctx context.Context) (*domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	var registered, pending int
	for _, r := range doc.Registrations {
		switch r.Status {
		case domain.StatusRegistered:
			registered++
		case domain.StatusPending:
			pending++
		}
	}

	now := s.now()
	if current := fakeBaseCountAt(now); current > doc.Stats.FakeBaseCount {
		doc.Stats.FakeBaseCount = current
		doc.Stats.LastUpdated = now
		if err := s.write(doc); err != nil {
			return nil, err
		}
	}

	return &domain.Stats{
		TotalRegistered: registered,
		TotalPending:    pending,
		Total:           len(doc.Registrations),
		FakeBaseCount:   doc.Stats.FakeBaseCount,
		DisplayCount:    doc.Stats.FakeBaseCount + registered,
		LastUpdated:     doc.Stats.LastUpdated,
	}, nil
}

func (s *FileStore) AllRegistrations(ctx context.Context) ([]domain.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Registration, 0, len(doc.Registrations))
	for _, r := range doc.Registrations {
		out = append(out, *r)
	}
	return out, nil
}

// Import replaces the stored collection with records from another backend.
// A positive fakeBase raises the stats floor; it never lowers it.
func (s *FileStore) Import(ctx context.Context, regs []domain.Registration, fakeBase int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}

	doc.Registrations = make([]*domain.Registration, 0, len(regs))
	for i := range regs {
		reg := regs[i]
		if reg.ID == "" {
			reg.ID = uuid.NewString()
		}
		doc.Registrations = append(doc.Registrations, &reg)
	}
	if fakeBase > doc.Stats.FakeBaseCount {
		doc.Stats.FakeBaseCount = fakeBase
	}
	doc.Stats.LastUpdated = s.now()

	return s.write(doc)
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(s.emptyDocument())
}
