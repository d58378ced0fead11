package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/scorefluence/prelaunch/pkg/config"
	"github.com/scorefluence/prelaunch/pkg/database"
	"github.com/scorefluence/prelaunch/pkg/logger"
)

// Selector chooses and caches the active backend from environment-derived
// configuration. It holds at most one live store; the instance is recreated
// only when the detected kind changes or Refresh is called. Construct one at
// process start and pass the handle down; there is no package-global
// instance.
type Selector struct {
	mu    sync.Mutex
	cfg   *config.Config
	store Store
	kind  Kind
}

func NewSelector(cfg *config.Config) *Selector {
	return &Selector{cfg: cfg}
}

// Detect computes the backend kind from configuration, first match wins:
// explicit override, hosted-table credentials, serverless context, missing
// relational credentials, relational.
func (s *Selector) Detect() Kind {
	switch s.cfg.Storage.Kind {
	case string(KindMemory), string(KindFile), string(KindPostgres), string(KindSupabase):
		return Kind(s.cfg.Storage.Kind)
	case "":
	default:
		logger.Warn("unknown storage type override, ignoring", "storage_type", s.cfg.Storage.Kind)
	}

	if s.cfg.Supabase.Configured() {
		return KindSupabase
	}
	if s.cfg.Storage.Serverless || !s.cfg.Database.Configured() {
		return KindFile
	}
	return KindPostgres
}

// Store returns the active backend, instantiating it on first use. A durable
// backend that fails to initialize downgrades to the ephemeral store so the
// registration flow stays available; the downgrade is logged at warning
// level, never silent.
func (s *Selector) Store(ctx context.Context) Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := s.Detect()
	if s.store != nil && s.kind == kind {
		return s.store
	}
	if s.store != nil {
		s.store.Close()
	}

	logger.Info("initializing storage backend", "kind", kind)

	store, err := s.open(ctx, kind)
	if err != nil {
		logger.Warn("storage backend unavailable, falling back to ephemeral memory store",
			"kind", kind, "error", err)
		store = NewMemoryStore()
		kind = KindMemory
	}

	s.store = store
	s.kind = kind
	return s.store
}

func (s *Selector) open(ctx context.Context, kind Kind) (Store, error) {
	switch kind {
	case KindMemory:
		return NewMemoryStore(), nil
	case KindFile:
		return NewFileStore(s.dataFilePath())
	case KindSupabase:
		return NewSupabaseStore(s.cfg.Supabase.URL, s.cfg.Supabase.ServiceKey), nil
	default:
		pool, err := database.Connect(ctx, s.cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		store, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	}
}

// dataFilePath scopes the file backend to a writable temp area on
// ephemeral-filesystem platforms.
func (s *Selector) dataFilePath() string {
	if s.cfg.Storage.Serverless {
		return filepath.Join(os.TempDir(), "registrations.json")
	}
	return s.cfg.Storage.DataFile
}

// Kind reports the kind of the live store, or the detected kind when none
// has been created yet.
func (s *Selector) Kind() Kind {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return s.kind
	}
	return s.Detect()
}

// Refresh discards the live instance and builds a fresh one. The single
// re-init entry point for configuration changes and tests.
func (s *Selector) Refresh(ctx context.Context) Store {
	s.mu.Lock()
	if s.store != nil {
		s.store.Close()
	}
	s.store = nil
	s.kind = ""
	s.mu.Unlock()

	return s.Store(ctx)
}

// Close releases the live store, if any.
func (s *Selector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		s.store.Close()
		s.store = nil
		s.kind = ""
	}
}
