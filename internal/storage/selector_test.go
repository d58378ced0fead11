package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/scorefluence/prelaunch/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.StorageConfig{
			DataFile: filepath.Join(t.TempDir(), "registrations.json"),
		},
	}
}

func TestSelectorDetectPrecedence(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*config.Config)
		want Kind
	}{
		{
			name: "explicit override wins",
			mut: func(c *config.Config) {
				c.Storage.Kind = "memory"
				c.Supabase = config.SupabaseConfig{URL: "https://x.supabase.co", ServiceKey: "k"}
				c.Database.URL = "postgres://u:p@localhost/db"
			},
			want: KindMemory,
		},
		{
			name: "supabase credentials before database",
			mut: func(c *config.Config) {
				c.Supabase = config.SupabaseConfig{URL: "https://x.supabase.co", ServiceKey: "k"}
				c.Database.URL = "postgres://u:p@localhost/db"
			},
			want: KindSupabase,
		},
		{
			name: "serverless without supabase uses file",
			mut: func(c *config.Config) {
				c.Storage.Serverless = true
				c.Database.URL = "postgres://u:p@localhost/db"
			},
			want: KindFile,
		},
		{
			name: "no durable configuration uses file",
			mut:  func(c *config.Config) {},
			want: KindFile,
		},
		{
			name: "discrete database parameters use postgres",
			mut: func(c *config.Config) {
				c.Database = config.DatabaseConfig{Host: "localhost", Port: "5432", User: "u", Password: "p", Name: "db"}
			},
			want: KindPostgres,
		},
		{
			name: "unknown override is ignored",
			mut: func(c *config.Config) {
				c.Storage.Kind = "cassandra"
			},
			want: KindFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mut(cfg)
			if got := NewSelector(cfg).Detect(); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectorNoConfigurationIsUsableEndToEnd(t *testing.T) {
	ctx := context.Background()
	sel := NewSelector(testConfig(t))
	defer sel.Close()

	store := sel.Store(ctx)
	if store == nil {
		t.Fatal("Store returned nil")
	}
	if store.Kind() != KindFile {
		t.Fatalf("kind = %v, want file", store.Kind())
	}

	reg, err := store.AddRegistration(ctx, "selector@example.com", "Jane Doe")
	if err != nil {
		t.Fatalf("AddRegistration on default backend: %v", err)
	}
	if _, err := store.VerifyRegistration(ctx, reg.VerificationToken); err != nil {
		t.Fatalf("VerifyRegistration on default backend: %v", err)
	}
}

func TestSelectorCachesInstance(t *testing.T) {
	ctx := context.Background()
	sel := NewSelector(testConfig(t))
	defer sel.Close()

	first := sel.Store(ctx)
	second := sel.Store(ctx)
	if first != second {
		t.Error("Store created a new instance although the kind did not change")
	}
}

func TestSelectorRecreatesOnKindChange(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	sel := NewSelector(cfg)
	defer sel.Close()

	first := sel.Store(ctx)
	if first.Kind() != KindFile {
		t.Fatalf("initial kind = %v", first.Kind())
	}

	cfg.Storage.Kind = "memory"
	second := sel.Store(ctx)
	if second.Kind() != KindMemory {
		t.Fatalf("kind after config change = %v, want memory", second.Kind())
	}
	if first == second {
		t.Error("instance not recreated after kind change")
	}
}

func TestSelectorFallsBackToMemoryOnUnavailableDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	// Nothing listens on port 9; pool creation fails fast.
	cfg.Database.URL = "postgres://u:p@127.0.0.1:9/db?sslmode=disable&connect_timeout=1"
	sel := NewSelector(cfg)
	defer sel.Close()

	if got := sel.Detect(); got != KindPostgres {
		t.Fatalf("Detect() = %v, want postgres", got)
	}

	store := sel.Store(ctx)
	if store.Kind() != KindMemory {
		t.Fatalf("fallback kind = %v, want memory", store.Kind())
	}

	// The downgraded flow still works end to end.
	if _, err := store.AddRegistration(ctx, "fallback@example.com", "Jane Doe"); err != nil {
		t.Fatalf("AddRegistration on fallback store: %v", err)
	}
}

func TestSelectorRefresh(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Storage.Kind = "memory"
	sel := NewSelector(cfg)
	defer sel.Close()

	first := sel.Store(ctx)
	if _, err := first.AddRegistration(ctx, "gone@example.com", "Jane Doe"); err != nil {
		t.Fatal(err)
	}

	second := sel.Refresh(ctx)
	if first == second {
		t.Fatal("Refresh returned the old instance")
	}
	// Swapping backends discards the old instance's state.
	stats, err := second.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 0 {
		t.Errorf("refreshed memory store total = %d, want 0", stats.Total)
	}
}
