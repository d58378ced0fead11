// Command migrate copies registrations from one storage backend to another,
// for example from Postgres into the JSON file before moving to a host
// without a database. The source must support listing and the destination
// must support bulk import.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/scorefluence/prelaunch/internal/storage"
	"github.com/scorefluence/prelaunch/pkg/config"
	"github.com/scorefluence/prelaunch/pkg/logger"
)

func main() {
	from := flag.String("from", "postgres", "source backend kind (memory, file, postgres, supabase)")
	to := flag.String("to", "file", "destination backend kind (memory, file)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	if err := run(ctx, cfg, storage.Kind(*from), storage.Kind(*to)); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, from, to storage.Kind) error {
	src, err := openKind(ctx, cfg, from)
	if err != nil {
		return fmt.Errorf("open source %s: %w", from, err)
	}
	defer src.Close()

	dst, err := openKind(ctx, cfg, to)
	if err != nil {
		return fmt.Errorf("open destination %s: %w", to, err)
	}
	defer dst.Close()

	lister, ok := src.(storage.Lister)
	if !ok {
		return fmt.Errorf("source backend %s cannot enumerate registrations", from)
	}
	importer, ok := dst.(storage.Importer)
	if !ok {
		return fmt.Errorf("destination backend %s cannot import registrations", to)
	}

	regs, err := lister.AllRegistrations(ctx)
	if err != nil {
		return fmt.Errorf("read source registrations: %w", err)
	}

	// Carry the synthetic stats floor across so the public counter never
	// drops after the cutover.
	var fakeBase int
	if stats, err := src.Stats(ctx); err == nil {
		fakeBase = stats.FakeBaseCount
	} else {
		logger.Warn("could not read source stats, destination keeps its own floor", "error", err)
	}

	if err := importer.Import(ctx, regs, fakeBase); err != nil {
		return fmt.Errorf("import registrations: %w", err)
	}

	logger.Info("migration complete",
		"from", from,
		"to", to,
		"registrations", len(regs),
		"fake_base_count", fakeBase,
	)
	return nil
}

// openKind builds the requested backend directly, bypassing selector
// detection so both sides of the copy can coexist in one process.
func openKind(ctx context.Context, cfg *config.Config, kind storage.Kind) (storage.Store, error) {
	override := *cfg
	override.Storage.Kind = string(kind)
	sel := storage.NewSelector(&override)

	store := sel.Store(ctx)
	if store.Kind() != kind {
		return nil, fmt.Errorf("backend %s unavailable, selector fell back to %s", kind, store.Kind())
	}
	return store, nil
}
