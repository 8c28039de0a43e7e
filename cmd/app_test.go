package cmd

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewApp_MigratesOnOpen(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "faces.db"))
	t.Setenv("FACEGRAPH_PROFILE", "")
	t.Setenv("LOG_MODE", "production")

	ctx := context.Background()
	for run := 0; run < 2; run++ {
		a, err := newApp(ctx)
		if err != nil {
			t.Fatalf("run %d: newApp returned error: %v", run, err)
		}

		versions, err := a.store.MigrationsApplied(ctx)
		if err != nil {
			a.Close()
			t.Fatalf("run %d: failed to list migrations: %v", run, err)
		}
		if len(versions) == 0 {
			t.Errorf("run %d: expected applied migrations", run)
		}
		if _, err := a.store.Stats(ctx); err != nil {
			t.Errorf("run %d: expected queryable schema, got %v", run, err)
		}
		a.Close()
	}
}

func TestNewApp_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")
	t.Setenv("DATABASE_URL", "whatever")
	t.Setenv("FACEGRAPH_PROFILE", "")

	if _, err := newApp(context.Background()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
