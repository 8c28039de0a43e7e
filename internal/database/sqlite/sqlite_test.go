package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
	"github.com/kozaktomas/facegraph/internal/database/storetest"
)

func openTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()

	cfg := &config.DatabaseConfig{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "faces.db")}
	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) database.Store {
		return openTestStore(t)
	})
}

func TestMigrationsApplied(t *testing.T) {
	store := openTestStore(t)

	versions, err := store.MigrationsApplied(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql"}, versions)
	assert.Equal(t, "sqlite", store.Dialect())
}

func TestEmbeddingsStoredAsJSON(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	storetest.Insert(t, store, storetest.Image{
		Source: database.SourcePhone,
		Path:   "/a.jpg",
		Faces:  []storetest.Face{{Embedding: []float64{0.5, -1.25}}},
	})

	var raw string
	require.NoError(t, store.DB().QueryRowContext(ctx, "SELECT embedding FROM faces").Scan(&raw))
	assert.JSONEq(t, "[0.5,-1.25]", raw)
}

func TestForeignKeysEnforced(t *testing.T) {
	store := openTestStore(t)

	err := store.ReplaceSimilarities(context.Background(), []database.SimilarityEdge{
		{Face1ID: 1, Face2ID: 2, Distance: 0.1},
	})
	assert.True(t, database.IsStorage(err), "edge to a missing face must fail, got %v", err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), &config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "faces.db?_foreign_keys=on&_busy_timeout=5000", dsn("faces.db"))
	assert.Equal(t, "file:faces.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000", dsn("file:faces.db?mode=rwc"))
}
