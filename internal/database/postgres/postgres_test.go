//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
	"github.com/kozaktomas/facegraph/internal/database/storetest"
)

// setupTestContainer starts pgvector and returns a URL builder for databases on it.
func setupTestContainer(t *testing.T) (func(dbName string) string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	url := func(dbName string) string {
		return fmt.Sprintf("postgres://test:test@%s:%s/%s?sslmode=disable", host, port.Port(), dbName)
	}
	cleanup := func() {
		container.Terminate(ctx)
	}
	return url, cleanup
}

// freshStore creates an empty database on the container and migrates it.
func freshStore(t *testing.T, admin *sql.DB, url func(string) string, name string) *sqlstore.Store {
	t.Helper()
	ctx := context.Background()

	_, err := admin.ExecContext(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err)

	store, err := Open(ctx, &config.DatabaseConfig{URL: url(name), MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStore(t *testing.T) {
	url, cleanup := setupTestContainer(t)
	defer cleanup()

	admin, err := sql.Open("postgres", url("testdb"))
	require.NoError(t, err)
	defer admin.Close()

	n := 0
	storetest.Run(t, func(t *testing.T) database.Store {
		n++
		return freshStore(t, admin, url, fmt.Sprintf("case_%d", n))
	})
}

func TestMigrations(t *testing.T) {
	url, cleanup := setupTestContainer(t)
	defer cleanup()

	admin, err := sql.Open("postgres", url("testdb"))
	require.NoError(t, err)
	defer admin.Close()

	store := freshStore(t, admin, url, "migrations")
	ctx := context.Background()

	versions, err := store.MigrationsApplied(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql"}, versions)

	// Running migrations twice must be a no-op.
	require.NoError(t, store.Migrate(ctx))

	var typ string
	err = store.DB().QueryRowContext(ctx, `
		SELECT format_type(atttypid, atttypmod) FROM pg_attribute
		WHERE attrelid = 'faces'::regclass AND attname = 'embedding'
	`).Scan(&typ)
	require.NoError(t, err)
	assert.Equal(t, "vector", typ)
}

func TestCopyEdges(t *testing.T) {
	url, cleanup := setupTestContainer(t)
	defer cleanup()

	admin, err := sql.Open("postgres", url("testdb"))
	require.NoError(t, err)
	defer admin.Close()

	store := freshStore(t, admin, url, "copy_edges")
	ctx := context.Background()

	var faces []int64
	for i := range 40 {
		ids := storetest.Insert(t, store, storetest.Image{
			Source: database.SourcePhone,
			Path:   fmt.Sprintf("/photos/%02d.jpg", i),
			Faces:  []storetest.Face{{Embedding: []float64{float64(i), 0}}},
		})
		faces = append(faces, ids...)
	}

	var edges []database.SimilarityEdge
	for _, a := range faces {
		for _, b := range faces {
			if a != b {
				edges = append(edges, database.SimilarityEdge{Face1ID: a, Face2ID: b, Distance: 0.25})
			}
		}
	}
	require.NoError(t, store.ReplaceSimilarities(ctx, edges))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(edges), stats.Similarities)
}
