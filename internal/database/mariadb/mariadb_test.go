//go:build integration

package mariadb

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/storetest"
)

func setupTestContainer(t *testing.T) (func(dbName string) string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": "test",
			"MARIADB_DATABASE":      "testdb",
		},
		WaitingFor: wait.ForListeningPort("3306/tcp").WithStartupTimeout(90 * time.Second),
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
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	url := func(dbName string) string {
		return fmt.Sprintf("root:test@tcp(%s:%s)/%s", host, port.Port(), dbName)
	}
	return url, func() { container.Terminate(ctx) }
}

func TestStore(t *testing.T) {
	url, cleanup := setupTestContainer(t)
	defer cleanup()
	ctx := context.Background()

	admin, err := sql.Open("mysql", url("testdb"))
	require.NoError(t, err)
	defer admin.Close()

	// The server may still be initializing after the port opens.
	require.Eventually(t, func() bool { return admin.PingContext(ctx) == nil }, 60*time.Second, time.Second)

	n := 0
	storetest.Run(t, func(t *testing.T) database.Store {
		n++
		name := fmt.Sprintf("case_%d", n)
		_, err := admin.ExecContext(ctx, "CREATE DATABASE "+name)
		require.NoError(t, err)

		store, err := Open(ctx, &config.DatabaseConfig{URL: url(name), MaxOpenConns: 5, MaxIdleConns: 2})
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })

		require.NoError(t, store.Migrate(ctx))
		return store
	})
}
