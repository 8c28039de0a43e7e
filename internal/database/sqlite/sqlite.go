// Package sqlite is the single-file SQLite backend. Embeddings are stored as
// JSON text.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (creating if needed) the database file at cfg.URL.
// Foreign keys are enforced and a single connection serializes writers.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", dsn(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqlstore.New(db, Dialect(), migrationsFS, opts...), nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Dialect returns the SQLite dialect.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:                "sqlite",
		Placeholder:         sq.Question,
		EncodeEmbedding:     sqlstore.EncodeJSONEmbedding,
		NewEmbeddingScanner: sqlstore.NewJSONEmbedding,
		IsUniqueViolation:   isUniqueViolation,
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
