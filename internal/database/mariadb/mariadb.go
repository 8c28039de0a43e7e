// Package mariadb is the MariaDB/MySQL backend. Embeddings are stored as
// JSON text.
package mariadb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// erDupEntry is the server error number for a duplicate key.
const erDupEntry = 1062

// Open creates a MariaDB connection pool and wraps it in a store.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := normalizeDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return sqlstore.New(db, Dialect(), migrationsFS, opts...), nil
}

// normalizeDSN forces the driver options the store relies on: multi-statement
// migrations, time.Time scanning and matched (not changed) row counts.
func normalizeDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse MariaDB DSN: %w", err)
	}
	c.MultiStatements = true
	c.ParseTime = true
	c.ClientFoundRows = true
	c.Loc = time.UTC
	return c.FormatDSN(), nil
}

// Dialect returns the MariaDB dialect.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:                "mariadb",
		Placeholder:         sq.Question,
		EncodeEmbedding:     sqlstore.EncodeJSONEmbedding,
		NewEmbeddingScanner: sqlstore.NewJSONEmbedding,
		IsUniqueViolation:   isUniqueViolation,
	}
}

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erDupEntry
}
