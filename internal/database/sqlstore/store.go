// Package sqlstore implements database.Store on top of database/sql.
// Backends (postgres, sqlite, mariadb) differ only in their Dialect and
// migration files; every query is built with squirrel so placeholders
// follow the backend's format.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegraph/internal/database"
)

// EmbeddingScanner is a scan destination for the embedding column.
type EmbeddingScanner interface {
	sql.Scanner
	Vector() []float64
}

// Dialect captures what differs between SQL backends.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat

	// EncodeEmbedding converts a vector into a driver value for the embedding column.
	EncodeEmbedding func(v []float64) (any, error)
	// NewEmbeddingScanner returns a fresh scan destination for the embedding column.
	NewEmbeddingScanner func() EmbeddingScanner

	// BulkInsertEdges replaces the batched INSERT path when set.
	BulkInsertEdges func(ctx context.Context, tx *sql.Tx, edges []database.SimilarityEdge) error

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(err error) bool

	// Returning is true when INSERT ... RETURNING id must be used instead of LastInsertId.
	Returning bool
}

// Store is a database.Store over a *sql.DB.
type Store struct {
	db         *sql.DB
	dialect    Dialect
	sb         sq.StatementBuilderType
	migrations fs.FS
	roles      database.Roles
	logger     *zap.Logger
}

var _ database.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithRoles sets the source roles used by the cluster and match queries.
func WithRoles(r database.Roles) Option {
	return func(s *Store) { s.roles = r }
}

// WithLogger sets the logger used for migrations and slow operations.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a store. migrations must contain a "migrations" directory of ordered .sql files.
func New(db *sql.DB, d Dialect, migrations fs.FS, opts ...Option) *Store {
	s := &Store{
		db:         db,
		dialect:    d,
		sb:         sq.StatementBuilder.PlaceholderFormat(d.Placeholder),
		migrations: migrations,
		roles:      database.DefaultRoles(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend name.
func (s *Store) Dialect() string {
	return s.dialect.Name
}

// Roles returns the source roles in use.
func (s *Store) Roles() database.Roles {
	return s.roles
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// exec builds and runs a statement that doesn't return rows.
func (s *Store) exec(ctx context.Context, q querier, op string, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, database.Storage(op, err)
	}
	return res, nil
}

// query builds and runs a statement that returns rows.
func (s *Store) query(ctx context.Context, q querier, op string, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.Storage(op, err)
	}
	return rows, nil
}

// queryRow builds a single-row statement and scans it into dest.
// sql.ErrNoRows is translated to database.ErrNotFound.
func (s *Store) queryRow(ctx context.Context, q querier, op string, b sq.Sqlizer, dest ...any) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", op, err)
	}
	if err := q.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrNotFound
		}
		return database.Storage(op, err)
	}
	return nil
}

func checkLimit(limit int) error {
	if limit <= 0 {
		return database.Invalid("limit must be positive, got %d", limit)
	}
	return nil
}
