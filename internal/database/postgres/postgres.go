// Package postgres is the PostgreSQL backend. Embeddings live in a pgvector
// column and similarity edges are bulk loaded with COPY.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// Open creates a PostgreSQL connection pool and wraps it in a store.
// Migrations are not applied; call Migrate.
func Open(ctx context.Context, cfg *config.DatabaseConfig, opts ...sqlstore.Option) (*sqlstore.Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return sqlstore.New(db, Dialect(), migrationsFS, opts...), nil
}

// Dialect returns the PostgreSQL dialect.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:                "postgres",
		Placeholder:         sq.Dollar,
		EncodeEmbedding:     encodeVector,
		NewEmbeddingScanner: func() sqlstore.EmbeddingScanner { return &vectorScanner{} },
		BulkInsertEdges:     copyEdges,
		IsUniqueViolation:   isUniqueViolation,
		Returning:           true,
	}
}

// encodeVector narrows to float32, the precision of a pgvector column.
func encodeVector(v []float64) (any, error) {
	f := make([]float32, len(v))
	for i, x := range v {
		f[i] = float32(x)
	}
	return pgvector.NewVector(f), nil
}

type vectorScanner struct {
	v pgvector.Vector
}

func (s *vectorScanner) Scan(src any) error {
	return s.v.Scan(src)
}

func (s *vectorScanner) Vector() []float64 {
	f := s.v.Slice()
	out := make([]float64, len(f))
	for i, x := range f {
		out[i] = float64(x)
	}
	return out
}

// copyEdges streams edges into the similarities table with COPY FROM STDIN.
func copyEdges(ctx context.Context, tx *sql.Tx, edges []database.SimilarityEdge) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("similarities", "face1_id", "face2_id", "distance"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, e.Face1ID, e.Face2ID, e.Distance); err != nil {
			stmt.Close()
			return fmt.Errorf("copy edge %d->%d: %w", e.Face1ID, e.Face2ID, err)
		}
	}

	// flush buffered rows
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
