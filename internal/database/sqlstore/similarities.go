package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kozaktomas/facegraph/internal/constants"
	"github.com/kozaktomas/facegraph/internal/database"
)

// ReplaceSimilarities swaps the stored graph for edges in one transaction.
// Readers see either the old or the new edge set. A cancelled context or a
// failed insert rolls back and leaves the previous graph in place.
func (s *Store) ReplaceSimilarities(ctx context.Context, edges []database.SimilarityEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return database.Storage("begin replace similarities", err)
	}
	defer tx.Rollback()

	if _, err := s.exec(ctx, tx, "delete similarities", s.sb.Delete("similarities")); err != nil {
		return err
	}

	if len(edges) > 0 {
		if s.dialect.BulkInsertEdges != nil {
			err = s.dialect.BulkInsertEdges(ctx, tx, edges)
		} else {
			err = s.insertEdgesBatched(ctx, tx, edges)
		}
		if err != nil {
			return database.Storage("insert similarities", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return database.Storage("commit replace similarities", err)
	}
	return nil
}

func (s *Store) insertEdgesBatched(ctx context.Context, tx *sql.Tx, edges []database.SimilarityEdge) error {
	for start := 0; start < len(edges); start += constants.EdgeInsertBatchSize {
		end := min(start+constants.EdgeInsertBatchSize, len(edges))

		b := s.sb.Insert("similarities").Columns("face1_id", "face2_id", "distance")
		for _, e := range edges[start:end] {
			b = b.Values(e.Face1ID, e.Face2ID, e.Distance)
		}
		if _, err := s.exec(ctx, tx, fmt.Sprintf("insert similarities batch at %d", start), b); err != nil {
			return err
		}
	}
	return nil
}
