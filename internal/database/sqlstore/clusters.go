package sqlstore

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/kozaktomas/facegraph/internal/database"
)

// AssignClusters writes cluster labels in one transaction and returns the
// number of faces updated. Labels for unknown faces are ignored.
func (s *Store) AssignClusters(ctx context.Context, labels []database.ClusterLabel) (int64, error) {
	if len(labels) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.Storage("begin assign clusters", err)
	}
	defer tx.Rollback()

	query, _, err := s.sb.Update("faces").
		Set("cluster_num", 0).
		Where(sq.Eq{"id": 0}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build assign clusters: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, database.Storage("prepare assign clusters", err)
	}
	defer stmt.Close()

	var total int64
	for _, l := range labels {
		res, err := stmt.ExecContext(ctx, l.ClusterID, l.FaceID)
		if err != nil {
			return 0, database.Storage("assign cluster", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, database.Storage("assign cluster", err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, database.Storage("commit assign clusters", err)
	}
	return total, nil
}

// ClearCluster sets the label of every face in the cluster to NULL and
// returns how many faces changed. Faces and images are never deleted.
func (s *Store) ClearCluster(ctx context.Context, clusterID int64) (int64, error) {
	res, err := s.exec(ctx, s.db, "clear cluster",
		s.sb.Update("faces").Set("cluster_num", nil).Where(sq.Eq{"cluster_num": clusterID}))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, database.Storage("clear cluster", err)
	}
	return n, nil
}

// Stats returns corpus row counts.
func (s *Store) Stats(ctx context.Context) (*database.Stats, error) {
	st := &database.Stats{}
	counts := []struct {
		op   string
		b    sq.SelectBuilder
		dest *int
	}{
		{"count images", s.sb.Select("COUNT(*)").From("images"), &st.Images},
		{"count faces", s.sb.Select("COUNT(*)").From("faces"), &st.Faces},
		{"count similarities", s.sb.Select("COUNT(*)").From("similarities"), &st.Similarities},
		{"count labelled faces", s.sb.Select("COUNT(*)").From("faces").Where("cluster_num IS NOT NULL"), &st.LabelledFaces},
	}
	for _, c := range counts {
		if err := s.queryRow(ctx, s.db, c.op, c.b, c.dest); err != nil {
			return nil, err
		}
	}

	dim, err := s.embeddingDim(ctx, s.db)
	if err != nil {
		return nil, err
	}
	st.EmbeddingDim = dim
	return st, nil
}
