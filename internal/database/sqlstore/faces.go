package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/kozaktomas/facegraph/internal/database"
)

// AllEmbeddings returns (face id, embedding) for every face, ordered by face id.
func (s *Store) AllEmbeddings(ctx context.Context) ([]database.FaceEmbedding, error) {
	return s.scanEmbeddings(ctx, "query embeddings",
		s.sb.Select("f.id", "f.embedding").From("faces f").OrderBy("f.id"))
}

// ClusterableEmbeddings returns embeddings of faces whose image source is one of sources.
func (s *Store) ClusterableEmbeddings(ctx context.Context, sources []database.Source) ([]database.FaceEmbedding, error) {
	if len(sources) == 0 {
		return []database.FaceEmbedding{}, nil
	}
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		if !src.Valid() {
			return nil, database.Invalid("unknown source %q", src)
		}
		names = append(names, string(src))
	}

	return s.scanEmbeddings(ctx, "query clusterable embeddings",
		s.sb.Select("f.id", "f.embedding").
			From("faces f").
			Join("images i ON i.id = f.image_id").
			Where(sq.Eq{"i.source": names}).
			OrderBy("f.id"))
}

func (s *Store) scanEmbeddings(ctx context.Context, op string, b sq.SelectBuilder) ([]database.FaceEmbedding, error) {
	rows, err := s.query(ctx, s.db, op, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []database.FaceEmbedding{}
	for rows.Next() {
		var (
			id  int64
			emb = s.dialect.NewEmbeddingScanner()
		)
		if err := rows.Scan(&id, emb); err != nil {
			return nil, database.Storage("scan embedding", err)
		}
		out = append(out, database.FaceEmbedding{FaceID: id, Embedding: emb.Vector()})
	}
	if err := rows.Err(); err != nil {
		return nil, database.Storage(op, err)
	}
	return out, nil
}

// GetFace returns a single face with its image.
func (s *Store) GetFace(ctx context.Context, faceID int64) (*database.FaceDetail, error) {
	b := s.sb.Select(faceDetailColumns...).
		From("faces_with_pose f").
		Join("images i ON i.id = f.image_id").
		Where(sq.Eq{"f.id": faceID})

	return s.singleFace(ctx, "get face", b)
}

// ReferenceFace returns the lowest-id face of a still image from the reference source.
func (s *Store) ReferenceFace(ctx context.Context) (*database.FaceDetail, error) {
	b := s.sb.Select(faceDetailColumns...).
		From("faces_with_pose f").
		Join("images i ON i.id = f.image_id").
		Where(sq.Eq{"i.source": string(s.roles.Reference), "i.kind": string(database.KindImage)}).
		OrderBy("f.id").
		Limit(1)

	return s.singleFace(ctx, "get reference face", b)
}

func (s *Store) singleFace(ctx context.Context, op string, b sq.SelectBuilder) (*database.FaceDetail, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", op, err)
	}
	d, err := scanFaceDetail(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, database.Storage(op, err)
	}
	return &d, nil
}
