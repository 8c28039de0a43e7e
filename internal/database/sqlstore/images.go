package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/kozaktomas/facegraph/internal/database"
)

// FileIngested checks if any image row exists for the file path.
func (s *Store) FileIngested(ctx context.Context, filePath string) (bool, error) {
	var n int
	err := s.queryRow(ctx, s.db, "check file ingested",
		s.sb.Select("COUNT(*)").From("images").Where(sq.Eq{"file_path": filePath}),
		&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertImage stores an image row and its faces in one transaction.
// The first stored embedding fixes the corpus dimensionality; any later face
// with a different length is rejected with ErrMalformedEmbedding and nothing
// of the image is written.
func (s *Store) InsertImage(ctx context.Context, img *database.Image, faces []database.Face) (int64, error) {
	if img == nil {
		return 0, database.Invalid("nil image")
	}
	if !img.Kind.Valid() {
		return 0, database.Invalid("unknown media kind %q", img.Kind)
	}
	if !img.Source.Valid() {
		return 0, database.Invalid("unknown source %q", img.Source)
	}
	if img.FilePath == "" {
		return 0, database.Invalid("empty file path")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, database.Storage("begin insert image", err)
	}
	defer tx.Rollback()

	dim, err := s.embeddingDim(ctx, tx)
	if err != nil {
		return 0, err
	}
	for i := range faces {
		if err := database.ValidateEmbedding(faces[i].Embedding, dim); err != nil {
			return 0, fmt.Errorf("face %d: %w", faces[i].FaceNum, err)
		}
		if dim == 0 {
			dim = len(faces[i].Embedding)
			if _, err := s.exec(ctx, tx, "record embedding dimension",
				s.sb.Insert("corpus_settings").Columns("id", "embedding_dim").Values(1, dim)); err != nil {
				return 0, err
			}
		}
	}

	img.NumFaces = len(faces)
	imageID, err := s.insertImageRow(ctx, tx, img)
	if err != nil {
		return 0, err
	}
	img.ID = imageID

	for i := range faces {
		faces[i].ImageID = imageID
		id, err := s.insertFaceRow(ctx, tx, &faces[i])
		if err != nil {
			return 0, err
		}
		faces[i].ID = id
	}

	if err := tx.Commit(); err != nil {
		return 0, database.Storage("commit insert image", err)
	}
	return imageID, nil
}

// embeddingDim returns the recorded corpus dimensionality, 0 when no face is stored yet.
func (s *Store) embeddingDim(ctx context.Context, q querier) (int, error) {
	var dim int
	err := s.queryRow(ctx, q, "query embedding dimension",
		s.sb.Select("embedding_dim").From("corpus_settings").Where(sq.Eq{"id": 1}),
		&dim)
	if errors.Is(err, database.ErrNotFound) {
		return 0, nil
	}
	return dim, err
}

func (s *Store) insertImageRow(ctx context.Context, tx *sql.Tx, img *database.Image) (int64, error) {
	var takenAt sql.NullTime
	if img.Timestamp != nil {
		takenAt = sql.NullTime{Time: *img.Timestamp, Valid: true}
	}

	b := s.sb.Insert("images").
		Columns("kind", "source", "file_path", "width", "height",
			"resized_path", "resized_width", "resized_height", "frame_num", "num_faces",
			"camera_side", "exif_data", "gps_lat", "gps_lon", "rotate", "taken_at").
		Values(string(img.Kind), string(img.Source), img.FilePath, img.Width, img.Height,
			nullString(img.ResizedPath), img.ResizedWidth, img.ResizedHeight, nullInt(img.FrameNum), img.NumFaces,
			nullString(img.CameraSide), nullString(img.ExifJSON), nullFloat(img.GPSLat), nullFloat(img.GPSLon),
			nullInt(img.Rotate), takenAt)

	id, err := s.insertReturningID(ctx, tx, "insert image", b)
	if err != nil && s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s", database.ErrAlreadyIngested, img.FilePath)
	}
	return id, err
}

func (s *Store) insertFaceRow(ctx context.Context, tx *sql.Tx, f *database.Face) (int64, error) {
	landmarks, err := encodeLandmarks(f.Landmarks)
	if err != nil {
		return 0, err
	}
	emb, err := s.dialect.EncodeEmbedding(f.Embedding)
	if err != nil {
		return 0, err
	}
	var cluster sql.NullInt64
	if f.ClusterID != nil {
		cluster = sql.NullInt64{Int64: *f.ClusterID, Valid: true}
	}

	b := s.sb.Insert("faces").
		Columns("image_id", "face_num",
			"bbox_left", "bbox_top", "bbox_right", "bbox_bottom", "bbox_width", "bbox_height",
			"landmarks", "embedding", "confidence", "cluster_num").
		Values(f.ImageID, f.FaceNum,
			f.BBox.Left, f.BBox.Top, f.BBox.Right, f.BBox.Bottom, f.BBox.Width, f.BBox.Height,
			landmarks, emb, f.Confidence, cluster)

	return s.insertReturningID(ctx, tx, "insert face", b)
}

func (s *Store) insertReturningID(ctx context.Context, tx *sql.Tx, op string, b sq.InsertBuilder) (int64, error) {
	if s.dialect.Returning {
		var id int64
		query, args, err := b.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("build %s: %w", op, err)
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, database.Storage(op, err)
		}
		return id, nil
	}

	res, err := s.exec(ctx, tx, op, b)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, database.Storage(op, err)
	}
	return id, nil
}
