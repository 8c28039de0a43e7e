package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/facegraph/internal/database"
)

// faceDetailColumns selects a face from faces_with_pose (alias f) joined to an
// image alias i. Order must match scanFaceDetail.
var faceDetailColumns = []string{
	"f.id", "f.image_id", "f.face_num",
	"f.bbox_left", "f.bbox_top", "f.bbox_right", "f.bbox_bottom", "f.bbox_width", "f.bbox_height",
	"f.landmarks", "f.confidence", "f.cluster_num", "f.pose_coef",
	"i.id", "i.kind", "i.source", "i.file_path", "i.width", "i.height",
	"i.resized_path", "i.resized_width", "i.resized_height", "i.frame_num", "i.num_faces",
	"i.camera_side", "i.exif_data", "i.gps_lat", "i.gps_lon", "i.rotate", "i.taken_at",
}

// faceMatchColumns prefixes faceDetailColumns with the edge columns of alias s.
var faceMatchColumns = append([]string{"s.face1_id", "s.distance"}, faceDetailColumns...)

type rowScanner interface {
	Scan(dest ...any) error
}

type faceDetailDest struct {
	d         database.FaceDetail
	landmarks []byte
	cluster   sql.NullInt64
	pose      sql.NullFloat64

	kind, source  string
	resizedPath   sql.NullString
	resizedWidth  sql.NullInt64
	resizedHeight sql.NullInt64
	frameNum      sql.NullInt64
	cameraSide    sql.NullString
	exif          sql.NullString
	lat, lon      sql.NullFloat64
	rotate        sql.NullInt64
	takenAt       nullTime
}

func (x *faceDetailDest) targets() []any {
	f := &x.d.Face
	img := &x.d.Image
	return []any{
		&f.ID, &f.ImageID, &f.FaceNum,
		&f.BBox.Left, &f.BBox.Top, &f.BBox.Right, &f.BBox.Bottom, &f.BBox.Width, &f.BBox.Height,
		&x.landmarks, &f.Confidence, &x.cluster, &x.pose,
		&img.ID, &x.kind, &x.source, &img.FilePath, &img.Width, &img.Height,
		&x.resizedPath, &x.resizedWidth, &x.resizedHeight, &x.frameNum, &img.NumFaces,
		&x.cameraSide, &x.exif, &x.lat, &x.lon, &x.rotate, &x.takenAt,
	}
}

func (x *faceDetailDest) finish() (database.FaceDetail, error) {
	d := x.d
	points, err := decodeLandmarks(x.landmarks)
	if err != nil {
		return d, err
	}
	d.Landmarks = points
	if x.cluster.Valid {
		c := x.cluster.Int64
		d.ClusterID = &c
	}
	if x.pose.Valid {
		p := x.pose.Float64
		d.PoseCoef = &p
	}

	img := &d.Image
	img.Kind = database.MediaKind(x.kind)
	img.Source = database.Source(x.source)
	if x.resizedPath.Valid {
		img.ResizedPath = &x.resizedPath.String
	}
	img.ResizedWidth = int(x.resizedWidth.Int64)
	img.ResizedHeight = int(x.resizedHeight.Int64)
	if x.frameNum.Valid {
		n := int(x.frameNum.Int64)
		img.FrameNum = &n
	}
	if x.cameraSide.Valid {
		img.CameraSide = &x.cameraSide.String
	}
	if x.exif.Valid {
		img.ExifJSON = &x.exif.String
	}
	if x.lat.Valid {
		img.GPSLat = &x.lat.Float64
	}
	if x.lon.Valid {
		img.GPSLon = &x.lon.Float64
	}
	if x.rotate.Valid {
		r := int(x.rotate.Int64)
		img.Rotate = &r
	}
	if x.takenAt.Valid {
		t := x.takenAt.Time
		img.Timestamp = &t
	}
	return d, nil
}

func scanFaceDetail(row rowScanner) (database.FaceDetail, error) {
	var x faceDetailDest
	if err := row.Scan(x.targets()...); err != nil {
		return database.FaceDetail{}, err
	}
	return x.finish()
}

func scanFaceMatch(row rowScanner) (database.FaceMatch, error) {
	var (
		m database.FaceMatch
		x faceDetailDest
	)
	dest := append([]any{&m.SourceFaceID, &m.Distance}, x.targets()...)
	if err := row.Scan(dest...); err != nil {
		return m, err
	}
	d, err := x.finish()
	if err != nil {
		return m, err
	}
	m.FaceDetail = d
	return m, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// timeLayouts are the textual forms drivers hand back when a column type
// isn't mapped to time.Time (sqlite through views, mysql without parseTime).
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// nullTime accepts time.Time as well as its textual encodings.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v, true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
