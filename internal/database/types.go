package database

import (
	"time"
)

// MediaKind is the kind of media unit an image row was taken from.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// Source is the provenance tag of an image row.
type Source string

const (
	SourcePhone        Source = "phone"
	SourcePhotobooth   Source = "photobooth"
	SourceExternalFeed Source = "external-feed"
	SourceWatchlist    Source = "watchlist"
)

// Sources lists every provenance tag accepted by the schema.
var Sources = []Source{SourcePhone, SourcePhotobooth, SourceExternalFeed, SourceWatchlist}

// Valid reports whether s is one of the enumerated sources.
func (s Source) Valid() bool {
	for _, known := range Sources {
		if s == known {
			return true
		}
	}
	return false
}

// Valid reports whether k is image or video.
func (k MediaKind) Valid() bool {
	return k == KindImage || k == KindVideo
}

// Image represents one scanned media unit: a still image or one sampled video frame.
type Image struct {
	ID            int64     `json:"id"`
	Kind          MediaKind `json:"kind"`
	Source        Source    `json:"source"`
	FilePath      string    `json:"file_path"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	ResizedPath   *string   `json:"resized_path,omitempty"`
	ResizedWidth  int       `json:"resized_width"`
	ResizedHeight int       `json:"resized_height"`
	FrameNum      *int      `json:"frame_num,omitempty"` // nil for still images
	NumFaces      int       `json:"num_faces"`

	// Optional metadata, mostly EXIF-derived
	CameraSide *string    `json:"camera_side,omitempty"`
	ExifJSON   *string    `json:"exif,omitempty"`
	GPSLat     *float64   `json:"gps_lat,omitempty"`
	GPSLon     *float64   `json:"gps_lon,omitempty"`
	Rotate     *int       `json:"rotate,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// HasGeotag reports whether both GPS coordinates are present.
func (i *Image) HasGeotag() bool {
	return i.GPSLat != nil && i.GPSLon != nil
}

// BBox is a face bounding box with every coordinate relative to the image size.
type BBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a normalized 2D landmark.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Face represents one detected face within an image.
type Face struct {
	ID         int64     `json:"id"`
	ImageID    int64     `json:"image_id"`
	FaceNum    int       `json:"face_num"`
	BBox       BBox      `json:"bbox"`
	Landmarks  []Point   `json:"landmarks"`
	Embedding  []float64 `json:"-"`
	Confidence float64   `json:"confidence"`
	ClusterID  *int64    `json:"cluster_id,omitempty"`
}

// FaceEmbedding is the (id, vector) pair the similarity graph is built from.
type FaceEmbedding struct {
	FaceID    int64
	Embedding []float64
}

// SimilarityEdge is a directed pair of faces whose embedding distance is
// below the threshold used for the last rebuild.
type SimilarityEdge struct {
	Face1ID  int64   `json:"face1_id"`
	Face2ID  int64   `json:"face2_id"`
	Distance float64 `json:"distance"`
}

// ClusterSummary is one row of the cluster ranking.
type ClusterSummary struct {
	ClusterID      int64   `json:"cluster_id"`
	Count          int     `json:"count"`
	MeanConfidence float64 `json:"mean_confidence"`
}

// FaceDetail is a face joined with its image and the derived pose coefficient.
type FaceDetail struct {
	Face
	PoseCoef *float64 `json:"pose_coef,omitempty"` // nil when the box height is zero
	Image    Image    `json:"image"`
}

// FaceMatch is a candidate face reached over a similarity edge.
type FaceMatch struct {
	FaceDetail
	SourceFaceID int64   `json:"source_face_id"`
	Distance     float64 `json:"distance"`
}

// WatchlistDominance summarizes how much of a cluster comes from the watchlist source.
type WatchlistDominance struct {
	ClusterID      int64   `json:"cluster_id"`
	TotalCount     int     `json:"total_count"`
	WatchlistCount int     `json:"watchlist_count"`
	OtherCount     int     `json:"other_count"`
	WatchlistRate  float64 `json:"watchlist_rate"`
}

// ClusterLabel assigns a cluster to a face, as written back by an external clusterer.
type ClusterLabel struct {
	FaceID    int64 `json:"face_id"`
	ClusterID int64 `json:"cluster_id"`
}

// Stats holds row counts of the corpus.
type Stats struct {
	Images        int `json:"images"`
	Faces         int `json:"faces"`
	Similarities  int `json:"similarities"`
	LabelledFaces int `json:"labelled_faces"`
	EmbeddingDim  int `json:"embedding_dim"`
}

// Roles maps the query roles onto provenance sources.
type Roles struct {
	Primary   Source // cluster ranking and membership
	Reference Source // self-portrait reference faces (still images only)
	Secondary Source // self-match candidates
	Watchlist Source // watchlist matching and dominance
}

// DefaultRoles returns the role mapping used when no profile overrides it.
func DefaultRoles() Roles {
	return Roles{
		Primary:   SourcePhone,
		Reference: SourcePhotobooth,
		Secondary: SourcePhone,
		Watchlist: SourceWatchlist,
	}
}
