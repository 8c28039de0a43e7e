package database

import (
	"context"
)

// EmbeddingSource provides every stored face embedding
type EmbeddingSource interface {
	// AllEmbeddings returns (face id, embedding) for every face, ordered by face id
	AllEmbeddings(ctx context.Context) ([]FaceEmbedding, error)
}

// SimilarityWriter replaces the persisted similarity graph
type SimilarityWriter interface {
	// ReplaceSimilarities deletes every stored edge and inserts edges in one transaction.
	// On any error the previous edge set is left untouched.
	ReplaceSimilarities(ctx context.Context, edges []SimilarityEdge) error
}

// ImageWriter provides write access to image and face rows during ingestion
type ImageWriter interface {
	// FileIngested checks if any image row exists for the file path
	FileIngested(ctx context.Context, filePath string) (bool, error)
	// InsertImage stores an image together with its faces in one transaction,
	// fills in the assigned IDs and returns the image ID. Embedding length is
	// checked against the corpus dimensionality.
	InsertImage(ctx context.Context, img *Image, faces []Face) (int64, error)
}

// QueryEngine serves the cluster and match queries
type QueryEngine interface {
	// RankClusters returns clusters of primary-source faces whose mean confidence
	// exceeds confidenceThreshold, largest first
	RankClusters(ctx context.Context, confidenceThreshold float64, requireGeotag bool, limit int) ([]ClusterSummary, error)
	// ClusterMembers returns primary-source faces of a cluster, most confident first
	ClusterMembers(ctx context.Context, clusterID int64, requireGeotag bool, limit int) ([]FaceDetail, error)
	// NearestMatches returns faces reachable from faceID over an edge shorter than threshold
	NearestMatches(ctx context.Context, faceID int64, threshold float64, limit int) ([]FaceMatch, error)
	// SelfMatches returns secondary-source faces in a reference face's cluster
	// that are also directly connected to that reference face
	SelfMatches(ctx context.Context, limit int) ([]FaceMatch, error)
	// WatchlistMatches is NearestMatches restricted to watchlist-source candidates
	WatchlistMatches(ctx context.Context, faceID int64, threshold float64, limit int) ([]FaceMatch, error)
	// ClustersWithWatchlistDominance returns clusters whose watchlist share exceeds fraction
	ClustersWithWatchlistDominance(ctx context.Context, fraction float64) ([]WatchlistDominance, error)
	// GetFace returns a single face with its image, ErrNotFound if absent
	GetFace(ctx context.Context, faceID int64) (*FaceDetail, error)
	// ReferenceFace returns the first reference-source still image face, ErrNotFound if none
	ReferenceFace(ctx context.Context) (*FaceDetail, error)
	// Stats returns corpus row counts
	Stats(ctx context.Context) (*Stats, error)
}

// ClusterWriter is the mutation surface offered to an external clusterer
type ClusterWriter interface {
	// ClusterableEmbeddings returns embeddings of faces whose image source is in sources
	ClusterableEmbeddings(ctx context.Context, sources []Source) ([]FaceEmbedding, error)
	// AssignClusters writes cluster labels back in one transaction
	AssignClusters(ctx context.Context, labels []ClusterLabel) (int64, error)
	// ClearCluster removes the label from every face of the cluster, returns faces affected
	ClearCluster(ctx context.Context, clusterID int64) (int64, error)
}

// Store is the full storage surface of one backend
type Store interface {
	EmbeddingSource
	SimilarityWriter
	ImageWriter
	QueryEngine
	ClusterWriter

	// Migrate applies pending schema migrations
	Migrate(ctx context.Context) error
	// MigrationsApplied lists applied migration versions
	MigrationsApplied(ctx context.Context) ([]string, error)
	// Close releases the connection pool
	Close() error
}
