// Package constants provides shared constants used across the codebase.
package constants

// Similarity graph constants
const (
	// DefaultSimilarityThreshold is the default Euclidean distance below which
	// two faces are connected in the similarity graph
	DefaultSimilarityThreshold = 0.5

	// EdgeInsertBatchSize is the number of edges per multi-row INSERT.
	// Three parameters per edge keeps a batch under SQLite's variable limit.
	EdgeInsertBatchSize = 300

	// MinRowsPerBand is the smallest row band handed to one distance worker
	MinRowsPerBand = 64
)

// Query defaults
const (
	// DefaultMatchThreshold is the default max distance for nearest and watchlist matches
	DefaultMatchThreshold = 0.6

	// DefaultConfidenceThreshold is the default min mean confidence for ranked clusters
	DefaultConfidenceThreshold = 0.8

	// DefaultDominanceFraction is the default watchlist share that flags a cluster
	DefaultDominanceFraction = 0.1

	// DefaultLimit is the default number of rows returned by list queries
	DefaultLimit = 5

	// MaxLimit caps the limit accepted by the HTTP API
	MaxLimit = 1000
)

// Processing constants
const (
	// WorkerPoolSize is the default number of concurrent distance workers
	WorkerPoolSize = 8

	// VideoMaxFrames is the default number of sampled frames kept per video
	VideoMaxFrames = 10
)
