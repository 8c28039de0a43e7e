// Package simgraph builds the similarity graph: every ordered pair of
// distinct faces whose embeddings are closer than a threshold.
package simgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegraph/internal/constants"
	"github.com/kozaktomas/facegraph/internal/database"
)

// Builder recomputes the similarity graph from stored embeddings.
// The distance matrix only lives for the duration of one Rebuild call and
// needs O(N²) memory for N faces.
type Builder struct {
	source   database.EmbeddingSource
	writer   database.SimilarityWriter
	logger   *zap.Logger
	workers  int
	progress ProgressFunc
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithWorkers sets how many row bands are scanned concurrently.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithProgress registers a callback for scanned rows.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Builder) { b.progress = fn }
}

// NewBuilder creates a builder reading from source and writing to writer.
func NewBuilder(source database.EmbeddingSource, writer database.SimilarityWriter, opts ...Option) *Builder {
	b := &Builder{
		source:  source,
		writer:  writer,
		logger:  zap.NewNop(),
		workers: constants.WorkerPoolSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result describes one completed rebuild.
type Result struct {
	RunID     uuid.UUID     `json:"run_id"`
	Threshold float64       `json:"threshold"`
	Faces     int           `json:"faces"`
	Edges     int           `json:"edges"`
	Duration  time.Duration `json:"duration"`
}

// Rebuild replaces the persisted graph with one computed at threshold.
// Nothing is written unless every embedding is well formed; a failed or
// cancelled write leaves the previous graph in place.
func (b *Builder) Rebuild(ctx context.Context, threshold float64) (*Result, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	runID := uuid.New()
	log := b.logger.With(zap.String("run_id", runID.String()), zap.Float64("threshold", threshold))
	start := time.Now()

	embeddings, err := b.source.AllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	log.Debug("loaded embeddings", zap.Int("faces", len(embeddings)))

	edges, err := ComputeEdges(ctx, embeddings, threshold, b.workers, b.progress)
	if err != nil {
		log.Warn("similarity computation failed", zap.Error(err))
		return nil, fmt.Errorf("compute similarities: %w", err)
	}

	if err := b.writer.ReplaceSimilarities(ctx, edges); err != nil {
		log.Error("failed to store similarity graph", zap.Error(err))
		return nil, fmt.Errorf("replace similarities: %w", err)
	}

	res := &Result{
		RunID:     runID,
		Threshold: threshold,
		Faces:     len(embeddings),
		Edges:     len(edges),
		Duration:  time.Since(start),
	}
	log.Info("similarity graph rebuilt",
		zap.Int("faces", res.Faces),
		zap.Int("edges", res.Edges),
		zap.Duration("duration", res.Duration))
	return res, nil
}
