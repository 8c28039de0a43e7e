package simgraph

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/kozaktomas/facegraph/internal/constants"
	"github.com/kozaktomas/facegraph/internal/database"
)

// gramDistances holds X·Xᵀ for a set of row vectors. Pairwise distances are
// derived from it as ‖x‖² + ‖y‖² − 2·x·y.
type gramDistances struct {
	gram  *mat.SymDense
	norms []float64
}

func newGramDistances(vectors [][]float64) *gramDistances {
	n, d := len(vectors), len(vectors[0])
	x := mat.NewDense(n, d, nil)
	for i, v := range vectors {
		x.SetRow(i, v)
	}

	var g mat.SymDense
	g.SymOuterK(1, x)

	norms := make([]float64, n)
	for i := range norms {
		norms[i] = g.At(i, i)
	}
	return &gramDistances{gram: &g, norms: norms}
}

// distance returns the Euclidean distance between rows i and j. Rounding can
// push the squared distance of near-identical vectors below zero; it is
// clamped before the square root.
func (g *gramDistances) distance(i, j int) float64 {
	d2 := g.norms[i] + g.norms[j] - 2*g.gram.At(i, j)
	if d2 < 0 {
		d2 = 0
	}
	return math.Sqrt(d2)
}

// ProgressFunc receives the number of rows scanned so far and the total.
// It may be called from several goroutines at once.
type ProgressFunc func(done, total int)

// ComputeEdges returns every directed pair of distinct faces closer than
// threshold, in row-major order (face1 ascending, then face2 ascending, by
// position in embeddings). Rows are scanned in bands by up to workers goroutines.
func ComputeEdges(ctx context.Context, embeddings []database.FaceEmbedding, threshold float64, workers int, progress ProgressFunc) ([]database.SimilarityEdge, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	n := len(embeddings)
	vectors := make([][]float64, n)
	dim := 0
	for i, e := range embeddings {
		if err := database.ValidateEmbedding(e.Embedding, dim); err != nil {
			return nil, fmt.Errorf("face %d: %w", e.FaceID, err)
		}
		dim = len(e.Embedding)
		vectors[i] = e.Embedding
	}

	if n < 2 {
		if progress != nil {
			progress(n, n)
		}
		return []database.SimilarityEdge{}, nil
	}

	g := newGramDistances(vectors)

	if workers < 1 {
		workers = 1
	}
	bandSize := max(constants.MinRowsPerBand, (n+workers-1)/workers)
	bands := make([][]database.SimilarityEdge, (n+bandSize-1)/bandSize)

	var scanned atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for b := range bands {
		start := b * bandSize
		end := min(start+bandSize, n)
		eg.Go(func() error {
			var out []database.SimilarityEdge
			for i := start; i < end; i++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				for j := 0; j < n; j++ {
					if i == j {
						continue
					}
					if d := g.distance(i, j); d < threshold {
						out = append(out, database.SimilarityEdge{
							Face1ID:  embeddings[i].FaceID,
							Face2ID:  embeddings[j].FaceID,
							Distance: d,
						})
					}
				}
				if progress != nil {
					progress(int(scanned.Add(1)), n)
				}
			}
			bands[b] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, band := range bands {
		total += len(band)
	}
	edges := make([]database.SimilarityEdge, 0, total)
	for _, band := range bands {
		edges = append(edges, band...)
	}
	return edges, nil
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return database.Invalid("similarity threshold must be a positive finite number, got %v", threshold)
	}
	return nil
}
