// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/facegraph/internal/database"
)

// MockGraphStore is a mock implementation of database.EmbeddingSource and
// database.SimilarityWriter
type MockGraphStore struct {
	mu           sync.RWMutex
	embeddings   []database.FaceEmbedding
	edges        []database.SimilarityEdge
	replaceCalls int

	// Error injection
	AllEmbeddingsError error
	ReplaceError       error
}

// NewMockGraphStore creates a new mock graph store
func NewMockGraphStore() *MockGraphStore {
	return &MockGraphStore{}
}

// AddEmbedding adds a face embedding to the mock store
func (m *MockGraphStore) AddEmbedding(faceID int64, embedding []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings = append(m.embeddings, database.FaceEmbedding{FaceID: faceID, Embedding: slices.Clone(embedding)})
}

// SetEdges seeds the stored graph
func (m *MockGraphStore) SetEdges(edges []database.SimilarityEdge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = slices.Clone(edges)
}

// Edges returns a copy of the stored graph
func (m *MockGraphStore) Edges() []database.SimilarityEdge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.edges)
}

// ReplaceCalls returns how many times ReplaceSimilarities committed
func (m *MockGraphStore) ReplaceCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.replaceCalls
}

// AllEmbeddings returns every embedding ordered by face id
func (m *MockGraphStore) AllEmbeddings(ctx context.Context) ([]database.FaceEmbedding, error) {
	if m.AllEmbeddingsError != nil {
		return nil, m.AllEmbeddingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Clone(m.embeddings)
	slices.SortFunc(out, func(a, b database.FaceEmbedding) int {
		switch {
		case a.FaceID < b.FaceID:
			return -1
		case a.FaceID > b.FaceID:
			return 1
		}
		return 0
	})
	return out, nil
}

// ReplaceSimilarities swaps the stored graph unless an error is injected or ctx is done
func (m *MockGraphStore) ReplaceSimilarities(ctx context.Context, edges []database.SimilarityEdge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ReplaceError != nil {
		return m.ReplaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges = slices.Clone(edges)
	m.replaceCalls++
	return nil
}

// MockQueryEngine is a mock implementation of database.QueryEngine and
// database.ClusterWriter returning canned results
type MockQueryEngine struct {
	mu sync.Mutex

	Clusters   []database.ClusterSummary
	Members    []database.FaceDetail
	Matches    []database.FaceMatch
	Self       []database.FaceMatch
	Watchlist  []database.FaceMatch
	Dominance  []database.WatchlistDominance
	Faces      map[int64]*database.FaceDetail
	Reference  *database.FaceDetail
	StatsValue database.Stats
	Labels     map[int64]int64 // face id -> cluster, used by ClearCluster and AssignClusters

	// Error injection, returned by every method when set
	Err error

	// Calls records method names in call order
	Calls []string
}

// NewMockQueryEngine creates an empty mock query engine
func NewMockQueryEngine() *MockQueryEngine {
	return &MockQueryEngine{
		Faces:  make(map[int64]*database.FaceDetail),
		Labels: make(map[int64]int64),
	}
}

func (m *MockQueryEngine) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, name)
	return m.Err
}

func (m *MockQueryEngine) RankClusters(ctx context.Context, confidenceThreshold float64, requireGeotag bool, limit int) ([]database.ClusterSummary, error) {
	if err := m.record("RankClusters"); err != nil {
		return nil, err
	}
	return head(m.Clusters, limit), nil
}

func (m *MockQueryEngine) ClusterMembers(ctx context.Context, clusterID int64, requireGeotag bool, limit int) ([]database.FaceDetail, error) {
	if err := m.record("ClusterMembers"); err != nil {
		return nil, err
	}
	return head(m.Members, limit), nil
}

func (m *MockQueryEngine) NearestMatches(ctx context.Context, faceID int64, threshold float64, limit int) ([]database.FaceMatch, error) {
	if err := m.record("NearestMatches"); err != nil {
		return nil, err
	}
	return head(m.Matches, limit), nil
}

func (m *MockQueryEngine) SelfMatches(ctx context.Context, limit int) ([]database.FaceMatch, error) {
	if err := m.record("SelfMatches"); err != nil {
		return nil, err
	}
	return head(m.Self, limit), nil
}

func (m *MockQueryEngine) WatchlistMatches(ctx context.Context, faceID int64, threshold float64, limit int) ([]database.FaceMatch, error) {
	if err := m.record("WatchlistMatches"); err != nil {
		return nil, err
	}
	return head(m.Watchlist, limit), nil
}

func (m *MockQueryEngine) ClustersWithWatchlistDominance(ctx context.Context, fraction float64) ([]database.WatchlistDominance, error) {
	if err := m.record("ClustersWithWatchlistDominance"); err != nil {
		return nil, err
	}
	out := []database.WatchlistDominance{}
	for _, d := range m.Dominance {
		if d.WatchlistRate > fraction {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockQueryEngine) GetFace(ctx context.Context, faceID int64) (*database.FaceDetail, error) {
	if err := m.record("GetFace"); err != nil {
		return nil, err
	}
	f, ok := m.Faces[faceID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return f, nil
}

func (m *MockQueryEngine) ReferenceFace(ctx context.Context) (*database.FaceDetail, error) {
	if err := m.record("ReferenceFace"); err != nil {
		return nil, err
	}
	if m.Reference == nil {
		return nil, database.ErrNotFound
	}
	return m.Reference, nil
}

func (m *MockQueryEngine) Stats(ctx context.Context) (*database.Stats, error) {
	if err := m.record("Stats"); err != nil {
		return nil, err
	}
	st := m.StatsValue
	return &st, nil
}

func (m *MockQueryEngine) ClusterableEmbeddings(ctx context.Context, sources []database.Source) ([]database.FaceEmbedding, error) {
	if err := m.record("ClusterableEmbeddings"); err != nil {
		return nil, err
	}
	return []database.FaceEmbedding{}, nil
}

func (m *MockQueryEngine) AssignClusters(ctx context.Context, labels []database.ClusterLabel) (int64, error) {
	if err := m.record("AssignClusters"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range labels {
		m.Labels[l.FaceID] = l.ClusterID
	}
	return int64(len(labels)), nil
}

func (m *MockQueryEngine) ClearCluster(ctx context.Context, clusterID int64) (int64, error) {
	if err := m.record("ClearCluster"); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for face, c := range m.Labels {
		if c == clusterID {
			delete(m.Labels, face)
			n++
		}
	}
	return n, nil
}

func head[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		return []T{}
	}
	return slices.Clone(items)
}

// Compile-time interface checks
var (
	_ database.EmbeddingSource  = (*MockGraphStore)(nil)
	_ database.SimilarityWriter = (*MockGraphStore)(nil)
	_ database.QueryEngine      = (*MockQueryEngine)(nil)
	_ database.ClusterWriter    = (*MockQueryEngine)(nil)
)
