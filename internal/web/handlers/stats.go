package handlers

import (
	"net/http"
	"sync"
	"time"
)

const statsCacheTTL = 30 * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get() (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || time.Now().After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = time.Now().Add(statsCacheTTL)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = nil
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	deps  Deps
	cache statsCache
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(deps Deps) *StatsHandler {
	return &StatsHandler{deps: deps}
}

// InvalidateCache clears the cached stats so the next request reads the store
func (h *StatsHandler) InvalidateCache() {
	h.cache.invalidate()
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	Images        int `json:"images"`
	Faces         int `json:"faces"`
	LabelledFaces int `json:"labelled_faces"`
	Similarities  int `json:"similarities"`
	EmbeddingDim  int `json:"embedding_dim"`
}

// Get returns corpus counts
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.cache.get(); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := h.deps.Store.Stats(r.Context())
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}

	resp := &StatsResponse{
		Images:        stats.Images,
		Faces:         stats.Faces,
		LabelledFaces: stats.LabelledFaces,
		Similarities:  stats.Similarities,
		EmbeddingDim:  stats.EmbeddingDim,
	}
	h.cache.set(resp)
	respondJSON(w, http.StatusOK, resp)
}
