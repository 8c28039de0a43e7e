package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/simgraph"
)

// Rebuilder recomputes the similarity graph.
type Rebuilder interface {
	Rebuild(ctx context.Context, threshold float64) (*simgraph.Result, error)
}

// SimilaritiesHandler handles similarity graph rebuilds
type SimilaritiesHandler struct {
	deps      Deps
	rebuilder Rebuilder
	stats     *StatsHandler

	// one rebuild at a time
	running sync.Mutex
}

// NewSimilaritiesHandler creates a similarities handler. stats may be nil.
func NewSimilaritiesHandler(deps Deps, rebuilder Rebuilder, stats *StatsHandler) *SimilaritiesHandler {
	return &SimilaritiesHandler{deps: deps, rebuilder: rebuilder, stats: stats}
}

// RebuildRequest is the optional body of a rebuild
type RebuildRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
}

// Rebuild recomputes the graph synchronously and returns the run summary
func (h *SimilaritiesHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req RebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	threshold := h.deps.Defaults.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	if !h.running.TryLock() {
		respondError(w, http.StatusConflict, "a rebuild is already running")
		return
	}
	defer h.running.Unlock()

	res, err := h.rebuilder.Rebuild(r.Context(), threshold)
	if err != nil {
		if errors.Is(err, database.ErrInvalidArgument) || errors.Is(err, database.ErrMalformedEmbedding) {
			h.deps.logger().Warn("rebuild rejected", zap.Error(err))
		}
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	if h.stats != nil {
		h.stats.InvalidateCache()
	}
	respondJSON(w, http.StatusOK, res)
}
