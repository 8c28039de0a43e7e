package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// ClustersHandler handles cluster ranking, membership and labelling
type ClustersHandler struct {
	deps  Deps
	stats *StatsHandler
}

// NewClustersHandler creates a clusters handler. stats may be nil.
func NewClustersHandler(deps Deps, stats *StatsHandler) *ClustersHandler {
	return &ClustersHandler{deps: deps, stats: stats}
}

// Rank lists the largest confident clusters of primary-source faces
func (h *ClustersHandler) Rank(w http.ResponseWriter, r *http.Request) {
	confidence, err := queryFloat(r, "confidence", h.deps.Defaults.ConfidenceThreshold)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	geotag, err := queryBool(r, "geotag")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(r, h.deps.Defaults.Limit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	clusters, err := h.deps.Store.RankClusters(r.Context(), confidence, geotag, limit)
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	respondJSON(w, http.StatusOK, clusters)
}

// Members lists the most confident faces of one cluster
func (h *ClustersHandler) Members(w http.ResponseWriter, r *http.Request) {
	clusterID, err := parseClusterID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	geotag, err := queryBool(r, "geotag")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(r, h.deps.Defaults.Limit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	faces, err := h.deps.Store.ClusterMembers(r.Context(), clusterID, geotag, limit)
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	respondJSON(w, http.StatusOK, faces)
}

// ClearResponse reports how many faces lost a cluster label
type ClearResponse struct {
	ClusterID int64 `json:"cluster_id"`
	Cleared   int64 `json:"cleared"`
}

// Clear removes a cluster label from every face carrying it
func (h *ClustersHandler) Clear(w http.ResponseWriter, r *http.Request) {
	clusterID, err := parseClusterID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.deps.Store.ClearCluster(r.Context(), clusterID)
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	if h.stats != nil {
		h.stats.InvalidateCache()
	}
	h.deps.logger().Info("cleared cluster", zap.Int64("cluster_id", clusterID), zap.Int64("faces", n))
	respondJSON(w, http.StatusOK, ClearResponse{ClusterID: clusterID, Cleared: n})
}

// WatchlistDominance lists clusters whose watchlist share exceeds ?fraction=
func (h *ClustersHandler) WatchlistDominance(w http.ResponseWriter, r *http.Request) {
	fraction, err := queryFloat(r, "fraction", h.deps.Defaults.DominanceFraction)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.deps.Store.ClustersWithWatchlistDominance(r.Context(), fraction)
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
