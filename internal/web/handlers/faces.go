package handlers

import (
	"context"
	"net/http"

	"github.com/kozaktomas/facegraph/internal/database"
)

// FacesHandler handles face lookup and graph matches
type FacesHandler struct {
	deps Deps
}

// NewFacesHandler creates a faces handler
func NewFacesHandler(deps Deps) *FacesHandler {
	return &FacesHandler{deps: deps}
}

// Get returns one face with its image
func (h *FacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	faceID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	face, err := h.deps.Store.GetFace(r.Context(), faceID)
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	respondJSON(w, http.StatusOK, face)
}

// Reference returns the reference face used for self matches
func (h *FacesHandler) Reference(w http.ResponseWriter, r *http.Request) {
	face, err := h.deps.Store.ReferenceFace(r.Context())
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	respondJSON(w, http.StatusOK, face)
}

type matchFunc func(ctx context.Context, faceID int64, threshold float64, limit int) ([]database.FaceMatch, error)

// matches parses the face id, threshold and limit shared by the match endpoints.
func (h *FacesHandler) matches(w http.ResponseWriter, r *http.Request, query matchFunc) {
	faceID, err := pathID(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	threshold, err := queryFloat(r, "threshold", h.deps.Defaults.MatchThreshold)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryLimit(r, h.deps.Defaults.Limit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := query(r.Context(), faceID, threshold, limit)
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	respondJSON(w, http.StatusOK, matches)
}

// Nearest lists faces closer than ?threshold= to a face
func (h *FacesHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	h.matches(w, r, h.deps.Store.NearestMatches)
}

// Watchlist lists watchlist faces closer than ?threshold= to a face
func (h *FacesHandler) Watchlist(w http.ResponseWriter, r *http.Request) {
	h.matches(w, r, h.deps.Store.WatchlistMatches)
}

// SelfMatches lists secondary-source faces of the reference person
func (h *FacesHandler) SelfMatches(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, h.deps.Defaults.Limit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.deps.Store.SelfMatches(r.Context(), limit)
	if err != nil {
		respondStoreError(w, h.deps.logger(), err)
		return
	}
	respondJSON(w, http.StatusOK, matches)
}
