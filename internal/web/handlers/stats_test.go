package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/facegraph/internal/database"
)

func TestStatsHandler_Get_Success(t *testing.T) {
	store := newMockStore()
	store.StatsValue = database.Stats{Images: 3, Faces: 7, LabelledFaces: 4, Similarities: 12, EmbeddingDim: 128}
	handler := NewStatsHandler(testDeps(store))

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/stats", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var stats StatsResponse
	parseJSONResponse(t, recorder, &stats)
	if stats.Images != 3 || stats.Faces != 7 || stats.Similarities != 12 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.EmbeddingDim != 128 {
		t.Errorf("expected embedding_dim=128, got %d", stats.EmbeddingDim)
	}
}

func TestStatsHandler_Get_StoreError(t *testing.T) {
	store := newMockStore()
	store.Err = database.Storage("count images", errors.New("connection reset"))
	handler := NewStatsHandler(testDeps(store))

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest("GET", "/api/v1/stats", nil))

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "internal error")
}

func TestStatsHandler_Get_Caching(t *testing.T) {
	store := newMockStore()
	store.StatsValue = database.Stats{Faces: 2}
	handler := NewStatsHandler(testDeps(store))

	recorder1 := httptest.NewRecorder()
	handler.Get(recorder1, httptest.NewRequest("GET", "/api/v1/stats", nil))

	// second request is served from cache
	store.StatsValue = database.Stats{Faces: 5}
	recorder2 := httptest.NewRecorder()
	handler.Get(recorder2, httptest.NewRequest("GET", "/api/v1/stats", nil))

	var cached StatsResponse
	parseJSONResponse(t, recorder2, &cached)
	if cached.Faces != 2 {
		t.Errorf("expected cached faces=2, got %d", cached.Faces)
	}
	if len(store.Calls) != 1 {
		t.Errorf("expected 1 store call, got %d", len(store.Calls))
	}

	handler.InvalidateCache()
	recorder3 := httptest.NewRecorder()
	handler.Get(recorder3, httptest.NewRequest("GET", "/api/v1/stats", nil))

	var fresh StatsResponse
	parseJSONResponse(t, recorder3, &fresh)
	if fresh.Faces != 5 {
		t.Errorf("expected fresh faces=5 after invalidation, got %d", fresh.Faces)
	}
}
