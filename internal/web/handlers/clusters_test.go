package handlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kozaktomas/facegraph/internal/database"
)

func TestClustersHandler_Rank(t *testing.T) {
	store := newMockStore()
	store.Clusters = []database.ClusterSummary{
		{ClusterID: 7, Count: 3, MeanConfidence: 0.95},
		{ClusterID: 2, Count: 2, MeanConfidence: 0.9},
		{ClusterID: 9, Count: 1, MeanConfidence: 0.99},
	}
	handler := NewClustersHandler(testDeps(store), nil)

	recorder := httptest.NewRecorder()
	handler.Rank(recorder, httptest.NewRequest("GET", "/api/v1/clusters?limit=2&geotag=true&confidence=0.85", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var clusters []database.ClusterSummary
	parseJSONResponse(t, recorder, &clusters)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].ClusterID != 7 || clusters[1].ClusterID != 2 {
		t.Errorf("unexpected order %+v", clusters)
	}
}

func TestClustersHandler_Rank_EmptyIsArray(t *testing.T) {
	handler := NewClustersHandler(testDeps(newMockStore()), nil)

	recorder := httptest.NewRecorder()
	handler.Rank(recorder, httptest.NewRequest("GET", "/api/v1/clusters", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	if got := recorder.Body.String(); got != "[]\n" {
		t.Errorf("expected empty JSON array, got %q", got)
	}
}

func TestClustersHandler_Rank_BadParams(t *testing.T) {
	tests := []string{
		"?limit=0",
		"?limit=ten",
		"?confidence=-0.5",
		"?geotag=maybe",
	}

	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			store := newMockStore()
			handler := NewClustersHandler(testDeps(store), nil)

			recorder := httptest.NewRecorder()
			handler.Rank(recorder, httptest.NewRequest("GET", "/api/v1/clusters"+query, nil))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertNotCalled(t, store, "RankClusters")
		})
	}
}

func TestClustersHandler_Members(t *testing.T) {
	store := newMockStore()
	store.Members = []database.FaceDetail{*sampleFace(4, database.SourcePhone), *sampleFace(5, database.SourcePhone)}
	handler := NewClustersHandler(testDeps(store), nil)

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/clusters/3/faces", nil), map[string]string{"id": "3"})
	recorder := httptest.NewRecorder()
	handler.Members(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var faces []database.FaceDetail
	parseJSONResponse(t, recorder, &faces)
	if len(faces) != 2 || faces[0].ID != 4 {
		t.Errorf("unexpected members %+v", faces)
	}
	if faces[0].PoseCoef == nil || *faces[0].PoseCoef != 1.0 {
		t.Errorf("expected pose coefficient 1.0, got %v", faces[0].PoseCoef)
	}
}

func TestClustersHandler_Members_InvalidID(t *testing.T) {
	handler := NewClustersHandler(testDeps(newMockStore()), nil)

	req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/clusters/x/faces", nil), map[string]string{"id": "x"})
	recorder := httptest.NewRecorder()
	handler.Members(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, `invalid id "x"`)
}

func TestClustersHandler_Clear(t *testing.T) {
	store := newMockStore()
	store.Labels[1] = 3
	store.Labels[2] = 3
	store.Labels[5] = 4
	stats := NewStatsHandler(testDeps(store))
	stats.cache.set(&StatsResponse{LabelledFaces: 3})
	handler := NewClustersHandler(testDeps(store), stats)

	req := requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/clusters/3", nil), map[string]string{"id": "3"})
	recorder := httptest.NewRecorder()
	handler.Clear(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp ClearResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.ClusterID != 3 || resp.Cleared != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
	if _, ok := stats.cache.get(); ok {
		t.Error("expected stats cache to be invalidated")
	}

	// clearing again is a no-op
	recorder = httptest.NewRecorder()
	handler.Clear(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)
	parseJSONResponse(t, recorder, &resp)
	if resp.Cleared != 0 {
		t.Errorf("expected 0 cleared on second call, got %d", resp.Cleared)
	}
}

func TestClustersHandler_ZeroAndNegativeLabels(t *testing.T) {
	for _, label := range []int64{0, -1} {
		raw := strconv.FormatInt(label, 10)
		t.Run(raw, func(t *testing.T) {
			store := newMockStore()
			store.Members = []database.FaceDetail{*sampleFace(4, database.SourcePhone)}
			store.Labels[4] = label
			store.Labels[5] = label
			handler := NewClustersHandler(testDeps(store), nil)

			req := requestWithChiParams(httptest.NewRequest("GET", "/api/v1/clusters/"+raw+"/faces", nil), map[string]string{"id": raw})
			recorder := httptest.NewRecorder()
			handler.Members(recorder, req)
			assertStatusCode(t, recorder, http.StatusOK)
			assertCalled(t, store, "ClusterMembers")

			req = requestWithChiParams(httptest.NewRequest("DELETE", "/api/v1/clusters/"+raw, nil), map[string]string{"id": raw})
			recorder = httptest.NewRecorder()
			handler.Clear(recorder, req)
			assertStatusCode(t, recorder, http.StatusOK)

			var resp ClearResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.ClusterID != label || resp.Cleared != 2 {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestClustersHandler_WatchlistDominance(t *testing.T) {
	store := newMockStore()
	store.Dominance = []database.WatchlistDominance{
		{ClusterID: 1, TotalCount: 10, WatchlistCount: 5, OtherCount: 5, WatchlistRate: 0.5},
		{ClusterID: 2, TotalCount: 10, WatchlistCount: 1, OtherCount: 9, WatchlistRate: 0.1},
	}
	handler := NewClustersHandler(testDeps(store), nil)

	tests := []struct {
		query string
		want  int
	}{
		{"", 1}, // profile default 0.1 is exclusive
		{"?fraction=0.05", 2},
		{"?fraction=0.6", 0},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handler.WatchlistDominance(recorder, httptest.NewRequest("GET", "/api/v1/clusters/watchlist-dominance"+tc.query, nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var rows []database.WatchlistDominance
			parseJSONResponse(t, recorder, &rows)
			if len(rows) != tc.want {
				t.Errorf("expected %d clusters, got %d", tc.want, len(rows))
			}
		})
	}
}
