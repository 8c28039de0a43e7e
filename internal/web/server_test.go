package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/mock"
	"github.com/kozaktomas/facegraph/internal/database/sqlite"
	"github.com/kozaktomas/facegraph/internal/database/storetest"
	"github.com/kozaktomas/facegraph/internal/simgraph"
	"github.com/kozaktomas/facegraph/internal/web/handlers"
)

type stubRebuilder struct{}

func (stubRebuilder) Rebuild(ctx context.Context, threshold float64) (*simgraph.Result, error) {
	return &simgraph.Result{Threshold: threshold}, nil
}

func testServer(t *testing.T) (*Server, *mock.MockQueryEngine) {
	t.Helper()
	cfg := &config.Config{
		Web:     config.WebConfig{Host: "127.0.0.1", Port: 0, AllowedOrigins: "https://faces.example.com"},
		Profile: config.DefaultProfile(),
	}
	store := mock.NewMockQueryEngine()
	store.Faces[1] = &database.FaceDetail{Face: database.Face{ID: 1}}
	return NewServer(cfg, store, stubRebuilder{}, nil), store
}

func TestRoutes(t *testing.T) {
	server, _ := testServer(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"GET", "/api/v1/health", http.StatusOK},
		{"GET", "/api/v1/stats", http.StatusOK},
		{"GET", "/api/v1/clusters", http.StatusOK},
		{"GET", "/api/v1/clusters/watchlist-dominance", http.StatusOK},
		{"GET", "/api/v1/clusters/3/faces", http.StatusOK},
		{"DELETE", "/api/v1/clusters/3", http.StatusOK},
		{"GET", "/api/v1/clusters/0/faces", http.StatusOK},
		{"DELETE", "/api/v1/clusters/0", http.StatusOK},
		{"GET", "/api/v1/clusters/-1/faces", http.StatusOK},
		{"GET", "/api/v1/clusters/x/faces", http.StatusBadRequest},
		{"GET", "/api/v1/faces/1", http.StatusOK},
		{"GET", "/api/v1/faces/2", http.StatusNotFound},
		{"GET", "/api/v1/faces/reference", http.StatusNotFound},
		{"GET", "/api/v1/faces/1/matches", http.StatusOK},
		{"GET", "/api/v1/faces/1/watchlist", http.StatusOK},
		{"GET", "/api/v1/faces/999/matches", http.StatusOK},
		{"GET", "/api/v1/faces/999/watchlist", http.StatusOK},
		{"GET", "/api/v1/faces/0/matches", http.StatusBadRequest},
		{"GET", "/api/v1/self-matches", http.StatusOK},
		{"POST", "/api/v1/similarities/rebuild", http.StatusOK},
		{"GET", "/api/v1/nope", http.StatusNotFound},
		{"POST", "/api/v1/clusters", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			server.Router().ServeHTTP(recorder, httptest.NewRequest(tc.method, tc.path, nil))
			if recorder.Code != tc.status {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.status, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestRoutes_CORS(t *testing.T) {
	server, _ := testServer(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/clusters", nil)
	req.Header.Set("Origin", "https://faces.example.com")
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Errorf("expected preflight status 204, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://faces.example.com" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestRoutes_RebuildBody(t *testing.T) {
	server, _ := testServer(t)

	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest("POST", "/api/v1/similarities/rebuild", strings.NewReader(`{"threshold":0.3}`)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), `"threshold":0.3`) {
		t.Errorf("expected threshold in body, got %s", recorder.Body.String())
	}
}

func serveJSON(t *testing.T, server *Server, method, path string, status int, out any) {
	t.Helper()
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, httptest.NewRequest(method, path, nil))
	if recorder.Code != status {
		t.Fatalf("%s %s: expected status %d, got %d\nBody: %s", method, path, status, recorder.Code, recorder.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(recorder.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: failed to parse body: %v", method, path, err)
		}
	}
}

func TestRoutes_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, &config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "faces.db")})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	ids := storetest.Insert(t, store, storetest.Image{
		Source: database.SourcePhone,
		Path:   "/photos/a.jpg",
		Faces: []storetest.Face{
			{Confidence: 0.95, Cluster: storetest.Cluster(0)},
			{Confidence: 0.9, Cluster: storetest.Cluster(0)},
		},
	})

	cfg := &config.Config{Profile: config.DefaultProfile()}
	server := NewServer(cfg, store, stubRebuilder{}, nil)

	var clusters []database.ClusterSummary
	serveJSON(t, server, "GET", "/api/v1/clusters", http.StatusOK, &clusters)
	if len(clusters) != 1 || clusters[0].ClusterID != 0 || clusters[0].Count != 2 {
		t.Fatalf("expected cluster 0 with 2 faces, got %+v", clusters)
	}

	var members []database.FaceDetail
	serveJSON(t, server, "GET", "/api/v1/clusters/0/faces", http.StatusOK, &members)
	if len(members) != 2 || members[0].ID != ids[0] {
		t.Errorf("unexpected members %+v", members)
	}

	var matches []database.FaceMatch
	serveJSON(t, server, "GET", "/api/v1/faces/999/matches", http.StatusOK, &matches)
	if matches == nil || len(matches) != 0 {
		t.Errorf("expected empty list for unknown face, got %v", matches)
	}
	serveJSON(t, server, "GET", "/api/v1/faces/999/watchlist", http.StatusOK, &matches)
	if len(matches) != 0 {
		t.Errorf("expected empty watchlist for unknown face, got %v", matches)
	}

	var cleared handlers.ClearResponse
	serveJSON(t, server, "DELETE", "/api/v1/clusters/0", http.StatusOK, &cleared)
	if cleared.ClusterID != 0 || cleared.Cleared != 2 {
		t.Errorf("unexpected clear response %+v", cleared)
	}

	serveJSON(t, server, "GET", "/api/v1/clusters", http.StatusOK, &clusters)
	if len(clusters) != 0 {
		t.Errorf("expected no clusters after clear, got %+v", clusters)
	}
}
