package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/database/mock"
)

// testDeps wires a mock store with the embedded profile defaults
func testDeps(store Store) Deps {
	return Deps{
		Store:    store,
		Defaults: config.DefaultProfile().Defaults,
	}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// sampleFace builds a face detail with an image
func sampleFace(id int64, source database.Source) *database.FaceDetail {
	pose := 1.0
	return &database.FaceDetail{
		Face: database.Face{
			ID:         id,
			ImageID:    id * 10,
			Confidence: 0.9,
		},
		PoseCoef: &pose,
		Image: database.Image{
			ID:       id * 10,
			Kind:     database.KindImage,
			Source:   source,
			FilePath: "/photos/face.jpg",
			NumFaces: 1,
		},
	}
}

// sampleMatch builds a match of target reached from face from
func sampleMatch(from, target int64, distance float64) database.FaceMatch {
	return database.FaceMatch{
		FaceDetail:   *sampleFace(target, database.SourcePhone),
		SourceFaceID: from,
		Distance:     distance,
	}
}

// newMockStore returns a mock query engine knowing face 1
func newMockStore() *mock.MockQueryEngine {
	m := mock.NewMockQueryEngine()
	m.Faces[1] = sampleFace(1, database.SourcePhotobooth)
	return m
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// assertCalled checks that the mock saw the named call
func assertCalled(t *testing.T, m *mock.MockQueryEngine, name string) {
	t.Helper()
	for _, c := range m.Calls {
		if c == name {
			return
		}
	}
	t.Errorf("expected call to %s, got %v", name, m.Calls)
}

// assertNotCalled checks that the mock never saw the named call
func assertNotCalled(t *testing.T, m *mock.MockQueryEngine, name string) {
	t.Helper()
	for _, c := range m.Calls {
		if c == name {
			t.Errorf("unexpected call to %s", name)
			return
		}
	}
}
