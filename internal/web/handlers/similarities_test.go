package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/kozaktomas/facegraph/internal/database"
	"github.com/kozaktomas/facegraph/internal/simgraph"
)

// fakeRebuilder records thresholds and optionally blocks until released
type fakeRebuilder struct {
	mu         sync.Mutex
	thresholds []float64
	err        error
	started    chan struct{}
	release    chan struct{}
}

func (f *fakeRebuilder) Rebuild(ctx context.Context, threshold float64) (*simgraph.Result, error) {
	f.mu.Lock()
	f.thresholds = append(f.thresholds, threshold)
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &simgraph.Result{RunID: uuid.New(), Threshold: threshold, Faces: 3, Edges: 4}, nil
}

func TestSimilaritiesHandler_Rebuild(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		threshold float64
	}{
		{"explicit threshold", `{"threshold":0.42}`, 0.42},
		{"empty body uses default", ``, 0.5},
		{"empty object uses default", `{}`, 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rebuilder := &fakeRebuilder{}
			handler := NewSimilaritiesHandler(testDeps(newMockStore()), rebuilder, nil)

			recorder := httptest.NewRecorder()
			handler.Rebuild(recorder, httptest.NewRequest("POST", "/api/v1/similarities/rebuild", strings.NewReader(tc.body)))

			assertStatusCode(t, recorder, http.StatusOK)
			var res simgraph.Result
			parseJSONResponse(t, recorder, &res)
			if res.Threshold != tc.threshold || res.Edges != 4 {
				t.Errorf("unexpected result %+v", res)
			}
			if len(rebuilder.thresholds) != 1 || rebuilder.thresholds[0] != tc.threshold {
				t.Errorf("expected rebuild at %v, got %v", tc.threshold, rebuilder.thresholds)
			}
		})
	}
}

func TestSimilaritiesHandler_Rebuild_InvalidBody(t *testing.T) {
	rebuilder := &fakeRebuilder{}
	handler := NewSimilaritiesHandler(testDeps(newMockStore()), rebuilder, nil)

	recorder := httptest.NewRecorder()
	handler.Rebuild(recorder, httptest.NewRequest("POST", "/api/v1/similarities/rebuild", strings.NewReader(`{"threshold":`)))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, errInvalidRequestBody)
	if len(rebuilder.thresholds) != 0 {
		t.Error("rebuild must not run for an invalid body")
	}
}

func TestSimilaritiesHandler_Rebuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid threshold", database.Invalid("similarity threshold must be a positive finite number, got 0"), http.StatusBadRequest},
		{"malformed embedding", database.Malformed("empty vector"), http.StatusUnprocessableEntity},
		{"storage", database.Storage("replace similarities", context.DeadlineExceeded), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewSimilaritiesHandler(testDeps(newMockStore()), &fakeRebuilder{err: tc.err}, nil)

			recorder := httptest.NewRecorder()
			handler.Rebuild(recorder, httptest.NewRequest("POST", "/api/v1/similarities/rebuild", strings.NewReader(`{"threshold":0}`)))

			assertStatusCode(t, recorder, tc.status)
		})
	}
}

func TestSimilaritiesHandler_Rebuild_Conflict(t *testing.T) {
	rebuilder := &fakeRebuilder{started: make(chan struct{}), release: make(chan struct{})}
	stats := NewStatsHandler(testDeps(newMockStore()))
	stats.cache.set(&StatsResponse{Similarities: 1})
	handler := NewSimilaritiesHandler(testDeps(newMockStore()), rebuilder, stats)

	first := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.Rebuild(first, httptest.NewRequest("POST", "/api/v1/similarities/rebuild", nil))
	}()
	<-rebuilder.started

	second := httptest.NewRecorder()
	handler.Rebuild(second, httptest.NewRequest("POST", "/api/v1/similarities/rebuild", nil))
	assertStatusCode(t, second, http.StatusConflict)

	close(rebuilder.release)
	<-done
	assertStatusCode(t, first, http.StatusOK)
	if _, ok := stats.cache.get(); ok {
		t.Error("expected stats cache to be invalidated after rebuild")
	}
}
