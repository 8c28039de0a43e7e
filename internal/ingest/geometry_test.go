package ingest

import (
	"math"
	"testing"

	"github.com/kozaktomas/facegraph/internal/database"
)

func TestNormalizeBox(t *testing.T) {
	tests := []struct {
		name     string
		box      []float64
		width    int
		height   int
		expected database.BBox
		wantErr  bool
	}{
		{
			name:     "simple conversion",
			box:      []float64{100, 200, 300, 400},
			width:    1000,
			height:   1000,
			expected: database.BBox{Left: 0.1, Top: 0.2, Right: 0.3, Bottom: 0.4, Width: 0.2, Height: 0.2},
		},
		{
			name:     "full frame",
			box:      []float64{0, 0, 1920, 1080},
			width:    1920,
			height:   1080,
			expected: database.BBox{Left: 0, Top: 0, Right: 1, Bottom: 1, Width: 1, Height: 1},
		},
		{
			name:     "non-square frame",
			box:      []float64{480, 270, 960, 810},
			width:    1920,
			height:   1080,
			expected: database.BBox{Left: 0.25, Top: 0.25, Right: 0.5, Bottom: 0.75, Width: 0.25, Height: 0.5},
		},
		{
			name:    "short box",
			box:     []float64{1, 2, 3},
			width:   100,
			height:  100,
			wantErr: true,
		},
		{
			name:    "unknown frame size",
			box:     []float64{1, 2, 3, 4},
			width:   0,
			height:  100,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeBox(tt.box, tt.width, tt.height)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NormalizeBox(%v, %d, %d) expected error", tt.box, tt.width, tt.height)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeBox(%v, %d, %d) unexpected error: %v", tt.box, tt.width, tt.height, err)
			}
			pairs := [][2]float64{
				{got.Left, tt.expected.Left},
				{got.Top, tt.expected.Top},
				{got.Right, tt.expected.Right},
				{got.Bottom, tt.expected.Bottom},
				{got.Width, tt.expected.Width},
				{got.Height, tt.expected.Height},
			}
			for _, p := range pairs {
				if math.Abs(p[0]-p[1]) > 0.0001 {
					t.Errorf("NormalizeBox(%v, %d, %d) = %+v, want %+v", tt.box, tt.width, tt.height, got, tt.expected)
					break
				}
			}
		})
	}
}

func TestNormalizeLandmarks(t *testing.T) {
	got := NormalizeLandmarks([][]float64{{50, 100}, {1}, {200, 0}}, 200, 400)
	if len(got) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got))
	}
	if got[0] != (database.Point{X: 0.25, Y: 0.25}) {
		t.Errorf("first point = %+v", got[0])
	}
	if got[1] != (database.Point{X: 1, Y: 0}) {
		t.Errorf("second point = %+v", got[1])
	}

	if pts := NormalizeLandmarks([][]float64{{1, 1}}, 0, 0); pts == nil || len(pts) != 0 {
		t.Errorf("expected empty non-nil slice for unknown frame size, got %v", pts)
	}
}

func TestDisplaySize(t *testing.T) {
	tests := []struct {
		orientation int
		w, h        int
	}{
		{0, 4000, 3000},
		{1, 4000, 3000},
		{3, 4000, 3000},
		{5, 3000, 4000},
		{6, 3000, 4000},
		{8, 3000, 4000},
	}
	for _, tt := range tests {
		w, h := displaySize(4000, 3000, tt.orientation)
		if w != tt.w || h != tt.h {
			t.Errorf("displaySize(4000, 3000, %d) = %dx%d, want %dx%d", tt.orientation, w, h, tt.w, tt.h)
		}
	}
}

func TestFrameSize(t *testing.T) {
	rec := &Record{Width: 4000, Height: 3000}
	if w, h := frameSize(rec, 6); w != 3000 || h != 4000 {
		t.Errorf("rotated original = %dx%d", w, h)
	}

	rec.ResizedWidth, rec.ResizedHeight = 800, 600
	if w, h := frameSize(rec, 6); w != 800 || h != 600 {
		t.Errorf("resized frame = %dx%d, want 800x600", w, h)
	}
}
