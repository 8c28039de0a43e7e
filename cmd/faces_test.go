package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kozaktomas/facegraph/internal/database"
)

func TestFormatGeotag(t *testing.T) {
	lat, lon := 50.0755, 14.4378

	tests := []struct {
		name string
		img  database.Image
		want string
	}{
		{"no coordinates", database.Image{}, "-"},
		{"latitude only", database.Image{GPSLat: &lat}, "-"},
		{"both coordinates", database.Image{GPSLat: &lat, GPSLon: &lon}, "50.07550,14.43780"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatGeotag(&tc.img); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPrintFaces(t *testing.T) {
	lat, lon := 50.0755, 14.4378
	frame := 3
	faces := []database.FaceDetail{
		{
			Face:  database.Face{ID: 7, Confidence: 0.912},
			Image: database.Image{Source: database.SourcePhone, FilePath: "/photos/a.jpg", GPSLat: &lat, GPSLon: &lon},
		},
		{
			Face:  database.Face{ID: 8, Confidence: 0.5},
			Image: database.Image{Source: database.SourceWatchlist, FilePath: "/videos/b.mp4", FrameNum: &frame},
		},
	}

	var buf bytes.Buffer
	if err := printFaces(&buf, faces); err != nil {
		t.Fatalf("printFaces returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "GEO") {
		t.Errorf("expected GEO column in header %q", lines[0])
	}
	if !strings.Contains(lines[1], "50.07550,14.43780") || !strings.Contains(lines[1], "/photos/a.jpg") {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if !strings.Contains(lines[2], "/videos/b.mp4#3") {
		t.Errorf("expected frame suffix in %q", lines[2])
	}
}
