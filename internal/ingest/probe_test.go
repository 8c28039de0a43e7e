package ingest

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePNG writes a w x h PNG (no EXIF) and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.White)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestProbe(t *testing.T) {
	path := writePNG(t, t.TempDir(), "small.png", 40, 30)

	m, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 40, m.Width)
	assert.Equal(t, 30, m.Height)
	assert.Equal(t, "png", m.Format)
	assert.Zero(t, m.Orientation)
	assert.Nil(t, m.GPSLat)
	assert.Nil(t, m.Timestamp)
	assert.Nil(t, m.ExifJSON)
}

func TestProbe_MissingFile(t *testing.T) {
	_, err := Probe(filepath.Join(t.TempDir(), "nope.jpg"))
	assert.Error(t, err)
}

func TestProbe_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	m, err := Probe(path)
	require.NoError(t, err)
	assert.Zero(t, m.Width)
	assert.Empty(t, m.Format)
}

func TestCameraSide(t *testing.T) {
	tests := []struct {
		lens string
		want string
	}{
		{"iPhone 12 back dual wide camera 4.2mm f/1.6", "back"},
		{"iPhone 12 Front TrueDepth camera 2.71mm f/2.2", "front"},
		{"EF24-70mm f/2.8L II USM", ""},
	}
	for _, tt := range tests {
		got := cameraSide(tt.lens)
		if tt.want == "" {
			assert.Nil(t, got, tt.lens)
			continue
		}
		require.NotNil(t, got, tt.lens)
		assert.Equal(t, tt.want, *got)
	}
}
