package ingest

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Media is what could be read from a file on disk. Every field is optional.
type Media struct {
	Width       int
	Height      int
	Format      string
	Orientation int
	GPSLat      *float64
	GPSLon      *float64
	Timestamp   *time.Time
	CameraSide  *string
	ExifJSON    *string
}

// Probe reads dimensions and EXIF metadata from the file at path.
// A file without EXIF is not an error; only an unreadable file is.
func Probe(path string) (*Media, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("probe: failed to open file %s: %w", path, err)
	}
	defer f.Close()

	m := &Media{}
	if cfg, format, err := image.DecodeConfig(f); err == nil {
		m.Width, m.Height, m.Format = cfg.Width, cfg.Height, format
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("probe: failed to seek file %s: %w", path, err)
	}

	x, err := exif.Decode(f)
	if err != nil {
		// file might just lack EXIF data
		return m, nil
	}
	applyExif(m, x)
	return m, nil
}

func applyExif(m *Media, x *exif.Exif) {
	if lat, lon, err := x.LatLong(); err == nil {
		m.GPSLat, m.GPSLon = &lat, &lon
	}
	if ts, err := x.DateTime(); err == nil {
		m.Timestamp = &ts
	}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if o, err := tag.Int(0); err == nil {
			m.Orientation = o
		}
	}
	if tag, err := x.Get(exif.LensModel); err == nil {
		if s, err := tag.StringVal(); err == nil {
			m.CameraSide = cameraSide(s)
		}
	}
	if raw, err := json.Marshal(x); err == nil {
		s := string(raw)
		m.ExifJSON = &s
	}
}

// cameraSide guesses front or back from a lens model such as
// "iPhone 12 back dual wide camera 4.2mm f/1.6".
func cameraSide(lensModel string) *string {
	lower := strings.ToLower(lensModel)
	for _, side := range []string{"front", "back"} {
		if strings.Contains(lower, side) {
			return &side
		}
	}
	return nil
}
