package ingest

import (
	"fmt"

	"github.com/kozaktomas/facegraph/internal/database"
)

// displaySize returns width and height as shown to the detector. EXIF
// orientations 5-8 rotate by 90°, so the raw file dimensions swap.
func displaySize(width, height, orientation int) (int, int) {
	if orientation >= 5 && orientation <= 8 {
		return height, width
	}
	return width, height
}

// frameSize returns the dimensions the record's pixel coordinates refer to:
// the resized frame when the detector wrote one, else the displayed original.
func frameSize(rec *Record, orientation int) (int, int) {
	if rec.ResizedWidth > 0 && rec.ResizedHeight > 0 {
		return rec.ResizedWidth, rec.ResizedHeight
	}
	return displaySize(rec.Width, rec.Height, orientation)
}

// NormalizeBox converts a pixel box [left, top, right, bottom] to coordinates
// relative to a width x height frame. Width and height of the result are
// derived from the corners.
func NormalizeBox(box []float64, width, height int) (database.BBox, error) {
	if len(box) != 4 {
		return database.BBox{}, fmt.Errorf("box needs 4 values, got %d", len(box))
	}
	if width <= 0 || height <= 0 {
		return database.BBox{}, fmt.Errorf("unknown frame size %dx%d", width, height)
	}

	w, h := float64(width), float64(height)
	b := database.BBox{
		Left:   box[0] / w,
		Top:    box[1] / h,
		Right:  box[2] / w,
		Bottom: box[3] / h,
	}
	b.Width = b.Right - b.Left
	b.Height = b.Bottom - b.Top
	return b, nil
}

// NormalizeLandmarks converts pixel landmarks to relative points.
func NormalizeLandmarks(points [][]float64, width, height int) []database.Point {
	out := make([]database.Point, 0, len(points))
	if width <= 0 || height <= 0 {
		return out
	}
	for _, p := range points {
		if len(p) != 2 {
			continue
		}
		out = append(out, database.Point{X: p[0] / float64(width), Y: p[1] / float64(height)})
	}
	return out
}
