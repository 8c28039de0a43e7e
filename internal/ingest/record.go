// Package ingest loads face detector output into the store.
//
// The detector writes one JSON object per media unit (a still image or one
// sampled video frame). Pixel coordinates in a record are relative to the
// frame the detector ran on (the resized frame when one was written).
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/kozaktomas/facegraph/internal/database"
)

// maxLineSize bounds one JSON line; a record carries a descriptor per face.
const maxLineSize = 16 << 20

// Record is one detector output line.
type Record struct {
	File          string             `json:"file"`
	Kind          database.MediaKind `json:"kind"`
	Source        database.Source    `json:"source"`
	Frame         *int               `json:"frame,omitempty"`
	Width         int                `json:"width"`
	Height        int                `json:"height"`
	ResizedFile   string             `json:"resized_file,omitempty"`
	ResizedWidth  int                `json:"resized_width,omitempty"`
	ResizedHeight int                `json:"resized_height,omitempty"`
	CameraSide    string             `json:"camera_side,omitempty"`
	Faces         []FaceRecord       `json:"faces"`
}

// FaceRecord is one detected face in pixel coordinates.
type FaceRecord struct {
	Box        []float64   `json:"box"` // left, top, right, bottom
	Landmarks  [][]float64 `json:"landmarks,omitempty"`
	Descriptor []float64   `json:"descriptor"`
	Confidence float64     `json:"confidence"`
}

// Validate checks the fields every record needs.
func (r *Record) Validate() error {
	if r.File == "" {
		return errors.New("missing file")
	}
	if r.Kind == "" {
		r.Kind = database.KindImage
		if r.Frame != nil {
			r.Kind = database.KindVideo
		}
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	if !r.Source.Valid() {
		return fmt.Errorf("unknown source %q", r.Source)
	}
	if r.Kind == database.KindVideo && r.Frame == nil {
		return errors.New("video record without frame")
	}
	if r.Kind == database.KindImage && r.Frame != nil {
		return fmt.Errorf("still image record with frame %d", *r.Frame)
	}
	if r.Frame != nil && *r.Frame < 0 {
		return fmt.Errorf("negative frame %d", *r.Frame)
	}
	if r.Width < 0 || r.Height < 0 || r.ResizedWidth < 0 || r.ResizedHeight < 0 {
		return errors.New("negative dimensions")
	}
	for i, f := range r.Faces {
		if len(f.Box) != 4 {
			return fmt.Errorf("face %d: box needs 4 values, got %d", i, len(f.Box))
		}
		for j, p := range f.Landmarks {
			if len(p) != 2 {
				return fmt.Errorf("face %d: landmark %d needs 2 values, got %d", i, j, len(p))
			}
		}
		if len(f.Descriptor) == 0 {
			return fmt.Errorf("face %d: missing descriptor", i)
		}
	}
	return nil
}

// Decode reads JSON lines from r and calls fn with the 1-based line number of
// each record. Blank lines are skipped. A line that isn't valid JSON is passed
// to fn as a non-nil parse error so the caller decides whether to go on.
func Decode(r io.Reader, fn func(line int, rec *Record, parseErr error) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			if err := fn(line, nil, fmt.Errorf("parse record: %w", err)); err != nil {
				return err
			}
			continue
		}
		if err := fn(line, &rec, nil); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return nil
}
