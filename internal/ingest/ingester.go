package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/kozaktomas/facegraph/internal/constants"
	"github.com/kozaktomas/facegraph/internal/database"
)

// Summary counts what one ingestion run did.
type Summary struct {
	Records    int `json:"records"`
	Images     int `json:"images"`
	Faces      int `json:"faces"`
	Skipped    int `json:"skipped"`    // file already stored before this run
	Duplicates int `json:"duplicates"` // same file and frame seen twice
	Capped     int `json:"capped"`     // video frames beyond the per-file limit
	Invalid    int `json:"invalid"`    // unparseable or rejected records
}

// Ingester writes detector records to an ImageWriter.
type Ingester struct {
	store     database.ImageWriter
	logger    *zap.Logger
	maxFrames int
	probe     bool
	onRecord  func(line int)

	// per-run state keyed by normalized file path
	preexisting map[string]bool
	frames      map[string]int
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(in *Ingester) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithMaxFrames caps how many frames of one video are stored.
func WithMaxFrames(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.maxFrames = n
		}
	}
}

// WithProbe enables reading dimensions and EXIF from files that exist locally.
func WithProbe(enabled bool) Option {
	return func(in *Ingester) { in.probe = enabled }
}

// WithRecordCallback is called after every input line is handled.
func WithRecordCallback(fn func(line int)) Option {
	return func(in *Ingester) { in.onRecord = fn }
}

// New creates an Ingester.
func New(store database.ImageWriter, opts ...Option) *Ingester {
	in := &Ingester{
		store:     store,
		logger:    zap.NewNop(),
		maxFrames: constants.VideoMaxFrames,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Ingest reads JSON-lines records from r and stores them. Files already in
// the store before the run are skipped entirely. Bad records are logged and
// counted; storage failures and cancellation stop the run.
func (in *Ingester) Ingest(ctx context.Context, r io.Reader) (*Summary, error) {
	in.preexisting = make(map[string]bool)
	in.frames = make(map[string]int)
	sum := &Summary{}

	err := Decode(r, func(line int, rec *Record, parseErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Records++
		if in.onRecord != nil {
			defer in.onRecord(line)
		}

		if parseErr != nil {
			sum.Invalid++
			in.logger.Warn("skipping unparseable record", zap.Int("line", line), zap.Error(parseErr))
			return nil
		}
		return in.ingestRecord(ctx, line, rec, sum)
	})
	if err != nil {
		return sum, err
	}

	in.logger.Info("ingestion finished",
		zap.Int("records", sum.Records),
		zap.Int("images", sum.Images),
		zap.Int("faces", sum.Faces),
		zap.Int("skipped", sum.Skipped),
		zap.Int("invalid", sum.Invalid))
	return sum, nil
}

func (in *Ingester) ingestRecord(ctx context.Context, line int, rec *Record, sum *Summary) error {
	log := in.logger.With(zap.Int("line", line), zap.String("file", rec.File))

	if err := rec.Validate(); err != nil {
		sum.Invalid++
		log.Warn("skipping invalid record", zap.Error(err))
		return nil
	}
	path := NormalizePath(rec.File)

	pre, known := in.preexisting[path]
	if !known {
		ingested, err := in.store.FileIngested(ctx, path)
		if err != nil {
			return fmt.Errorf("check %s: %w", path, err)
		}
		in.preexisting[path] = ingested
		pre = ingested
	}
	if pre {
		sum.Skipped++
		log.Debug("file already ingested")
		return nil
	}

	if rec.Kind == database.KindVideo {
		if in.frames[path] >= in.maxFrames {
			sum.Capped++
			log.Debug("video frame limit reached", zap.Int("frame", *rec.Frame))
			return nil
		}
	}

	img, faces, err := in.build(rec, path)
	if err != nil {
		sum.Invalid++
		log.Warn("skipping record", zap.Error(err))
		return nil
	}

	if _, err := in.store.InsertImage(ctx, img, faces); err != nil {
		switch {
		case errors.Is(err, database.ErrAlreadyIngested):
			sum.Duplicates++
			log.Warn("duplicate file frame")
			return nil
		case errors.Is(err, database.ErrMalformedEmbedding), errors.Is(err, database.ErrInvalidArgument):
			sum.Invalid++
			log.Warn("record rejected by store", zap.Error(err))
			return nil
		}
		return fmt.Errorf("insert %s: %w", path, err)
	}

	if rec.Kind == database.KindVideo {
		in.frames[path]++
	}
	sum.Images++
	sum.Faces += len(faces)
	log.Debug("stored image", zap.Int64("image_id", img.ID), zap.Int("faces", len(faces)))
	return nil
}

// build turns a record into rows, reading EXIF from the file when enabled.
func (in *Ingester) build(rec *Record, path string) (*database.Image, []database.Face, error) {
	var media *Media
	if in.probe && rec.Kind == database.KindImage {
		media = in.probeFile(rec.File)
	}
	if media != nil && (rec.Width == 0 || rec.Height == 0) {
		rec.Width, rec.Height = media.Width, media.Height
	}

	img := &database.Image{
		Kind:          rec.Kind,
		Source:        rec.Source,
		FilePath:      path,
		Width:         rec.Width,
		Height:        rec.Height,
		ResizedWidth:  rec.ResizedWidth,
		ResizedHeight: rec.ResizedHeight,
		FrameNum:      rec.Frame,
	}
	if rec.ResizedFile != "" {
		resized := NormalizePath(rec.ResizedFile)
		img.ResizedPath = &resized
	}
	if rec.CameraSide != "" {
		side := rec.CameraSide
		img.CameraSide = &side
	}

	orientation := 0
	if media != nil {
		orientation = media.Orientation
		img.GPSLat, img.GPSLon = media.GPSLat, media.GPSLon
		img.Timestamp = media.Timestamp
		img.ExifJSON = media.ExifJSON
		if img.CameraSide == nil {
			img.CameraSide = media.CameraSide
		}
		if orientation > 0 {
			img.Rotate = &orientation
		}
	}

	w, h := frameSize(rec, orientation)
	if img.ResizedWidth == 0 || img.ResizedHeight == 0 {
		img.ResizedWidth, img.ResizedHeight = w, h
	}

	faces := make([]database.Face, len(rec.Faces))
	for i, f := range rec.Faces {
		box, err := NormalizeBox(f.Box, w, h)
		if err != nil {
			return nil, nil, fmt.Errorf("face %d: %w", i, err)
		}
		faces[i] = database.Face{
			FaceNum:    i,
			BBox:       box,
			Landmarks:  NormalizeLandmarks(f.Landmarks, w, h),
			Embedding:  f.Descriptor,
			Confidence: f.Confidence,
		}
	}
	return img, faces, nil
}

func (in *Ingester) probeFile(path string) *Media {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	media, err := Probe(path)
	if err != nil {
		in.logger.Debug("probe failed", zap.String("file", path), zap.Error(err))
		return nil
	}
	return media
}

// NormalizePath returns path in Unicode NFC so composed and decomposed
// spellings of one file name map to one image row.
func NormalizePath(path string) string {
	return norm.NFC.String(path)
}
