// Package storetest is a behavioral test suite run against every
// database.Store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/facegraph/internal/database"
)

// Opener returns a migrated, empty store. Closing it is the opener's job.
type Opener func(t *testing.T) database.Store

// Run executes the whole suite, each case against a fresh store.
func Run(t *testing.T, open Opener) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s database.Store)
	}{
		{"MigrateIsIdempotent", testMigrateIdempotent},
		{"InsertImageAssignsIDs", testInsertImage},
		{"InsertImageRejectsDuplicateFrame", testDuplicateFrame},
		{"InsertImageChecksDimension", testDimensionCheck},
		{"GetFaceRoundTrip", testGetFace},
		{"AllEmbeddingsOrdered", testAllEmbeddings},
		{"ClusterableEmbeddingsBySource", testClusterableEmbeddings},
		{"ReplaceSimilarities", testReplaceSimilarities},
		{"ReplaceSimilaritiesKeepsGraphOnFailure", testReplaceKeepsGraph},
		{"ReplaceSimilaritiesRejectsNegativeDistance", testNegativeDistance},
		{"RankClusters", testRankClusters},
		{"ClusterMembers", testClusterMembers},
		{"NearestMatches", testNearestMatches},
		{"WatchlistMatches", testWatchlistMatches},
		{"SelfMatches", testSelfMatches},
		{"WatchlistDominance", testWatchlistDominance},
		{"AssignAndClearCluster", testAssignAndClear},
		{"ReferenceFace", testReferenceFace},
		{"InvalidLimits", testInvalidLimits},
		{"Stats", testStats},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.fn(t, open(t))
		})
	}
}

// Face describes a face to insert. Zero values get sensible defaults.
type Face struct {
	Embedding  []float64
	Confidence float64
	Cluster    *int64
	BBox       *database.BBox
}

// Image describes an image to insert together with its faces.
type Image struct {
	Source database.Source
	Kind   database.MediaKind
	Path   string
	Frame  *int
	Geo    bool
	Faces  []Face
}

// Cluster returns a pointer to a cluster label.
func Cluster(n int64) *int64 { return &n }

// Frame returns a pointer to a frame index.
func Frame(n int) *int { return &n }

// Insert stores im and returns the new face IDs in face order.
func Insert(t *testing.T, s database.Store, im Image) []int64 {
	t.Helper()

	img := &database.Image{
		Kind:     im.Kind,
		Source:   im.Source,
		FilePath: im.Path,
		Width:    640,
		Height:   480,
		FrameNum: im.Frame,
	}
	if img.Kind == "" {
		img.Kind = database.KindImage
		if im.Frame != nil {
			img.Kind = database.KindVideo
		}
	}
	if im.Geo {
		lat, lon := 50.0755, 14.4378
		img.GPSLat, img.GPSLon = &lat, &lon
	}

	faces := make([]database.Face, len(im.Faces))
	for i, f := range im.Faces {
		emb := f.Embedding
		if emb == nil {
			emb = []float64{float64(i), 1}
		}
		box := database.BBox{Left: 0.1, Top: 0.2, Right: 0.3, Bottom: 0.6, Width: 0.2, Height: 0.4}
		if f.BBox != nil {
			box = *f.BBox
		}
		faces[i] = database.Face{
			FaceNum:    i,
			BBox:       box,
			Embedding:  emb,
			Confidence: f.Confidence,
			ClusterID:  f.Cluster,
		}
	}

	_, err := s.InsertImage(context.Background(), img, faces)
	require.NoError(t, err)

	ids := make([]int64, len(faces))
	for i := range faces {
		ids[i] = faces[i].ID
	}
	return ids
}

func faceIDs(details []database.FaceDetail) []int64 {
	out := make([]int64, len(details))
	for i, d := range details {
		out[i] = d.ID
	}
	return out
}

func matchIDs(matches []database.FaceMatch) []int64 {
	out := make([]int64, len(matches))
	for i, m := range matches {
		out[i] = m.ID
	}
	return out
}

func testMigrateIdempotent(t *testing.T, s database.Store) {
	ctx := context.Background()

	before, err := s.MigrationsApplied(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	require.NoError(t, s.Migrate(ctx))

	after, err := s.MigrationsApplied(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func testInsertImage(t *testing.T, s database.Store) {
	ctx := context.Background()

	img := &database.Image{Kind: database.KindImage, Source: database.SourcePhone, FilePath: "/photos/a.jpg", Width: 4000, Height: 3000}
	faces := []database.Face{
		{FaceNum: 0, Embedding: []float64{0.1, 0.2}, Confidence: 0.9},
		{FaceNum: 1, Embedding: []float64{0.3, 0.4}, Confidence: 0.8},
	}

	id, err := s.InsertImage(ctx, img, faces)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, id, img.ID)
	assert.Equal(t, 2, img.NumFaces)
	for _, f := range faces {
		assert.NotZero(t, f.ID)
		assert.Equal(t, id, f.ImageID)
	}
	assert.NotEqual(t, faces[0].ID, faces[1].ID)

	ok, err := s.FileIngested(ctx, "/photos/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.FileIngested(ctx, "/photos/b.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.InsertImage(ctx, &database.Image{Kind: "gif", Source: database.SourcePhone, FilePath: "/x"}, nil)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)

	_, err = s.InsertImage(ctx, &database.Image{Kind: database.KindImage, Source: "google", FilePath: "/x"}, nil)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)
}

func testDuplicateFrame(t *testing.T, s database.Store) {
	ctx := context.Background()

	Insert(t, s, Image{Source: database.SourcePhone, Path: "/photos/a.jpg"})

	_, err := s.InsertImage(ctx, &database.Image{Kind: database.KindImage, Source: database.SourcePhone, FilePath: "/photos/a.jpg"}, nil)
	assert.ErrorIs(t, err, database.ErrAlreadyIngested)

	// Distinct frames of one video coexist, a repeated frame does not.
	Insert(t, s, Image{Source: database.SourcePhone, Path: "/videos/v.mp4", Frame: Frame(0)})
	Insert(t, s, Image{Source: database.SourcePhone, Path: "/videos/v.mp4", Frame: Frame(1)})

	_, err = s.InsertImage(ctx, &database.Image{Kind: database.KindVideo, Source: database.SourcePhone, FilePath: "/videos/v.mp4", FrameNum: Frame(1)}, nil)
	assert.ErrorIs(t, err, database.ErrAlreadyIngested)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Images)
}

func testDimensionCheck(t *testing.T, s database.Store) {
	ctx := context.Background()

	Insert(t, s, Image{Source: database.SourcePhone, Path: "/a.jpg", Faces: []Face{{Embedding: []float64{1, 2}, Confidence: 0.9}}})

	_, err := s.InsertImage(ctx,
		&database.Image{Kind: database.KindImage, Source: database.SourcePhone, FilePath: "/b.jpg"},
		[]database.Face{{Embedding: []float64{1, 2, 3}, Confidence: 0.9}})
	assert.ErrorIs(t, err, database.ErrMalformedEmbedding)

	ok, err := s.FileIngested(ctx, "/b.jpg")
	require.NoError(t, err)
	assert.False(t, ok, "rejected image must not be written")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EmbeddingDim)
	assert.Equal(t, 1, stats.Faces)
}

func testGetFace(t *testing.T, s database.Store) {
	ctx := context.Background()

	taken := time.Date(2023, 7, 14, 18, 30, 5, 0, time.UTC)
	lat, lon, rotate := 49.1951, 16.6068, 90
	side, resized, exif := "front", "/cache/a_small.jpg", `{"Make":"Apple","Model":"iPhone 12"}`

	img := &database.Image{
		Kind: database.KindImage, Source: database.SourcePhone, FilePath: "/photos/a.jpg",
		Width: 4032, Height: 3024, ResizedPath: &resized, ResizedWidth: 1008, ResizedHeight: 756,
		CameraSide: &side, ExifJSON: &exif, GPSLat: &lat, GPSLon: &lon, Rotate: &rotate, Timestamp: &taken,
	}
	faces := []database.Face{{
		FaceNum:    0,
		BBox:       database.BBox{Left: 0.25, Top: 0.2, Right: 0.5, Bottom: 0.6, Width: 0.25, Height: 0.4},
		Landmarks:  []database.Point{{X: 0.3, Y: 0.3}, {X: 0.45, Y: 0.3}},
		Embedding:  []float64{0.5, 0.25},
		Confidence: 0.97,
		ClusterID:  Cluster(4),
	}}
	_, err := s.InsertImage(ctx, img, faces)
	require.NoError(t, err)

	got, err := s.GetFace(ctx, faces[0].ID)
	require.NoError(t, err)

	assert.Equal(t, faces[0].ID, got.ID)
	assert.Equal(t, img.ID, got.ImageID)
	assert.InDelta(t, 0.25, got.BBox.Left, 1e-9)
	assert.InDelta(t, 0.6, got.BBox.Bottom, 1e-9)
	assert.Len(t, got.Landmarks, 2)
	assert.InDelta(t, 0.45, got.Landmarks[1].X, 1e-9)
	assert.InDelta(t, 0.97, got.Confidence, 1e-9)
	require.NotNil(t, got.ClusterID)
	assert.Equal(t, int64(4), *got.ClusterID)
	require.NotNil(t, got.PoseCoef)
	assert.InDelta(t, 1.0, *got.PoseCoef, 1e-9)

	assert.Equal(t, database.SourcePhone, got.Image.Source)
	assert.Equal(t, database.KindImage, got.Image.Kind)
	assert.Equal(t, "/photos/a.jpg", got.Image.FilePath)
	assert.Equal(t, 1, got.Image.NumFaces)
	assert.Nil(t, got.Image.FrameNum)
	require.NotNil(t, got.Image.ResizedPath)
	assert.Equal(t, resized, *got.Image.ResizedPath)
	assert.Equal(t, 1008, got.Image.ResizedWidth)
	require.NotNil(t, got.Image.CameraSide)
	assert.Equal(t, side, *got.Image.CameraSide)
	require.NotNil(t, got.Image.ExifJSON)
	assert.JSONEq(t, exif, *got.Image.ExifJSON)
	require.True(t, got.Image.HasGeotag())
	assert.InDelta(t, lat, *got.Image.GPSLat, 1e-9)
	require.NotNil(t, got.Image.Rotate)
	assert.Equal(t, 90, *got.Image.Rotate)
	require.NotNil(t, got.Image.Timestamp)
	assert.True(t, taken.Equal(*got.Image.Timestamp), "timestamp %v != %v", got.Image.Timestamp, taken)

	_, err = s.GetFace(ctx, faces[0].ID+1000)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func testAllEmbeddings(t *testing.T, s database.Store) {
	ctx := context.Background()

	empty, err := s.AllEmbeddings(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	a := Insert(t, s, Image{Source: database.SourcePhone, Path: "/a.jpg", Faces: []Face{
		{Embedding: []float64{0.5, -0.25, 1}}, {Embedding: []float64{0, 0, 0}},
	}})
	b := Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/b.jpg", Faces: []Face{
		{Embedding: []float64{-1, 0.125, 2}},
	}})

	got, err := s.AllEmbeddings(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []int64{a[0], a[1], b[0]}, []int64{got[0].FaceID, got[1].FaceID, got[2].FaceID})
	assert.InDeltaSlice(t, []float64{0.5, -0.25, 1}, got[0].Embedding, 1e-6)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, got[1].Embedding, 1e-6)
	assert.InDeltaSlice(t, []float64{-1, 0.125, 2}, got[2].Embedding, 1e-6)
}

func testClusterableEmbeddings(t *testing.T, s database.Store) {
	ctx := context.Background()

	phone := Insert(t, s, Image{Source: database.SourcePhone, Path: "/p.jpg", Faces: []Face{{}, {}}})
	Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/w.jpg", Faces: []Face{{}}})
	booth := Insert(t, s, Image{Source: database.SourcePhotobooth, Path: "/b.jpg", Faces: []Face{{}}})

	got, err := s.ClusterableEmbeddings(ctx, []database.Source{database.SourcePhone, database.SourcePhotobooth})
	require.NoError(t, err)

	ids := make([]int64, len(got))
	for i, e := range got {
		ids[i] = e.FaceID
	}
	assert.Equal(t, []int64{phone[0], phone[1], booth[0]}, ids)

	none, err := s.ClusterableEmbeddings(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.ClusterableEmbeddings(ctx, []database.Source{"interpol"})
	assert.ErrorIs(t, err, database.ErrInvalidArgument)
}

func testReplaceSimilarities(t *testing.T, s database.Store) {
	ctx := context.Background()
	ids := Insert(t, s, Image{Source: database.SourcePhone, Path: "/a.jpg", Faces: []Face{{}, {}, {}}})

	first := []database.SimilarityEdge{
		{Face1ID: ids[0], Face2ID: ids[1], Distance: 0.1},
		{Face1ID: ids[1], Face2ID: ids[0], Distance: 0.1},
	}
	require.NoError(t, s.ReplaceSimilarities(ctx, first))

	second := []database.SimilarityEdge{
		{Face1ID: ids[0], Face2ID: ids[2], Distance: 0.3},
		{Face1ID: ids[2], Face2ID: ids[0], Distance: 0.3},
	}
	require.NoError(t, s.ReplaceSimilarities(ctx, second))

	matches, err := s.NearestMatches(ctx, ids[0], 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2]}, matchIDs(matches), "old edges must be gone")
	assert.InDelta(t, 0.3, matches[0].Distance, 1e-9)
	assert.Equal(t, ids[0], matches[0].SourceFaceID)

	require.NoError(t, s.ReplaceSimilarities(ctx, nil))
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Similarities)
}

func testReplaceKeepsGraph(t *testing.T, s database.Store) {
	ids := Insert(t, s, Image{Source: database.SourcePhone, Path: "/a.jpg", Faces: []Face{{}, {}, {}}})

	original := []database.SimilarityEdge{
		{Face1ID: ids[0], Face2ID: ids[1], Distance: 0.1},
		{Face1ID: ids[1], Face2ID: ids[0], Distance: 0.1},
	}
	require.NoError(t, s.ReplaceSimilarities(context.Background(), original))

	// A duplicate pair violates the primary key halfway through the insert.
	broken := []database.SimilarityEdge{
		{Face1ID: ids[0], Face2ID: ids[2], Distance: 0.2},
		{Face1ID: ids[0], Face2ID: ids[2], Distance: 0.2},
	}
	err := s.ReplaceSimilarities(context.Background(), broken)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.ReplaceSimilarities(ctx, []database.SimilarityEdge{{Face1ID: ids[1], Face2ID: ids[2], Distance: 0.4}})
	require.Error(t, err)

	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Similarities)

	matches, err := s.NearestMatches(context.Background(), ids[0], 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[1]}, matchIDs(matches))
}

func testNegativeDistance(t *testing.T, s database.Store) {
	ctx := context.Background()
	ids := Insert(t, s, Image{Source: database.SourcePhone, Path: "/a.jpg", Faces: []Face{{}, {}}})

	original := []database.SimilarityEdge{
		{Face1ID: ids[0], Face2ID: ids[1], Distance: 0.1},
		{Face1ID: ids[1], Face2ID: ids[0], Distance: 0.1},
	}
	require.NoError(t, s.ReplaceSimilarities(ctx, original))

	err := s.ReplaceSimilarities(ctx, []database.SimilarityEdge{
		{Face1ID: ids[0], Face2ID: ids[1], Distance: -0.5},
	})
	require.Error(t, err)
	assert.True(t, database.IsStorage(err), "expected a storage error, got %v", err)

	matches, err := s.NearestMatches(ctx, ids[0], 1, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, ids[1], matches[0].ID)
	assert.InDelta(t, 0.1, matches[0].Distance, 1e-9)
}

func testRankClusters(t *testing.T, s database.Store) {
	ctx := context.Background()
	phone := database.SourcePhone

	Insert(t, s, Image{Source: phone, Path: "/c3a.jpg", Faces: []Face{{Confidence: 0.9, Cluster: Cluster(3)}}})
	Insert(t, s, Image{Source: phone, Path: "/c3b.jpg", Faces: []Face{{Confidence: 1.0, Cluster: Cluster(3)}}})
	Insert(t, s, Image{Source: phone, Path: "/c3c.jpg", Faces: []Face{{Confidence: 0.95, Cluster: Cluster(3)}}})

	Insert(t, s, Image{Source: phone, Path: "/c7a.jpg", Geo: true, Faces: []Face{{Confidence: 0.9, Cluster: Cluster(7)}}})
	Insert(t, s, Image{Source: phone, Path: "/c7b.jpg", Faces: []Face{{Confidence: 0.9, Cluster: Cluster(7)}, {Confidence: 0.9, Cluster: Cluster(7)}}})

	Insert(t, s, Image{Source: phone, Path: "/c9.jpg", Geo: true, Faces: []Face{{Confidence: 0.99, Cluster: Cluster(9)}}})

	// Below the confidence threshold, including a mean exactly at it.
	Insert(t, s, Image{Source: phone, Path: "/c5.jpg", Faces: []Face{{Confidence: 0.5, Cluster: Cluster(5)}, {Confidence: 0.5, Cluster: Cluster(5)}}})
	Insert(t, s, Image{Source: phone, Path: "/c15.jpg", Faces: []Face{{Confidence: 0.8, Cluster: Cluster(15)}, {Confidence: 0.8, Cluster: Cluster(15)}}})

	// Not the primary source.
	Insert(t, s, Image{Source: database.SourcePhotobooth, Path: "/c11.jpg", Faces: []Face{
		{Confidence: 0.99, Cluster: Cluster(11)}, {Confidence: 0.99, Cluster: Cluster(11)},
		{Confidence: 0.99, Cluster: Cluster(11)}, {Confidence: 0.99, Cluster: Cluster(11)},
	}})

	// Four frames of one video: only the canonical first row counts.
	for frame := range 4 {
		Insert(t, s, Image{Source: phone, Path: "/c13.mp4", Frame: Frame(frame), Faces: []Face{{Confidence: 0.9, Cluster: Cluster(13)}}})
	}

	// Unlabelled faces never form a cluster.
	Insert(t, s, Image{Source: phone, Path: "/none.jpg", Faces: []Face{{Confidence: 0.99}, {Confidence: 0.99}, {Confidence: 0.99}, {Confidence: 0.99}}})

	got, err := s.RankClusters(ctx, 0.8, false, 10)
	require.NoError(t, err)

	ids := make([]int64, len(got))
	counts := make([]int, len(got))
	for i, c := range got {
		ids[i], counts[i] = c.ClusterID, c.Count
	}
	assert.Equal(t, []int64{3, 7, 9, 13}, ids)
	assert.Equal(t, []int{3, 3, 1, 1}, counts)
	assert.InDelta(t, 0.95, got[0].MeanConfidence, 1e-9)

	top, err := s.RankClusters(ctx, 0.8, false, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(3), top[0].ClusterID)
	assert.Equal(t, int64(7), top[1].ClusterID)

	geo, err := s.RankClusters(ctx, 0.8, true, 10)
	require.NoError(t, err)
	require.Len(t, geo, 2)
	assert.Equal(t, int64(7), geo[0].ClusterID)
	assert.Equal(t, 1, geo[0].Count)
	assert.Equal(t, int64(9), geo[1].ClusterID)

	none, err := s.RankClusters(ctx, 0.999, false, 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testClusterMembers(t *testing.T, s database.Store) {
	ctx := context.Background()
	phone := database.SourcePhone

	a := Insert(t, s, Image{Source: phone, Path: "/a.jpg", Faces: []Face{{Confidence: 0.9, Cluster: Cluster(1)}}})
	b := Insert(t, s, Image{Source: phone, Path: "/b.jpg", Geo: true, Faces: []Face{{Confidence: 0.99, Cluster: Cluster(1)}}})
	c := Insert(t, s, Image{Source: phone, Path: "/c.jpg", Faces: []Face{{Confidence: 0.9, Cluster: Cluster(1)}}})
	flat := Insert(t, s, Image{Source: phone, Path: "/d.jpg", Faces: []Face{{
		Confidence: 0.5, Cluster: Cluster(1),
		BBox: &database.BBox{Left: 0.1, Top: 0.5, Right: 0.2, Bottom: 0.5, Width: 0.1, Height: 0},
	}}})
	Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/w.jpg", Faces: []Face{{Confidence: 1, Cluster: Cluster(1)}}})
	Insert(t, s, Image{Source: phone, Path: "/e.jpg", Faces: []Face{{Confidence: 1, Cluster: Cluster(2)}}})

	got, err := s.ClusterMembers(ctx, 1, false, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{b[0], a[0], c[0], flat[0]}, faceIDs(got))

	require.NotNil(t, got[0].PoseCoef)
	assert.InDelta(t, 1.0, *got[0].PoseCoef, 1e-9)
	assert.Nil(t, got[3].PoseCoef, "zero box height has no pose coefficient")
	assert.Equal(t, "/b.jpg", got[0].Image.FilePath)

	limited, err := s.ClusterMembers(ctx, 1, false, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{b[0], a[0]}, faceIDs(limited))

	geo, err := s.ClusterMembers(ctx, 1, true, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{b[0]}, faceIDs(geo))

	missing, err := s.ClusterMembers(ctx, 99, false, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func testNearestMatches(t *testing.T, s database.Store) {
	ctx := context.Background()
	phone := database.SourcePhone

	src := Insert(t, s, Image{Source: phone, Path: "/src.jpg", Faces: []Face{{}}})[0]
	b := Insert(t, s, Image{Source: phone, Path: "/b.jpg", Faces: []Face{{}}})[0]
	c := Insert(t, s, Image{Source: phone, Path: "/c.jpg", Faces: []Face{{}}})[0]
	d := Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/d.jpg", Faces: []Face{{}}})[0]
	far := Insert(t, s, Image{Source: phone, Path: "/far.jpg", Faces: []Face{{}}})[0]
	Insert(t, s, Image{Source: phone, Path: "/v.mp4", Frame: Frame(0), Faces: []Face{{}}})
	late := Insert(t, s, Image{Source: phone, Path: "/v.mp4", Frame: Frame(1), Faces: []Face{{}}})[0]
	lonely := Insert(t, s, Image{Source: phone, Path: "/lonely.jpg", Faces: []Face{{}}})[0]

	edges := []database.SimilarityEdge{
		{Face1ID: src, Face2ID: b, Distance: 0.3},
		{Face1ID: src, Face2ID: c, Distance: 0.1},
		{Face1ID: src, Face2ID: d, Distance: 0.3},
		{Face1ID: src, Face2ID: far, Distance: 0.55},
		{Face1ID: src, Face2ID: late, Distance: 0.2},
		{Face1ID: b, Face2ID: src, Distance: 0.3},
	}
	require.NoError(t, s.ReplaceSimilarities(ctx, edges))

	got, err := s.NearestMatches(ctx, src, 0.5, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{c, b, d}, matchIDs(got), "distance asc, ties by face id, non-canonical frame excluded")

	strict, err := s.NearestMatches(ctx, src, 0.3, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{c}, matchIDs(strict), "threshold is exclusive")

	limited, err := s.NearestMatches(ctx, src, 0.5, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{c, b}, matchIDs(limited))

	none, err := s.NearestMatches(ctx, lonely, 0.5, 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = s.NearestMatches(ctx, src, -0.1, 10)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)
}

func testWatchlistMatches(t *testing.T, s database.Store) {
	ctx := context.Background()

	src := Insert(t, s, Image{Source: database.SourcePhone, Path: "/src.jpg", Faces: []Face{{}}})[0]
	phone := Insert(t, s, Image{Source: database.SourcePhone, Path: "/p.jpg", Faces: []Face{{}}})[0]
	w1 := Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/wl.mp4", Frame: Frame(0), Faces: []Face{{}}})[0]
	w2 := Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/wl.mp4", Frame: Frame(1), Faces: []Face{{}}})[0]
	w3 := Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/wl3.jpg", Faces: []Face{{}}})[0]

	require.NoError(t, s.ReplaceSimilarities(ctx, []database.SimilarityEdge{
		{Face1ID: src, Face2ID: phone, Distance: 0.1},
		{Face1ID: src, Face2ID: w2, Distance: 0.2},
		{Face1ID: src, Face2ID: w1, Distance: 0.3},
		{Face1ID: src, Face2ID: w3, Distance: 0.7},
	}))

	got, err := s.WatchlistMatches(ctx, src, 0.5, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{w2, w1}, matchIDs(got), "every watchlist frame counts, other sources excluded")
	assert.Equal(t, database.SourceWatchlist, got[0].Image.Source)
}

func testSelfMatches(t *testing.T, s database.Store) {
	ctx := context.Background()
	booth, phone := database.SourcePhotobooth, database.SourcePhone

	ref := Insert(t, s, Image{Source: booth, Path: "/booth.jpg", Faces: []Face{{Cluster: Cluster(1)}}})[0]
	refVideo := Insert(t, s, Image{Source: booth, Kind: database.KindVideo, Path: "/booth.mp4", Frame: Frame(0), Faces: []Face{{Cluster: Cluster(1)}}})[0]
	refUnlabelled := Insert(t, s, Image{Source: booth, Path: "/booth2.jpg", Faces: []Face{{}}})[0]

	p1 := Insert(t, s, Image{Source: phone, Path: "/p1.jpg", Faces: []Face{{Cluster: Cluster(1)}}})[0]
	p2 := Insert(t, s, Image{Source: phone, Path: "/p2.jpg", Faces: []Face{{Cluster: Cluster(1)}}})[0]
	p3 := Insert(t, s, Image{Source: phone, Path: "/p3.jpg", Faces: []Face{{Cluster: Cluster(2)}}})[0]
	p4 := Insert(t, s, Image{Source: database.SourceExternalFeed, Path: "/p4.jpg", Faces: []Face{{Cluster: Cluster(1)}}})[0]
	p5 := Insert(t, s, Image{Source: phone, Path: "/p5.jpg", Faces: []Face{{Cluster: Cluster(1)}}})[0]
	p6 := Insert(t, s, Image{Source: phone, Path: "/p6.jpg", Faces: []Face{{}}})[0]

	require.NoError(t, s.ReplaceSimilarities(ctx, []database.SimilarityEdge{
		{Face1ID: ref, Face2ID: p1, Distance: 0.2},
		{Face1ID: ref, Face2ID: p3, Distance: 0.1},  // different cluster
		{Face1ID: ref, Face2ID: p4, Distance: 0.15}, // not the secondary source
		{Face1ID: ref, Face2ID: p5, Distance: 0.2},
		{Face1ID: refVideo, Face2ID: p2, Distance: 0.05},     // reference must be a still image
		{Face1ID: refUnlabelled, Face2ID: p6, Distance: 0.1}, // unlabelled never co-cluster
	}))

	got, err := s.SelfMatches(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{p1, p5}, matchIDs(got))
	for _, m := range got {
		assert.Equal(t, ref, m.SourceFaceID)
	}

	limited, err := s.SelfMatches(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{p1}, matchIDs(limited))
}

func testWatchlistDominance(t *testing.T, s database.Store) {
	ctx := context.Background()

	for i := range 8 {
		Insert(t, s, Image{Source: database.SourcePhone, Path: "/p" + string(rune('a'+i)) + ".jpg", Faces: []Face{{Cluster: Cluster(20)}}})
	}
	Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/w1.jpg", Faces: []Face{{Cluster: Cluster(20)}, {Cluster: Cluster(20)}}})

	Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/w2.jpg", Faces: []Face{{Cluster: Cluster(21)}}})
	Insert(t, s, Image{Source: database.SourcePhone, Path: "/q.jpg", Faces: []Face{{Cluster: Cluster(21)}}})

	Insert(t, s, Image{Source: database.SourcePhone, Path: "/r.jpg", Faces: []Face{{Cluster: Cluster(22)}, {Cluster: Cluster(22)}, {Cluster: Cluster(22)}}})

	// Unlabelled watchlist faces are not a cluster.
	Insert(t, s, Image{Source: database.SourceWatchlist, Path: "/w3.jpg", Faces: []Face{{}, {}}})

	got, err := s.ClustersWithWatchlistDominance(ctx, 0.1)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(21), got[0].ClusterID)
	assert.InDelta(t, 0.5, got[0].WatchlistRate, 1e-12)

	assert.Equal(t, int64(20), got[1].ClusterID)
	assert.Equal(t, 10, got[1].TotalCount)
	assert.Equal(t, 2, got[1].WatchlistCount)
	assert.Equal(t, 8, got[1].OtherCount)
	assert.InDelta(t, 0.2, got[1].WatchlistRate, 1e-12)

	strict, err := s.ClustersWithWatchlistDominance(ctx, 0.25)
	require.NoError(t, err)
	require.Len(t, strict, 1)
	assert.Equal(t, int64(21), strict[0].ClusterID)

	zero, err := s.ClustersWithWatchlistDominance(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, zero, 2, "a cluster without watchlist faces is never dominated")
}

func testAssignAndClear(t *testing.T, s database.Store) {
	ctx := context.Background()
	ids := Insert(t, s, Image{Source: database.SourcePhone, Path: "/a.jpg", Faces: []Face{{Confidence: 0.9}, {Confidence: 0.9}, {Confidence: 0.9}}})

	n, err := s.AssignClusters(ctx, []database.ClusterLabel{
		{FaceID: ids[0], ClusterID: 5},
		{FaceID: ids[1], ClusterID: 5},
		{FaceID: ids[2], ClusterID: 6},
		{FaceID: ids[2] + 1000, ClusterID: 6},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	members, err := s.ClusterMembers(ctx, 5, false, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[0], ids[1]}, faceIDs(members))

	cleared, err := s.ClearCluster(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	again, err := s.ClearCluster(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, again, "clearing twice changes nothing")

	members, err = s.ClusterMembers(ctx, 5, false, 10)
	require.NoError(t, err)
	assert.Empty(t, members)

	// Faces survive, only the label is gone.
	f, err := s.GetFace(ctx, ids[0])
	require.NoError(t, err)
	assert.Nil(t, f.ClusterID)

	other, err := s.ClusterMembers(ctx, 6, false, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2]}, faceIDs(other))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Faces)
	assert.Equal(t, 1, stats.LabelledFaces)
}

func testReferenceFace(t *testing.T, s database.Store) {
	ctx := context.Background()

	_, err := s.ReferenceFace(ctx)
	assert.ErrorIs(t, err, database.ErrNotFound)

	Insert(t, s, Image{Source: database.SourcePhotobooth, Kind: database.KindVideo, Path: "/booth.mp4", Frame: Frame(0), Faces: []Face{{}}})
	Insert(t, s, Image{Source: database.SourcePhone, Path: "/p.jpg", Faces: []Face{{}}})

	_, err = s.ReferenceFace(ctx)
	assert.ErrorIs(t, err, database.ErrNotFound, "video frames are not reference images")

	ref := Insert(t, s, Image{Source: database.SourcePhotobooth, Path: "/booth.jpg", Faces: []Face{{}, {}}})

	got, err := s.ReferenceFace(ctx)
	require.NoError(t, err)
	assert.Equal(t, ref[0], got.ID)
	assert.Equal(t, database.SourcePhotobooth, got.Image.Source)
}

func testInvalidLimits(t *testing.T, s database.Store) {
	ctx := context.Background()

	_, err := s.RankClusters(ctx, 0.5, false, 0)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)
	_, err = s.ClusterMembers(ctx, 1, false, -1)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)
	_, err = s.NearestMatches(ctx, 1, 0.5, 0)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)
	_, err = s.WatchlistMatches(ctx, 1, 0.5, 0)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)
	_, err = s.SelfMatches(ctx, 0)
	assert.ErrorIs(t, err, database.ErrInvalidArgument)
}

func testStats(t *testing.T, s database.Store) {
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.Stats{}, *empty)

	ids := Insert(t, s, Image{Source: database.SourcePhone, Path: "/a.jpg", Faces: []Face{{Cluster: Cluster(1)}, {}}})
	Insert(t, s, Image{Source: database.SourcePhone, Path: "/b.jpg"})
	require.NoError(t, s.ReplaceSimilarities(ctx, []database.SimilarityEdge{
		{Face1ID: ids[0], Face2ID: ids[1], Distance: 0.2},
		{Face1ID: ids[1], Face2ID: ids[0], Distance: 0.2},
	}))

	got, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, database.Stats{Images: 2, Faces: 2, Similarities: 2, LabelledFaces: 1, EmbeddingDim: 2}, *got)
}
