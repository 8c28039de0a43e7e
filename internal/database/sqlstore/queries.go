package sqlstore

import (
	"context"
	"math"
	"slices"

	sq "github.com/Masterminds/squirrel"

	"github.com/kozaktomas/facegraph/internal/database"
)

const geotagged = "i.gps_lat IS NOT NULL AND i.gps_lon IS NOT NULL"

// RankClusters lists clusters of primary-source faces on canonical images
// whose mean confidence is above confidenceThreshold. Largest first, ties by
// ascending cluster id.
func (s *Store) RankClusters(ctx context.Context, confidenceThreshold float64, requireGeotag bool, limit int) ([]database.ClusterSummary, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}
	if math.IsNaN(confidenceThreshold) {
		return nil, database.Invalid("confidence threshold is NaN")
	}

	b := s.sb.Select("f.cluster_num", "COUNT(*)", "AVG(f.confidence)").
		From("faces f").
		Join("images_canonical i ON i.id = f.image_id").
		Where(sq.Eq{"i.source": string(s.roles.Primary)}).
		Where("f.cluster_num IS NOT NULL").
		GroupBy("f.cluster_num").
		Having("AVG(f.confidence) > ?", confidenceThreshold).
		OrderBy("COUNT(*) DESC", "f.cluster_num ASC").
		Limit(uint64(limit))
	if requireGeotag {
		b = b.Where(geotagged)
	}

	rows, err := s.query(ctx, s.db, "rank clusters", b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []database.ClusterSummary{}
	for rows.Next() {
		var c database.ClusterSummary
		if err := rows.Scan(&c.ClusterID, &c.Count, &c.MeanConfidence); err != nil {
			return nil, database.Storage("scan cluster summary", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Storage("rank clusters", err)
	}
	return out, nil
}

// ClusterMembers returns primary-source faces of a cluster on canonical
// images, most confident first, ties by ascending face id.
func (s *Store) ClusterMembers(ctx context.Context, clusterID int64, requireGeotag bool, limit int) ([]database.FaceDetail, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}

	b := s.sb.Select(faceDetailColumns...).
		From("faces_with_pose f").
		Join("images_canonical i ON i.id = f.image_id").
		Where(sq.Eq{"f.cluster_num": clusterID, "i.source": string(s.roles.Primary)}).
		OrderBy("f.confidence DESC", "f.id ASC").
		Limit(uint64(limit))
	if requireGeotag {
		b = b.Where(geotagged)
	}

	rows, err := s.query(ctx, s.db, "cluster members", b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []database.FaceDetail{}
	for rows.Next() {
		d, err := scanFaceDetail(rows)
		if err != nil {
			return nil, database.Storage("scan cluster member", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Storage("cluster members", err)
	}
	return out, nil
}

// NearestMatches follows edges out of faceID shorter than threshold and
// returns the target faces on canonical images, closest first.
func (s *Store) NearestMatches(ctx context.Context, faceID int64, threshold float64, limit int) ([]database.FaceMatch, error) {
	if err := checkMatchArgs(threshold, limit); err != nil {
		return nil, err
	}

	b := s.sb.Select(faceMatchColumns...).
		From("similarities s").
		Join("faces_with_pose f ON f.id = s.face2_id").
		Join("images_canonical i ON i.id = f.image_id").
		Where(sq.Eq{"s.face1_id": faceID}).
		Where(sq.Lt{"s.distance": threshold}).
		OrderBy("s.distance ASC", "f.id ASC").
		Limit(uint64(limit))

	return s.scanMatches(ctx, "nearest matches", b)
}

// WatchlistMatches is NearestMatches restricted to watchlist-source targets.
// Every image row is a candidate, not only canonical ones.
func (s *Store) WatchlistMatches(ctx context.Context, faceID int64, threshold float64, limit int) ([]database.FaceMatch, error) {
	if err := checkMatchArgs(threshold, limit); err != nil {
		return nil, err
	}

	b := s.sb.Select(faceMatchColumns...).
		From("similarities s").
		Join("faces_with_pose f ON f.id = s.face2_id").
		Join("images i ON i.id = f.image_id").
		Where(sq.Eq{"s.face1_id": faceID, "i.source": string(s.roles.Watchlist)}).
		Where(sq.Lt{"s.distance": threshold}).
		OrderBy("s.distance ASC", "f.id ASC").
		Limit(uint64(limit))

	return s.scanMatches(ctx, "watchlist matches", b)
}

// SelfMatches returns secondary-source faces that share a cluster with a
// reference-source still-image face and have a direct edge from it.
func (s *Store) SelfMatches(ctx context.Context, limit int) ([]database.FaceMatch, error) {
	if err := checkLimit(limit); err != nil {
		return nil, err
	}

	b := s.sb.Select(faceMatchColumns...).
		From("faces r").
		Join("images ri ON ri.id = r.image_id").
		Join("similarities s ON s.face1_id = r.id").
		Join("faces_with_pose f ON f.id = s.face2_id AND f.cluster_num = r.cluster_num").
		Join("images i ON i.id = f.image_id").
		Where(sq.Eq{
			"ri.source": string(s.roles.Reference),
			"ri.kind":   string(database.KindImage),
			"i.source":  string(s.roles.Secondary),
		}).
		OrderBy("s.distance ASC", "f.id ASC").
		Limit(uint64(limit))

	return s.scanMatches(ctx, "self matches", b)
}

func (s *Store) scanMatches(ctx context.Context, op string, b sq.SelectBuilder) ([]database.FaceMatch, error) {
	rows, err := s.query(ctx, s.db, op, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []database.FaceMatch{}
	for rows.Next() {
		m, err := scanFaceMatch(rows)
		if err != nil {
			return nil, database.Storage("scan "+op, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Storage(op, err)
	}
	return out, nil
}

// ClustersWithWatchlistDominance returns labelled clusters whose share of
// watchlist-source faces is strictly above fraction, highest share first.
func (s *Store) ClustersWithWatchlistDominance(ctx context.Context, fraction float64) ([]database.WatchlistDominance, error) {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return nil, database.Invalid("fraction must be finite")
	}

	b := s.sb.Select("f.cluster_num", "COUNT(*)").
		Column(sq.Expr("SUM(CASE WHEN i.source = ? THEN 1 ELSE 0 END)", string(s.roles.Watchlist))).
		From("faces f").
		Join("images i ON i.id = f.image_id").
		Where("f.cluster_num IS NOT NULL").
		GroupBy("f.cluster_num").
		OrderBy("f.cluster_num")

	rows, err := s.query(ctx, s.db, "watchlist dominance", b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []database.WatchlistDominance{}
	for rows.Next() {
		var d database.WatchlistDominance
		if err := rows.Scan(&d.ClusterID, &d.TotalCount, &d.WatchlistCount); err != nil {
			return nil, database.Storage("scan watchlist dominance", err)
		}
		d.OtherCount = d.TotalCount - d.WatchlistCount
		d.WatchlistRate = float64(d.WatchlistCount) / float64(d.TotalCount)
		if d.WatchlistRate > fraction {
			out = append(out, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, database.Storage("watchlist dominance", err)
	}

	slices.SortStableFunc(out, func(a, b database.WatchlistDominance) int {
		switch {
		case a.WatchlistRate > b.WatchlistRate:
			return -1
		case a.WatchlistRate < b.WatchlistRate:
			return 1
		}
		return 0
	})
	return out, nil
}

func checkMatchArgs(threshold float64, limit int) error {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold < 0 {
		return database.Invalid("threshold must be a non-negative finite number, got %v", threshold)
	}
	return checkLimit(limit)
}
