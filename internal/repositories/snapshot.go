package repositories

import (
	"context"
	"fmt"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/db"
	"github.com/spotreel/backend/internal/discovery"
	"github.com/spotreel/backend/internal/geo"
)

// AssetURLResolver maps stored object keys to public URLs.
type AssetURLResolver interface {
	PublicURL(key string) string
}

// PostgresSnapshot implements the discovery read model: ready videos
// annotated with the viewer's moderation relations and creator reputation.
type PostgresSnapshot struct {
	pool   db.Pool
	assets AssetURLResolver
}

// NewPostgresSnapshot constructs the discovery snapshot.
func NewPostgresSnapshot(pool db.Pool, assets AssetURLResolver) *PostgresSnapshot {
	return &PostgresSnapshot{pool: pool, assets: assets}
}

// ReadyCandidates returns every ready video with per-viewer relation flags.
// The membership tests run in SQL; the conjunctive exclusion itself lives
// in the discovery service.
func (s *PostgresSnapshot) ReadyCandidates(ctx context.Context, viewerID string) ([]discovery.Candidate, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.creator_id, COALESCE(u.display_name, ''), u.points,
               COALESCE(v.starring_id, ''), v.latitude, v.longitude, v.posted_at, v.purpose,
               v.playback_key, v.thumbnail_key, v.preview_key,
               EXISTS (SELECT 1 FROM video_reports r WHERE r.video_id = v.id AND r.user_id = $1),
               EXISTS (SELECT 1 FROM video_hides h WHERE h.video_id = v.id AND h.user_id = $1),
               EXISTS (SELECT 1 FROM user_blocks b WHERE b.blocker_id = $1 AND b.blocked_id = v.creator_id)
        FROM videos v
        JOIN users u ON u.id = v.creator_id
        WHERE v.latitude IS NOT NULL
          AND v.longitude IS NOT NULL
          AND v.posted_at IS NOT NULL
          AND v.playback_key != ''
    `, viewerID)
	if err != nil {
		return nil, fmt.Errorf("query discovery candidates: %w", err)
	}
	defer rows.Close()

	var candidates []discovery.Candidate
	for rows.Next() {
		var (
			c                   discovery.Candidate
			playback, thumbnail string
			preview             string
		)
		if err := rows.Scan(&c.ID, &c.CreatorID, &c.CreatorName, &c.CreatorPoints, &c.StarringID,
			&c.Location.Latitude, &c.Location.Longitude, &c.PostedAt, &c.Purpose,
			&playback, &thumbnail, &preview,
			&c.ReportedByViewer, &c.HiddenFromViewer, &c.CreatorBlocked); err != nil {
			return nil, fmt.Errorf("scan discovery candidate: %w", err)
		}

		c.PlaybackURL = s.assets.PublicURL(playback)
		c.ThumbnailURL = s.assets.PublicURL(thumbnail)
		c.PreviewURL = s.assets.PublicURL(preview)

		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discovery candidates: %w", err)
	}
	return candidates, nil
}

// VideoLocation resolves the cursor video's location. A video without a
// location can never have been returned as a page entry, so it reports not
// found just like an unknown id.
func (s *PostgresSnapshot) VideoLocation(ctx context.Context, videoID string) (geo.Point, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return geo.Point{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var latitude, longitude *float64
	row := conn.QueryRow(ctx, `SELECT latitude, longitude FROM videos WHERE id = $1`, videoID)
	if err := row.Scan(&latitude, &longitude); err != nil {
		if isNoRows(err) {
			return geo.Point{}, apperr.ErrNotFound
		}
		return geo.Point{}, fmt.Errorf("select video location: %w", err)
	}
	if latitude == nil || longitude == nil {
		return geo.Point{}, apperr.ErrNotFound
	}

	return geo.Point{Latitude: *latitude, Longitude: *longitude}, nil
}

// DenseRanks computes each listed user's live dense rank: 1 + the number
// of distinct users holding strictly more points.
func (s *PostgresSnapshot) DenseRanks(ctx context.Context, userIDs []string) (map[string]int, error) {
	ranks := make(map[string]int, len(userIDs))
	if len(userIDs) == 0 {
		return ranks, nil
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT u.id, 1 + (SELECT COUNT(*) FROM users o WHERE o.points > u.points)
        FROM users u
        WHERE u.id = ANY($1)
    `, userIDs)
	if err != nil {
		return nil, fmt.Errorf("query dense ranks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var rank int
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("scan dense rank: %w", err)
		}
		ranks[id] = rank
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dense ranks: %w", err)
	}
	return ranks, nil
}

var _ discovery.Snapshot = (*PostgresSnapshot)(nil)
