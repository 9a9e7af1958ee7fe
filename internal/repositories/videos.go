package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/db"
	"github.com/spotreel/backend/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos
// and their per-viewer relation sets.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, creator_id, COALESCE(starring_id, ''), latitude, longitude,
        place_name, address, purpose, playback_key, thumbnail_key, preview_key, posted_at, created_at`

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.CreatorID, &video.StarringID, &video.Latitude, &video.Longitude,
		&video.PlaceName, &video.Address, &video.Purpose, &video.PlaybackKey, &video.ThumbnailKey,
		&video.PreviewKey, &video.PostedAt, &video.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, apperr.ErrNotFound
		}
		return models.Video{}, fmt.Errorf("scan video: %w", err)
	}
	return video, nil
}

// Create stores a new pending video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, creator_id, starring_id, latitude, longitude, place_name, address,
                            purpose, playback_key, thumbnail_key, preview_key, posted_at, created_at)
        VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, video.ID, video.CreatorID, video.StarringID, video.Latitude, video.Longitude, video.PlaceName,
		video.Address, video.Purpose, video.PlaybackKey, video.ThumbnailKey, video.PreviewKey,
		video.PostedAt, video.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		if isForeignKeyViolation(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// ByID fetches a video by id.
func (r *PostgresVideoRepository) ByID(ctx context.Context, videoID string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, videoID)
	return scanVideo(row)
}

// DetailsUpdate carries the creator-mutable enrichment fields; nil means
// leave unchanged.
type DetailsUpdate struct {
	Latitude  *float64
	Longitude *float64
	PlaceName *string
	Address   *string
	Purpose   *string
}

// UpdateDetails applies a creator enrichment update. Authorization is the
// caller's responsibility; the repository only persists.
func (r *PostgresVideoRepository) UpdateDetails(ctx context.Context, videoID string, update DetailsUpdate) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET latitude   = COALESCE($2, latitude),
            longitude  = COALESCE($3, longitude),
            place_name = COALESCE($4, place_name),
            address    = COALESCE($5, address),
            purpose    = COALESCE($6, purpose)
        WHERE id = $1
    `, videoID, update.Latitude, update.Longitude, update.PlaceName, update.Address, update.Purpose)
	if err != nil {
		return models.Video{}, fmt.Errorf("update video details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.Video{}, apperr.ErrNotFound
	}

	row := conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, videoID)
	return scanVideo(row)
}

// Delete removes a video; relation rows cascade.
func (r *PostgresVideoRepository) Delete(ctx context.Context, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, videoID)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// AssetKeysByCreator lists every object key referenced by the creator's
// videos, for the account-deletion cascade against the object store.
func (r *PostgresVideoRepository) AssetKeysByCreator(ctx context.Context, creatorID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT playback_key, thumbnail_key, preview_key
        FROM videos
        WHERE creator_id = $1
    `, creatorID)
	if err != nil {
		return nil, fmt.Errorf("query asset keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var playback, thumbnail, preview string
		if err := rows.Scan(&playback, &thumbnail, &preview); err != nil {
			return nil, fmt.Errorf("scan asset keys: %w", err)
		}
		for _, key := range []string{playback, thumbnail, preview} {
			if key != "" {
				keys = append(keys, key)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset keys: %w", err)
	}
	return keys, nil
}

// AddReport records that the user reported the video. Adding twice has no
// additional effect.
func (r *PostgresVideoRepository) AddReport(ctx context.Context, videoID, userID string) error {
	return r.addRelation(ctx, `video_reports`, videoID, userID)
}

// AddHide records that the user hid the video. Idempotent.
func (r *PostgresVideoRepository) AddHide(ctx context.Context, videoID, userID string) error {
	return r.addRelation(ctx, `video_hides`, videoID, userID)
}

func (r *PostgresVideoRepository) addRelation(ctx context.Context, table, videoID, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO `+table+` (video_id, user_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, videoID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("insert %s relation: %w", table, err)
	}
	return nil
}
