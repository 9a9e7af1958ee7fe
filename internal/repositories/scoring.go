package repositories

import (
	"context"
	"errors"
	"fmt"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/db"
	"github.com/spotreel/backend/internal/models"
	"github.com/spotreel/backend/internal/scoring"
)

// PostgresScoringStore runs scoring operations inside retryable
// transactions, so a ready transition or direction request never commits
// without its point award.
type PostgresScoringStore struct {
	pool db.Pool
}

// NewPostgresScoringStore constructs the scoring unit-of-work store.
func NewPostgresScoringStore(pool db.Pool) *PostgresScoringStore {
	return &PostgresScoringStore{pool: pool}
}

// InTx executes fn within a single transaction, retrying on serialization
// failures the way the cockroach-go helper prescribes.
func (s *PostgresScoringStore) InTx(ctx context.Context, fn func(ctx context.Context, tx scoring.Tx) error) error {
	return crdbpgxv5.ExecuteTx(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &scoringTx{tx: tx})
	})
}

type scoringTx struct {
	tx pgx.Tx
}

// UpsertReady creates or enriches the video row and marks it ready. The
// row is locked so the readiness check and the subsequent award see one
// consistent state.
func (t *scoringTx) UpsertReady(ctx context.Context, ev scoring.ReadyEvent) (models.Video, bool, error) {
	var (
		latitude    *float64
		playbackKey string
	)
	err := t.tx.QueryRow(ctx, `
        SELECT latitude, playback_key FROM videos WHERE id = $1 FOR UPDATE
    `, ev.VideoID).Scan(&latitude, &playbackKey)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = t.tx.Exec(ctx, `
            INSERT INTO videos (id, creator_id, starring_id, latitude, longitude, place_name, address,
                                purpose, playback_key, thumbnail_key, preview_key, posted_at, created_at)
            VALUES ($1, $2, NULLIF($3, ''), $4, $5, '', '', '', $6, $7, $8, $9, $9)
        `, ev.VideoID, ev.CreatorID, ev.StarringID, ev.Latitude, ev.Longitude,
			ev.PlaybackKey, ev.ThumbnailKey, ev.PreviewKey, ev.ReadyAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return models.Video{}, false, apperr.ErrNotFound
			}
			return models.Video{}, false, fmt.Errorf("insert ready video: %w", err)
		}
	case err != nil:
		return models.Video{}, false, fmt.Errorf("lock video row: %w", err)
	default:
		alreadyReady := latitude != nil && playbackKey != ""
		if alreadyReady {
			video, err := t.videoByID(ctx, ev.VideoID)
			return video, true, err
		}

		_, err = t.tx.Exec(ctx, `
            UPDATE videos
            SET starring_id   = COALESCE(NULLIF($2, ''), starring_id),
                latitude      = $3,
                longitude     = $4,
                playback_key  = $5,
                thumbnail_key = $6,
                preview_key   = $7,
                posted_at     = $8
            WHERE id = $1
        `, ev.VideoID, ev.StarringID, ev.Latitude, ev.Longitude,
			ev.PlaybackKey, ev.ThumbnailKey, ev.PreviewKey, ev.ReadyAt)
		if err != nil {
			return models.Video{}, false, fmt.Errorf("mark video ready: %w", err)
		}
	}

	video, err := t.videoByID(ctx, ev.VideoID)
	return video, false, err
}

// Video loads a video inside the transaction.
func (t *scoringTx) Video(ctx context.Context, id string) (models.Video, error) {
	return t.videoByID(ctx, id)
}

func (t *scoringTx) videoByID(ctx context.Context, id string) (models.Video, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	return scanVideo(row)
}

// ReadySites lists every other ready video's location and creator.
func (t *scoringTx) ReadySites(ctx context.Context, excludeVideoID string) ([]scoring.VideoSite, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT id, creator_id, latitude, longitude
        FROM videos
        WHERE id != $1
          AND latitude IS NOT NULL
          AND longitude IS NOT NULL
          AND playback_key != ''
    `, excludeVideoID)
	if err != nil {
		return nil, fmt.Errorf("query ready sites: %w", err)
	}
	defer rows.Close()

	var sites []scoring.VideoSite
	for rows.Next() {
		var site scoring.VideoSite
		if err := rows.Scan(&site.VideoID, &site.CreatorID, &site.Location.Latitude, &site.Location.Longitude); err != nil {
			return nil, fmt.Errorf("scan ready site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ready sites: %w", err)
	}
	return sites, nil
}

// RecordDirectionRequest inserts the membership row, reporting whether it
// was new.
func (t *scoringTx) RecordDirectionRequest(ctx context.Context, videoID, userID string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
        INSERT INTO video_directions (video_id, user_id)
        VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, videoID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, apperr.ErrNotFound
		}
		return false, fmt.Errorf("insert direction request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddPoints increments the user's monotonic reputation counter.
func (t *scoringTx) AddPoints(ctx context.Context, userID string, delta int64) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE users SET points = points + $2, updated_at = now() WHERE id = $1
    `, userID, delta)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

var _ scoring.Store = (*PostgresScoringStore)(nil)
var _ scoring.Tx = (*scoringTx)(nil)
