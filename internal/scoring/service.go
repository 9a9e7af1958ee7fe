package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/spotreel/backend/internal/config"
	"github.com/spotreel/backend/internal/geo"
	"github.com/spotreel/backend/internal/logging"
	"github.com/spotreel/backend/internal/models"
)

// VideoSite is the minimal projection of a ready video the geo-novelty
// rules operate on.
type VideoSite struct {
	VideoID   string
	CreatorID string
	Location  geo.Point
}

// ReadyEvent is the verified payload of a video-host readiness callback.
type ReadyEvent struct {
	VideoID      string
	CreatorID    string
	StarringID   string
	Latitude     float64
	Longitude    float64
	PlaybackKey  string
	ThumbnailKey string
	PreviewKey   string
	ReadyAt      time.Time
}

// Tx exposes the writes a single scoring operation performs. All methods
// run inside one storage transaction so a point award never applies
// without its triggering mutation.
type Tx interface {
	// UpsertReady creates or enriches the video and marks it ready.
	// Reports whether the video had already reached ready state, so
	// webhook redeliveries never re-award the novelty bonus.
	UpsertReady(ctx context.Context, ev ReadyEvent) (models.Video, bool, error)
	// Video loads a video by id. Returns apperr.ErrNotFound when absent.
	Video(ctx context.Context, id string) (models.Video, error)
	// ReadySites lists every ready video except the one being scored.
	ReadySites(ctx context.Context, excludeVideoID string) ([]VideoSite, error)
	// RecordDirectionRequest adds the (video, user) membership and reports
	// whether it was newly inserted.
	RecordDirectionRequest(ctx context.Context, videoID, userID string) (bool, error)
	// AddPoints increments a user's reputation counter.
	AddPoints(ctx context.Context, userID string, delta int64) error
}

// Store runs a function within a single retryable transaction.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Service implements the gamified scoring rules: the one-time territory
// bonus for the first ready video in a one-mile radius, and the
// direction-request reward scaled by nearby creator density.
type Service struct {
	store Store
	cfg   config.ScoringConfig
}

// NewService constructs the scoring engine with explicit constants.
func NewService(store Store, cfg config.ScoringConfig) *Service {
	return &Service{store: store, cfg: cfg}
}

// MarkReady transitions a video to ready state and awards the novelty
// bonus when no other ready video lies within one mile. The nearby scan
// runs against live data inside the same transaction; two simultaneous
// first uploads to one area may both earn the bonus, which is accepted.
func (s *Service) MarkReady(ctx context.Context, ev ReadyEvent) (models.Video, error) {
	ctx, span := logging.StartSpan(ctx, "scoring.mark_ready")
	defer span.End()

	var video models.Video

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var alreadyReady bool
		var err error

		video, alreadyReady, err = tx.UpsertReady(ctx, ev)
		if err != nil {
			return fmt.Errorf("mark video ready: %w", err)
		}
		if alreadyReady {
			return nil
		}

		sites, err := tx.ReadySites(ctx, video.ID)
		if err != nil {
			return fmt.Errorf("scan ready videos: %w", err)
		}

		origin := geo.Point{Latitude: ev.Latitude, Longitude: ev.Longitude}
		for _, site := range sites {
			if geo.WithinMile(origin, site.Location) {
				return nil
			}
		}

		if err := s.award(ctx, tx, video, s.cfg.NoveltyBonus); err != nil {
			return err
		}

		logging.FromContext(ctx).Info("novelty bonus awarded",
			"videoId", video.ID, "creatorId", video.CreatorID, "points", s.cfg.NoveltyBonus)
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}

	return video, nil
}

// RequestDirections records a "went" action. The first request from each
// user (other than the creator) pays the creator the configured reward
// multiplied by 1 + the number of distinct other creators with a ready
// video within one mile. Repeat requests keep the membership but never
// pay again.
func (s *Service) RequestDirections(ctx context.Context, videoID, userID string) error {
	return s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		video, err := tx.Video(ctx, videoID)
		if err != nil {
			return fmt.Errorf("load video: %w", err)
		}

		inserted, err := tx.RecordDirectionRequest(ctx, video.ID, userID)
		if err != nil {
			return fmt.Errorf("record direction request: %w", err)
		}
		if !inserted || userID == video.CreatorID || !video.Ready() {
			return nil
		}

		sites, err := tx.ReadySites(ctx, video.ID)
		if err != nil {
			return fmt.Errorf("scan ready videos: %w", err)
		}

		origin := geo.Point{Latitude: *video.Latitude, Longitude: *video.Longitude}
		nearby := make(map[string]struct{})
		for _, site := range sites {
			if site.CreatorID == video.CreatorID {
				continue
			}
			if geo.WithinMile(origin, site.Location) {
				nearby[site.CreatorID] = struct{}{}
			}
		}

		reward := s.cfg.DirectionReward * int64(1+len(nearby))
		if err := s.award(ctx, tx, video, reward); err != nil {
			return err
		}

		logging.FromContext(ctx).Info("direction reward awarded",
			"videoId", video.ID, "creatorId", video.CreatorID, "requesterId", userID, "points", reward)
		return nil
	})
}

// award pays the creator and, when the video features a distinct starring
// user, that user too.
func (s *Service) award(ctx context.Context, tx Tx, video models.Video, points int64) error {
	if err := tx.AddPoints(ctx, video.CreatorID, points); err != nil {
		return fmt.Errorf("award creator points: %w", err)
	}
	if video.StarringID != "" && video.StarringID != video.CreatorID {
		if err := tx.AddPoints(ctx, video.StarringID, points); err != nil {
			return fmt.Errorf("award starring points: %w", err)
		}
	}
	return nil
}
