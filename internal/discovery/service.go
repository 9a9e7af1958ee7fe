package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/geo"
	"github.com/spotreel/backend/internal/logging"
)

// PageSize is the fixed number of results returned per discovery page.
const PageSize = 5

// Candidate is a ready video annotated with everything the ranking needs:
// its creator's live reputation and the viewer's moderation relations.
type Candidate struct {
	ID            string
	CreatorID     string
	CreatorName   string
	CreatorPoints int64
	StarringID    string
	Location      geo.Point
	PostedAt      time.Time
	Purpose       string
	PlaybackURL   string
	ThumbnailURL  string
	PreviewURL    string

	ReportedByViewer bool
	HiddenFromViewer bool
	CreatorBlocked   bool
}

// Snapshot is the read-only view of storage the engine ranks against. A
// single FindNext call issues all reads against one snapshot; no ordering
// guarantee is made across calls.
type Snapshot interface {
	// ReadyCandidates returns every ready video annotated for the viewer.
	ReadyCandidates(ctx context.Context, viewerID string) ([]Candidate, error)
	// VideoLocation resolves a video id to its location, for cursor
	// resolution. Returns apperr.ErrNotFound for unknown ids.
	VideoLocation(ctx context.Context, videoID string) (geo.Point, error)
	// DenseRanks returns the live dense rank for each listed user:
	// 1 + the number of distinct users holding strictly more points.
	DenseRanks(ctx context.Context, userIDs []string) (map[string]int, error)
}

// Query carries the viewer-supplied discovery parameters.
type Query struct {
	Latitude      float64
	Longitude     float64
	CursorVideoID string
	Purpose       string
}

// Result is one ranked video with its display annotations.
type Result struct {
	VideoID      string
	Location     geo.Point
	DistanceKm   float64
	PostedAt     time.Time
	CreatorID    string
	CreatorName  string
	CreatorRank  int
	Purpose      string
	PlaybackURL  string
	ThumbnailURL string
	PreviewURL   string
}

// Service implements nearby-video discovery over a storage snapshot.
type Service struct {
	snapshot Snapshot
}

// NewService constructs the discovery engine.
func NewService(snapshot Snapshot) *Service {
	return &Service{snapshot: snapshot}
}

// visible applies the moderation filter: a candidate is hidden from the
// viewer when the viewer reported it, hid it, or blocked its creator. This
// is the single implementation every discovery path goes through.
func visible(c Candidate) bool {
	return !c.ReportedByViewer && !c.HiddenFromViewer && !c.CreatorBlocked
}

type scored struct {
	Candidate
	distance float64
}

// FindNext returns the next page of at most PageSize videos ordered by
// ascending distance from the query point, breaking ties by descending
// creator points, then most recent posted time. When a cursor video id is
// supplied only videos strictly farther than the cursor's distance are
// returned; a closer video inserted between pages may therefore be skipped,
// which is the documented weak-consistency tradeoff of distance-keyed
// pagination.
func (s *Service) FindNext(ctx context.Context, viewerID string, q Query) ([]Result, error) {
	ctx, span := logging.StartSpan(ctx, "discovery.find_next")
	defer span.End()

	origin := geo.Point{Latitude: q.Latitude, Longitude: q.Longitude}

	cursorDistance := -1.0
	if q.CursorVideoID != "" {
		loc, err := s.snapshot.VideoLocation(ctx, q.CursorVideoID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.Validation("current_video", "unknown video id")
			}
			return nil, fmt.Errorf("resolve cursor video: %w", err)
		}
		cursorDistance = geo.DistanceKm(origin, loc)
	}

	candidates, err := s.snapshot.ReadyCandidates(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load discovery candidates: %w", err)
	}

	eligible := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if !visible(c) {
			continue
		}
		if q.Purpose != "" && c.Purpose != q.Purpose {
			continue
		}
		// A video can reach ready state and later lose its playable asset
		// reference; such videos are never surfaced.
		if c.PlaybackURL == "" {
			continue
		}

		d := geo.DistanceKm(origin, c.Location)
		if cursorDistance >= 0 && d <= cursorDistance {
			continue
		}

		eligible = append(eligible, scored{Candidate: c, distance: d})
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].distance != eligible[j].distance {
			return eligible[i].distance < eligible[j].distance
		}
		if eligible[i].CreatorPoints != eligible[j].CreatorPoints {
			return eligible[i].CreatorPoints > eligible[j].CreatorPoints
		}
		return eligible[i].PostedAt.After(eligible[j].PostedAt)
	})

	if len(eligible) > PageSize {
		eligible = eligible[:PageSize]
	}

	if len(eligible) == 0 {
		return []Result{}, nil
	}

	creatorIDs := make([]string, 0, len(eligible))
	seen := make(map[string]struct{}, len(eligible))
	for _, c := range eligible {
		if _, ok := seen[c.CreatorID]; ok {
			continue
		}
		seen[c.CreatorID] = struct{}{}
		creatorIDs = append(creatorIDs, c.CreatorID)
	}

	ranks, err := s.snapshot.DenseRanks(ctx, creatorIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve creator ranks: %w", err)
	}

	results := make([]Result, 0, len(eligible))
	for _, c := range eligible {
		results = append(results, Result{
			VideoID:      c.ID,
			Location:     c.Location,
			DistanceKm:   geo.RoundKm(c.distance),
			PostedAt:     c.PostedAt,
			CreatorID:    c.CreatorID,
			CreatorName:  c.CreatorName,
			CreatorRank:  ranks[c.CreatorID],
			Purpose:      c.Purpose,
			PlaybackURL:  c.PlaybackURL,
			ThumbnailURL: c.ThumbnailURL,
			PreviewURL:   c.PreviewURL,
		})
	}

	return results, nil
}

// Rank resolves a single user's live leaderboard rank: 1 + the number of
// users holding strictly more points.
func (s *Service) Rank(ctx context.Context, userID string) (int, error) {
	ranks, err := s.snapshot.DenseRanks(ctx, []string{userID})
	if err != nil {
		return 0, fmt.Errorf("resolve rank: %w", err)
	}
	return ranks[userID], nil
}

// RemainingFeed returns the ids of every ready video still visible to the
// viewer, most recent first. Used to answer a block mutation with the
// blocker's surviving feed.
func (s *Service) RemainingFeed(ctx context.Context, viewerID string) ([]string, error) {
	candidates, err := s.snapshot.ReadyCandidates(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load remaining feed: %w", err)
	}

	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !visible(c) || c.PlaybackURL == "" {
			continue
		}
		kept = append(kept, c)
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].PostedAt.After(kept[j].PostedAt)
	})

	ids := make([]string, len(kept))
	for i, c := range kept {
		ids[i] = c.ID
	}
	return ids, nil
}
