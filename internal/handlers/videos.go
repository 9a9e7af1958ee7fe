package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/discovery"
	"github.com/spotreel/backend/internal/logging"
	"github.com/spotreel/backend/internal/middleware"
	"github.com/spotreel/backend/internal/models"
	"github.com/spotreel/backend/internal/repositories"
)

// VideoHandler provides discovery, lifecycle and moderation endpoints for
// geo-tagged videos.
type VideoHandler struct {
	Videos    VideoStore
	Discovery DiscoveryEngine
	Scoring   ScoringEngine
	Blocks    BlockStore
	Assets    AssetStore
	Notifier  ModerationNotifier
	Limiter   RateLimiter
	NowFunc   func() time.Time
}

// geoFeature is one discovery result rendered as a GeoJSON Feature.
type geoFeature struct {
	Type       string         `json:"type"`
	Geometry   geoPoint       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type featureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

// Discover handles GET /api/v1/video: the next page of nearby videos as a
// GeoJSON FeatureCollection.
func (h VideoHandler) Discover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	if !allowRequest(h.Limiter, r, "discover") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	query := r.URL.Query()
	latitude, err := parseCoordinate(query.Get("latitude"), "latitude", 90)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	longitude, err := parseCoordinate(query.Get("longitude"), "longitude", 180)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	results, err := h.Discovery.FindNext(ctx, user.ID, discovery.Query{
		Latitude:      latitude,
		Longitude:     longitude,
		CursorVideoID: query.Get("current_video"),
		Purpose:       query.Get("purpose"),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	features := make([]geoFeature, 0, len(results))
	for _, result := range results {
		features = append(features, geoFeature{
			Type: "Feature",
			Geometry: geoPoint{
				Type:        "Point",
				Coordinates: [2]float64{result.Location.Longitude, result.Location.Latitude},
			},
			Properties: map[string]any{
				"video_id":      result.VideoID,
				"distance":      result.DistanceKm,
				"posted_at":     result.PostedAt.Unix(),
				"creator_id":    result.CreatorID,
				"display_name":  result.CreatorName,
				"creator_rank":  result.CreatorRank,
				"purpose":       result.Purpose,
				"playback_url":  result.PlaybackURL,
				"thumbnail_url": result.ThumbnailURL,
				"preview_url":   result.PreviewURL,
			},
		})
	}

	respondJSON(ctx, w, http.StatusOK, featureCollection{Type: "FeatureCollection", Features: features})
}

type createVideoRequest struct {
	StarringID string `json:"starring_id"`
	PlaceName  string `json:"place_name"`
	Address    string `json:"address"`
	Purpose    string `json:"purpose"`
}

// Create handles POST /api/v1/video: a pending video record. Location and
// media arrive later through the readiness webhook or creator enrichment.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req createVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.Validation("body", "invalid request body"))
		return
	}

	video := models.Video{
		ID:         uuid.NewString(),
		CreatorID:  user.ID,
		StarringID: req.StarringID,
		PlaceName:  req.PlaceName,
		Address:    req.Address,
		Purpose:    req.Purpose,
		CreatedAt:  h.now(),
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, videoResponse(video))
}

type updateVideoRequest struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	PlaceName *string  `json:"place_name"`
	Address   *string  `json:"address"`
	Purpose   *string  `json:"purpose"`
}

// Update handles PATCH /api/v1/video/{id}: creator-only enrichment.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, video, ok := h.loadForCaller(w, r)
	if !ok {
		return
	}
	if video.CreatorID != user.ID {
		respondError(ctx, w, apperr.ErrForbidden)
		return
	}

	var req updateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.Validation("body", "invalid request body"))
		return
	}

	if (req.Latitude == nil) != (req.Longitude == nil) {
		respondError(ctx, w, apperr.Validation("latitude", "latitude and longitude must be provided together"))
		return
	}
	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		respondError(ctx, w, apperr.Validation("latitude", "must be between -90 and 90"))
		return
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		respondError(ctx, w, apperr.Validation("longitude", "must be between -180 and 180"))
		return
	}

	updated, err := h.Videos.UpdateDetails(ctx, video.ID, repositories.DetailsUpdate{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		PlaceName: req.PlaceName,
		Address:   req.Address,
		Purpose:   req.Purpose,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, videoResponse(updated))
}

// Went handles PATCH /api/v1/video/{id}/went: records the direction
// request and applies its point award in one transaction.
func (h VideoHandler) Went(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	if err := h.Scoring.RequestDirections(ctx, r.PathValue("id"), user.ID); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Report handles PATCH /api/v1/video/{id}/report. The video disappears
// from the reporter's discovery results; moderation is notified out of
// band, and notification failure never fails the report.
func (h VideoHandler) Report(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, video, ok := h.loadForCaller(w, r)
	if !ok {
		return
	}

	if err := h.Videos.AddReport(ctx, video.ID, user.ID); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Notifier.VideoReported(ctx, video, user.ID); err != nil {
		logging.FromContext(ctx).Error("moderation notification failed", "videoId", video.ID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Hide handles PATCH /api/v1/video/{id}/hide.
func (h VideoHandler) Hide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, video, ok := h.loadForCaller(w, r)
	if !ok {
		return
	}

	if err := h.Videos.AddHide(ctx, video.ID, user.ID); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Block handles PATCH /api/v1/video/{id}/block: blocks the video's creator
// and answers with the viewer's surviving feed.
func (h VideoHandler) Block(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, video, ok := h.loadForCaller(w, r)
	if !ok {
		return
	}
	if video.CreatorID == user.ID {
		respondError(ctx, w, apperr.Validation("creator", "cannot block yourself"))
		return
	}

	if err := h.Blocks.AddBlock(ctx, user.ID, video.CreatorID); err != nil {
		respondError(ctx, w, err)
		return
	}

	feed, err := h.Discovery.RemainingFeed(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"feed": feed})
}

// Delete handles DELETE /api/v1/video/{id}: creator-only. Asset removal is
// best effort once the record is gone.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, video, ok := h.loadForCaller(w, r)
	if !ok {
		return
	}
	if video.CreatorID != user.ID {
		respondError(ctx, w, apperr.ErrForbidden)
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Assets.Delete(ctx, video.PlaybackKey, video.ThumbnailKey, video.PreviewKey); err != nil {
		logging.FromContext(ctx).Error("asset cleanup failed", "videoId", video.ID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// loadForCaller resolves the authenticated user and the path's video,
// writing the error response itself when either is unavailable.
func (h VideoHandler) loadForCaller(w http.ResponseWriter, r *http.Request) (models.User, models.Video, bool) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return models.User{}, models.Video{}, false
	}

	video, err := h.Videos.ByID(ctx, r.PathValue("id"))
	if err != nil {
		respondError(ctx, w, err)
		return models.User{}, models.Video{}, false
	}

	return user, video, true
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func parseCoordinate(raw, field string, bound float64) (float64, error) {
	if raw == "" {
		return 0, apperr.Validation(field, field+" is required")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperr.Validation(field, "must be a number")
	}
	if value < -bound || value > bound {
		return 0, apperr.Validation(field, "out of range")
	}
	return value, nil
}

func videoResponse(video models.Video) map[string]any {
	resp := map[string]any{
		"id":         video.ID,
		"creator_id": video.CreatorID,
		"place_name": video.PlaceName,
		"address":    video.Address,
		"purpose":    video.Purpose,
		"ready":      video.Ready(),
		"created_at": video.CreatedAt.Unix(),
	}
	if video.StarringID != "" {
		resp["starring_id"] = video.StarringID
	}
	if video.Latitude != nil && video.Longitude != nil {
		resp["latitude"] = *video.Latitude
		resp["longitude"] = *video.Longitude
	}
	if video.PostedAt != nil {
		resp["posted_at"] = video.PostedAt.Unix()
	}
	return resp
}
