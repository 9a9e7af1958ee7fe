package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/discovery"
	"github.com/spotreel/backend/internal/geo"
	"github.com/spotreel/backend/internal/middleware"
	"github.com/spotreel/backend/internal/models"
	"github.com/spotreel/backend/internal/repositories"
	"github.com/spotreel/backend/internal/scoring"
)

type fakeVideoStore struct {
	videos  map[string]models.Video
	reports map[[2]string]struct{}
	hides   map[[2]string]struct{}
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{
		videos:  make(map[string]models.Video),
		reports: make(map[[2]string]struct{}),
		hides:   make(map[[2]string]struct{}),
	}
}

func (s *fakeVideoStore) Create(_ context.Context, video models.Video) error {
	s.videos[video.ID] = video
	return nil
}

func (s *fakeVideoStore) ByID(_ context.Context, videoID string) (models.Video, error) {
	video, ok := s.videos[videoID]
	if !ok {
		return models.Video{}, apperr.ErrNotFound
	}
	return video, nil
}

func (s *fakeVideoStore) UpdateDetails(_ context.Context, videoID string, update repositories.DetailsUpdate) (models.Video, error) {
	video, ok := s.videos[videoID]
	if !ok {
		return models.Video{}, apperr.ErrNotFound
	}
	if update.Latitude != nil {
		video.Latitude = update.Latitude
	}
	if update.Longitude != nil {
		video.Longitude = update.Longitude
	}
	if update.PlaceName != nil {
		video.PlaceName = *update.PlaceName
	}
	if update.Address != nil {
		video.Address = *update.Address
	}
	if update.Purpose != nil {
		video.Purpose = *update.Purpose
	}
	s.videos[videoID] = video
	return video, nil
}

func (s *fakeVideoStore) Delete(_ context.Context, videoID string) error {
	if _, ok := s.videos[videoID]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.videos, videoID)
	return nil
}

func (s *fakeVideoStore) AssetKeysByCreator(_ context.Context, creatorID string) ([]string, error) {
	var keys []string
	for _, video := range s.videos {
		if video.CreatorID != creatorID {
			continue
		}
		for _, key := range []string{video.PlaybackKey, video.ThumbnailKey, video.PreviewKey} {
			if key != "" {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func (s *fakeVideoStore) AddReport(_ context.Context, videoID, userID string) error {
	s.reports[[2]string{videoID, userID}] = struct{}{}
	return nil
}

func (s *fakeVideoStore) AddHide(_ context.Context, videoID, userID string) error {
	s.hides[[2]string{videoID, userID}] = struct{}{}
	return nil
}

type fakeDiscovery struct {
	results []discovery.Result
	feed    []string
	findErr error
	gotViewer string
	gotQuery  discovery.Query
}

func (d *fakeDiscovery) FindNext(_ context.Context, viewerID string, q discovery.Query) ([]discovery.Result, error) {
	d.gotViewer = viewerID
	d.gotQuery = q
	if d.findErr != nil {
		return nil, d.findErr
	}
	return d.results, nil
}

func (d *fakeDiscovery) RemainingFeed(context.Context, string) ([]string, error) {
	return d.feed, nil
}

type fakeScoring struct {
	readyEvents []scoring.ReadyEvent
	directions  [][2]string
	readyErr    error
	wentErr     error
}

func (s *fakeScoring) MarkReady(_ context.Context, ev scoring.ReadyEvent) (models.Video, error) {
	if s.readyErr != nil {
		return models.Video{}, s.readyErr
	}
	s.readyEvents = append(s.readyEvents, ev)
	lat, lon := ev.Latitude, ev.Longitude
	return models.Video{ID: ev.VideoID, CreatorID: ev.CreatorID, Latitude: &lat, Longitude: &lon, PlaybackKey: ev.PlaybackKey}, nil
}

func (s *fakeScoring) RequestDirections(_ context.Context, videoID, userID string) error {
	if s.wentErr != nil {
		return s.wentErr
	}
	s.directions = append(s.directions, [2]string{videoID, userID})
	return nil
}

type fakeBlockStore struct {
	blocks [][2]string
}

func (s *fakeBlockStore) AddBlock(_ context.Context, blockerID, blockedID string) error {
	s.blocks = append(s.blocks, [2]string{blockerID, blockedID})
	return nil
}

type fakeAssetStore struct {
	deleted []string
	err     error
}

func (s *fakeAssetStore) Delete(_ context.Context, keys ...string) error {
	if s.err != nil {
		return s.err
	}
	for _, key := range keys {
		if key != "" {
			s.deleted = append(s.deleted, key)
		}
	}
	return nil
}

type fakeNotifier struct {
	reported []string
	err      error
}

func (n *fakeNotifier) VideoReported(_ context.Context, video models.Video, _ string) error {
	n.reported = append(n.reported, video.ID)
	return n.err
}

func authedRequest(method, target string, body []byte, user models.User) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	}
	return req.WithContext(middleware.WithCurrentUser(req.Context(), user))
}

func TestVideoHandlerDiscover(t *testing.T) {
	posted := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	engine := &fakeDiscovery{results: []discovery.Result{
		{
			VideoID:     "vid-1",
			Location:    geo.Point{Latitude: 40.0, Longitude: -74.0},
			DistanceKm:  1.2,
			PostedAt:    posted,
			CreatorID:   "user-2",
			CreatorName: "sam",
			CreatorRank: 3,
			Purpose:     "food",
			PlaybackURL: "https://cdn.example/vid-1.m3u8",
		},
	}}
	handler := VideoHandler{Discovery: engine}

	req := authedRequest(http.MethodGet, "/api/v1/video?latitude=40.1&longitude=-74.2&current_video=vid-0&purpose=food", nil, models.User{ID: "user-1"})
	rec := httptest.NewRecorder()

	handler.Discover(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	if engine.gotViewer != "user-1" {
		t.Fatalf("expected viewer user-1 got %q", engine.gotViewer)
	}
	if engine.gotQuery.CursorVideoID != "vid-0" || engine.gotQuery.Purpose != "food" {
		t.Fatalf("unexpected query forwarded: %+v", engine.gotQuery)
	}

	var resp featureCollection
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Type != "FeatureCollection" || len(resp.Features) != 1 {
		t.Fatalf("unexpected collection: %+v", resp)
	}

	feature := resp.Features[0]
	if feature.Geometry.Type != "Point" {
		t.Fatalf("expected Point geometry got %q", feature.Geometry.Type)
	}
	if feature.Geometry.Coordinates != [2]float64{-74.0, 40.0} {
		t.Fatalf("expected [lon, lat] coordinates got %v", feature.Geometry.Coordinates)
	}
	if feature.Properties["video_id"] != "vid-1" {
		t.Fatalf("unexpected properties: %+v", feature.Properties)
	}
	if feature.Properties["distance"] != 1.2 {
		t.Fatalf("expected distance 1.2 got %v", feature.Properties["distance"])
	}
	if feature.Properties["posted_at"] != float64(posted.Unix()) {
		t.Fatalf("expected epoch posted_at got %v", feature.Properties["posted_at"])
	}
	if feature.Properties["creator_rank"] != float64(3) {
		t.Fatalf("expected creator_rank 3 got %v", feature.Properties["creator_rank"])
	}
}

func TestVideoHandlerDiscoverFailures(t *testing.T) {
	cases := []struct {
		name       string
		target     string
		engine     *fakeDiscovery
		wantStatus int
		wantField  string
	}{
		{"missingLatitude", "/api/v1/video?longitude=-74", &fakeDiscovery{}, http.StatusUnprocessableEntity, "latitude"},
		{"malformedLongitude", "/api/v1/video?latitude=40&longitude=east", &fakeDiscovery{}, http.StatusUnprocessableEntity, "longitude"},
		{"latitudeOutOfRange", "/api/v1/video?latitude=91&longitude=0", &fakeDiscovery{}, http.StatusUnprocessableEntity, "latitude"},
		{"unknownCursor", "/api/v1/video?latitude=40&longitude=-74&current_video=nope",
			&fakeDiscovery{findErr: apperr.Validation("current_video", "unknown video id")},
			http.StatusUnprocessableEntity, "current_video"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := VideoHandler{Discovery: tc.engine}
			req := authedRequest(http.MethodGet, tc.target, nil, models.User{ID: "user-1"})
			rec := httptest.NewRecorder()

			handler.Discover(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}

			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp["field"] != tc.wantField {
				t.Fatalf("expected field %q got %q", tc.wantField, resp["field"])
			}
		})
	}
}

func TestVideoHandlerDiscoverRequiresAuth(t *testing.T) {
	handler := VideoHandler{Discovery: &fakeDiscovery{}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/video?latitude=40&longitude=-74", nil)
	rec := httptest.NewRecorder()

	handler.Discover(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}
}

func TestVideoHandlerCreate(t *testing.T) {
	store := newFakeVideoStore()
	now := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	handler := VideoHandler{Videos: store, NowFunc: func() time.Time { return now }}

	body := []byte(`{"place_name":"Pier 39","purpose":"sightseeing"}`)
	req := authedRequest(http.MethodPost, "/api/v1/video", body, models.User{ID: "user-1"})
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["creator_id"] != "user-1" || resp["place_name"] != "Pier 39" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp["ready"] != false {
		t.Fatalf("expected new video to be pending")
	}

	stored, ok := store.videos[resp["id"].(string)]
	if !ok {
		t.Fatalf("expected video to be stored")
	}
	if !stored.CreatedAt.Equal(now) {
		t.Fatalf("expected createdAt to use NowFunc")
	}
}

func TestVideoHandlerUpdate(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-1"}
	handler := VideoHandler{Videos: store}

	body := []byte(`{"latitude":40.5,"longitude":-74.1,"place_name":"Liberty Park"}`)
	req := authedRequest(http.MethodPatch, "/api/v1/video/vid-1", body, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	updated := store.videos["vid-1"]
	if updated.Latitude == nil || *updated.Latitude != 40.5 {
		t.Fatalf("expected latitude to be stored, got %+v", updated)
	}
	if updated.PlaceName != "Liberty Park" {
		t.Fatalf("expected place name update, got %q", updated.PlaceName)
	}
}

func TestVideoHandlerUpdateFailures(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-1"}

	cases := []struct {
		name       string
		caller     string
		videoID    string
		body       []byte
		wantStatus int
	}{
		{"notCreator", "user-2", "vid-1", []byte(`{"place_name":"x"}`), http.StatusForbidden},
		{"unknownVideo", "user-1", "vid-9", []byte(`{"place_name":"x"}`), http.StatusNotFound},
		{"badJSON", "user-1", "vid-1", []byte("{"), http.StatusUnprocessableEntity},
		{"latitudeAlone", "user-1", "vid-1", []byte(`{"latitude":40.5}`), http.StatusUnprocessableEntity},
		{"latitudeOutOfRange", "user-1", "vid-1", []byte(`{"latitude":120,"longitude":0}`), http.StatusUnprocessableEntity},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := VideoHandler{Videos: store}
			req := authedRequest(http.MethodPatch, "/api/v1/video/"+tc.videoID, tc.body, models.User{ID: tc.caller})
			req.SetPathValue("id", tc.videoID)
			rec := httptest.NewRecorder()

			handler.Update(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestVideoHandlerWent(t *testing.T) {
	engine := &fakeScoring{}
	handler := VideoHandler{Scoring: engine}

	req := authedRequest(http.MethodPatch, "/api/v1/video/vid-1/went", nil, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Went(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if len(engine.directions) != 1 || engine.directions[0] != [2]string{"vid-1", "user-1"} {
		t.Fatalf("expected direction request to be forwarded, got %v", engine.directions)
	}
}

func TestVideoHandlerWentUnknownVideo(t *testing.T) {
	handler := VideoHandler{Scoring: &fakeScoring{wentErr: apperr.ErrNotFound}}

	req := authedRequest(http.MethodPatch, "/api/v1/video/vid-9/went", nil, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-9")
	rec := httptest.NewRecorder()

	handler.Went(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestVideoHandlerReport(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-2"}
	notifier := &fakeNotifier{}
	handler := VideoHandler{Videos: store, Notifier: notifier}

	req := authedRequest(http.MethodPatch, "/api/v1/video/vid-1/report", nil, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Report(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if _, ok := store.reports[[2]string{"vid-1", "user-1"}]; !ok {
		t.Fatalf("expected report to be stored")
	}
	if len(notifier.reported) != 1 || notifier.reported[0] != "vid-1" {
		t.Fatalf("expected moderation notification, got %v", notifier.reported)
	}
}

func TestVideoHandlerReportSurvivesNotifierFailure(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-2"}
	handler := VideoHandler{Videos: store, Notifier: &fakeNotifier{err: errors.New("smtp down")}}

	req := authedRequest(http.MethodPatch, "/api/v1/video/vid-1/report", nil, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Report(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected report to succeed despite notifier failure, got %d", rec.Code)
	}
}

func TestVideoHandlerHide(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-2"}
	handler := VideoHandler{Videos: store}

	req := authedRequest(http.MethodPatch, "/api/v1/video/vid-1/hide", nil, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Hide(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if _, ok := store.hides[[2]string{"vid-1", "user-1"}]; !ok {
		t.Fatalf("expected hide to be stored")
	}
}

func TestVideoHandlerBlock(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-2"}
	blocks := &fakeBlockStore{}
	handler := VideoHandler{
		Videos:    store,
		Blocks:    blocks,
		Discovery: &fakeDiscovery{feed: []string{"vid-3", "vid-4"}},
	}

	req := authedRequest(http.MethodPatch, "/api/v1/video/vid-1/block", nil, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Block(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if len(blocks.blocks) != 1 || blocks.blocks[0] != [2]string{"user-1", "user-2"} {
		t.Fatalf("expected block to be stored, got %v", blocks.blocks)
	}

	var resp struct {
		Feed []string `json:"feed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Feed) != 2 || resp.Feed[0] != "vid-3" {
		t.Fatalf("expected remaining feed, got %v", resp.Feed)
	}
}

func TestVideoHandlerBlockSelf(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-1"}
	handler := VideoHandler{Videos: store, Blocks: &fakeBlockStore{}}

	req := authedRequest(http.MethodPatch, "/api/v1/video/vid-1/block", nil, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Block(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["field"] != "creator" {
		t.Fatalf("expected field creator got %q", resp["field"])
	}
}

func TestVideoHandlerDelete(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-1", PlaybackKey: "v/1.m3u8", ThumbnailKey: "t/1.jpg"}
	assets := &fakeAssetStore{}
	handler := VideoHandler{Videos: store, Assets: assets}

	req := authedRequest(http.MethodDelete, "/api/v1/video/vid-1", nil, models.User{ID: "user-1"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if _, ok := store.videos["vid-1"]; ok {
		t.Fatalf("expected video to be deleted")
	}
	if len(assets.deleted) != 2 {
		t.Fatalf("expected asset cleanup, got %v", assets.deleted)
	}
}

func TestVideoHandlerDeleteNotCreator(t *testing.T) {
	store := newFakeVideoStore()
	store.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-1"}
	handler := VideoHandler{Videos: store, Assets: &fakeAssetStore{}}

	req := authedRequest(http.MethodDelete, "/api/v1/video/vid-1", nil, models.User{ID: "user-2"})
	req.SetPathValue("id", "vid-1")
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
	if _, ok := store.videos["vid-1"]; !ok {
		t.Fatalf("expected video to survive")
	}
}
