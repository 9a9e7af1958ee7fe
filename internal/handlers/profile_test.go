package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/models"
	"github.com/spotreel/backend/internal/repositories"
)

type fakeUserStore struct {
	users     map[string]models.User
	updateErr error
}

func newFakeUserStore(users ...models.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]models.User)}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (s *fakeUserStore) ByID(_ context.Context, userID string) (models.User, error) {
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, apperr.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, userID string, update repositories.ProfileUpdate) (models.User, error) {
	if s.updateErr != nil {
		return models.User{}, s.updateErr
	}
	user, ok := s.users[userID]
	if !ok {
		return models.User{}, apperr.ErrNotFound
	}
	if update.DisplayName != nil {
		user.DisplayName = *update.DisplayName
	}
	if update.AgreedToEULA != nil {
		user.AgreedToEULA = *update.AgreedToEULA
	}
	s.users[userID] = user
	return user, nil
}

func (s *fakeUserStore) Delete(_ context.Context, userID string) error {
	if _, ok := s.users[userID]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.users, userID)
	return nil
}

type fakeIdentityClient struct {
	deleted []string
	err     error
}

func (c *fakeIdentityClient) DeleteAccount(_ context.Context, externalID string) error {
	if c.err != nil {
		return c.err
	}
	c.deleted = append(c.deleted, externalID)
	return nil
}

func TestProfileHandlerGet(t *testing.T) {
	stale := models.User{ID: "user-1", ExternalID: "ext-1", DisplayName: "sam", Points: 10}
	fresh := stale
	fresh.Points = 10010
	fresh.CreatedAt = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeUserStore(fresh)
	handler := ProfileHandler{Users: store}

	req := authedRequest(http.MethodGet, "/api/v1/me", nil, stale)
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["points"] != float64(10010) {
		t.Fatalf("expected fresh points, got %v", resp["points"])
	}
}

type fakeReputation struct {
	ranks map[string]int
	err   error
}

func (r *fakeReputation) Rank(_ context.Context, userID string) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.ranks[userID], nil
}

func TestProfileHandlerRank(t *testing.T) {
	user := models.User{ID: "user-1", ExternalID: "ext-1", Points: 10}
	fresh := user
	fresh.Points = 10020
	handler := ProfileHandler{
		Users:      newFakeUserStore(fresh),
		Reputation: &fakeReputation{ranks: map[string]int{"user-1": 3}},
	}

	req := authedRequest(http.MethodGet, "/api/v1/rank", nil, user)
	rec := httptest.NewRecorder()

	handler.Rank(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["rank"] != float64(3) {
		t.Fatalf("expected rank 3, got %v", resp["rank"])
	}
	// Points come from a fresh read, not the authenticated snapshot.
	if resp["points"] != float64(10020) {
		t.Fatalf("expected fresh points, got %v", resp["points"])
	}
}

func TestProfileHandlerUpdate(t *testing.T) {
	store := newFakeUserStore(models.User{ID: "user-1", ExternalID: "ext-1"})
	handler := ProfileHandler{Users: store}

	body := []byte(`{"display_name":"reelqueen","agreed_to_eula":true}`)
	req := authedRequest(http.MethodPatch, "/api/v1/me", body, models.User{ID: "user-1"})
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	updated := store.users["user-1"]
	if updated.DisplayName != "reelqueen" || !updated.AgreedToEULA {
		t.Fatalf("unexpected stored profile: %+v", updated)
	}
}

func TestProfileHandlerUpdateNameTaken(t *testing.T) {
	store := newFakeUserStore(models.User{ID: "user-1"})
	store.updateErr = repositories.ErrConflict
	handler := ProfileHandler{Users: store}

	body := []byte(`{"display_name":"taken"}`)
	req := authedRequest(http.MethodPatch, "/api/v1/me", body, models.User{ID: "user-1"})
	rec := httptest.NewRecorder()

	handler.Update(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["field"] != "display_name" {
		t.Fatalf("expected field display_name got %q", resp["field"])
	}
}

func TestProfileHandlerDelete(t *testing.T) {
	user := models.User{ID: "user-1", ExternalID: "ext-1"}
	users := newFakeUserStore(user)
	videos := newFakeVideoStore()
	videos.videos["vid-1"] = models.Video{ID: "vid-1", CreatorID: "user-1", PlaybackKey: "v/1.m3u8"}
	assets := &fakeAssetStore{}
	identityClient := &fakeIdentityClient{}
	handler := ProfileHandler{Users: users, Videos: videos, Assets: assets, Identity: identityClient}

	req := authedRequest(http.MethodDelete, "/api/v1/me", nil, user)
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 got %d", rec.Code)
	}
	if len(assets.deleted) != 1 || assets.deleted[0] != "v/1.m3u8" {
		t.Fatalf("expected asset cleanup, got %v", assets.deleted)
	}
	if len(identityClient.deleted) != 1 || identityClient.deleted[0] != "ext-1" {
		t.Fatalf("expected identity deletion, got %v", identityClient.deleted)
	}
	if _, ok := users.users["user-1"]; ok {
		t.Fatalf("expected account to be deleted")
	}
}

func TestProfileHandlerDeleteProviderFailure(t *testing.T) {
	user := models.User{ID: "user-1", ExternalID: "ext-1"}
	users := newFakeUserStore(user)
	handler := ProfileHandler{
		Users:    users,
		Videos:   newFakeVideoStore(),
		Assets:   &fakeAssetStore{},
		Identity: &fakeIdentityClient{err: apperr.Provider("identity", errors.New("unreachable"))},
	}

	req := authedRequest(http.MethodDelete, "/api/v1/me", nil, user)
	rec := httptest.NewRecorder()

	handler.Delete(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502 got %d", rec.Code)
	}
	if _, ok := users.users["user-1"]; !ok {
		t.Fatalf("expected local account to survive a provider failure")
	}
}
