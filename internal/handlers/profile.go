package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/middleware"
	"github.com/spotreel/backend/internal/models"
	"github.com/spotreel/backend/internal/repositories"
)

// ProfileHandler provides the caller's account endpoints.
type ProfileHandler struct {
	Users      UserStore
	Videos     VideoStore
	Assets     AssetStore
	Identity   IdentityDeleter
	Reputation ReputationSource
}

// Get handles GET /api/v1/me.
func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	// Re-read so points reflect awards made after authentication.
	fresh, err := h.Users.ByID(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, profileResponse(fresh))
}

// Rank handles GET /api/v1/rank: the caller's leaderboard standing
// alongside their live point balance.
func (h ProfileHandler) Rank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	fresh, err := h.Users.ByID(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	rank, err := h.Reputation.Rank(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"rank":   rank,
		"points": fresh.Points,
	})
}

type updateProfileRequest struct {
	DisplayName  *string `json:"display_name"`
	AgreedToEULA *bool   `json:"agreed_to_eula"`
}

// Update handles PATCH /api/v1/me: display name and EULA agreement.
func (h ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.Validation("body", "invalid request body"))
		return
	}

	updated, err := h.Users.UpdateProfile(ctx, user.ID, repositories.ProfileUpdate{
		DisplayName:  req.DisplayName,
		AgreedToEULA: req.AgreedToEULA,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperr.Validation("display_name", "display name already taken"))
			return
		}
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, profileResponse(updated))
}

// Delete handles DELETE /api/v1/me: removes the account's media objects,
// its identity-provider record, and finally the local row, which cascades
// to videos and relation rows. Provider failures abort the cascade before
// any local deletion.
func (h ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	keys, err := h.Videos.AssetKeysByCreator(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	if err := h.Assets.Delete(ctx, keys...); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Identity.DeleteAccount(ctx, user.ExternalID); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Users.Delete(ctx, user.ID); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func profileResponse(user models.User) map[string]any {
	return map[string]any{
		"id":             user.ID,
		"display_name":   user.DisplayName,
		"points":         user.Points,
		"agreed_to_eula": user.AgreedToEULA,
		"created_at":     user.CreatedAt.Unix(),
	}
}
