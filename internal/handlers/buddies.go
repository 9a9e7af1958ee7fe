package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/middleware"
	"github.com/spotreel/backend/internal/models"
)

// BuddyHandler provides the buddy-request workflow endpoints.
type BuddyHandler struct {
	Social BuddyService
}

type sendRequestBody struct {
	ReceiverID string `json:"receiver_id"`
}

// Send handles POST /api/v1/buddy-requests.
func (h BuddyHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	var req sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, apperr.Validation("body", "invalid request body"))
		return
	}

	request, err := h.Social.SendRequest(ctx, user.ID, req.ReceiverID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, requestResponse(request))
}

// Accept handles PATCH /api/v1/buddy-requests/{id}/accept.
func (h BuddyHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, models.RequestResolutionAccepted)
}

// Decline handles PATCH /api/v1/buddy-requests/{id}/decline.
func (h BuddyHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, models.RequestResolutionDeclined)
}

// Block handles PATCH /api/v1/buddy-requests/{id}/block.
func (h BuddyHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, models.RequestResolutionBlocked)
}

func (h BuddyHandler) resolve(w http.ResponseWriter, r *http.Request, resolution string) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	if err := h.Social.Resolve(ctx, r.PathValue("id"), user.ID, resolution); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSent handles GET /api/v1/buddy-requests/sent.
func (h BuddyHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, h.Social.ListSent)
}

// ListReceived handles GET /api/v1/buddy-requests/received.
func (h BuddyHandler) ListReceived(w http.ResponseWriter, r *http.Request) {
	h.listRequests(w, r, h.Social.ListReceived)
}

func (h BuddyHandler) listRequests(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, userID string) ([]models.BuddyRequest, error)) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	requests, err := list(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	payload := make([]map[string]any, 0, len(requests))
	for _, request := range requests {
		payload = append(payload, requestResponse(request))
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"requests": payload})
}

// ListBuddies handles GET /api/v1/buddies.
func (h BuddyHandler) ListBuddies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	buddies, err := h.Social.Buddies(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	payload := make([]map[string]any, 0, len(buddies))
	for _, buddy := range buddies {
		payload = append(payload, map[string]any{
			"id":           buddy.ID,
			"display_name": buddy.DisplayName,
			"points":       buddy.Points,
		})
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"buddies": payload})
}

// RemoveBuddy handles DELETE /api/v1/buddies/{id}.
func (h BuddyHandler) RemoveBuddy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	if err := h.Social.RemoveBuddy(ctx, user.ID, r.PathValue("id")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BlockBuddy handles PATCH /api/v1/buddies/{id}/block.
func (h BuddyHandler) BlockBuddy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
		return
	}

	if err := h.Social.BlockBuddy(ctx, user.ID, r.PathValue("id")); err != nil {
		respondError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func requestResponse(request models.BuddyRequest) map[string]any {
	return map[string]any{
		"id":          request.ID,
		"sender_id":   request.SenderID,
		"receiver_id": request.ReceiverID,
		"created_at":  request.CreatedAt.Unix(),
	}
}
