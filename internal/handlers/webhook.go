package handlers

import (
	"io"
	"net/http"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/videohost"
)

// maxWebhookBody bounds readiness callback payloads.
const maxWebhookBody = 1 << 20

// WebhookHandler receives signed readiness callbacks from the external
// video host.
type WebhookHandler struct {
	Verifier WebhookVerifier
	Scoring  ScoringEngine
	Accounts AccountResolver
	Limiter  RateLimiter
}

// VideoReady handles POST /api/v1/webhooks/video-ready. The signature is
// checked against the raw body before any parsing; a rejected delivery is
// always safe for the host to resend.
func (h WebhookHandler) VideoReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "webhook") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(ctx, w, apperr.Validation("body", "unreadable or oversized payload"))
		return
	}

	if err := h.Verifier.Verify(r.Header.Get(videohost.SignatureHeader), body); err != nil {
		respondError(ctx, w, err)
		return
	}

	event, err := videohost.ParseReadyPayload(body)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	// The host speaks in identity-provider subjects; translate them to
	// local account ids before scoring.
	creator, err := h.Accounts.GetOrCreateByExternalID(ctx, event.CreatorID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	event.CreatorID = creator.ID

	if event.StarringID != "" {
		starring, err := h.Accounts.GetOrCreateByExternalID(ctx, event.StarringID)
		if err != nil {
			respondError(ctx, w, err)
			return
		}
		event.StarringID = starring.ID
	}

	video, err := h.Scoring.MarkReady(ctx, event)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"video_id": video.ID,
		"ready":    video.Ready(),
	})
}
