package handlers

import (
	"net/http"

	"github.com/spotreel/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users      UserStore
	Accounts   AccountResolver
	Videos     VideoStore
	Discovery  DiscoveryEngine
	Reputation ReputationSource
	Scoring    ScoringEngine
	Social     BuddyService
	Blocks     BlockStore
	Assets     AssetStore
	Identity   IdentityDeleter
	Notifier   ModerationNotifier

	TokenVerifier   middleware.TokenVerifier
	WebhookVerifier WebhookVerifier
	Limiter         RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Every
// /api/v1 route except the webhook requires a verified bearer token; the
// webhook authenticates by signature instead.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	videos := VideoHandler{
		Videos:    deps.Videos,
		Discovery: deps.Discovery,
		Scoring:   deps.Scoring,
		Blocks:    deps.Blocks,
		Assets:    deps.Assets,
		Notifier:  deps.Notifier,
		Limiter:   deps.Limiter,
	}
	webhook := WebhookHandler{
		Verifier: deps.WebhookVerifier,
		Scoring:  deps.Scoring,
		Accounts: deps.Accounts,
		Limiter:  deps.Limiter,
	}
	buddies := BuddyHandler{Social: deps.Social}
	profile := ProfileHandler{
		Users:      deps.Users,
		Videos:     deps.Videos,
		Assets:     deps.Assets,
		Identity:   deps.Identity,
		Reputation: deps.Reputation,
	}

	authed := middleware.Authenticate(deps.TokenVerifier, deps.Accounts)
	protect := func(handler http.HandlerFunc) http.Handler {
		return authed(handler)
	}

	mux.HandleFunc("GET /healthz", health.Handle)
	mux.HandleFunc("POST /api/v1/webhooks/video-ready", webhook.VideoReady)

	mux.Handle("GET /api/v1/video", protect(videos.Discover))
	mux.Handle("POST /api/v1/video", protect(videos.Create))
	mux.Handle("PATCH /api/v1/video/{id}", protect(videos.Update))
	mux.Handle("PATCH /api/v1/video/{id}/went", protect(videos.Went))
	mux.Handle("PATCH /api/v1/video/{id}/report", protect(videos.Report))
	mux.Handle("PATCH /api/v1/video/{id}/hide", protect(videos.Hide))
	mux.Handle("PATCH /api/v1/video/{id}/block", protect(videos.Block))
	mux.Handle("DELETE /api/v1/video/{id}", protect(videos.Delete))

	mux.Handle("POST /api/v1/buddy-requests", protect(buddies.Send))
	mux.Handle("PATCH /api/v1/buddy-requests/{id}/accept", protect(buddies.Accept))
	mux.Handle("PATCH /api/v1/buddy-requests/{id}/decline", protect(buddies.Decline))
	mux.Handle("PATCH /api/v1/buddy-requests/{id}/block", protect(buddies.Block))
	mux.Handle("GET /api/v1/buddy-requests/sent", protect(buddies.ListSent))
	mux.Handle("GET /api/v1/buddy-requests/received", protect(buddies.ListReceived))
	mux.Handle("GET /api/v1/buddies", protect(buddies.ListBuddies))
	mux.Handle("DELETE /api/v1/buddies/{id}", protect(buddies.RemoveBuddy))
	mux.Handle("PATCH /api/v1/buddies/{id}/block", protect(buddies.BlockBuddy))

	mux.Handle("GET /api/v1/rank", protect(profile.Rank))
	mux.Handle("GET /api/v1/me", protect(profile.Get))
	mux.Handle("PATCH /api/v1/me", protect(profile.Update))
	mux.Handle("DELETE /api/v1/me", protect(profile.Delete))
}
