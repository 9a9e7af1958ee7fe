package app

import (
	"context"
	"time"

	"github.com/spotreel/backend/internal/config"
	"github.com/spotreel/backend/internal/db"
	"github.com/spotreel/backend/internal/discovery"
	"github.com/spotreel/backend/internal/handlers"
	"github.com/spotreel/backend/internal/identity"
	"github.com/spotreel/backend/internal/middleware"
	"github.com/spotreel/backend/internal/notify"
	"github.com/spotreel/backend/internal/repositories"
	"github.com/spotreel/backend/internal/scoring"
	"github.com/spotreel/backend/internal/social"
	"github.com/spotreel/backend/internal/storage"
	"github.com/spotreel/backend/internal/videohost"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	objectStore, err := storage.NewObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	users := repositories.NewPostgresUserRepository(pool)
	videos := repositories.NewPostgresVideoRepository(pool)
	socialStore := repositories.NewPostgresSocialStore(pool)
	snapshot := repositories.NewPostgresSnapshot(pool, objectStore)
	scoringStore := repositories.NewPostgresScoringStore(pool)

	discoveryEngine := discovery.NewService(snapshot)

	return handlers.Dependencies{
		Users:      users,
		Accounts:   users,
		Videos:     videos,
		Discovery:  discoveryEngine,
		Reputation: discoveryEngine,
		Scoring:    scoring.NewService(scoringStore, cfg.Scoring),
		Social:     social.NewService(socialStore),
		Blocks:     socialStore,
		Assets:     objectStore,
		Identity:   identity.NewClient(cfg.Identity),
		Notifier:   notify.NewEmailNotifier(cfg.Moderation),

		TokenVerifier:   identity.NewVerifier(cfg.Identity),
		WebhookVerifier: videohost.NewVerifier(cfg.Webhook),
		Limiter:         middleware.NewCallerRateLimiter(60, time.Minute, 10, 10*time.Minute),
	}, nil
}
