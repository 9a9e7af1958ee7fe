package handlers

import (
	"context"

	"github.com/spotreel/backend/internal/discovery"
	"github.com/spotreel/backend/internal/models"
	"github.com/spotreel/backend/internal/repositories"
	"github.com/spotreel/backend/internal/scoring"
)

// VideoStore captures persistence operations required by the video handlers.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	ByID(ctx context.Context, videoID string) (models.Video, error)
	UpdateDetails(ctx context.Context, videoID string, update repositories.DetailsUpdate) (models.Video, error)
	Delete(ctx context.Context, videoID string) error
	AssetKeysByCreator(ctx context.Context, creatorID string) ([]string, error)
	AddReport(ctx context.Context, videoID, userID string) error
	AddHide(ctx context.Context, videoID, userID string) error
}

// UserStore captures persistence operations required by the profile handlers.
type UserStore interface {
	ByID(ctx context.Context, userID string) (models.User, error)
	UpdateProfile(ctx context.Context, userID string, update repositories.ProfileUpdate) (models.User, error)
	Delete(ctx context.Context, userID string) error
}

// AccountResolver maps identity-provider subjects to local accounts,
// provisioning them on first sight.
type AccountResolver interface {
	GetOrCreateByExternalID(ctx context.Context, externalID string) (models.User, error)
}

// DiscoveryEngine ranks nearby videos for a viewer.
type DiscoveryEngine interface {
	FindNext(ctx context.Context, viewerID string, q discovery.Query) ([]discovery.Result, error)
	RemainingFeed(ctx context.Context, viewerID string) ([]string, error)
}

// ReputationSource resolves a user's live leaderboard rank.
type ReputationSource interface {
	Rank(ctx context.Context, userID string) (int, error)
}

// ScoringEngine applies the point-award rules.
type ScoringEngine interface {
	MarkReady(ctx context.Context, ev scoring.ReadyEvent) (models.Video, error)
	RequestDirections(ctx context.Context, videoID, userID string) error
}

// BuddyService drives the buddy-request workflow.
type BuddyService interface {
	SendRequest(ctx context.Context, senderID, receiverID string) (models.BuddyRequest, error)
	Resolve(ctx context.Context, requestID, responderID, resolution string) error
	ListSent(ctx context.Context, userID string) ([]models.BuddyRequest, error)
	ListReceived(ctx context.Context, userID string) ([]models.BuddyRequest, error)
	Buddies(ctx context.Context, userID string) ([]models.User, error)
	RemoveBuddy(ctx context.Context, userID, buddyID string) error
	BlockBuddy(ctx context.Context, userID, buddyID string) error
}

// BlockStore records directed creator blocks.
type BlockStore interface {
	AddBlock(ctx context.Context, blockerID, blockedID string) error
}

// WebhookVerifier authenticates video-host callbacks before any processing.
type WebhookVerifier interface {
	Verify(header string, body []byte) error
}

// AssetStore removes media objects during deletion cascades.
type AssetStore interface {
	Delete(ctx context.Context, keys ...string) error
}

// IdentityDeleter removes the user's record at the identity provider.
type IdentityDeleter interface {
	DeleteAccount(ctx context.Context, externalID string) error
}

// ModerationNotifier delivers out-of-band report notifications.
type ModerationNotifier interface {
	VideoReported(ctx context.Context, video models.Video, reporterID string) error
}
