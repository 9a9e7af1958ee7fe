package models

import "time"

// User represents an account within the SpotReel platform. Accounts are
// created lazily on first authenticated request; credentials live with the
// external identity provider and are never stored here.
type User struct {
	ID           string
	ExternalID   string
	DisplayName  string
	Points       int64
	AgreedToEULA bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Video stores a geo-tagged video reference. Media is hosted externally;
// the playback/thumbnail/preview fields are object keys delivered by the
// video host's readiness webhook.
type Video struct {
	ID           string
	CreatorID    string
	StarringID   string
	Latitude     *float64
	Longitude    *float64
	PlaceName    string
	Address      string
	Purpose      string
	PlaybackKey  string
	ThumbnailKey string
	PreviewKey   string
	PostedAt     *time.Time
	CreatedAt    time.Time
}

// Ready reports whether the video is eligible for discovery and scoring:
// it must carry both a location and a playable asset reference.
func (v Video) Ready() bool {
	return v.Latitude != nil && v.Longitude != nil && v.PlaybackKey != ""
}

// BuddyRequest represents the invitation workflow between two users. A
// request only exists while pending; accept, decline and block all delete
// the row.
type BuddyRequest struct {
	ID         string
	SenderID   string
	ReceiverID string
	CreatedAt  time.Time
}

// Buddy request resolutions.
const (
	RequestResolutionAccepted = "accepted"
	RequestResolutionDeclined = "declined"
	RequestResolutionBlocked  = "blocked"
)
