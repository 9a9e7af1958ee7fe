package videohost

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/config"
	"github.com/spotreel/backend/internal/scoring"
)

// SignatureHeader carries the video host's webhook signature in the form
// "t=<unix seconds>,v1=<hex hmac>".
const SignatureHeader = "X-SpotReel-Signature"

// Verifier validates webhook signatures: an HMAC-SHA256 over
// "timestamp.body" with the shared secret, rejected when the signature
// mismatches or the timestamp falls outside the freshness window.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	nowFunc func() time.Time
}

// NewVerifier constructs a webhook verifier from explicit configuration.
func NewVerifier(cfg config.WebhookConfig) *Verifier {
	return &Verifier{
		secret:  []byte(cfg.Secret),
		maxSkew: cfg.MaxClockSkew,
		nowFunc: time.Now,
	}
}

// WithNowFunc allows tests to override the time source.
func (v *Verifier) WithNowFunc(now func() time.Time) *Verifier {
	v.nowFunc = now
	return v
}

// Verify checks the signature header against the raw request body. Any
// failure yields apperr.ErrBadSignature before the payload is processed,
// so rejected deliveries are always safe to resend.
func (v *Verifier) Verify(header string, body []byte) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("webhook verifier: %w: no secret configured", apperr.ErrBadSignature)
	}

	timestamp, signature, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	sent := time.Unix(timestamp, 0)
	if age := v.nowFunc().Sub(sent); age > v.maxSkew || age < -v.maxSkew {
		return fmt.Errorf("webhook verifier: %w: timestamp outside freshness window", apperr.ErrBadSignature)
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("webhook verifier: %w: malformed signature", apperr.ErrBadSignature)
	}

	if !hmac.Equal(expected, provided) {
		return fmt.Errorf("webhook verifier: %w", apperr.ErrBadSignature)
	}
	return nil
}

func parseSignatureHeader(header string) (int64, string, error) {
	var timestampPart, signaturePart string
	for _, field := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(field), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestampPart = value
		case "v1":
			signaturePart = value
		}
	}

	if timestampPart == "" || signaturePart == "" {
		return 0, "", fmt.Errorf("webhook verifier: %w: missing signature header fields", apperr.ErrBadSignature)
	}

	timestamp, err := strconv.ParseInt(timestampPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("webhook verifier: %w: malformed timestamp", apperr.ErrBadSignature)
	}

	return timestamp, signaturePart, nil
}

// Sign produces a signature header for the given body, used by tests and
// local tooling to emulate the video host.
func (v *Verifier) Sign(timestamp time.Time, body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", timestamp.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

// ReadyPayload is the parsed body of an asset-complete event.
type ReadyPayload struct {
	VideoID      string   `json:"video_id"`
	CreatorID    string   `json:"creator_id"`
	StarringID   string   `json:"starring_id,omitempty"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	PlaybackKey  string   `json:"playback_key"`
	ThumbnailKey string   `json:"thumbnail_key,omitempty"`
	PreviewKey   string   `json:"preview_key,omitempty"`
	ReadyAt      int64    `json:"ready_at"`
}

// ParseReadyPayload decodes and validates a readiness event body.
func ParseReadyPayload(body []byte) (scoring.ReadyEvent, error) {
	var payload ReadyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return scoring.ReadyEvent{}, apperr.Validation("body", "malformed webhook payload")
	}

	switch {
	case payload.VideoID == "":
		return scoring.ReadyEvent{}, apperr.Validation("video_id", "video id is required")
	case payload.CreatorID == "":
		return scoring.ReadyEvent{}, apperr.Validation("creator_id", "creator id is required")
	case payload.Latitude == nil:
		return scoring.ReadyEvent{}, apperr.Validation("latitude", "latitude is required")
	case payload.Longitude == nil:
		return scoring.ReadyEvent{}, apperr.Validation("longitude", "longitude is required")
	case payload.PlaybackKey == "":
		return scoring.ReadyEvent{}, apperr.Validation("playback_key", "playback asset is required")
	}

	readyAt := time.Unix(payload.ReadyAt, 0).UTC()
	if payload.ReadyAt == 0 {
		readyAt = time.Now().UTC()
	}

	return scoring.ReadyEvent{
		VideoID:      payload.VideoID,
		CreatorID:    payload.CreatorID,
		StarringID:   payload.StarringID,
		Latitude:     *payload.Latitude,
		Longitude:    *payload.Longitude,
		PlaybackKey:  payload.PlaybackKey,
		ThumbnailKey: payload.ThumbnailKey,
		PreviewKey:   payload.PreviewKey,
		ReadyAt:      readyAt,
	}, nil
}
