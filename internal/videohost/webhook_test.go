package videohost

import (
	"errors"
	"testing"
	"time"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/config"
)

func testVerifier() (*Verifier, time.Time) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(config.WebhookConfig{Secret: "shhh", MaxClockSkew: 300 * time.Second})
	v.WithNowFunc(func() time.Time { return now })
	return v, now
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	v, now := testVerifier()
	body := []byte(`{"video_id":"v1"}`)

	if err := v.Verify(v.Sign(now, body), body); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	v, now := testVerifier()
	header := v.Sign(now, []byte(`{"video_id":"v1"}`))

	err := v.Verify(header, []byte(`{"video_id":"v2"}`))
	if !errors.Is(err, apperr.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v, now := testVerifier()
	other := NewVerifier(config.WebhookConfig{Secret: "different", MaxClockSkew: 300 * time.Second})
	body := []byte(`{}`)

	err := v.Verify(other.Sign(now, body), body)
	if !errors.Is(err, apperr.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	v, now := testVerifier()
	body := []byte(`{}`)
	stale := now.Add(-301 * time.Second)

	err := v.Verify(v.Sign(stale, body), body)
	if !errors.Is(err, apperr.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for stale timestamp, got %v", err)
	}

	// Exactly at the window edge is still accepted.
	edge := now.Add(-300 * time.Second)
	if err := v.Verify(v.Sign(edge, body), body); err != nil {
		t.Fatalf("Verify at window edge: %v", err)
	}
}

func TestVerifyRejectsMalformedHeader(t *testing.T) {
	v, _ := testVerifier()

	for _, header := range []string{"", "t=123", "v1=abcd", "t=notanumber,v1=abcd", "t=123,v1=zz"} {
		if err := v.Verify(header, []byte(`{}`)); !errors.Is(err, apperr.ErrBadSignature) {
			t.Fatalf("header %q: expected ErrBadSignature, got %v", header, err)
		}
	}
}

func TestParseReadyPayload(t *testing.T) {
	body := []byte(`{
		"video_id": "v1",
		"creator_id": "ext-alice",
		"latitude": 51.5129,
		"longitude": -0.0334,
		"playback_key": "assets/v1/playback.m3u8",
		"thumbnail_key": "assets/v1/thumb.jpg",
		"ready_at": 1709294400
	}`)

	ev, err := ParseReadyPayload(body)
	if err != nil {
		t.Fatalf("ParseReadyPayload: %v", err)
	}

	if ev.VideoID != "v1" || ev.CreatorID != "ext-alice" {
		t.Fatalf("unexpected identifiers: %+v", ev)
	}
	if ev.Latitude != 51.5129 || ev.Longitude != -0.0334 {
		t.Fatalf("unexpected location: %+v", ev)
	}
	if !ev.ReadyAt.Equal(time.Unix(1709294400, 0).UTC()) {
		t.Fatalf("unexpected ready time: %v", ev.ReadyAt)
	}
}

func TestParseReadyPayloadValidation(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing video id", `{"creator_id":"c","latitude":1,"longitude":2,"playback_key":"k"}`, "video_id"},
		{"missing creator", `{"video_id":"v","latitude":1,"longitude":2,"playback_key":"k"}`, "creator_id"},
		{"missing latitude", `{"video_id":"v","creator_id":"c","longitude":2,"playback_key":"k"}`, "latitude"},
		{"missing playback", `{"video_id":"v","creator_id":"c","latitude":1,"longitude":2}`, "playback_key"},
		{"malformed json", `{`, "body"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseReadyPayload([]byte(tc.body))
			ve, ok := apperr.AsValidation(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ve.Field != tc.field {
				t.Fatalf("field = %q, want %q", ve.Field, tc.field)
			}
		})
	}
}
