package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/spotreel/backend/internal/config"
	"github.com/spotreel/backend/internal/logging"
	"github.com/spotreel/backend/internal/models"
)

// ModerationNotifier delivers out-of-band notifications when a video is
// reported. Delivery failures must not fail the report mutation, so
// callers log and continue.
type ModerationNotifier interface {
	VideoReported(ctx context.Context, video models.Video, reporterID string) error
}

// EmailNotifier sends moderation notifications over SMTP.
type EmailNotifier struct {
	addr string
	from string
	to   string
}

// NewEmailNotifier constructs an SMTP-backed notifier. When no SMTP address
// is configured it returns a notifier that only logs, which keeps local
// development working without a mail relay.
func NewEmailNotifier(cfg config.ModerationConfig) ModerationNotifier {
	if strings.TrimSpace(cfg.SMTPAddr) == "" {
		return logNotifier{}
	}
	return &EmailNotifier{addr: cfg.SMTPAddr, from: cfg.FromAddress, to: cfg.ToAddress}
}

// VideoReported emails the moderation inbox about the report.
func (n *EmailNotifier) VideoReported(ctx context.Context, video models.Video, reporterID string) error {
	subject := fmt.Sprintf("Video reported: %s", video.ID)

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", n.from)
	fmt.Fprintf(&body, "To: %s\r\n", n.to)
	fmt.Fprintf(&body, "Subject: %s\r\n\r\n", subject)
	fmt.Fprintf(&body, "Video %s (creator %s) was reported by user %s.\r\n", video.ID, video.CreatorID, reporterID)
	if video.Latitude != nil && video.Longitude != nil {
		fmt.Fprintf(&body, "Location: %f, %f\r\n", *video.Latitude, *video.Longitude)
	}
	if video.PlaceName != "" {
		fmt.Fprintf(&body, "Place: %s\r\n", video.PlaceName)
	}

	if err := smtp.SendMail(n.addr, nil, n.from, []string{n.to}, []byte(body.String())); err != nil {
		return fmt.Errorf("send moderation email: %w", err)
	}
	return nil
}

type logNotifier struct{}

func (logNotifier) VideoReported(ctx context.Context, video models.Video, reporterID string) error {
	logging.FromContext(ctx).Info("video reported",
		"videoId", video.ID, "creatorId", video.CreatorID, "reporterId", reporterID)
	return nil
}
