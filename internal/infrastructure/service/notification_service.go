package service

import (
	"context"
	"log/slog"

	"github.com/learnhub/completion-core/internal/domain/notification"
)

// LogSender implements notification.Sender by writing the rendered message
// to the structured log. It stands in for the mail gateway.
type LogSender struct {
	logger *slog.Logger
}

var _ notification.Sender = (*LogSender)(nil)

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{
		logger: logger.With("component", "notification_sender"),
	}
}

func (s *LogSender) Send(ctx context.Context, n *notification.Notification) error {
	if !n.HasRecipient() {
		return notification.ErrNoRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "notification sent",
		"id", n.ID,
		"type", n.Type,
		"event_id", n.EventID,
		"recipient_id", n.RecipientID,
		"recipient", n.RecipientEmail,
		"subject", n.Subject,
	)
	return nil
}
