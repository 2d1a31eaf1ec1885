package postgres

import (
	"context"
	"fmt"

	"github.com/learnhub/completion-core/internal/domain/notification"
)

// NotificationRepository implements notification.Log.
type NotificationRepository struct {
	conn *Connection
}

var _ notification.Log = (*NotificationRepository)(nil)

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

// Save appends a delivery attempt.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	query := `
		INSERT INTO notification_log
			(id, type, event_id, recipient_id, recipient_email, subject, body, status, last_error, created_at, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.conn.Exec(ctx, query,
		n.ID, string(n.Type), n.EventID, n.RecipientID, n.RecipientEmail,
		n.Subject, n.Body, string(n.Status), n.LastError, n.CreatedAt, n.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// ListByRecipient returns the latest attempts for a recipient.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.conn.Query(ctx, `
		SELECT id, type, event_id, recipient_id, recipient_email, subject, body, status, last_error, created_at, sent_at
		FROM notification_log
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0)
	for rows.Next() {
		var n notification.Notification
		var typ, status string
		if err := rows.Scan(&n.ID, &typ, &n.EventID, &n.RecipientID, &n.RecipientEmail,
			&n.Subject, &n.Body, &status, &n.LastError, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Type = notification.Type(typ)
		n.Status = notification.Status(status)
		out = append(out, &n)
	}
	return out, rows.Err()
}
