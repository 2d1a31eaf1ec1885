package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/completion-core/internal/domain/notification"
)

const (
	defaultClaimLease = 2 * time.Minute
	defaultDoneTTL    = 7 * 24 * time.Hour
)

// ProcessedEventRepository implements notification.IdempotencyStore on the
// processed_events table. It backs consumer dedup when Redis is disabled.
// A row with completed = FALSE is a lease; TRUE is a done mark.
type ProcessedEventRepository struct {
	conn *Connection
	now  func() time.Time
}

var _ notification.IdempotencyStore = (*ProcessedEventRepository)(nil)

// NewProcessedEventRepository creates a new ProcessedEventRepository.
func NewProcessedEventRepository(conn *Connection) *ProcessedEventRepository {
	return &ProcessedEventRepository{conn: conn, now: time.Now}
}

// Claim takes a lease on (consumer, eventID). A lapsed lease or done mark is
// taken over; otherwise the current holder's state is reported.
func (r *ProcessedEventRepository) Claim(ctx context.Context, consumer, eventID string, lease time.Duration) (notification.ClaimState, error) {
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := r.now().UTC()
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO processed_events (consumer, event_id, processed_at, expires_at, completed)
		VALUES ($1, $2, $3, $4, FALSE)
		ON CONFLICT (consumer, event_id) DO UPDATE
			SET processed_at = EXCLUDED.processed_at,
			    expires_at = EXCLUDED.expires_at,
			    completed = FALSE
			WHERE processed_events.expires_at <= EXCLUDED.processed_at
	`, consumer, eventID, now, now.Add(lease))
	if err != nil {
		return notification.ClaimInFlight, fmt.Errorf("failed to claim event: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return notification.ClaimAcquired, nil
	}

	var completed bool
	err = r.conn.QueryRow(ctx,
		`SELECT completed FROM processed_events WHERE consumer = $1 AND event_id = $2`,
		consumer, eventID,
	).Scan(&completed)
	if err != nil {
		if IsNoRows(err) {
			// forgotten between the two statements; the next delivery takes it
			return notification.ClaimInFlight, nil
		}
		return notification.ClaimInFlight, fmt.Errorf("failed to read event claim: %w", err)
	}
	if completed {
		return notification.ClaimDone, nil
	}
	return notification.ClaimInFlight, nil
}

// Complete records the event as handled for ttl.
func (r *ProcessedEventRepository) Complete(ctx context.Context, consumer, eventID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultDoneTTL
	}
	now := r.now().UTC()
	_, err := r.conn.Exec(ctx, `
		INSERT INTO processed_events (consumer, event_id, processed_at, expires_at, completed)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (consumer, event_id) DO UPDATE
			SET processed_at = EXCLUDED.processed_at,
			    expires_at = EXCLUDED.expires_at,
			    completed = TRUE
	`, consumer, eventID, now, now.Add(ttl))
	if err != nil {
		return fmt.Errorf("failed to complete event claim: %w", err)
	}
	return nil
}

// Forget releases a claim.
func (r *ProcessedEventRepository) Forget(ctx context.Context, consumer, eventID string) error {
	_, err := r.conn.Exec(ctx, `DELETE FROM processed_events WHERE consumer = $1 AND event_id = $2`, consumer, eventID)
	if err != nil {
		return fmt.Errorf("failed to forget processed event: %w", err)
	}
	return nil
}

// PurgeExpired deletes lapsed leases and marks and returns the count.
func (r *ProcessedEventRepository) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.conn.Exec(ctx, `DELETE FROM processed_events WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}
