package memory

import (
	"context"
	"time"

	"github.com/learnhub/completion-core/internal/domain/notification"
)

// Save implements notification.Log.
func (s *Store) Save(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

// ListByRecipient implements notification.Log, newest first.
func (s *Store) ListByRecipient(_ context.Context, recipientID string, limit int) ([]*notification.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*notification.Notification, 0)
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if n := s.notifications[i]; n.RecipientID == recipientID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

// claim is a lease or a done mark. A zero expires never lapses.
type claim struct {
	done    bool
	expires time.Time
}

func (c claim) live(now time.Time) bool {
	return c.expires.IsZero() || now.Before(c.expires)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Claim implements notification.IdempotencyStore. A lease <= 0 never lapses.
func (s *Store) Claim(_ context.Context, consumer, eventID string, lease time.Duration) (notification.ClaimState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := consumer + ":" + eventID
	now := s.now()
	if c, seen := s.processed[key]; seen && c.live(now) {
		if c.done {
			return notification.ClaimDone, nil
		}
		return notification.ClaimInFlight, nil
	}
	s.processed[key] = claim{expires: expiry(now, lease)}
	return notification.ClaimAcquired, nil
}

// Complete implements notification.IdempotencyStore. A ttl <= 0 keeps the
// mark until Forget.
func (s *Store) Complete(_ context.Context, consumer, eventID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[consumer+":"+eventID] = claim{done: true, expires: expiry(s.now(), ttl)}
	return nil
}

// Forget implements notification.IdempotencyStore.
func (s *Store) Forget(_ context.Context, consumer, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processed, consumer+":"+eventID)
	return nil
}

// PurgeExpired drops leases and marks that have lapsed.
func (s *Store) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for key, c := range s.processed {
		if !c.live(now) {
			delete(s.processed, key)
			n++
		}
	}
	return n, nil
}
