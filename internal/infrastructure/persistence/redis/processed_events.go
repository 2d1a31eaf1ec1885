package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/learnhub/completion-core/internal/domain/notification"
)

// Claim values stored under ProcessedKey.
const (
	claimLeased = "leased"
	claimDone   = "done"
)

// ProcessedEvents remembers which events a consumer has already handled.
// Leases and done marks are plain keys that expire by TTL.
type ProcessedEvents struct {
	store Store
}

var _ notification.IdempotencyStore = (*ProcessedEvents)(nil)

// NewProcessedEvents creates a new ProcessedEvents.
func NewProcessedEvents(store Store) *ProcessedEvents {
	return &ProcessedEvents{store: store}
}

// Claim takes the lease with SETNX. A lost race reports the holder's state.
func (p *ProcessedEvents) Claim(ctx context.Context, consumer, eventID string, lease time.Duration) (notification.ClaimState, error) {
	if lease <= 0 {
		lease = TTLClaimLease
	}
	key := ProcessedKey(consumer, eventID)

	ok, err := p.store.SetNX(ctx, key, claimLeased, lease)
	if err != nil {
		return notification.ClaimInFlight, fmt.Errorf("claim %s: %w", key, err)
	}
	if ok {
		return notification.ClaimAcquired, nil
	}

	var state string
	if err := p.store.Get(ctx, key, &state); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			// lapsed between the two calls; the next delivery takes it
			return notification.ClaimInFlight, nil
		}
		return notification.ClaimInFlight, fmt.Errorf("read claim %s: %w", key, err)
	}
	if state == claimDone {
		return notification.ClaimDone, nil
	}
	return notification.ClaimInFlight, nil
}

// Complete overwrites the lease with a done mark.
func (p *ProcessedEvents) Complete(ctx context.Context, consumer, eventID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = TTLProcessedEvent
	}
	return p.store.Set(ctx, ProcessedKey(consumer, eventID), claimDone, ttl)
}

// Forget clears the claim so a failed delivery can be retried.
func (p *ProcessedEvents) Forget(ctx context.Context, consumer, eventID string) error {
	return p.store.Delete(ctx, ProcessedKey(consumer, eventID))
}
