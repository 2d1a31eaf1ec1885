package notification

import (
	"context"
	"errors"
	"time"
)

// ErrNoRecipient is returned for a notification without an e-mail address.
// Redelivery cannot fix it.
var ErrNoRecipient = errors.New("notification has no recipient email")

// Sender delivers a notification through some channel (e-mail in production).
type Sender interface {
	Send(ctx context.Context, n *Notification) error
}

// Log stores every delivery attempt.
type Log interface {
	Save(ctx context.Context, n *Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*Notification, error)
}

// ErrClaimInFlight is returned while another delivery holds the lease on an
// event. The bus redelivers later; once the lease lapses the event is taken
// over.
var ErrClaimInFlight = errors.New("event is being handled by another delivery")

// ClaimState is the outcome of claiming an event for a consumer.
type ClaimState int

const (
	// ClaimAcquired: the caller holds the lease and must Complete or Forget.
	ClaimAcquired ClaimState = iota
	// ClaimInFlight: another delivery holds an unexpired lease.
	ClaimInFlight
	// ClaimDone: the event was already handled.
	ClaimDone
)

func (s ClaimState) String() string {
	switch s {
	case ClaimAcquired:
		return "acquired"
	case ClaimInFlight:
		return "in_flight"
	case ClaimDone:
		return "done"
	default:
		return "unknown"
	}
}

// IdempotencyStore remembers which events a consumer already handled.
//
// A claim starts as a short lease. A lease left behind by a crashed worker
// lapses, so the event is delivered again instead of being lost.
type IdempotencyStore interface {
	// Claim takes a lease on (consumer, eventID) for lease. An expired lease
	// or an expired done mark is taken over.
	Claim(ctx context.Context, consumer, eventID string, lease time.Duration) (ClaimState, error)

	// Complete turns the claim into a done mark that lives for ttl.
	Complete(ctx context.Context, consumer, eventID string, ttl time.Duration) error

	// Forget removes the claim so a failed delivery can be retried.
	Forget(ctx context.Context, consumer, eventID string) error
}
