package shared

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// Identifiers
// ═══════════════════════════════════════════════════════════════════════════

// NewID returns a new random identifier for entities and events.
func NewID() string {
	return uuid.NewString()
}

// IsBlank reports whether an identifier is empty after trimming.
func IsBlank(id string) bool {
	return strings.TrimSpace(id) == ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Time
// ═══════════════════════════════════════════════════════════════════════════

// Clock returns the current time. Handlers take a Clock so tests can pin it.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// OrSystem returns c, or SystemClock when c is nil.
func (c Clock) OrSystem() Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
