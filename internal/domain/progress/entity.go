// Package progress tracks lesson completion per enrollment and derives
// whether an enrollment is fully complete.
package progress

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// LessonProgress is the completion record of one lesson within one enrollment.
// There is at most one record per (EnrollmentID, LessonID).
type LessonProgress struct {
	ID           string
	EnrollmentID string
	LessonID     string
	IsComplete   bool

	// CompletedAt is set by the first completion and never moves afterwards.
	CompletedAt *time.Time
}

// NewLessonProgress creates an incomplete record for the pair.
func NewLessonProgress(id, enrollmentID, lessonID string) *LessonProgress {
	return &LessonProgress{
		ID:           id,
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
	}
}

// MarkComplete completes the lesson. It reports whether anything changed;
// re-marking a complete lesson keeps the original timestamp.
func (p *LessonProgress) MarkComplete(at time.Time) bool {
	if p.IsComplete {
		return false
	}
	at = at.UTC()
	p.IsComplete = true
	p.CompletedAt = &at
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION
// ══════════════════════════════════════════════════════════════════════════════

// Completion is a point-in-time snapshot of an enrollment's lesson counts.
type Completion struct {
	TotalLessons     int
	CompletedLessons int
}

// IsComplete is true iff every lesson is complete and the course has lessons.
func (c Completion) IsComplete() bool {
	return c.TotalLessons > 0 && c.CompletedLessons >= c.TotalLessons
}

// Remaining returns how many lessons are still open.
func (c Completion) Remaining() int {
	if r := c.TotalLessons - c.CompletedLessons; r > 0 {
		return r
	}
	return 0
}

// String renders "completed/total".
func (c Completion) String() string {
	return fmt.Sprintf("%d/%d", c.CompletedLessons, c.TotalLessons)
}

// Transition compares two snapshots taken around a mutation.
type Transition struct {
	Before Completion
	After  Completion
}

// BecameComplete is true only for a false to true change.
func (t Transition) BecameComplete() bool {
	return !t.Before.IsComplete() && t.After.IsComplete()
}
