package progress

import (
	"context"
	"time"
)

// Repository persists lesson progress.
type Repository interface {
	// MarkComplete upserts the (enrollment, lesson) pair as complete.
	// An already complete row is returned unchanged with changed=false.
	MarkComplete(ctx context.Context, enrollmentID, lessonID string, at time.Time) (p *LessonProgress, changed bool, err error)

	// Get returns ErrNotFound when the pair has no record.
	Get(ctx context.Context, enrollmentID, lessonID string) (*LessonProgress, error)

	// ListByEnrollment returns all records of an enrollment.
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*LessonProgress, error)

	// CountCompleted counts completed lessons of the enrollment that are
	// currently part of courseID.
	CountCompleted(ctx context.Context, enrollmentID, courseID string) (int, error)

	// CountCompletedByStudent counts distinct lessons of courseID completed
	// by the student across their enrollments in that course.
	CountCompletedByStudent(ctx context.Context, studentID, courseID string) (int, error)
}

// Locker serializes work on a single enrollment across goroutines and,
// for shared storage, across processes.
type Locker interface {
	WithEnrollmentLock(ctx context.Context, enrollmentID string, fn func(ctx context.Context) error) error
}
