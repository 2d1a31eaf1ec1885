package progress

import (
	"context"
	"fmt"

	"github.com/learnhub/completion-core/internal/domain/catalog"
)

// Checker recomputes completion from lesson counts on every call.
// Nothing downstream trusts a cached flag.
type Checker struct {
	enrollments catalog.EnrollmentReader
	courses     catalog.CourseReader
	repo        Repository
}

// NewChecker creates a Checker.
func NewChecker(enrollments catalog.EnrollmentReader, courses catalog.CourseReader, repo Repository) *Checker {
	return &Checker{
		enrollments: enrollments,
		courses:     courses,
		repo:        repo,
	}
}

// Completion returns the enrollment with its current lesson counts.
func (c *Checker) Completion(ctx context.Context, enrollmentID string) (*catalog.Enrollment, Completion, error) {
	enrollment, err := c.enrollments.FindEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, Completion{}, err
	}

	snapshot, err := c.CompletionOf(ctx, enrollment)
	if err != nil {
		return nil, Completion{}, err
	}
	return enrollment, snapshot, nil
}

// CompletionOf counts lessons for an already resolved enrollment.
func (c *Checker) CompletionOf(ctx context.Context, enrollment *catalog.Enrollment) (Completion, error) {
	total, err := c.courses.LessonCount(ctx, enrollment.CourseID)
	if err != nil {
		return Completion{}, fmt.Errorf("count lessons: %w", err)
	}

	completed, err := c.repo.CountCompleted(ctx, enrollment.ID, enrollment.CourseID)
	if err != nil {
		return Completion{}, fmt.Errorf("count completed lessons: %w", err)
	}

	return Completion{TotalLessons: total, CompletedLessons: completed}, nil
}

// IsFullyComplete reports whether every lesson of the enrollment's course is
// complete. A course without lessons is never complete.
func (c *Checker) IsFullyComplete(ctx context.Context, enrollmentID string) (bool, error) {
	_, snapshot, err := c.Completion(ctx, enrollmentID)
	if err != nil {
		return false, err
	}
	return snapshot.IsComplete(), nil
}
