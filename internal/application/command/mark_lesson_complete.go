package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/progress"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK LESSON COMPLETE COMMAND
// Records that a student finished a lesson. The completion snapshot is taken
// before and after the write under a per-enrollment lock, so exactly one call
// observes the course flipping to complete. That call announces the
// completion and triggers certificate issuance.
// ══════════════════════════════════════════════════════════════════════════════

// MarkLessonCompleteCommand identifies the lesson to mark.
type MarkLessonCompleteCommand struct {
	EnrollmentID string
	LessonID     string
}

// MarkLessonCompleteResult describes what the call changed.
type MarkLessonCompleteResult struct {
	Progress *progress.LessonProgress

	// Changed is false when the lesson was already complete.
	Changed bool

	Before progress.Completion
	After  progress.Completion

	// CourseCompleted is true only on the call that completed the course.
	CourseCompleted bool

	// Certificate is set when this call triggered issuance successfully.
	Certificate *certificate.Certificate
}

// CertificateIssuer is the issuance entry point the tracker triggers.
type CertificateIssuer interface {
	IssueIfComplete(ctx context.Context, enrollmentID string) (*certificate.Certificate, error)
}

// MarkLessonCompleteHandler handles MarkLessonCompleteCommand.
type MarkLessonCompleteHandler struct {
	enrollments catalog.EnrollmentReader
	courses     catalog.CourseReader
	progress    progress.Repository
	locker      progress.Locker
	checker     *progress.Checker
	issuer      CertificateIssuer
	publisher   shared.EventPublisher
	clock       shared.Clock
	logger      *slog.Logger
}

// NewMarkLessonCompleteHandler creates a new MarkLessonCompleteHandler.
func NewMarkLessonCompleteHandler(
	enrollments catalog.EnrollmentReader,
	courses catalog.CourseReader,
	repo progress.Repository,
	locker progress.Locker,
	checker *progress.Checker,
	issuer CertificateIssuer,
	publisher shared.EventPublisher,
	clock shared.Clock,
	logger *slog.Logger,
) *MarkLessonCompleteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarkLessonCompleteHandler{
		enrollments: enrollments,
		courses:     courses,
		progress:    repo,
		locker:      locker,
		checker:     checker,
		issuer:      issuer,
		publisher:   publisher,
		clock:       clock.OrSystem(),
		logger:      logger.With("handler", "mark_lesson_complete"),
	}
}

// Handle marks the lesson complete.
//
// Errors: NotFound for an unknown enrollment or lesson, or a lesson outside
// the enrollment's course.
func (h *MarkLessonCompleteHandler) Handle(ctx context.Context, cmd MarkLessonCompleteCommand) (*MarkLessonCompleteResult, error) {
	enrollment, err := h.enrollments.FindEnrollment(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, err
	}

	lesson, err := h.courses.FindLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, err
	}
	if lesson.CourseID != enrollment.CourseID {
		return nil, shared.ErrLessonNotInCourse
	}

	result := &MarkLessonCompleteResult{}
	err = h.locker.WithEnrollmentLock(ctx, enrollment.ID, func(ctx context.Context) error {
		before, err := h.checker.CompletionOf(ctx, enrollment)
		if err != nil {
			return err
		}

		p, changed, err := h.progress.MarkComplete(ctx, enrollment.ID, lesson.ID, h.clock())
		if err != nil {
			return fmt.Errorf("mark complete: %w", err)
		}

		after := before
		if changed {
			if after, err = h.checker.CompletionOf(ctx, enrollment); err != nil {
				return err
			}
		}

		result.Progress = p
		result.Changed = changed
		result.Before = before
		result.After = after
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark_lesson_complete: %w", err)
	}

	metrics.RecordLessonCompletion(result.Changed)
	h.logger.Debug("lesson marked complete",
		"enrollment_id", enrollment.ID,
		"lesson_id", lesson.ID,
		"changed", result.Changed,
		"completion", result.After.String(),
	)

	transition := progress.Transition{Before: result.Before, After: result.After}
	if !transition.BecameComplete() {
		return result, nil
	}

	result.CourseCompleted = true
	metrics.RecordCourseCompleted()
	h.logger.Info("course completed",
		"enrollment_id", enrollment.ID,
		"student_id", enrollment.StudentID,
		"course_id", enrollment.CourseID,
	)

	h.publishCompleted(ctx, enrollment, result.After)
	result.Certificate = h.issue(ctx, enrollment.ID)

	return result, nil
}

func (h *MarkLessonCompleteHandler) publishCompleted(ctx context.Context, enrollment *catalog.Enrollment, snapshot progress.Completion) {
	if h.publisher == nil {
		return
	}
	event := shared.NewCourseCompletedEvent(enrollment.ID, enrollment.StudentID, enrollment.CourseID, snapshot.TotalLessons, h.clock())
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Error("failed to publish course completed event",
			"enrollment_id", enrollment.ID,
			"event_id", event.EventID(),
			"error", err,
		)
	}
}

// issue triggers issuance. Its failures never fail the mark: a missing
// certificate is recovered by the course.completed consumer or a later call.
func (h *MarkLessonCompleteHandler) issue(ctx context.Context, enrollmentID string) *certificate.Certificate {
	if h.issuer == nil {
		return nil
	}

	cert, err := h.issuer.IssueIfComplete(ctx, enrollmentID)
	switch {
	case err == nil:
		return cert
	case shared.IsPreconditionNotMet(err):
		// a lesson was removed or re-counted between the check and issuance
		h.logger.Warn("certificate not issued: course no longer complete",
			"enrollment_id", enrollmentID,
			"error", err,
		)
	default:
		h.logger.Error("certificate issuance failed",
			"enrollment_id", enrollmentID,
			"error", err,
		)
	}
	return nil
}
