// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/progress"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// ISSUE CERTIFICATE COMMAND
// Issues the single certificate an enrollment is entitled to once every
// lesson of its course is complete. Safe to call any number of times from any
// number of processes: the storage unique key picks one winner and every
// caller gets the same certificate back.
// ══════════════════════════════════════════════════════════════════════════════

// IssueCertificateHandler issues certificates.
type IssueCertificateHandler struct {
	catalog      catalog.Reader
	checker      *progress.Checker
	certificates certificate.Repository
	publisher    shared.EventPublisher
	clock        shared.Clock
	newID        func() string
	logger       *slog.Logger
}

// NewIssueCertificateHandler creates a new IssueCertificateHandler.
func NewIssueCertificateHandler(
	reader catalog.Reader,
	checker *progress.Checker,
	certificates certificate.Repository,
	publisher shared.EventPublisher,
	clock shared.Clock,
	logger *slog.Logger,
) *IssueCertificateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssueCertificateHandler{
		catalog:      reader,
		checker:      checker,
		certificates: certificates,
		publisher:    publisher,
		clock:        clock.OrSystem(),
		newID:        shared.NewID,
		logger:       logger.With("handler", "issue_certificate"),
	}
}

// IssueIfComplete returns the enrollment's certificate, creating it when the
// course is fully complete.
//
// Errors: NotFound for an unknown enrollment, PreconditionNotMet when lessons
// remain. A storage Conflict is resolved by returning the stored winner.
func (h *IssueCertificateHandler) IssueIfComplete(ctx context.Context, enrollmentID string) (*certificate.Certificate, error) {
	enrollment, snapshot, err := h.checker.Completion(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !snapshot.IsComplete() {
		return nil, shared.WrapError("certificate", "IssueIfComplete", shared.ErrPreconditionNotMet,
			fmt.Sprintf("not all lessons completed (%s)", snapshot), shared.ErrCourseNotCompleted)
	}

	existing, err := h.certificates.FindByEnrollment(ctx, enrollment.ID)
	if err == nil {
		metrics.RecordCertificate(metrics.OutcomeExisting)
		return existing, nil
	}
	if !shared.IsNotFound(err) {
		return nil, fmt.Errorf("issue_certificate: find existing: %w", err)
	}

	cert := certificate.New(h.newID(), enrollment.ID, enrollment.StudentID, enrollment.CourseID, h.clock())
	if err := h.certificates.Create(ctx, cert); err != nil {
		if !shared.IsConflict(err) {
			return nil, fmt.Errorf("issue_certificate: create: %w", err)
		}

		// another caller won the insert; hand back theirs
		winner, findErr := h.certificates.FindByEnrollment(ctx, enrollment.ID)
		if findErr != nil {
			return nil, fmt.Errorf("issue_certificate: read after conflict: %w", errors.Join(err, findErr))
		}
		metrics.RecordCertificate(metrics.OutcomeRaced)
		h.logger.Debug("certificate already issued concurrently",
			"enrollment_id", enrollment.ID,
			"certificate_id", winner.ID,
		)
		return winner, nil
	}

	metrics.RecordCertificate(metrics.OutcomeIssued)
	h.logger.Info("certificate issued",
		"certificate_id", cert.ID,
		"enrollment_id", cert.EnrollmentID,
		"student_id", cert.StudentID,
		"course_id", cert.CourseID,
	)

	h.publishIssued(ctx, cert)
	return cert, nil
}

// publishIssued emits CertificateIssuedEvent. Failures are logged only; the
// certificate stays.
func (h *IssueCertificateHandler) publishIssued(ctx context.Context, cert *certificate.Certificate) {
	if h.publisher == nil {
		return
	}

	var email, title string
	if user, err := h.catalog.FindUser(ctx, cert.StudentID); err == nil {
		email = user.Email
	} else {
		h.logger.Warn("certificate event without student email", "student_id", cert.StudentID, "error", err)
	}
	if course, err := h.catalog.FindCourse(ctx, cert.CourseID); err == nil {
		title = course.Title
	} else {
		h.logger.Warn("certificate event without course title", "course_id", cert.CourseID, "error", err)
	}

	event := shared.NewCertificateIssuedEvent(cert.ID, cert.EnrollmentID, cert.StudentID, email, cert.CourseID, title, cert.CreatedAt)
	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Error("failed to publish certificate issued event",
			"certificate_id", cert.ID,
			"event_id", event.EventID(),
			"error", err,
		)
	}
}
