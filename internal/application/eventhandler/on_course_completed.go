// Package eventhandler contains domain event consumers.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COURSE COMPLETED HANDLER
// Second issuance trigger. The tracker already calls the issuer inline; this
// consumer covers the case where that call failed or the process died in
// between. The issuer is idempotent, so redelivery and the inline call
// converge on the same certificate.
// ═══════════════════════════════════════════════════════════════════════════

// ConsumerCourseCompleted names the subscription.
const ConsumerCourseCompleted = "certificate_on_course_completed"

// CertificateIssuer is the idempotent issuance entry point.
type CertificateIssuer interface {
	IssueIfComplete(ctx context.Context, enrollmentID string) (*certificate.Certificate, error)
}

// OnCourseCompletedHandler issues the certificate for a completed enrollment.
type OnCourseCompletedHandler struct {
	issuer CertificateIssuer
	logger *slog.Logger
}

// NewOnCourseCompletedHandler creates a new OnCourseCompletedHandler.
func NewOnCourseCompletedHandler(issuer CertificateIssuer, logger *slog.Logger) *OnCourseCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnCourseCompletedHandler{
		issuer: issuer,
		logger: logger.With("handler", "on_course_completed"),
	}
}

// Register subscribes the handler.
func (h *OnCourseCompletedHandler) Register(sub shared.EventSubscriber) error {
	return sub.Subscribe(shared.EventCourseCompleted, ConsumerCourseCompleted, h.Handle)
}

// Handle processes a CourseCompletedEvent. Errors that redelivery could fix
// are returned; permanent ones are logged and acknowledged.
func (h *OnCourseCompletedHandler) Handle(ctx context.Context, event shared.Event) error {
	e, ok := eventAs[shared.CourseCompletedEvent](event)
	if !ok {
		return unexpected(ConsumerCourseCompleted, event)
	}

	cert, err := h.issuer.IssueIfComplete(ctx, e.EnrollmentID)
	switch {
	case err == nil:
		metrics.RecordEventConsumed(ConsumerCourseCompleted, metrics.ConsumeProcessed)
		h.logger.Debug("certificate ensured",
			"event_id", e.EventID(),
			"enrollment_id", e.EnrollmentID,
			"certificate_id", cert.ID,
		)
		return nil

	case shared.IsPreconditionNotMet(err), shared.IsNotFound(err):
		// course grew or enrollment vanished since the event; nothing to retry
		metrics.RecordEventConsumed(ConsumerCourseCompleted, metrics.ConsumeProcessed)
		h.logger.Warn("certificate not issued",
			"event_id", e.EventID(),
			"enrollment_id", e.EnrollmentID,
			"error", err,
		)
		return nil

	default:
		metrics.RecordEventConsumed(ConsumerCourseCompleted, metrics.ConsumeFailed)
		return fmt.Errorf("%s: issue certificate for %s: %w", ConsumerCourseCompleted, e.EnrollmentID, err)
	}
}
