package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/notification"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFICATION CONSUMERS
// Turn enrollment, certificate and assessment events into messages.
//
// Delivery is at-least-once, so every consumer first takes a short lease on
// (consumer, event id) in the idempotency store. Only a delivered message
// turns the lease into a done mark; any other exit, a panic included,
// releases it and the bus redelivers. A lease left by a crashed worker
// lapses after ClaimLease. Every attempt lands in the notification log as
// SENT or FAILED.
// ═══════════════════════════════════════════════════════════════════════════

// Consumer names double as idempotency namespaces.
const (
	ConsumerEnrollmentWelcome = "notify_enrollment_welcome"
	ConsumerCertificateIssued = "notify_certificate_issued"
	ConsumerAssessmentResult  = "notify_assessment_result"
)

// NotificationConfig tunes the consumers.
type NotificationConfig struct {
	// DedupTTL is how long a processed event id is remembered.
	DedupTTL time.Duration

	// ClaimLease is how long one delivery attempt holds an event. Keep it
	// above the longest expected send.
	ClaimLease time.Duration
}

// DefaultNotificationConfig returns default configuration.
func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		DedupTTL:   7 * 24 * time.Hour,
		ClaimLease: 2 * time.Minute,
	}
}

// NotificationHandler holds the three notification consumers.
type NotificationHandler struct {
	users   catalog.UserReader
	courses catalog.CourseReader
	sender  notification.Sender
	log     notification.Log
	dedup   notification.IdempotencyStore
	clock   shared.Clock
	newID   func() string
	logger  *slog.Logger
	config  NotificationConfig
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(
	users catalog.UserReader,
	courses catalog.CourseReader,
	sender notification.Sender,
	log notification.Log,
	dedup notification.IdempotencyStore,
	clock shared.Clock,
	logger *slog.Logger,
	config NotificationConfig,
) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultNotificationConfig()
	if config.DedupTTL <= 0 {
		config.DedupTTL = defaults.DedupTTL
	}
	if config.ClaimLease <= 0 {
		config.ClaimLease = defaults.ClaimLease
	}
	return &NotificationHandler{
		users:   users,
		courses: courses,
		sender:  sender,
		log:     log,
		dedup:   dedup,
		clock:   clock.OrSystem(),
		newID:   shared.NewID,
		logger:  logger.With("handler", "notifications"),
		config:  config,
	}
}

// Register subscribes all three consumers.
func (h *NotificationHandler) Register(sub shared.EventSubscriber) error {
	subs := []struct {
		eventType shared.EventType
		name      string
		handler   shared.EventHandler
	}{
		{shared.EventEnrollmentCreated, ConsumerEnrollmentWelcome, h.OnEnrollmentCreated},
		{shared.EventCertificateIssued, ConsumerCertificateIssued, h.OnCertificateIssued},
		{shared.EventAssessmentSubmitted, ConsumerAssessmentResult, h.OnAssessmentSubmitted},
	}
	for _, s := range subs {
		if err := sub.Subscribe(s.eventType, s.name, s.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", s.name, err)
		}
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Consumers
// ──────────────────────────────────────────────────────────────────────────────

// OnEnrollmentCreated sends the registration confirmation.
func (h *NotificationHandler) OnEnrollmentCreated(ctx context.Context, event shared.Event) error {
	e, ok := eventAs[shared.EnrollmentCreatedEvent](event)
	if !ok {
		return unexpected(ConsumerEnrollmentWelcome, event)
	}

	return h.deliver(ctx, ConsumerEnrollmentWelcome, e.EventID(), func(ctx context.Context) (*notification.Notification, error) {
		name, email := h.recipient(ctx, e.StudentID, e.StudentEmail)
		title := h.courseTitle(ctx, e.CourseID, e.CourseTitle)

		subject := "Course Registration Successful"
		body := fmt.Sprintf("Thank you %s, you have successfully registered for %s.", name, title)
		return notification.NewNotification(h.newID(), notification.TypeEnrollmentWelcome,
			e.EventID(), e.StudentID, email, subject, body, h.clock()), nil
	})
}

// OnCertificateIssued tells the student their certificate is ready.
func (h *NotificationHandler) OnCertificateIssued(ctx context.Context, event shared.Event) error {
	e, ok := eventAs[shared.CertificateIssuedEvent](event)
	if !ok {
		return unexpected(ConsumerCertificateIssued, event)
	}

	return h.deliver(ctx, ConsumerCertificateIssued, e.EventID(), func(ctx context.Context) (*notification.Notification, error) {
		name, email := h.recipient(ctx, e.StudentID, e.StudentEmail)
		title := h.courseTitle(ctx, e.CourseID, e.CourseTitle)

		subject := fmt.Sprintf("Your certificate for %s", title)
		body := fmt.Sprintf("Congratulations %s, you completed %s on %s. Certificate ID: %s.",
			name, title, e.IssuedAt.UTC().Format("2006-01-02"), e.CertificateID)
		return notification.NewNotification(h.newID(), notification.TypeCertificateIssued,
			e.EventID(), e.StudentID, email, subject, body, h.clock()), nil
	})
}

// OnAssessmentSubmitted reports the score.
func (h *NotificationHandler) OnAssessmentSubmitted(ctx context.Context, event shared.Event) error {
	e, ok := eventAs[shared.AssessmentSubmittedEvent](event)
	if !ok {
		return unexpected(ConsumerAssessmentResult, event)
	}

	return h.deliver(ctx, ConsumerAssessmentResult, e.EventID(), func(ctx context.Context) (*notification.Notification, error) {
		name, email := h.recipient(ctx, e.StudentID, "")
		title := h.courseTitle(ctx, e.CourseID, "")

		outcome := "did not pass"
		if e.Passed {
			outcome = "passed"
		}
		subject := fmt.Sprintf("Final assessment result for %s", title)
		body := fmt.Sprintf("Hi %s, you scored %d/%d (%.2f%%) and %s the final assessment.",
			name, e.Score, e.TotalMarks, e.Percentage, outcome)
		return notification.NewNotification(h.newID(), notification.TypeAssessmentResult,
			e.EventID(), e.StudentID, email, subject, body, h.clock()), nil
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Delivery
// ──────────────────────────────────────────────────────────────────────────────

type buildFunc func(ctx context.Context) (*notification.Notification, error)

func (h *NotificationHandler) deliver(ctx context.Context, consumer, eventID string, build buildFunc) error {
	state, err := h.dedup.Claim(ctx, consumer, eventID, h.config.ClaimLease)
	if err != nil {
		metrics.RecordEventConsumed(consumer, metrics.ConsumeFailed)
		return fmt.Errorf("%s: claim event %s: %w", consumer, eventID, err)
	}
	switch state {
	case notification.ClaimDone:
		metrics.RecordEventConsumed(consumer, metrics.ConsumeDuplicate)
		h.logger.Debug("duplicate event skipped", "consumer", consumer, "event_id", eventID)
		return nil
	case notification.ClaimInFlight:
		metrics.RecordEventConsumed(consumer, metrics.ConsumeInFlight)
		return fmt.Errorf("%s: event %s: %w", consumer, eventID, notification.ErrClaimInFlight)
	}

	delivered := false
	defer func() {
		if !delivered {
			h.release(ctx, consumer, eventID)
			metrics.RecordEventConsumed(consumer, metrics.ConsumeFailed)
		}
	}()

	n, err := build(ctx)
	if err != nil {
		return fmt.Errorf("%s: build notification: %w", consumer, err)
	}

	sendErr := h.sender.Send(ctx, n)
	if sendErr != nil {
		n.MarkFailed(sendErr)
	} else {
		n.MarkSent(h.clock())
	}

	if err := h.log.Save(ctx, n); err != nil {
		h.logger.Error("failed to record notification",
			"consumer", consumer,
			"notification_id", n.ID,
			"error", err,
		)
	}
	metrics.RecordNotification(string(n.Type), string(n.Status))

	if sendErr != nil {
		h.logger.Warn("notification delivery failed",
			"consumer", consumer,
			"event_id", eventID,
			"notification_id", n.ID,
			"recipient_id", n.RecipientID,
			"error", sendErr,
		)
		// no address: redelivery would fail the same way
		if !errors.Is(sendErr, notification.ErrNoRecipient) {
			return fmt.Errorf("%s: send: %w", consumer, sendErr)
		}
	}

	delivered = true
	h.complete(ctx, consumer, eventID)
	metrics.RecordEventConsumed(consumer, metrics.ConsumeProcessed)
	return nil
}

// complete keeps the delivered event deduplicated for DedupTTL. On failure
// the lease lapses and a redelivery may send the message twice.
func (h *NotificationHandler) complete(ctx context.Context, consumer, eventID string) {
	if err := h.dedup.Complete(context.WithoutCancel(ctx), consumer, eventID, h.config.DedupTTL); err != nil {
		h.logger.Error("failed to record delivered event",
			"consumer", consumer,
			"event_id", eventID,
			"error", err,
		)
	}
}

func (h *NotificationHandler) release(ctx context.Context, consumer, eventID string) {
	if err := h.dedup.Forget(context.WithoutCancel(ctx), consumer, eventID); err != nil {
		h.logger.Error("failed to release event claim",
			"consumer", consumer,
			"event_id", eventID,
			"error", err,
		)
	}
}

// recipient resolves the display name and address. The address carried by
// the event wins; the catalog fills whatever is missing.
func (h *NotificationHandler) recipient(ctx context.Context, studentID, email string) (name, addr string) {
	name, addr = "student", email
	user, err := h.users.FindUser(ctx, studentID)
	if err != nil {
		h.logger.Warn("recipient lookup failed", "student_id", studentID, "error", err)
		return name, addr
	}
	if user.DisplayName != "" {
		name = user.DisplayName
	}
	if shared.IsBlank(addr) {
		addr = user.Email
	}
	return name, addr
}

func (h *NotificationHandler) courseTitle(ctx context.Context, courseID, title string) string {
	if !shared.IsBlank(title) {
		return title
	}
	course, err := h.courses.FindCourse(ctx, courseID)
	if err != nil {
		h.logger.Warn("course lookup failed", "course_id", courseID, "error", err)
		return "your course"
	}
	return course.Title
}

// eventAs accepts both value and pointer forms of an event.
func eventAs[T shared.Event](event shared.Event) (T, bool) {
	if e, ok := any(event).(T); ok {
		return e, true
	}
	if e, ok := any(event).(*T); ok && e != nil {
		return *e, true
	}
	var zero T
	return zero, false
}

func unexpected(consumer string, event shared.Event) error {
	return fmt.Errorf("%s: unexpected event type %s", consumer, event.EventType())
}
