package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/notification"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/messaging"
	"github.com/learnhub/completion-core/internal/infrastructure/persistence/memory"
	"github.com/learnhub/completion-core/pkg/logger"
)

var now = time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

func clock() time.Time { return now }

// ──────────────────────────────────────────────────────────────────────────────
// fakes
// ──────────────────────────────────────────────────────────────────────────────

type stubIssuer struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *stubIssuer) IssueIfComplete(_ context.Context, enrollmentID string) (*certificate.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, enrollmentID)
	if s.err != nil {
		return nil, s.err
	}
	return certificate.New("cert-1", enrollmentID, "stu-1", "crs-1", now), nil
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []*notification.Notification
	failures int
	panics   int
}

func (s *fakeSender) Send(_ context.Context, n *notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !n.HasRecipient() {
		return notification.ErrNoRecipient
	}
	if s.panics > 0 {
		s.panics--
		panic("smtp client crashed")
	}
	if s.failures > 0 {
		s.failures--
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newNotificationHandler(t *testing.T) (*NotificationHandler, *memory.Store, *fakeSender) {
	t.Helper()
	store := memory.NewStore()
	store.AddUser(catalog.User{ID: "stu-1", Email: "ada@example.com", DisplayName: "Ada"})
	store.AddUser(catalog.User{ID: "stu-2"})
	store.AddCourse(catalog.Course{ID: "crs-1", Title: "Go Basics"})

	sender := &fakeSender{}
	h := NewNotificationHandler(store, store, sender, store, store, clock, logger.Discard(), DefaultNotificationConfig())
	return h, store, sender
}

// ──────────────────────────────────────────────────────────────────────────────
// course completed
// ──────────────────────────────────────────────────────────────────────────────

func TestOnCourseCompleted_IssuesCertificate(t *testing.T) {
	issuer := &stubIssuer{}
	h := NewOnCourseCompletedHandler(issuer, logger.Discard())

	event := shared.NewCourseCompletedEvent("enr-1", "stu-1", "crs-1", 3, now)
	require.NoError(t, h.Handle(context.Background(), event))
	require.NoError(t, h.Handle(context.Background(), &event))

	assert.Equal(t, []string{"enr-1", "enr-1"}, issuer.calls)
}

func TestOnCourseCompleted_ErrorHandling(t *testing.T) {
	event := shared.NewCourseCompletedEvent("enr-1", "stu-1", "crs-1", 3, now)

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"not complete anymore", shared.ErrCourseNotCompleted, false},
		{"enrollment gone", shared.ErrEnrollmentNotFound, false},
		{"storage down", errors.New("connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOnCourseCompletedHandler(&stubIssuer{err: tt.err}, logger.Discard())
			err := h.Handle(context.Background(), event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOnCourseCompleted_RejectsOtherEvents(t *testing.T) {
	h := NewOnCourseCompletedHandler(&stubIssuer{}, logger.Discard())
	other := shared.NewEnrollmentCreatedEvent("enr-1", "stu-1", "crs-1", "Go", "a@b.c", now)
	assert.Error(t, h.Handle(context.Background(), other))
}

// ──────────────────────────────────────────────────────────────────────────────
// notifications
// ──────────────────────────────────────────────────────────────────────────────

func TestNotifications_EnrollmentWelcome(t *testing.T) {
	ctx := context.Background()
	h, store, sender := newNotificationHandler(t)

	event := shared.NewEnrollmentCreatedEvent("enr-1", "stu-1", "crs-1", "Go Basics", "ada@example.com", now)
	require.NoError(t, h.OnEnrollmentCreated(ctx, event))

	require.Equal(t, 1, sender.count())
	logged, err := store.ListByRecipient(ctx, "stu-1", 0)
	require.NoError(t, err)
	require.Len(t, logged, 1)

	n := logged[0]
	assert.Equal(t, notification.TypeEnrollmentWelcome, n.Type)
	assert.Equal(t, notification.StatusSent, n.Status)
	assert.Equal(t, event.EventID(), n.EventID)
	assert.Equal(t, "Course Registration Successful", n.Subject)
	assert.Equal(t, "Thank you Ada, you have successfully registered for Go Basics.", n.Body)
	require.NotNil(t, n.SentAt)
	assert.Equal(t, now, *n.SentAt)
}

func TestNotifications_DuplicateDeliverySendsOnce(t *testing.T) {
	ctx := context.Background()
	h, store, sender := newNotificationHandler(t)

	event := shared.NewCertificateIssuedEvent("cert-1", "enr-1", "stu-1", "", "crs-1", "", now)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.OnCertificateIssued(ctx, event))
	}

	assert.Equal(t, 1, sender.count())
	logged, err := store.ListByRecipient(ctx, "stu-1", 0)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, "ada@example.com", logged[0].RecipientEmail)
	assert.Equal(t, "Your certificate for Go Basics", logged[0].Subject)
	assert.Contains(t, logged[0].Body, "cert-1")
}

func TestNotifications_FailedSendIsRetried(t *testing.T) {
	ctx := context.Background()
	h, store, sender := newNotificationHandler(t)
	sender.failures = 1

	event := shared.NewAssessmentSubmittedEvent("sub-1", "a-1", "stu-1", "crs-1", 3, 4, 75, true, now)
	require.Error(t, h.OnAssessmentSubmitted(ctx, event))
	require.NoError(t, h.OnAssessmentSubmitted(ctx, event))

	assert.Equal(t, 1, sender.count())
	logged, err := store.ListByRecipient(ctx, "stu-1", 0)
	require.NoError(t, err)
	require.Len(t, logged, 2)
	assert.Equal(t, notification.StatusSent, logged[0].Status)
	assert.Equal(t, notification.StatusFailed, logged[1].Status)
	assert.Equal(t, "smtp unavailable", logged[1].LastError)
	assert.Equal(t, "Hi Ada, you scored 3/4 (75.00%) and passed the final assessment.", logged[0].Body)
}

// handleRecovered runs fn the way the router's recoverer middleware does.
func handleRecovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func TestNotifications_PanickingSendReleasesClaim(t *testing.T) {
	ctx := context.Background()
	h, store, sender := newNotificationHandler(t)
	sender.panics = 1

	event := shared.NewCertificateIssuedEvent("cert-1", "enr-1", "stu-1", "", "crs-1", "Go Basics", now)
	err := handleRecovered(func() error { return h.OnCertificateIssued(ctx, event) })
	require.Error(t, err)
	assert.Zero(t, sender.count())

	require.NoError(t, h.OnCertificateIssued(ctx, event), "redelivery")
	assert.Equal(t, 1, sender.count())

	state, err := store.Claim(ctx, ConsumerCertificateIssued, event.EventID(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, notification.ClaimDone, state)
}

func TestNotifications_InFlightClaimAsksForRedelivery(t *testing.T) {
	ctx := context.Background()
	h, store, sender := newNotificationHandler(t)

	event := shared.NewEnrollmentCreatedEvent("enr-1", "stu-1", "crs-1", "Go Basics", "", now)
	state, err := store.Claim(ctx, ConsumerEnrollmentWelcome, event.EventID(), time.Minute)
	require.NoError(t, err)
	require.Equal(t, notification.ClaimAcquired, state)

	err = h.OnEnrollmentCreated(ctx, event)
	assert.ErrorIs(t, err, notification.ErrClaimInFlight)
	assert.Zero(t, sender.count())

	state, err = store.Claim(ctx, ConsumerEnrollmentWelcome, event.EventID(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, notification.ClaimInFlight, state, "the other delivery keeps its lease")
}

func TestNotifications_AbandonedLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	h, store, sender := newNotificationHandler(t)

	event := shared.NewEnrollmentCreatedEvent("enr-1", "stu-1", "crs-1", "Go Basics", "", now)
	// a worker that died mid-delivery
	_, err := store.Claim(ctx, ConsumerEnrollmentWelcome, event.EventID(), time.Millisecond)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, h.OnEnrollmentCreated(ctx, event))
	assert.Equal(t, 1, sender.count())
}

func TestNotifications_NoRecipientIsRecordedNotRetried(t *testing.T) {
	ctx := context.Background()
	h, store, sender := newNotificationHandler(t)

	event := shared.NewAssessmentSubmittedEvent("sub-1", "a-1", "stu-2", "crs-1", 0, 4, 0, false, now)
	require.NoError(t, h.OnAssessmentSubmitted(ctx, event))
	require.NoError(t, h.OnAssessmentSubmitted(ctx, event))

	assert.Zero(t, sender.count())
	logged, err := store.ListByRecipient(ctx, "stu-2", 0)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, notification.StatusFailed, logged[0].Status)
}

func TestNotifications_RegisterOnBus(t *testing.T) {
	ctx := context.Background()
	h, store, sender := newNotificationHandler(t)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Discard()})
	require.NoError(t, h.Register(bus))

	require.NoError(t, bus.Publish(ctx, shared.NewEnrollmentCreatedEvent("enr-1", "stu-1", "crs-1", "Go Basics", "", now)))
	require.NoError(t, bus.Publish(ctx, shared.NewCertificateIssuedEvent("cert-1", "enr-1", "stu-1", "", "crs-1", "Go Basics", now)))
	require.NoError(t, bus.Publish(ctx, shared.NewCourseCompletedEvent("enr-1", "stu-1", "crs-1", 2, now)))

	assert.Equal(t, 2, sender.count())
	logged, err := store.ListByRecipient(ctx, "stu-1", 10)
	require.NoError(t, err)
	assert.Len(t, logged, 2)
}
