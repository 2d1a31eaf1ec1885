package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. The string value doubles as the bus topic.
const (
	// EventCourseCompleted fires once per false to true completion transition.
	EventCourseCompleted EventType = "course.completed"

	// EventCertificateIssued fires only on the winning issuance path.
	EventCertificateIssued EventType = "certificate.issued"

	// EventAssessmentSubmitted fires after a submission is persisted.
	EventAssessmentSubmitted EventType = "assessment.submitted"

	// EventEnrollmentCreated is produced upstream and only consumed here.
	EventEnrollmentCreated EventType = "enrollment.created"
)

// AllEventTypes lists every event type known to this service.
func AllEventTypes() []EventType {
	return []EventType{
		EventCourseCompleted,
		EventCertificateIssued,
		EventAssessmentSubmitted,
		EventEnrollmentCreated,
	}
}

// Event is the base interface for all domain events.
type Event interface {
	// EventID uniquely identifies this occurrence. Consumers deduplicate on it.
	EventID() string

	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventID implements Event interface.
func (e BaseEvent) EventID() string {
	return e.ID
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		ID:          NewID(),
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// Correlation returns the correlation ID, empty when unset.
func (e BaseEvent) Correlation() string {
	return e.CorrelationID
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Completion Events
// ═══════════════════════════════════════════════════════════════════════════

// CourseCompletedEvent is emitted when an enrollment becomes fully complete.
type CourseCompletedEvent struct {
	BaseEvent
	EnrollmentID string `json:"enrollment_id"`
	StudentID    string `json:"student_id"`
	CourseID     string `json:"course_id"`
	TotalLessons int    `json:"total_lessons"`
}

// NewCourseCompletedEvent creates a new CourseCompletedEvent.
func NewCourseCompletedEvent(enrollmentID, studentID, courseID string, totalLessons int, at time.Time) CourseCompletedEvent {
	return CourseCompletedEvent{
		BaseEvent:    NewBaseEvent(EventCourseCompleted, enrollmentID, at),
		EnrollmentID: enrollmentID,
		StudentID:    studentID,
		CourseID:     courseID,
		TotalLessons: totalLessons,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Certificate Events
// ═══════════════════════════════════════════════════════════════════════════

// CertificateIssuedEvent is emitted once per certificate, by the issuance winner.
type CertificateIssuedEvent struct {
	BaseEvent
	CertificateID string    `json:"certificate_id"`
	EnrollmentID  string    `json:"enrollment_id"`
	StudentID     string    `json:"student_id"`
	StudentEmail  string    `json:"student_email"`
	CourseID      string    `json:"course_id"`
	CourseTitle   string    `json:"course_title"`
	IssuedAt      time.Time `json:"issued_at"`
}

// NewCertificateIssuedEvent creates a new CertificateIssuedEvent.
func NewCertificateIssuedEvent(certificateID, enrollmentID, studentID, studentEmail, courseID, courseTitle string, issuedAt time.Time) CertificateIssuedEvent {
	return CertificateIssuedEvent{
		BaseEvent:     NewBaseEvent(EventCertificateIssued, enrollmentID, issuedAt),
		CertificateID: certificateID,
		EnrollmentID:  enrollmentID,
		StudentID:     studentID,
		StudentEmail:  studentEmail,
		CourseID:      courseID,
		CourseTitle:   courseTitle,
		IssuedAt:      issuedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Assessment Events
// ═══════════════════════════════════════════════════════════════════════════

// AssessmentSubmittedEvent is emitted after a submission has been scored.
type AssessmentSubmittedEvent struct {
	BaseEvent
	SubmissionID string  `json:"submission_id"`
	AssessmentID string  `json:"assessment_id"`
	StudentID    string  `json:"student_id"`
	CourseID     string  `json:"course_id"`
	Score        int     `json:"score"`
	TotalMarks   int     `json:"total_marks"`
	Percentage   float64 `json:"percentage"`
	Passed       bool    `json:"passed"`
}

// NewAssessmentSubmittedEvent creates a new AssessmentSubmittedEvent.
func NewAssessmentSubmittedEvent(submissionID, assessmentID, studentID, courseID string, score, total int, percentage float64, passed bool, at time.Time) AssessmentSubmittedEvent {
	return AssessmentSubmittedEvent{
		BaseEvent:    NewBaseEvent(EventAssessmentSubmitted, assessmentID, at),
		SubmissionID: submissionID,
		AssessmentID: assessmentID,
		StudentID:    studentID,
		CourseID:     courseID,
		Score:        score,
		TotalMarks:   total,
		Percentage:   percentage,
		Passed:       passed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Upstream Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentCreatedEvent is produced by the enrollment workflow.
type EnrollmentCreatedEvent struct {
	BaseEvent
	EnrollmentID string `json:"enrollment_id"`
	StudentID    string `json:"student_id"`
	CourseID     string `json:"course_id"`
	CourseTitle  string `json:"course_title"`
	StudentEmail string `json:"student_email"`
}

// NewEnrollmentCreatedEvent creates a new EnrollmentCreatedEvent.
func NewEnrollmentCreatedEvent(enrollmentID, studentID, courseID, courseTitle, studentEmail string, at time.Time) EnrollmentCreatedEvent {
	return EnrollmentCreatedEvent{
		BaseEvent:    NewBaseEvent(EventEnrollmentCreated, enrollmentID, at),
		EnrollmentID: enrollmentID,
		StudentID:    studentID,
		CourseID:     courseID,
		CourseTitle:  courseTitle,
		StudentEmail: studentEmail,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Bus Contracts
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler handles one delivered event. Returning an error requests
// redelivery on transports that support it.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a named handler for an event type.
	Subscribe(eventType EventType, name string, handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
