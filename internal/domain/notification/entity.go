// Package notification models outbound messages triggered by domain events.
// Delivery is performed by a Sender; every attempt is recorded in a Log.
package notification

import (
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Type identifies what the notification is about.
type Type string

const (
	// TypeEnrollmentWelcome - a student enrolled in a course.
	TypeEnrollmentWelcome Type = "enrollment_welcome"

	// TypeCertificateIssued - a certificate was issued.
	TypeCertificateIssued Type = "certificate_issued"

	// TypeAssessmentResult - a final assessment was scored.
	TypeAssessmentResult Type = "assessment_result"
)

// IsValid checks the type.
func (t Type) IsValid() bool {
	switch t {
	case TypeEnrollmentWelcome, TypeCertificateIssued, TypeAssessmentResult:
		return true
	default:
		return false
	}
}

// Status is the outcome of a delivery attempt.
type Status string

const (
	StatusSent   Status = "SENT"
	StatusFailed Status = "FAILED"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Notification is one message to one recipient.
type Notification struct {
	ID   string
	Type Type

	// EventID is the event that caused this notification.
	EventID string

	RecipientID    string
	RecipientEmail string
	Subject        string
	Body           string

	Status    Status
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
}

// NewNotification creates an unsent notification.
func NewNotification(id string, typ Type, eventID, recipientID, email, subject, body string, at time.Time) *Notification {
	return &Notification{
		ID:             id,
		Type:           typ,
		EventID:        eventID,
		RecipientID:    recipientID,
		RecipientEmail: strings.TrimSpace(email),
		Subject:        subject,
		Body:           body,
		CreatedAt:      at.UTC(),
	}
}

// HasRecipient reports whether there is an address to deliver to.
func (n *Notification) HasRecipient() bool {
	return n.RecipientEmail != ""
}

// MarkSent records a successful delivery.
func (n *Notification) MarkSent(at time.Time) {
	at = at.UTC()
	n.Status = StatusSent
	n.SentAt = &at
	n.LastError = ""
}

// MarkFailed records a failed delivery.
func (n *Notification) MarkFailed(err error) {
	n.Status = StatusFailed
	if err != nil {
		n.LastError = err.Error()
	}
}
