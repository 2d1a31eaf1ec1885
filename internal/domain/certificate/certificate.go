// Package certificate models proof-of-completion certificates.
// A certificate is created once per enrollment and never updated.
package certificate

import (
	"context"
	"time"
)

// Certificate belongs to exactly one enrollment.
type Certificate struct {
	ID           string
	EnrollmentID string

	// Denormalized so consumers need not resolve the enrollment.
	StudentID string
	CourseID  string

	CreatedAt      time.Time
	CompletionDate time.Time
}

// New builds a certificate stamped at the given time.
func New(id, enrollmentID, studentID, courseID string, at time.Time) *Certificate {
	at = at.UTC()
	return &Certificate{
		ID:             id,
		EnrollmentID:   enrollmentID,
		StudentID:      studentID,
		CourseID:       courseID,
		CreatedAt:      at,
		CompletionDate: at,
	}
}

// Repository persists certificates. Create is the only write.
type Repository interface {
	// Create inserts the certificate. It returns shared.ErrCertificateExists
	// (kind ErrConflict) when the enrollment already owns one.
	Create(ctx context.Context, cert *Certificate) error

	// GetByID returns shared.ErrCertificateNotFound when absent.
	GetByID(ctx context.Context, id string) (*Certificate, error)

	// FindByEnrollment returns shared.ErrCertificateNotFound when absent.
	FindByEnrollment(ctx context.Context, enrollmentID string) (*Certificate, error)

	// ListByStudent returns the student's certificates, newest first.
	ListByStudent(ctx context.Context, studentID string) ([]*Certificate, error)

	// ListByCourse returns the course's certificates, newest first.
	ListByCourse(ctx context.Context, courseID string) ([]*Certificate, error)
}
