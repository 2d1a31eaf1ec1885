// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/certificate"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST CERTIFICATES QUERY
// Returns issued certificates enriched with the student's e-mail and the
// course title.
// ══════════════════════════════════════════════════════════════════════════════

// CertificateDTO is a certificate as shown to clients.
type CertificateDTO struct {
	ID             string    `json:"id"`
	EnrollmentID   string    `json:"enrollment_id"`
	StudentID      string    `json:"student_id"`
	StudentEmail   string    `json:"student_email"`
	CourseID       string    `json:"course_id"`
	CourseTitle    string    `json:"course_title"`
	IssuedAt       time.Time `json:"issued_at"`
	CompletionDate time.Time `json:"completion_date"`
}

// ListCertificatesHandler serves certificate lookups.
type ListCertificatesHandler struct {
	catalog      catalog.Reader
	certificates certificate.Repository
}

// NewListCertificatesHandler creates a new ListCertificatesHandler.
func NewListCertificatesHandler(reader catalog.Reader, certificates certificate.Repository) *ListCertificatesHandler {
	return &ListCertificatesHandler{
		catalog:      reader,
		certificates: certificates,
	}
}

// ByStudent lists the student's certificates, newest first.
// Returns NotFound for an unknown student.
func (h *ListCertificatesHandler) ByStudent(ctx context.Context, studentID string) ([]CertificateDTO, error) {
	user, err := h.catalog.FindUser(ctx, studentID)
	if err != nil {
		return nil, err
	}

	certs, err := h.certificates.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list_certificates: by student: %w", err)
	}

	e := newEnricher(h.catalog)
	e.users[user.ID] = user
	return e.all(ctx, certs), nil
}

// ByCourse lists the course's certificates, newest first.
// Returns NotFound for an unknown course.
func (h *ListCertificatesHandler) ByCourse(ctx context.Context, courseID string) ([]CertificateDTO, error) {
	course, err := h.catalog.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	certs, err := h.certificates.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list_certificates: by course: %w", err)
	}

	e := newEnricher(h.catalog)
	e.courses[course.ID] = course
	return e.all(ctx, certs), nil
}

// ByEnrollment returns the enrollment's certificate. Returns NotFound when
// the enrollment is unknown or has no certificate yet.
func (h *ListCertificatesHandler) ByEnrollment(ctx context.Context, enrollmentID string) (*CertificateDTO, error) {
	if _, err := h.catalog.FindEnrollment(ctx, enrollmentID); err != nil {
		return nil, err
	}

	cert, err := h.certificates.FindByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	dto := newEnricher(h.catalog).one(ctx, cert)
	return &dto, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// enrichment
// ──────────────────────────────────────────────────────────────────────────────

// enricher memoizes lookups for one request. Missing users or courses leave
// the field empty rather than failing the listing.
type enricher struct {
	reader  catalog.Reader
	users   map[string]*catalog.User
	courses map[string]*catalog.Course
}

func newEnricher(reader catalog.Reader) *enricher {
	return &enricher{
		reader:  reader,
		users:   make(map[string]*catalog.User),
		courses: make(map[string]*catalog.Course),
	}
}

func (e *enricher) all(ctx context.Context, certs []*certificate.Certificate) []CertificateDTO {
	out := make([]CertificateDTO, 0, len(certs))
	for _, c := range certs {
		out = append(out, e.one(ctx, c))
	}
	return out
}

func (e *enricher) one(ctx context.Context, c *certificate.Certificate) CertificateDTO {
	dto := CertificateDTO{
		ID:             c.ID,
		EnrollmentID:   c.EnrollmentID,
		StudentID:      c.StudentID,
		CourseID:       c.CourseID,
		IssuedAt:       c.CreatedAt,
		CompletionDate: c.CompletionDate,
	}

	user, ok := e.users[c.StudentID]
	if !ok {
		user, _ = e.reader.FindUser(ctx, c.StudentID)
		e.users[c.StudentID] = user
	}
	if user != nil {
		dto.StudentEmail = user.Email
	}

	course, ok := e.courses[c.CourseID]
	if !ok {
		course, _ = e.reader.FindCourse(ctx, c.CourseID)
		e.courses[c.CourseID] = course
	}
	if course != nil {
		dto.CourseTitle = course.Title
	}
	return dto
}
