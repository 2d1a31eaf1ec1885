package memory

import (
	"context"
	"sort"

	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// Create implements certificate.Repository. The enrollment id is a unique key.
func (s *Store) Create(_ context.Context, cert *certificate.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certByEnrollment[cert.EnrollmentID]; exists {
		return shared.ErrCertificateExists
	}
	c := *cert
	s.certificates[c.ID] = &c
	s.certByEnrollment[c.EnrollmentID] = c.ID
	return nil
}

// GetByID implements certificate.Repository.
func (s *Store) GetByID(_ context.Context, id string) (*certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.certificates[id]
	if !ok {
		return nil, shared.ErrCertificateNotFound
	}
	out := *c
	return &out, nil
}

// FindByEnrollment implements certificate.Repository.
func (s *Store) FindByEnrollment(_ context.Context, enrollmentID string) (*certificate.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.certByEnrollment[enrollmentID]
	if !ok {
		return nil, shared.ErrCertificateNotFound
	}
	out := *s.certificates[id]
	return &out, nil
}

// ListByStudent implements certificate.Repository.
func (s *Store) ListByStudent(_ context.Context, studentID string) ([]*certificate.Certificate, error) {
	return s.listCertificates(func(c *certificate.Certificate) bool { return c.StudentID == studentID }), nil
}

// ListByCourse implements certificate.Repository.
func (s *Store) ListByCourse(_ context.Context, courseID string) ([]*certificate.Certificate, error) {
	return s.listCertificates(func(c *certificate.Certificate) bool { return c.CourseID == courseID }), nil
}

// CertificateCount returns how many certificates are stored.
func (s *Store) CertificateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.certificates)
}

func (s *Store) listCertificates(match func(*certificate.Certificate) bool) []*certificate.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*certificate.Certificate, 0)
	for _, c := range s.certificates {
		if match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// EnrollmentsAwaitingCertificate returns enrollments whose course has at
// least one lesson, all of them complete, and no certificate yet.
func (s *Store) EnrollmentsAwaitingCertificate(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lessonsByCourse := make(map[string][]string)
	for _, l := range s.lessons {
		lessonsByCourse[l.CourseID] = append(lessonsByCourse[l.CourseID], l.ID)
	}

	out := make([]string, 0)
	for id, e := range s.enrollments {
		if _, issued := s.certByEnrollment[id]; issued {
			continue
		}
		lessons := lessonsByCourse[e.CourseID]
		if len(lessons) == 0 {
			continue
		}
		complete := true
		for _, lessonID := range lessons {
			p, ok := s.progress[progressKey{enrollmentID: id, lessonID: lessonID}]
			if !ok || !p.IsComplete {
				complete = false
				break
			}
		}
		if complete {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
