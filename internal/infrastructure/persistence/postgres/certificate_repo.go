package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// CertificateRepository implements certificate.Repository.
// The uq_certificates_enrollment constraint is the single-writer guard.
type CertificateRepository struct {
	conn *Connection
}

var _ certificate.Repository = (*CertificateRepository)(nil)

// NewCertificateRepository creates a new CertificateRepository.
func NewCertificateRepository(conn *Connection) *CertificateRepository {
	return &CertificateRepository{conn: conn}
}

const certificateColumns = `id, enrollment_id, student_id, course_id, created_at, completion_date`

// Create inserts a certificate. A unique violation on enrollment_id becomes
// shared.ErrCertificateExists.
func (r *CertificateRepository) Create(ctx context.Context, cert *certificate.Certificate) error {
	query := `
		INSERT INTO certificates (` + certificateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.conn.Exec(ctx, query,
		cert.ID,
		cert.EnrollmentID,
		cert.StudentID,
		cert.CourseID,
		cert.CreatedAt,
		cert.CompletionDate,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrCertificateExists
		}
		if IsForeignKeyViolation(err) {
			return shared.ErrEnrollmentNotFound
		}
		return fmt.Errorf("failed to insert certificate: %w", err)
	}
	return nil
}

// GetByID returns a certificate by id.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*certificate.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// FindByEnrollment returns the enrollment's certificate.
func (r *CertificateRepository) FindByEnrollment(ctx context.Context, enrollmentID string) (*certificate.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE enrollment_id = $1`
	return r.getOne(ctx, query, enrollmentID)
}

// ListByStudent returns certificates of a student, newest first.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID string) ([]*certificate.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE student_id = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, studentID)
}

// ListByCourse returns certificates of a course, newest first.
func (r *CertificateRepository) ListByCourse(ctx context.Context, courseID string) ([]*certificate.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE course_id = $1 ORDER BY created_at DESC, id`
	return r.list(ctx, query, courseID)
}

func (r *CertificateRepository) getOne(ctx context.Context, query string, arg string) (*certificate.Certificate, error) {
	c, err := scanCertificate(r.conn.QueryRow(ctx, query, arg))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCertificateNotFound
		}
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return c, nil
}

func (r *CertificateRepository) list(ctx context.Context, query string, arg string) ([]*certificate.Certificate, error) {
	rows, err := r.conn.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	defer rows.Close()

	out := make([]*certificate.Certificate, 0)
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan certificate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCertificate(row pgx.Row) (*certificate.Certificate, error) {
	var c certificate.Certificate
	err := row.Scan(&c.ID, &c.EnrollmentID, &c.StudentID, &c.CourseID, &c.CreatedAt, &c.CompletionDate)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.CompletionDate = c.CompletionDate.UTC()
	return &c, nil
}

// EnrollmentsAwaitingCertificate returns enrollments whose course has at
// least one lesson, all of them complete, and no certificate yet.
func (r *CertificateRepository) EnrollmentsAwaitingCertificate(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.conn.Query(ctx, `
		SELECT e.id
		FROM enrollments e
		WHERE NOT EXISTS (SELECT 1 FROM certificates c WHERE c.enrollment_id = e.id)
		  AND EXISTS (SELECT 1 FROM lessons l WHERE l.course_id = e.course_id)
		  AND NOT EXISTS (
			SELECT 1 FROM lessons l
			WHERE l.course_id = e.course_id
			  AND NOT EXISTS (
				SELECT 1 FROM lesson_progress p
				WHERE p.enrollment_id = e.id AND p.lesson_id = l.id AND p.is_complete
			  )
		  )
		ORDER BY e.id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments awaiting certificate: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
