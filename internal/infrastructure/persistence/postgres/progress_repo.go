package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/learnhub/completion-core/internal/domain/progress"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// ProgressRepository implements progress.Repository and progress.Locker.
type ProgressRepository struct {
	conn *Connection
}

var (
	_ progress.Repository = (*ProgressRepository)(nil)
	_ progress.Locker     = (*ProgressRepository)(nil)
)

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// MarkComplete upserts the pair. The conditional DO UPDATE only fires for an
// incomplete row, so a returned row means this call changed state.
func (r *ProgressRepository) MarkComplete(ctx context.Context, enrollmentID, lessonID string, at time.Time) (*progress.LessonProgress, bool, error) {
	query := `
		INSERT INTO lesson_progress (id, enrollment_id, lesson_id, is_complete, completed_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (enrollment_id, lesson_id) DO UPDATE
		SET is_complete = TRUE,
		    completed_at = COALESCE(lesson_progress.completed_at, EXCLUDED.completed_at)
		WHERE lesson_progress.is_complete = FALSE
		RETURNING id, enrollment_id, lesson_id, is_complete, completed_at
	`

	p, err := scanProgress(r.conn.QueryRow(ctx, query, shared.NewID(), enrollmentID, lessonID, at.UTC()))
	if err == nil {
		return p, true, nil
	}
	if !IsNoRows(err) {
		if IsForeignKeyViolation(err) {
			return nil, false, shared.ErrEnrollmentNotFound
		}
		return nil, false, fmt.Errorf("failed to upsert lesson progress: %w", err)
	}

	// already complete: nothing was written
	existing, err := r.Get(ctx, enrollmentID, lessonID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get returns the record for the pair.
func (r *ProgressRepository) Get(ctx context.Context, enrollmentID, lessonID string) (*progress.LessonProgress, error) {
	query := `
		SELECT id, enrollment_id, lesson_id, is_complete, completed_at
		FROM lesson_progress
		WHERE enrollment_id = $1 AND lesson_id = $2
	`

	p, err := scanProgress(r.conn.QueryRow(ctx, query, enrollmentID, lessonID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.NewDomainError("progress", "Get", shared.ErrNotFound, "lesson progress not found")
		}
		return nil, fmt.Errorf("failed to get lesson progress: %w", err)
	}
	return p, nil
}

// ListByEnrollment returns all records of an enrollment ordered by lesson id.
func (r *ProgressRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*progress.LessonProgress, error) {
	query := `
		SELECT id, enrollment_id, lesson_id, is_complete, completed_at
		FROM lesson_progress
		WHERE enrollment_id = $1
		ORDER BY lesson_id
	`

	rows, err := r.conn.Query(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lesson progress: %w", err)
	}
	defer rows.Close()

	out := make([]*progress.LessonProgress, 0)
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountCompleted counts completed lessons that are still part of the course.
func (r *ProgressRepository) CountCompleted(ctx context.Context, enrollmentID, courseID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM lesson_progress lp
		JOIN lessons l ON l.id = lp.lesson_id
		WHERE lp.enrollment_id = $1
		  AND l.course_id = $2
		  AND lp.is_complete
	`

	var n int
	if err := r.conn.QueryRow(ctx, query, enrollmentID, courseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count completed lessons: %w", err)
	}
	return n, nil
}

// CountCompletedByStudent counts distinct completed lessons of the course
// across the student's enrollments in it.
func (r *ProgressRepository) CountCompletedByStudent(ctx context.Context, studentID, courseID string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT lp.lesson_id)
		FROM lesson_progress lp
		JOIN enrollments e ON e.id = lp.enrollment_id
		JOIN lessons l ON l.id = lp.lesson_id
		WHERE e.student_id = $1
		  AND e.course_id = $2
		  AND l.course_id = $2
		  AND lp.is_complete
	`

	var n int
	if err := r.conn.QueryRow(ctx, query, studentID, courseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count completed lessons by student: %w", err)
	}
	return n, nil
}

// WithEnrollmentLock serializes fn with every other process on the same enrollment.
func (r *ProgressRepository) WithEnrollmentLock(ctx context.Context, enrollmentID string, fn func(ctx context.Context) error) error {
	return r.conn.WithAdvisoryLock(ctx, "enrollment:"+enrollmentID, fn)
}

func scanProgress(row pgx.Row) (*progress.LessonProgress, error) {
	var p progress.LessonProgress
	if err := row.Scan(&p.ID, &p.EnrollmentID, &p.LessonID, &p.IsComplete, &p.CompletedAt); err != nil {
		return nil, err
	}
	if p.CompletedAt != nil {
		at := p.CompletedAt.UTC()
		p.CompletedAt = &at
	}
	return &p, nil
}
