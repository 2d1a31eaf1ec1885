package postgres

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// CatalogRepository reads the replicated catalog tables.
type CatalogRepository struct {
	conn *Connection
}

var (
	_ catalog.Reader       = (*CatalogRepository)(nil)
	_ catalog.QuestionBank = (*CatalogRepository)(nil)
)

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// FindEnrollment implements catalog.EnrollmentReader.
func (r *CatalogRepository) FindEnrollment(ctx context.Context, id string) (*catalog.Enrollment, error) {
	var e catalog.Enrollment
	err := r.conn.QueryRow(ctx, `SELECT id, student_id, course_id FROM enrollments WHERE id = $1`, id).
		Scan(&e.ID, &e.StudentID, &e.CourseID)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return &e, nil
}

// FindCourse implements catalog.CourseReader.
func (r *CatalogRepository) FindCourse(ctx context.Context, id string) (*catalog.Course, error) {
	var c catalog.Course
	err := r.conn.QueryRow(ctx, `SELECT id, title FROM courses WHERE id = $1`, id).Scan(&c.ID, &c.Title)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	return &c, nil
}

// FindLesson implements catalog.CourseReader.
func (r *CatalogRepository) FindLesson(ctx context.Context, id string) (*catalog.Lesson, error) {
	var l catalog.Lesson
	err := r.conn.QueryRow(ctx, `SELECT id, course_id, title FROM lessons WHERE id = $1`, id).
		Scan(&l.ID, &l.CourseID, &l.Title)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}
	return &l, nil
}

// LessonExists implements catalog.CourseReader.
func (r *CatalogRepository) LessonExists(ctx context.Context, lessonID string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lessons WHERE id = $1)`, lessonID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check lesson: %w", err)
	}
	return exists, nil
}

// LessonCount implements catalog.CourseReader.
func (r *CatalogRepository) LessonCount(ctx context.Context, courseID string) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM lessons WHERE course_id = $1`, courseID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}
	return n, nil
}

// FindUser implements catalog.UserReader.
func (r *CatalogRepository) FindUser(ctx context.Context, id string) (*catalog.User, error) {
	var u catalog.User
	err := r.conn.QueryRow(ctx, `SELECT id, email, display_name FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.DisplayName)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// QuestionsForCourse implements catalog.QuestionBank.
func (r *CatalogRepository) QuestionsForCourse(ctx context.Context, courseID string) ([]catalog.BankQuestion, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, course_id, question_text, options_json, correct_answer, marks
		FROM question_bank
		WHERE course_id = $1
		ORDER BY created_at, id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query question bank: %w", err)
	}
	defer rows.Close()

	out := make([]catalog.BankQuestion, 0)
	for rows.Next() {
		var q catalog.BankQuestion
		var options []byte
		if err := rows.Scan(&q.ID, &q.CourseID, &q.Text, &options, &q.CorrectAnswer, &q.Marks); err != nil {
			return nil, fmt.Errorf("failed to scan bank question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of question %s: %w", q.ID, err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
