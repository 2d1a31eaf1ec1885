package postgres

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// AssessmentRepository implements assessment.Repository.
type AssessmentRepository struct {
	conn *Connection
}

var _ assessment.Repository = (*AssessmentRepository)(nil)

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(conn *Connection) *AssessmentRepository {
	return &AssessmentRepository{conn: conn}
}

// Create inserts the assessment and its frozen questions in one transaction.
func (r *AssessmentRepository) Create(ctx context.Context, a *assessment.Assessment) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO assessments (id, course_id, student_id, title, description, total_marks, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, a.ID, a.CourseID, a.StudentID, a.Title, a.Description, a.TotalMarks, a.CreatedAt)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.WrapError("assessment", "Create", shared.ErrConflict, "assessment already exists", err)
			}
			return fmt.Errorf("failed to insert assessment: %w", err)
		}

		batch := &pgx.Batch{}
		for _, q := range a.Questions {
			options, err := json.Marshal(q.Options)
			if err != nil {
				return fmt.Errorf("failed to encode options: %w", err)
			}
			batch.Queue(`
				INSERT INTO assessment_questions
					(id, assessment_id, source_question_id, position, question_text, options_json, correct_answer, marks)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, q.ID, a.ID, q.SourceQuestionID, q.Position, q.Text, options, q.CorrectAnswer, q.Marks)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert assessment questions: %w", err)
		}
		return nil
	})
}

// GetByID loads the assessment with its questions.
func (r *AssessmentRepository) GetByID(ctx context.Context, id string) (*assessment.Assessment, error) {
	var a assessment.Assessment
	err := r.conn.QueryRow(ctx, `
		SELECT id, course_id, student_id, title, description, total_marks, created_at
		FROM assessments
		WHERE id = $1
	`, id).Scan(&a.ID, &a.CourseID, &a.StudentID, &a.Title, &a.Description, &a.TotalMarks, &a.CreatedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	a.CreatedAt = a.CreatedAt.UTC()

	rows, err := r.conn.Query(ctx, `
		SELECT id, assessment_id, source_question_id, position, question_text, options_json, correct_answer, marks
		FROM assessment_questions
		WHERE assessment_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q assessment.Question
		var options []byte
		if err := rows.Scan(&q.ID, &q.AssessmentID, &q.SourceQuestionID, &q.Position, &q.Text, &options, &q.CorrectAnswer, &q.Marks); err != nil {
			return nil, fmt.Errorf("failed to scan assessment question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("failed to decode options of question %s: %w", q.ID, err)
		}
		a.Questions = append(a.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateSubmission inserts a new submission row.
func (r *AssessmentRepository) CreateSubmission(ctx context.Context, s *assessment.Submission) error {
	answers, err := json.Marshal(s.Answers)
	if err != nil {
		// the raw payload is always a string map; keep the row anyway
		answers = []byte("{}")
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO assessment_submissions
			(id, assessment_id, student_id, submitted_at, score, total_marks, percentage, passed, answers_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID, s.AssessmentID, s.StudentID, s.SubmittedAt, s.Score, s.TotalMarks, s.Percentage, s.Passed, answers)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

const submissionColumns = `id, assessment_id, student_id, submitted_at, score, total_marks, percentage, passed, answers_json`

// GetSubmission returns a submission by id.
func (r *AssessmentRepository) GetSubmission(ctx context.Context, id string) (*assessment.Submission, error) {
	s, err := scanSubmission(r.conn.QueryRow(ctx, `SELECT `+submissionColumns+` FROM assessment_submissions WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return s, nil
}

// ListSubmissions returns submissions of an assessment, oldest first.
func (r *AssessmentRepository) ListSubmissions(ctx context.Context, assessmentID string) ([]*assessment.Submission, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM assessment_submissions
		WHERE assessment_id = $1
		ORDER BY submitted_at, id
	`, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]*assessment.Submission, 0)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSubmission(row pgx.Row) (*assessment.Submission, error) {
	var s assessment.Submission
	var answers []byte
	err := row.Scan(&s.ID, &s.AssessmentID, &s.StudentID, &s.SubmittedAt, &s.Score, &s.TotalMarks, &s.Percentage, &s.Passed, &answers)
	if err != nil {
		return nil, err
	}
	s.SubmittedAt = s.SubmittedAt.UTC()
	s.Answers = make(map[string]string)
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &s.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	return &s, nil
}
