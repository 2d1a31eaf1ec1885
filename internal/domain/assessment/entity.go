// Package assessment holds final assessments: question sampling, frozen
// question copies, submissions and scoring.
package assessment

import (
	"fmt"
	"time"

	"github.com/learnhub/completion-core/internal/domain/catalog"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT
// ══════════════════════════════════════════════════════════════════════════════

// MaxQuestions is the upper bound of questions in a final assessment.
const MaxQuestions = 10

// Description is attached to every generated final assessment.
const Description = "Auto-generated after course completion"

// Assessment is a generated final quiz for one student and course.
type Assessment struct {
	ID          string
	CourseID    string
	StudentID   string
	Title       string
	Description string
	TotalMarks  int
	CreatedAt   time.Time

	// Questions are ordered by Position.
	Questions []Question
}

// Question is a frozen copy of a bank question. Later bank edits do not
// reach it.
type Question struct {
	ID               string
	AssessmentID     string
	SourceQuestionID string
	Position         int
	Text             string
	Options          []string
	CorrectAnswer    string
	Marks            int
}

// NewFinal freezes the sampled questions into a new assessment.
// newID is called once per question copy.
func NewFinal(id, studentID string, course catalog.Course, sampled []catalog.BankQuestion, at time.Time, newID func() string) *Assessment {
	a := &Assessment{
		ID:          id,
		CourseID:    course.ID,
		StudentID:   studentID,
		Title:       fmt.Sprintf("Final Assessment for %s", course.Title),
		Description: Description,
		CreatedAt:   at.UTC(),
		Questions:   make([]Question, 0, len(sampled)),
	}

	for i, q := range sampled {
		copied := Freeze(newID(), id, i+1, q)
		a.TotalMarks += copied.Marks
		a.Questions = append(a.Questions, copied)
	}
	return a
}

// Freeze copies a bank question, options included.
func Freeze(id, assessmentID string, position int, q catalog.BankQuestion) Question {
	options := make([]string, len(q.Options))
	copy(options, q.Options)

	return Question{
		ID:               id,
		AssessmentID:     assessmentID,
		SourceQuestionID: q.ID,
		Position:         position,
		Text:             q.Text,
		Options:          options,
		CorrectAnswer:    q.CorrectAnswer,
		Marks:            q.EffectiveMarks(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Views
// ──────────────────────────────────────────────────────────────────────────────

// View is what a student receives. It has no correct answers.
type View struct {
	ID          string         `json:"id"`
	CourseID    string         `json:"course_id"`
	StudentID   string         `json:"student_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	TotalMarks  int            `json:"total_marks"`
	CreatedAt   time.Time      `json:"created_at"`
	Questions   []QuestionView `json:"questions"`
}

// QuestionView is a question without its answer.
type QuestionView struct {
	ID       string   `json:"id"`
	Position int      `json:"position"`
	Text     string   `json:"text"`
	Options  []string `json:"options"`
	Marks    int      `json:"marks"`
}

// View strips the correct answers.
func (a *Assessment) View() View {
	v := View{
		ID:          a.ID,
		CourseID:    a.CourseID,
		StudentID:   a.StudentID,
		Title:       a.Title,
		Description: a.Description,
		TotalMarks:  a.TotalMarks,
		CreatedAt:   a.CreatedAt,
		Questions:   make([]QuestionView, 0, len(a.Questions)),
	}
	for _, q := range a.Questions {
		options := make([]string, len(q.Options))
		copy(options, q.Options)
		v.Questions = append(v.Questions, QuestionView{
			ID:       q.ID,
			Position: q.Position,
			Text:     q.Text,
			Options:  options,
			Marks:    q.Marks,
		})
	}
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMISSION
// ══════════════════════════════════════════════════════════════════════════════

// Submission is one scored attempt. Immutable once stored.
type Submission struct {
	ID           string
	AssessmentID string
	StudentID    string
	SubmittedAt  time.Time
	Score        int
	TotalMarks   int
	Percentage   float64
	Passed       bool

	// Answers is the raw payload keyed by question copy id.
	Answers map[string]string
}

// NewSubmission records a scored attempt.
func NewSubmission(id, assessmentID, studentID string, answers map[string]string, result Result, at time.Time) *Submission {
	raw := make(map[string]string, len(answers))
	for k, v := range answers {
		raw[k] = v
	}
	return &Submission{
		ID:           id,
		AssessmentID: assessmentID,
		StudentID:    studentID,
		SubmittedAt:  at.UTC(),
		Score:        result.Score,
		TotalMarks:   result.TotalMarks,
		Percentage:   result.Percentage,
		Passed:       result.Passed,
		Answers:      raw,
	}
}
