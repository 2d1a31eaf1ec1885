package query

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/completion-core/internal/domain/assessment"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ASSESSMENT QUERY
// Student-facing assessment views and stored submissions. Correct answers
// never leave this layer.
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionDTO is a scored attempt.
type SubmissionDTO struct {
	ID           string            `json:"id"`
	AssessmentID string            `json:"assessment_id"`
	StudentID    string            `json:"student_id"`
	SubmittedAt  time.Time         `json:"submitted_at"`
	Score        int               `json:"score"`
	TotalMarks   int               `json:"total_marks"`
	Percentage   float64           `json:"percentage"`
	Passed       bool              `json:"passed"`
	Answers      map[string]string `json:"answers"`
}

func toSubmissionDTO(s *assessment.Submission) SubmissionDTO {
	return SubmissionDTO{
		ID:           s.ID,
		AssessmentID: s.AssessmentID,
		StudentID:    s.StudentID,
		SubmittedAt:  s.SubmittedAt,
		Score:        s.Score,
		TotalMarks:   s.TotalMarks,
		Percentage:   s.Percentage,
		Passed:       s.Passed,
		Answers:      s.Answers,
	}
}

// GetAssessmentHandler serves assessment lookups.
type GetAssessmentHandler struct {
	repo assessment.Repository
}

// NewGetAssessmentHandler creates a new GetAssessmentHandler.
func NewGetAssessmentHandler(repo assessment.Repository) *GetAssessmentHandler {
	return &GetAssessmentHandler{repo: repo}
}

// Assessment returns the answer-free view.
func (h *GetAssessmentHandler) Assessment(ctx context.Context, id string) (*assessment.View, error) {
	a, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	view := a.View()
	return &view, nil
}

// Submission returns one submission.
func (h *GetAssessmentHandler) Submission(ctx context.Context, id string) (*SubmissionDTO, error) {
	s, err := h.repo.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toSubmissionDTO(s)
	return &dto, nil
}

// Submissions lists attempts oldest first. Returns NotFound for an unknown
// assessment.
func (h *GetAssessmentHandler) Submissions(ctx context.Context, assessmentID string) ([]SubmissionDTO, error) {
	if _, err := h.repo.GetByID(ctx, assessmentID); err != nil {
		return nil, err
	}

	subs, err := h.repo.ListSubmissions(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("get_assessment: list submissions: %w", err)
	}

	out := make([]SubmissionDTO, 0, len(subs))
	for _, s := range subs {
		out = append(out, toSubmissionDTO(s))
	}
	return out, nil
}
