package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ASSESSMENT COMMAND
// Scores a student's answers against the frozen question copies and stores
// the attempt. Every submission is a new, immutable record.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAssessmentCommand carries answers keyed by question copy id.
type SubmitAssessmentCommand struct {
	StudentID    string            `validate:"notblank"`
	AssessmentID string            `validate:"notblank"`
	Answers      map[string]string `validate:"dive,keys,notblank,endkeys"`
}

// SubmitAssessmentHandler handles SubmitAssessmentCommand.
type SubmitAssessmentHandler struct {
	users       catalog.UserReader
	assessments assessment.Repository
	publisher   shared.EventPublisher
	clock       shared.Clock
	newID       func() string
	logger      *slog.Logger
}

// NewSubmitAssessmentHandler creates a new SubmitAssessmentHandler.
func NewSubmitAssessmentHandler(
	users catalog.UserReader,
	assessments assessment.Repository,
	publisher shared.EventPublisher,
	clock shared.Clock,
	logger *slog.Logger,
) *SubmitAssessmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitAssessmentHandler{
		users:       users,
		assessments: assessments,
		publisher:   publisher,
		clock:       clock.OrSystem(),
		newID:       shared.NewID,
		logger:      logger.With("handler", "submit_assessment"),
	}
}

// Handle scores and stores the submission.
//
// Errors: InvalidInput for blank ids or blank answer keys; NotFound for an
// unknown assessment or student.
func (h *SubmitAssessmentHandler) Handle(ctx context.Context, cmd SubmitAssessmentCommand) (*assessment.Submission, error) {
	if err := validateCommand("assessment", "Submit", cmd); err != nil {
		return nil, err
	}

	a, err := h.assessments.GetByID(ctx, cmd.AssessmentID)
	if err != nil {
		return nil, err
	}
	if _, err := h.users.FindUser(ctx, cmd.StudentID); err != nil {
		return nil, err
	}

	result := assessment.Score(a.Questions, cmd.Answers)
	sub := assessment.NewSubmission(h.newID(), a.ID, cmd.StudentID, cmd.Answers, result, h.clock())
	if err := h.assessments.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("submit_assessment: store: %w", err)
	}

	metrics.RecordSubmission(sub.Percentage, sub.Passed)
	h.logger.Info("assessment submitted",
		"submission_id", sub.ID,
		"assessment_id", a.ID,
		"student_id", sub.StudentID,
		"score", sub.Score,
		"total_marks", sub.TotalMarks,
		"passed", sub.Passed,
	)

	if h.publisher != nil {
		event := shared.NewAssessmentSubmittedEvent(sub.ID, a.ID, sub.StudentID, a.CourseID,
			sub.Score, sub.TotalMarks, sub.Percentage, sub.Passed, sub.SubmittedAt)
		if err := h.publisher.Publish(ctx, event); err != nil {
			h.logger.Error("failed to publish assessment submitted event",
				"submission_id", sub.ID,
				"error", err,
			)
		}
	}

	return sub, nil
}
