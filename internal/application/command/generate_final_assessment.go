package command

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/progress"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/metrics"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE FINAL ASSESSMENT COMMAND
// Builds a personal final quiz once the student has completed every lesson
// of the course. Questions are sampled from the course bank and frozen, so
// later bank edits never change a generated assessment.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateFinalAssessmentCommand identifies the student and course.
type GenerateFinalAssessmentCommand struct {
	StudentID string
	CourseID  string
}

// GenerateFinalAssessmentConfig tunes generation.
type GenerateFinalAssessmentConfig struct {
	// MaxQuestions caps the sample size.
	MaxQuestions int

	// Rand drives sampling. Nil means a randomly seeded source.
	Rand *rand.Rand
}

// DefaultGenerateFinalAssessmentConfig returns default configuration.
func DefaultGenerateFinalAssessmentConfig() GenerateFinalAssessmentConfig {
	return GenerateFinalAssessmentConfig{MaxQuestions: assessment.MaxQuestions}
}

// GenerateFinalAssessmentHandler handles GenerateFinalAssessmentCommand.
type GenerateFinalAssessmentHandler struct {
	users       catalog.UserReader
	courses     catalog.CourseReader
	progress    progress.Repository
	bank        catalog.QuestionBank
	assessments assessment.Repository
	clock       shared.Clock
	newID       func() string
	logger      *slog.Logger

	maxQuestions int

	// *rand.Rand is not safe for concurrent use
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewGenerateFinalAssessmentHandler creates a new GenerateFinalAssessmentHandler.
func NewGenerateFinalAssessmentHandler(
	users catalog.UserReader,
	courses catalog.CourseReader,
	repo progress.Repository,
	bank catalog.QuestionBank,
	assessments assessment.Repository,
	clock shared.Clock,
	logger *slog.Logger,
	config GenerateFinalAssessmentConfig,
) *GenerateFinalAssessmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MaxQuestions <= 0 {
		config.MaxQuestions = assessment.MaxQuestions
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &GenerateFinalAssessmentHandler{
		users:        users,
		courses:      courses,
		progress:     repo,
		bank:         bank,
		assessments:  assessments,
		clock:        clock.OrSystem(),
		newID:        shared.NewID,
		logger:       logger.With("handler", "generate_final_assessment"),
		maxQuestions: config.MaxQuestions,
		rng:          config.Rand,
	}
}

// Handle generates and stores a final assessment, returning the student view.
//
// Errors: NotFound for an unknown student or course; PreconditionNotMet when
// the course has no lessons, lessons remain, or the bank is empty.
func (h *GenerateFinalAssessmentHandler) Handle(ctx context.Context, cmd GenerateFinalAssessmentCommand) (*assessment.View, error) {
	if _, err := h.users.FindUser(ctx, cmd.StudentID); err != nil {
		return nil, err
	}
	course, err := h.courses.FindCourse(ctx, cmd.CourseID)
	if err != nil {
		return nil, err
	}

	total, err := h.courses.LessonCount(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("generate_final_assessment: count lessons: %w", err)
	}
	if total == 0 {
		return nil, shared.ErrNoLessons
	}

	completed, err := h.progress.CountCompletedByStudent(ctx, cmd.StudentID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("generate_final_assessment: count completed: %w", err)
	}
	snapshot := progress.Completion{TotalLessons: total, CompletedLessons: completed}
	if !snapshot.IsComplete() {
		return nil, shared.NewDomainError("assessment", "Generate", shared.ErrPreconditionNotMet,
			fmt.Sprintf("complete all lessons first (%s)", snapshot))
	}

	questions, err := h.bank.QuestionsForCourse(ctx, course.ID)
	if err != nil {
		return nil, fmt.Errorf("generate_final_assessment: load question bank: %w", err)
	}
	if len(questions) == 0 {
		return nil, shared.ErrNoQuestions
	}

	h.rngMu.Lock()
	sampled := assessment.Sample(questions, h.maxQuestions, h.rng)
	h.rngMu.Unlock()

	a := assessment.NewFinal(h.newID(), cmd.StudentID, *course, sampled, h.clock(), h.newID)
	if err := h.assessments.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("generate_final_assessment: store: %w", err)
	}

	metrics.RecordAssessmentGenerated(len(a.Questions))
	h.logger.Info("final assessment generated",
		"assessment_id", a.ID,
		"student_id", a.StudentID,
		"course_id", a.CourseID,
		"questions", len(a.Questions),
		"total_marks", a.TotalMarks,
	)

	view := a.View()
	return &view, nil
}
