package query

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/completion-core/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Lesson-by-lesson progress of one enrollment with the completion summary.
// ══════════════════════════════════════════════════════════════════════════════

// LessonProgressDTO is one lesson row.
type LessonProgressDTO struct {
	LessonID    string     `json:"lesson_id"`
	IsComplete  bool       `json:"is_complete"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ProgressDTO summarizes an enrollment.
type ProgressDTO struct {
	EnrollmentID     string              `json:"enrollment_id"`
	StudentID        string              `json:"student_id"`
	CourseID         string              `json:"course_id"`
	TotalLessons     int                 `json:"total_lessons"`
	CompletedLessons int                 `json:"completed_lessons"`
	Remaining        int                 `json:"remaining"`
	IsComplete       bool                `json:"is_complete"`
	Lessons          []LessonProgressDTO `json:"lessons"`
}

// GetProgressHandler serves progress lookups.
type GetProgressHandler struct {
	checker *progress.Checker
	repo    progress.Repository
}

// NewGetProgressHandler creates a new GetProgressHandler.
func NewGetProgressHandler(checker *progress.Checker, repo progress.Repository) *GetProgressHandler {
	return &GetProgressHandler{checker: checker, repo: repo}
}

// ByEnrollment returns NotFound for an unknown enrollment.
func (h *GetProgressHandler) ByEnrollment(ctx context.Context, enrollmentID string) (*ProgressDTO, error) {
	enrollment, snapshot, err := h.checker.Completion(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	rows, err := h.repo.ListByEnrollment(ctx, enrollment.ID)
	if err != nil {
		return nil, fmt.Errorf("get_progress: list: %w", err)
	}

	dto := &ProgressDTO{
		EnrollmentID:     enrollment.ID,
		StudentID:        enrollment.StudentID,
		CourseID:         enrollment.CourseID,
		TotalLessons:     snapshot.TotalLessons,
		CompletedLessons: snapshot.CompletedLessons,
		Remaining:        snapshot.Remaining(),
		IsComplete:       snapshot.IsComplete(),
		Lessons:          make([]LessonProgressDTO, 0, len(rows)),
	}
	for _, p := range rows {
		dto.Lessons = append(dto.Lessons, LessonProgressDTO{
			LessonID:    p.LessonID,
			IsComplete:  p.IsComplete,
			CompletedAt: p.CompletedAt,
		})
	}
	return dto, nil
}
