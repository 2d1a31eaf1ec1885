package assessment

import "context"

// Repository persists assessments and submissions.
type Repository interface {
	// Create stores the assessment together with its question copies,
	// atomically.
	Create(ctx context.Context, a *Assessment) error

	// GetByID loads an assessment with its questions ordered by position.
	// Returns shared.ErrAssessmentNotFound when absent.
	GetByID(ctx context.Context, id string) (*Assessment, error)

	// CreateSubmission appends a submission. Existing ones are never touched.
	CreateSubmission(ctx context.Context, s *Submission) error

	// GetSubmission returns shared.ErrSubmissionNotFound when absent.
	GetSubmission(ctx context.Context, id string) (*Submission, error)

	// ListSubmissions returns the assessment's submissions, oldest first.
	ListSubmissions(ctx context.Context, assessmentID string) ([]*Submission, error)
}
