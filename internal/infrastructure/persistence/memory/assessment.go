package memory

import (
	"context"
	"fmt"

	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// AssessmentStore adapts Store to assessment.Repository. Store already uses
// Create/GetByID for certificates, so assessments get their own view.
type AssessmentStore struct {
	*Store
}

var _ assessment.Repository = AssessmentStore{}

// Assessments returns the assessment.Repository view of the store.
func (s *Store) Assessments() AssessmentStore {
	return AssessmentStore{Store: s}
}

// Create implements assessment.Repository.
func (a AssessmentStore) Create(_ context.Context, asmt *assessment.Assessment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.assessments[asmt.ID]; exists {
		return shared.NewDomainError("assessment", "Create", shared.ErrConflict, fmt.Sprintf("assessment %s already exists", asmt.ID))
	}
	a.assessments[asmt.ID] = copyAssessment(asmt)
	return nil
}

// GetByID implements assessment.Repository.
func (a AssessmentStore) GetByID(_ context.Context, id string) (*assessment.Assessment, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	asmt, ok := a.assessments[id]
	if !ok {
		return nil, shared.ErrAssessmentNotFound
	}
	return copyAssessment(asmt), nil
}

// CreateSubmission implements assessment.Repository.
func (a AssessmentStore) CreateSubmission(_ context.Context, sub *assessment.Submission) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.assessments[sub.AssessmentID]; !ok {
		return shared.ErrAssessmentNotFound
	}
	if _, exists := a.submissions[sub.ID]; exists {
		return shared.NewDomainError("assessment", "CreateSubmission", shared.ErrConflict, "submission already exists")
	}
	a.submissions[sub.ID] = copySubmission(sub)
	a.submissionsByAsmt[sub.AssessmentID] = append(a.submissionsByAsmt[sub.AssessmentID], sub.ID)
	return nil
}

// GetSubmission implements assessment.Repository.
func (a AssessmentStore) GetSubmission(_ context.Context, id string) (*assessment.Submission, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	sub, ok := a.submissions[id]
	if !ok {
		return nil, shared.ErrSubmissionNotFound
	}
	return copySubmission(sub), nil
}

// ListSubmissions implements assessment.Repository.
func (a AssessmentStore) ListSubmissions(_ context.Context, assessmentID string) ([]*assessment.Submission, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := a.submissionsByAsmt[assessmentID]
	out := make([]*assessment.Submission, 0, len(ids))
	for _, id := range ids {
		out = append(out, copySubmission(a.submissions[id]))
	}
	return out, nil
}

func copyAssessment(in *assessment.Assessment) *assessment.Assessment {
	out := *in
	out.Questions = make([]assessment.Question, len(in.Questions))
	for i, q := range in.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	return &out
}

func copySubmission(in *assessment.Submission) *assessment.Submission {
	out := *in
	out.Answers = make(map[string]string, len(in.Answers))
	for k, v := range in.Answers {
		out.Answers[k] = v
	}
	return &out
}
