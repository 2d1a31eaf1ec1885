package command

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

func intPtr(v int) *int { return &v }

func TestGenerateFinalAssessment_SamplesAtMostTen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	require.NoError(t, f.completeAll(ctx, 2))
	f.addQuestions(12)

	view, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "crs-1"})
	require.NoError(t, err)

	require.Len(t, view.Questions, assessment.MaxQuestions)
	assert.Equal(t, "Final Assessment for Go Basics", view.Title)
	assert.Equal(t, assessment.Description, view.Description)
	assert.Equal(t, assessment.MaxQuestions, view.TotalMarks)
	assert.Equal(t, fixedNow, view.CreatedAt)

	seen := make(map[string]bool)
	for i, q := range view.Questions {
		assert.Equal(t, i+1, q.Position)
		assert.False(t, seen[q.Text], "question sampled twice: %s", q.Text)
		seen[q.Text] = true
	}

	stored, err := f.store.Assessments().GetByID(ctx, view.ID)
	require.NoError(t, err)
	for _, q := range stored.Questions {
		assert.Equal(t, "b", q.CorrectAnswer)
		assert.True(t, strings.HasPrefix(q.SourceQuestionID, "q-"))
	}
}

func TestGenerateFinalAssessment_SmallBankUsesAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	require.NoError(t, f.completeAll(ctx, 1))
	f.addQuestions(2)
	f.store.PutQuestion(catalog.BankQuestion{
		ID: "q-heavy", CourseID: "crs-1", Text: "Heavy?", CorrectAnswer: "x", Marks: intPtr(5),
	})

	view, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "crs-1"})
	require.NoError(t, err)
	assert.Len(t, view.Questions, 3)
	assert.Equal(t, 7, view.TotalMarks)
}

func TestGenerateFinalAssessment_FrozenAgainstBankEdits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	require.NoError(t, f.completeAll(ctx, 1))
	f.addQuestions(1)

	view, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "crs-1"})
	require.NoError(t, err)

	f.store.PutQuestion(catalog.BankQuestion{
		ID: "q-1", CourseID: "crs-1", Text: "Rewritten", Options: []string{"z"}, CorrectAnswer: "z",
	})
	f.store.DeleteQuestion("q-1")

	stored, err := f.store.Assessments().GetByID(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, stored.Questions, 1)
	assert.Equal(t, "Question 1?", stored.Questions[0].Text)
	assert.Equal(t, []string{"a", "b", "c"}, stored.Questions[0].Options)
	assert.Equal(t, "b", stored.Questions[0].CorrectAnswer)
}

func TestGenerateFinalAssessment_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown student", func(t *testing.T) {
		f := newFixture(1)
		_, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "ghost", CourseID: "crs-1"})
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("unknown course", func(t *testing.T) {
		f := newFixture(1)
		_, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "ghost"})
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("course without lessons", func(t *testing.T) {
		f := newFixture(0)
		f.addQuestions(3)
		_, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "crs-1"})
		assert.ErrorIs(t, err, shared.ErrNoLessons)
	})

	t.Run("lessons remaining", func(t *testing.T) {
		f := newFixture(3)
		f.addQuestions(3)
		require.NoError(t, f.completeAll(ctx, 1))
		_, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "crs-1"})
		require.Error(t, err)
		assert.True(t, shared.IsPreconditionNotMet(err))
		assert.Contains(t, err.Error(), "1/3")
	})

	t.Run("empty bank", func(t *testing.T) {
		f := newFixture(1)
		require.NoError(t, f.completeAll(ctx, 1))
		_, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "crs-1"})
		assert.ErrorIs(t, err, shared.ErrNoQuestions)
	})
}

func generated(t *testing.T, f *fixture) *assessment.Assessment {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.completeAll(ctx, 1))
	view, err := f.generate.Handle(ctx, GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "crs-1"})
	require.NoError(t, err)
	a, err := f.store.Assessments().GetByID(ctx, view.ID)
	require.NoError(t, err)
	return a
}

func TestSubmitAssessment_Scores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	f.addQuestions(4)
	a := generated(t, f)

	answers := map[string]string{
		a.Questions[0].ID: "  B ",
		a.Questions[1].ID: "b",
		a.Questions[2].ID: "c",
		"not-a-question":  "b",
	}

	sub, err := f.submit.Handle(ctx, SubmitAssessmentCommand{StudentID: "stu-1", AssessmentID: a.ID, Answers: answers})
	require.NoError(t, err)

	assert.Equal(t, 2, sub.Score)
	assert.Equal(t, 4, sub.TotalMarks)
	assert.Equal(t, 50.0, sub.Percentage)
	assert.True(t, sub.Passed)
	assert.Equal(t, fixedNow, sub.SubmittedAt)
	assert.Equal(t, answers, sub.Answers)

	events := f.publisher.ofType(shared.EventAssessmentSubmitted)
	require.Len(t, events, 1)
	event := events[0].(shared.AssessmentSubmittedEvent)
	assert.Equal(t, sub.ID, event.SubmissionID)
	assert.Equal(t, "crs-1", event.CourseID)
	assert.True(t, event.Passed)
}

func TestSubmitAssessment_EachAttemptStored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	f.addQuestions(3)
	a := generated(t, f)

	first, err := f.submit.Handle(ctx, SubmitAssessmentCommand{StudentID: "stu-1", AssessmentID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, first.Score)
	assert.False(t, first.Passed)

	all := make(map[string]string)
	for _, q := range a.Questions {
		all[q.ID] = "B"
	}
	second, err := f.submit.Handle(ctx, SubmitAssessmentCommand{StudentID: "stu-1", AssessmentID: a.ID, Answers: all})
	require.NoError(t, err)
	assert.Equal(t, 100.0, second.Percentage)

	subs, err := f.store.Assessments().ListSubmissions(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, 0, subs[0].Score)
	assert.Equal(t, 3, subs[1].Score)
}

func TestSubmitAssessment_ZeroMarks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	f.store.PutQuestion(catalog.BankQuestion{ID: "q-free", CourseID: "crs-1", Text: "Free?", CorrectAnswer: "yes", Marks: intPtr(0)})
	a := generated(t, f)

	sub, err := f.submit.Handle(ctx, SubmitAssessmentCommand{
		StudentID:    "stu-1",
		AssessmentID: a.ID,
		Answers:      map[string]string{a.Questions[0].ID: "yes"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, sub.TotalMarks)
	assert.Equal(t, 0.0, sub.Percentage)
	assert.False(t, sub.Passed)
}

func TestSubmitAssessment_Rejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	f.addQuestions(1)
	a := generated(t, f)

	tests := []struct {
		name  string
		cmd   SubmitAssessmentCommand
		check func(error) bool
	}{
		{"blank student", SubmitAssessmentCommand{StudentID: "  ", AssessmentID: a.ID}, shared.IsInvalidInput},
		{"blank assessment", SubmitAssessmentCommand{StudentID: "stu-1", AssessmentID: ""}, shared.IsInvalidInput},
		{"blank answer key", SubmitAssessmentCommand{StudentID: "stu-1", AssessmentID: a.ID, Answers: map[string]string{" ": "b"}}, shared.IsInvalidInput},
		{"unknown assessment", SubmitAssessmentCommand{StudentID: "stu-1", AssessmentID: "ghost"}, shared.IsNotFound},
		{"unknown student", SubmitAssessmentCommand{StudentID: "ghost", AssessmentID: a.ID}, shared.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.submit.Handle(ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	subs, err := f.store.Assessments().ListSubmissions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
