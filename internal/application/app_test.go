package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/completion-core/internal/application/command"
	"github.com/learnhub/completion-core/internal/application/eventhandler"
	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/notification"
	"github.com/learnhub/completion-core/internal/infrastructure/messaging"
	"github.com/learnhub/completion-core/internal/infrastructure/persistence/memory"
	"github.com/learnhub/completion-core/internal/infrastructure/service"
	"github.com/learnhub/completion-core/pkg/logger"
)

func TestApplication_CompletionFlow(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()

	store := memory.NewStore()
	store.AddUser(catalog.User{ID: "stu-1", Email: "ada@example.com", DisplayName: "Ada"})
	store.AddCourse(catalog.Course{ID: "crs-1", Title: "Go Basics"})
	for i := 1; i <= 3; i++ {
		store.AddLesson(catalog.Lesson{ID: fmt.Sprintf("les-%d", i), CourseID: "crs-1"})
	}
	store.AddEnrollment(catalog.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1"})
	for i := 1; i <= 4; i++ {
		store.PutQuestion(catalog.BankQuestion{
			ID:            fmt.Sprintf("q-%d", i),
			CourseID:      "crs-1",
			Text:          fmt.Sprintf("Question %d?", i),
			CorrectAnswer: "yes",
		})
	}

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: log})
	t.Cleanup(func() { _ = bus.Close() })

	app := New(Dependencies{
		Catalog:      store,
		QuestionBank: store,
		Progress:     store,
		Locker:       store,
		Certificates: store,
		Assessments:  store.Assessments(),
		Publisher:    bus,
		Logger:       log,
		MaxQuestions: 10,
	})

	require.NoError(t, eventhandler.NewOnCourseCompletedHandler(app.Commands.IssueCertificate, log).Register(bus))
	notifier := eventhandler.NewNotificationHandler(store, store, service.NewLogSender(log), store, store, nil, log,
		eventhandler.DefaultNotificationConfig())
	require.NoError(t, notifier.Register(bus))

	// Lessons, then completion and the certificate.
	var last *command.MarkLessonCompleteResult
	for i := 1; i <= 3; i++ {
		res, err := app.Commands.MarkLessonComplete.Handle(ctx, command.MarkLessonCompleteCommand{
			EnrollmentID: "enr-1",
			LessonID:     fmt.Sprintf("les-%d", i),
		})
		require.NoError(t, err)
		last = res
	}
	require.True(t, last.CourseCompleted)
	require.NotNil(t, last.Certificate)
	assert.Equal(t, 1, store.CertificateCount())

	progressDTO, err := app.Queries.GetProgress.ByEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	assert.True(t, progressDTO.IsComplete)
	assert.Equal(t, 0, progressDTO.Remaining)

	certs, err := app.Queries.ListCertificates.ByStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, last.Certificate.ID, certs[0].ID)
	assert.Equal(t, "Go Basics", certs[0].CourseTitle)

	// Final assessment.
	view, err := app.Commands.GenerateFinalAssessment.Handle(ctx, command.GenerateFinalAssessmentCommand{StudentID: "stu-1", CourseID: "crs-1"})
	require.NoError(t, err)
	require.Len(t, view.Questions, 4)

	answers := map[string]string{
		view.Questions[0].ID: " YES ",
		view.Questions[1].ID: "yes",
		view.Questions[2].ID: "no",
	}
	sub, err := app.Commands.SubmitAssessment.Handle(ctx, command.SubmitAssessmentCommand{
		StudentID:    "stu-1",
		AssessmentID: view.ID,
		Answers:      answers,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Score)
	assert.Equal(t, 4, sub.TotalMarks)
	assert.InDelta(t, 50.0, sub.Percentage, 0.001)
	assert.True(t, sub.Passed)

	stored, err := app.Queries.GetAssessment.Submissions(ctx, view.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	// One certificate notice and one assessment result.
	sent, err := store.ListByRecipient(ctx, "stu-1", 0)
	require.NoError(t, err)
	types := make([]notification.Type, 0, len(sent))
	for _, n := range sent {
		assert.Equal(t, notification.StatusSent, n.Status)
		types = append(types, n.Type)
	}
	assert.ElementsMatch(t, []notification.Type{notification.TypeCertificateIssued, notification.TypeAssessmentResult}, types)
}

func TestNew_DefaultsMaxQuestions(t *testing.T) {
	store := memory.NewStore()
	app := New(Dependencies{
		Catalog:      store,
		QuestionBank: store,
		Progress:     store,
		Locker:       store,
		Certificates: store,
		Assessments:  store.Assessments(),
		Publisher:    messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Discard()}),
	})

	assert.NotNil(t, app.Commands.MarkLessonComplete)
	assert.NotNil(t, app.Commands.IssueCertificate)
	assert.NotNil(t, app.Commands.GenerateFinalAssessment)
	assert.NotNil(t, app.Commands.SubmitAssessment)
	assert.NotNil(t, app.Queries.GetProgress)
	assert.NotNil(t, app.Queries.ListCertificates)
	assert.NotNil(t, app.Queries.GetAssessment)
}
