package command

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

func TestMarkLessonComplete_FirstMarkChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)

	res, err := f.marker.Handle(ctx, MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "les-1"})
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.False(t, res.CourseCompleted)
	assert.Nil(t, res.Certificate)
	assert.Equal(t, "0/2", res.Before.String())
	assert.Equal(t, "1/2", res.After.String())
	require.NotNil(t, res.Progress.CompletedAt)
	assert.Equal(t, fixedNow, *res.Progress.CompletedAt)
	assert.Empty(t, f.publisher.ofType(shared.EventCourseCompleted))
}

func TestMarkLessonComplete_RepeatIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	cmd := MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "les-1"}

	first, err := f.marker.Handle(ctx, cmd)
	require.NoError(t, err)
	second, err := f.marker.Handle(ctx, cmd)
	require.NoError(t, err)

	assert.False(t, second.Changed)
	assert.Equal(t, first.Progress.ID, second.Progress.ID)
	assert.Equal(t, second.Before, second.After)

	rows, err := f.store.ListByEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMarkLessonComplete_LastLessonCompletesCourse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)

	_, err := f.marker.Handle(ctx, MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "les-1"})
	require.NoError(t, err)
	res, err := f.marker.Handle(ctx, MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "les-2"})
	require.NoError(t, err)

	assert.True(t, res.CourseCompleted)
	require.NotNil(t, res.Certificate)
	assert.Equal(t, "enr-1", res.Certificate.EnrollmentID)

	completed := f.publisher.ofType(shared.EventCourseCompleted)
	require.Len(t, completed, 1)
	event := completed[0].(shared.CourseCompletedEvent)
	assert.Equal(t, "stu-1", event.StudentID)
	assert.Equal(t, 2, event.TotalLessons)

	issued := f.publisher.ofType(shared.EventCertificateIssued)
	require.Len(t, issued, 1)
	assert.Equal(t, "stu@example.com", issued[0].(shared.CertificateIssuedEvent).StudentEmail)
	assert.Equal(t, "Go Basics", issued[0].(shared.CertificateIssuedEvent).CourseTitle)

	// re-marking after completion announces nothing new
	again, err := f.marker.Handle(ctx, MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "les-2"})
	require.NoError(t, err)
	assert.False(t, again.CourseCompleted)
	assert.Len(t, f.publisher.ofType(shared.EventCourseCompleted), 1)
	assert.Equal(t, 1, f.store.CertificateCount())
}

func TestMarkLessonComplete_ConcurrentMarksCompleteOnce(t *testing.T) {
	ctx := context.Background()
	const lessons = 8
	f := newFixture(lessons)

	var wg sync.WaitGroup
	errs := make(chan error, lessons*3)
	for round := 0; round < 3; round++ {
		for i := 1; i <= lessons; i++ {
			wg.Add(1)
			go func(lessonID string) {
				defer wg.Done()
				_, err := f.marker.Handle(ctx, MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: lessonID})
				errs <- err
			}(fmt.Sprintf("les-%d", i))
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Len(t, f.publisher.ofType(shared.EventCourseCompleted), 1)
	assert.Len(t, f.publisher.ofType(shared.EventCertificateIssued), 1)
	assert.Equal(t, 1, f.store.CertificateCount())
}

func TestMarkLessonComplete_LessonAddedAfterCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(2)
	require.NoError(t, f.completeAll(ctx, 2))

	cert, err := f.store.FindByEnrollment(ctx, "enr-1")
	require.NoError(t, err)

	f.store.AddLesson(catalog.Lesson{ID: "les-3", CourseID: "crs-1"})

	complete, err := f.issuer.checker.IsFullyComplete(ctx, "enr-1")
	require.NoError(t, err)
	assert.False(t, complete)

	res, err := f.marker.Handle(ctx, MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "les-3"})
	require.NoError(t, err)

	assert.True(t, res.CourseCompleted)
	require.NotNil(t, res.Certificate)
	assert.Equal(t, cert.ID, res.Certificate.ID)
	assert.Len(t, f.publisher.ofType(shared.EventCourseCompleted), 2)
	assert.Len(t, f.publisher.ofType(shared.EventCertificateIssued), 1)
	assert.Equal(t, 1, f.store.CertificateCount())
}

func TestMarkLessonComplete_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	f.store.AddLesson(catalog.Lesson{ID: "foreign", CourseID: "crs-2"})

	tests := []struct {
		name string
		cmd  MarkLessonCompleteCommand
	}{
		{"unknown enrollment", MarkLessonCompleteCommand{EnrollmentID: "nope", LessonID: "les-1"}},
		{"unknown lesson", MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "nope"}},
		{"lesson of another course", MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "foreign"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.marker.Handle(ctx, tt.cmd)
			require.Error(t, err)
			assert.True(t, shared.IsNotFound(err))
		})
	}

	rows, err := f.store.ListByEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMarkLessonComplete_PublishFailureKeepsProgress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(1)
	f.publisher.err = assert.AnError

	res, err := f.marker.Handle(ctx, MarkLessonCompleteCommand{EnrollmentID: "enr-1", LessonID: "les-1"})
	require.NoError(t, err)
	assert.True(t, res.CourseCompleted)
	require.NotNil(t, res.Certificate)
	assert.Equal(t, 1, f.store.CertificateCount())
}
