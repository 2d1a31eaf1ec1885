package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKind(t *testing.T) {
	wrapped := fmt.Errorf("issue certificate: %w", ErrEnrollmentNotFound)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, errors.Is(wrapped, ErrEnrollmentNotFound))
	assert.False(t, errors.Is(wrapped, ErrCourseNotFound))
	assert.False(t, IsPreconditionNotMet(wrapped))
}

func TestDomainError_WrapKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := WrapError("certificate", "Create", ErrConflict, "certificate already issued", cause)

	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "certificate.Create: certificate already issued: duplicate key", err.Error())
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsPreconditionNotMet(ErrCourseNotCompleted))
	assert.True(t, IsPreconditionNotMet(ErrNoQuestions))
	assert.True(t, IsPreconditionNotMet(ErrNoLessons))
	assert.True(t, IsConflict(ErrCertificateExists))
	assert.True(t, IsInvalidInput(NewDomainError("assessment", "Submit", ErrInvalidInput, "blank id")))
	assert.True(t, IsNotFound(ErrLessonNotInCourse))
	assert.True(t, IsRetryable(fmt.Errorf("publish: %w", ErrServiceUnavailable)))
}

func TestNewBaseEvent(t *testing.T) {
	ev := NewCourseCompletedEvent("enr-1", "stu-1", "crs-1", 3, SystemClock())

	assert.NotEmpty(t, ev.EventID())
	assert.Equal(t, EventCourseCompleted, ev.EventType())
	assert.Equal(t, "enr-1", ev.AggregateID())
	assert.Equal(t, 1, ev.Version)

	other := NewCourseCompletedEvent("enr-1", "stu-1", "crs-1", 3, SystemClock())
	assert.NotEqual(t, ev.EventID(), other.EventID())
}
