package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLessonProgress_MarkCompleteKeepsFirstTimestamp(t *testing.T) {
	p := NewLessonProgress("lp-1", "enr-1", "les-1")
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, p.MarkComplete(first))
	assert.False(t, p.MarkComplete(first.Add(time.Hour)))

	require.NotNil(t, p.CompletedAt)
	assert.True(t, p.IsComplete)
	assert.Equal(t, first, *p.CompletedAt)
}

func TestCompletion_IsComplete(t *testing.T) {
	tests := []struct {
		name string
		c    Completion
		want bool
	}{
		{"no lessons", Completion{TotalLessons: 0, CompletedLessons: 0}, false},
		{"partial", Completion{TotalLessons: 2, CompletedLessons: 1}, false},
		{"all", Completion{TotalLessons: 2, CompletedLessons: 2}, true},
		{"lesson added later", Completion{TotalLessons: 3, CompletedLessons: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.IsComplete())
		})
	}
}

func TestCompletion_RemainingAndString(t *testing.T) {
	c := Completion{TotalLessons: 3, CompletedLessons: 1}
	assert.Equal(t, 2, c.Remaining())
	assert.Equal(t, "1/3", c.String())
	assert.Equal(t, 0, Completion{TotalLessons: 1, CompletedLessons: 1}.Remaining())
}

func TestTransition_BecameComplete(t *testing.T) {
	incomplete := Completion{TotalLessons: 2, CompletedLessons: 1}
	complete := Completion{TotalLessons: 2, CompletedLessons: 2}

	assert.True(t, Transition{Before: incomplete, After: complete}.BecameComplete())
	assert.False(t, Transition{Before: complete, After: complete}.BecameComplete())
	assert.False(t, Transition{Before: incomplete, After: incomplete}.BecameComplete())
}
