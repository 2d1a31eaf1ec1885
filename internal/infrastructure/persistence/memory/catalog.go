package memory

import (
	"context"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// FindEnrollment implements catalog.EnrollmentReader.
func (s *Store) FindEnrollment(_ context.Context, id string) (*catalog.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.enrollments[id]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return &e, nil
}

// FindCourse implements catalog.CourseReader.
func (s *Store) FindCourse(_ context.Context, id string) (*catalog.Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[id]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return &c, nil
}

// FindLesson implements catalog.CourseReader.
func (s *Store) FindLesson(_ context.Context, id string) (*catalog.Lesson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lessons[id]
	if !ok {
		return nil, shared.ErrLessonNotFound
	}
	return &l, nil
}

// LessonExists implements catalog.CourseReader.
func (s *Store) LessonExists(_ context.Context, lessonID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.lessons[lessonID]
	return ok, nil
}

// LessonCount implements catalog.CourseReader.
func (s *Store) LessonCount(_ context.Context, courseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.lessons {
		if l.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// FindUser implements catalog.UserReader.
func (s *Store) FindUser(_ context.Context, id string) (*catalog.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return &u, nil
}

// QuestionsForCourse implements catalog.QuestionBank. Insertion order is kept.
func (s *Store) QuestionsForCourse(_ context.Context, courseID string) ([]catalog.BankQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.BankQuestion, 0)
	for _, id := range s.questionSeq {
		q := s.questions[id]
		if q.CourseID == courseID {
			out = append(out, copyQuestion(q))
		}
	}
	return out, nil
}
