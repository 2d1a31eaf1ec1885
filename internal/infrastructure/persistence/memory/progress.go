package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/learnhub/completion-core/internal/domain/progress"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

// MarkComplete implements progress.Repository.
func (s *Store) MarkComplete(_ context.Context, enrollmentID, lessonID string, at time.Time) (*progress.LessonProgress, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := progressKey{enrollmentID: enrollmentID, lessonID: lessonID}
	p, ok := s.progress[key]
	if !ok {
		p = progress.NewLessonProgress(shared.NewID(), enrollmentID, lessonID)
		s.progress[key] = p
	}
	changed := p.MarkComplete(at)
	return copyProgress(p), changed, nil
}

// Get implements progress.Repository.
func (s *Store) Get(_ context.Context, enrollmentID, lessonID string) (*progress.LessonProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.progress[progressKey{enrollmentID: enrollmentID, lessonID: lessonID}]
	if !ok {
		return nil, shared.NewDomainError("progress", "Get", shared.ErrNotFound, "lesson progress not found")
	}
	return copyProgress(p), nil
}

// ListByEnrollment implements progress.Repository.
func (s *Store) ListByEnrollment(_ context.Context, enrollmentID string) ([]*progress.LessonProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*progress.LessonProgress, 0)
	for key, p := range s.progress {
		if key.enrollmentID == enrollmentID {
			out = append(out, copyProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out, nil
}

// CountCompleted implements progress.Repository.
func (s *Store) CountCompleted(_ context.Context, enrollmentID, courseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key, p := range s.progress {
		if key.enrollmentID != enrollmentID || !p.IsComplete {
			continue
		}
		if l, ok := s.lessons[key.lessonID]; ok && l.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// CountCompletedByStudent implements progress.Repository.
func (s *Store) CountCompletedByStudent(_ context.Context, studentID, courseID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	done := make(map[string]struct{})
	for key, p := range s.progress {
		if !p.IsComplete {
			continue
		}
		e, ok := s.enrollments[key.enrollmentID]
		if !ok || e.StudentID != studentID || e.CourseID != courseID {
			continue
		}
		if l, ok := s.lessons[key.lessonID]; ok && l.CourseID == courseID {
			done[key.lessonID] = struct{}{}
		}
	}
	return len(done), nil
}

// WithEnrollmentLock implements progress.Locker for a single process.
func (s *Store) WithEnrollmentLock(ctx context.Context, enrollmentID string, fn func(ctx context.Context) error) error {
	unlock := s.locks.lock(enrollmentID)
	defer unlock()
	return fn(ctx)
}

func copyProgress(p *progress.LessonProgress) *progress.LessonProgress {
	out := *p
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		out.CompletedAt = &at
	}
	return &out
}

// ──────────────────────────────────────────────────────────────────────────────
// keyedMutex
// ──────────────────────────────────────────────────────────────────────────────

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
