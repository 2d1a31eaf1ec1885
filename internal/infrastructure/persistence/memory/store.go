// Package memory is an in-process implementation of every repository and
// collaborator reader. It enforces the same unique keys as the PostgreSQL
// schema and is used by tests and by the "memory" storage driver.
package memory

import (
	"sync"
	"time"

	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/notification"
	"github.com/learnhub/completion-core/internal/domain/progress"
)

// Compile-time interface checks.
var (
	_ catalog.Reader                = (*Store)(nil)
	_ catalog.QuestionBank          = (*Store)(nil)
	_ progress.Repository           = (*Store)(nil)
	_ progress.Locker               = (*Store)(nil)
	_ certificate.Repository        = (*Store)(nil)
	_ notification.Log              = (*Store)(nil)
	_ notification.IdempotencyStore = (*Store)(nil)
)

type progressKey struct {
	enrollmentID string
	lessonID     string
}

// Store keeps everything in maps guarded by one RWMutex.
type Store struct {
	mu sync.RWMutex

	// catalog
	users       map[string]catalog.User
	courses     map[string]catalog.Course
	lessons     map[string]catalog.Lesson
	enrollments map[string]catalog.Enrollment
	questions   map[string]catalog.BankQuestion
	questionSeq []string

	// owned state
	progress          map[progressKey]*progress.LessonProgress
	certificates      map[string]*certificate.Certificate
	certByEnrollment  map[string]string
	assessments       map[string]*assessment.Assessment
	submissions       map[string]*assessment.Submission
	submissionsByAsmt map[string][]string
	notifications     []*notification.Notification
	processed         map[string]claim

	locks *keyedMutex
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:             make(map[string]catalog.User),
		courses:           make(map[string]catalog.Course),
		lessons:           make(map[string]catalog.Lesson),
		enrollments:       make(map[string]catalog.Enrollment),
		questions:         make(map[string]catalog.BankQuestion),
		progress:          make(map[progressKey]*progress.LessonProgress),
		certificates:      make(map[string]*certificate.Certificate),
		certByEnrollment:  make(map[string]string),
		assessments:       make(map[string]*assessment.Assessment),
		submissions:       make(map[string]*assessment.Submission),
		submissionsByAsmt: make(map[string][]string),
		processed:         make(map[string]claim),
		locks:             newKeyedMutex(),
		now:               time.Now,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Seeding (catalog data is owned elsewhere; these stand in for it)
// ──────────────────────────────────────────────────────────────────────────────

// AddUser stores or replaces a user.
func (s *Store) AddUser(u catalog.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddCourse stores or replaces a course.
func (s *Store) AddCourse(c catalog.Course) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courses[c.ID] = c
}

// AddLesson stores or replaces a lesson.
func (s *Store) AddLesson(l catalog.Lesson) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lessons[l.ID] = l
}

// RemoveLesson deletes a lesson from its course.
func (s *Store) RemoveLesson(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lessons, id)
}

// AddEnrollment stores or replaces an enrollment.
func (s *Store) AddEnrollment(e catalog.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[e.ID] = e
}

// PutQuestion stores or replaces a bank question.
func (s *Store) PutQuestion(q catalog.BankQuestion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		s.questionSeq = append(s.questionSeq, q.ID)
	}
	s.questions[q.ID] = copyQuestion(q)
}

// DeleteQuestion removes a bank question.
func (s *Store) DeleteQuestion(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.questions, id)
	for i, qid := range s.questionSeq {
		if qid == id {
			s.questionSeq = append(s.questionSeq[:i], s.questionSeq[i+1:]...)
			break
		}
	}
}

func copyQuestion(q catalog.BankQuestion) catalog.BankQuestion {
	out := q
	out.Options = append([]string(nil), q.Options...)
	if q.Marks != nil {
		m := *q.Marks
		out.Marks = &m
	}
	return out
}
