package command

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/progress"
	"github.com/learnhub/completion-core/internal/domain/shared"
	"github.com/learnhub/completion-core/internal/infrastructure/persistence/memory"
	"github.com/learnhub/completion-core/pkg/logger"
)

var fixedNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) ofType(t shared.EventType) []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store     *memory.Store
	publisher *recordingPublisher
	log       *slog.Logger

	issuer   *IssueCertificateHandler
	marker   *MarkLessonCompleteHandler
	generate *GenerateFinalAssessmentHandler
	submit   *SubmitAssessmentHandler
}

// newFixture seeds student stu-1 enrolled (enr-1) in crs-1 with the given
// number of lessons les-1..les-N.
func newFixture(lessons int) *fixture {
	store := memory.NewStore()
	store.AddUser(catalog.User{ID: "stu-1", Email: "stu@example.com", DisplayName: "Ada"})
	store.AddCourse(catalog.Course{ID: "crs-1", Title: "Go Basics"})
	for i := 1; i <= lessons; i++ {
		store.AddLesson(catalog.Lesson{ID: fmt.Sprintf("les-%d", i), CourseID: "crs-1"})
	}
	store.AddEnrollment(catalog.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1"})

	f := &fixture{
		store:     store,
		publisher: &recordingPublisher{},
		log:       logger.Discard(),
	}

	checker := progress.NewChecker(store, store, store)
	f.issuer = NewIssueCertificateHandler(store, checker, store, f.publisher, fixedClock, f.log)
	f.marker = NewMarkLessonCompleteHandler(store, store, store, store, checker, f.issuer, f.publisher, fixedClock, f.log)
	f.generate = NewGenerateFinalAssessmentHandler(store, store, store, store, store.Assessments(), fixedClock, f.log,
		GenerateFinalAssessmentConfig{MaxQuestions: 10, Rand: rand.New(rand.NewPCG(1, 2))})
	f.submit = NewSubmitAssessmentHandler(store, store.Assessments(), f.publisher, fixedClock, f.log)
	return f
}

func (f *fixture) completeAll(ctx context.Context, lessons int) error {
	for i := 1; i <= lessons; i++ {
		if _, err := f.marker.Handle(ctx, MarkLessonCompleteCommand{
			EnrollmentID: "enr-1",
			LessonID:     fmt.Sprintf("les-%d", i),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fixture) addQuestions(n int) {
	for i := 1; i <= n; i++ {
		f.store.PutQuestion(catalog.BankQuestion{
			ID:            fmt.Sprintf("q-%d", i),
			CourseID:      "crs-1",
			Text:          fmt.Sprintf("Question %d?", i),
			Options:       []string{"a", "b", "c"},
			CorrectAnswer: "b",
		})
	}
}
