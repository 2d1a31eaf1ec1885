package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/completion-core/internal/domain/assessment"
	"github.com/learnhub/completion-core/internal/domain/catalog"
	"github.com/learnhub/completion-core/internal/domain/certificate"
	"github.com/learnhub/completion-core/internal/domain/notification"
	"github.com/learnhub/completion-core/internal/domain/shared"
)

func seeded() *Store {
	s := NewStore()
	s.AddUser(catalog.User{ID: "stu-1", Email: "stu@example.com"})
	s.AddCourse(catalog.Course{ID: "crs-1", Title: "Go"})
	s.AddLesson(catalog.Lesson{ID: "les-1", CourseID: "crs-1"})
	s.AddLesson(catalog.Lesson{ID: "les-2", CourseID: "crs-1"})
	s.AddLesson(catalog.Lesson{ID: "other", CourseID: "crs-2"})
	s.AddEnrollment(catalog.Enrollment{ID: "enr-1", StudentID: "stu-1", CourseID: "crs-1"})
	return s
}

func TestStore_MarkCompleteIsUpsert(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	first := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	p1, changed, err := s.MarkComplete(ctx, "enr-1", "les-1", first)
	require.NoError(t, err)
	assert.True(t, changed)

	p2, changed, err := s.MarkComplete(ctx, "enr-1", "les-1", first.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, first, *p2.CompletedAt)

	rows, err := s.ListByEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStore_CountCompletedIgnoresForeignLessons(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	now := time.Now()

	_, _, _ = s.MarkComplete(ctx, "enr-1", "les-1", now)
	_, _, _ = s.MarkComplete(ctx, "enr-1", "other", now)

	n, err := s.CountCompleted(ctx, "enr-1", "crs-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	byStudent, err := s.CountCompletedByStudent(ctx, "stu-1", "crs-1")
	require.NoError(t, err)
	assert.Equal(t, 1, byStudent)

	s.RemoveLesson("les-1")
	n, err = s.CountCompleted(ctx, "enr-1", "crs-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_CertificateUniquePerEnrollment(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	now := time.Now()

	require.NoError(t, s.Create(ctx, certificate.New("c-1", "enr-1", "stu-1", "crs-1", now)))
	err := s.Create(ctx, certificate.New("c-2", "enr-1", "stu-1", "crs-1", now))

	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, 1, s.CertificateCount())

	got, err := s.FindByEnrollment(ctx, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.ID)
}

func TestStore_CertificateCreateRace(t *testing.T) {
	ctx := context.Background()
	s := seeded()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Create(ctx, certificate.New(shared.NewID(), "enr-1", "stu-1", "crs-1", time.Now())); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, s.CertificateCount())
}

func TestStore_QuestionsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	s.PutQuestion(catalog.BankQuestion{ID: "q-1", CourseID: "crs-1", Options: []string{"a"}})

	qs, err := s.QuestionsForCourse(ctx, "crs-1")
	require.NoError(t, err)
	require.Len(t, qs, 1)
	qs[0].Options[0] = "mutated"

	again, _ := s.QuestionsForCourse(ctx, "crs-1")
	assert.Equal(t, "a", again[0].Options[0])

	s.DeleteQuestion("q-1")
	empty, _ := s.QuestionsForCourse(ctx, "crs-1")
	assert.Empty(t, empty)
}

func TestAssessmentStore_SubmissionsAppend(t *testing.T) {
	ctx := context.Background()
	repo := seeded().Assessments()
	asmt := &assessment.Assessment{ID: "a-1", CourseID: "crs-1", Questions: []assessment.Question{{ID: "aq-1", Marks: 1}}}
	require.NoError(t, repo.Create(ctx, asmt))

	for _, id := range []string{"s-1", "s-2"} {
		require.NoError(t, repo.CreateSubmission(ctx, &assessment.Submission{ID: id, AssessmentID: "a-1"}))
	}

	subs, err := repo.ListSubmissions(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "s-1", subs[0].ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestStore_EnrollmentLockSerializes(t *testing.T) {
	s := seeded()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WithEnrollmentLock(context.Background(), "enr-1", func(context.Context) error {
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestStore_Claim(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	state, err := s.Claim(ctx, "mailer", "ev-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, notification.ClaimAcquired, state)

	state, _ = s.Claim(ctx, "mailer", "ev-1", time.Minute)
	assert.Equal(t, notification.ClaimInFlight, state)

	state, _ = s.Claim(ctx, "other", "ev-1", time.Minute)
	assert.Equal(t, notification.ClaimAcquired, state, "claims are per consumer")

	require.NoError(t, s.Complete(ctx, "mailer", "ev-1", time.Hour))
	state, _ = s.Claim(ctx, "mailer", "ev-1", time.Minute)
	assert.Equal(t, notification.ClaimDone, state)

	require.NoError(t, s.Forget(ctx, "mailer", "ev-1"))
	state, _ = s.Claim(ctx, "mailer", "ev-1", time.Minute)
	assert.Equal(t, notification.ClaimAcquired, state)
}

func TestStore_ClaimsExpire(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_, _ = s.Claim(ctx, "mailer", "abandoned", time.Minute)
	_, _ = s.Claim(ctx, "mailer", "ev-1", time.Minute)
	require.NoError(t, s.Complete(ctx, "mailer", "ev-1", time.Hour))
	_, _ = s.Claim(ctx, "mailer", "ev-2", time.Minute)
	require.NoError(t, s.Complete(ctx, "mailer", "ev-2", 0))

	now = now.Add(2 * time.Minute)
	state, _ := s.Claim(ctx, "mailer", "abandoned", time.Minute)
	assert.Equal(t, notification.ClaimAcquired, state, "a lapsed lease is taken over")
	state, _ = s.Claim(ctx, "mailer", "ev-1", time.Minute)
	assert.Equal(t, notification.ClaimDone, state)

	now = now.Add(2 * time.Hour)
	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged, "the retaken lease and the done mark")

	state, _ = s.Claim(ctx, "mailer", "ev-1", time.Minute)
	assert.Equal(t, notification.ClaimAcquired, state, "expired mark can be claimed again")
	state, _ = s.Claim(ctx, "mailer", "ev-2", time.Minute)
	assert.Equal(t, notification.ClaimDone, state, "ttl 0 never lapses")
}

func TestStore_EnrollmentsAwaitingCertificate(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	s.AddEnrollment(catalog.Enrollment{ID: "enr-2", StudentID: "stu-1", CourseID: "crs-1"})
	s.AddEnrollment(catalog.Enrollment{ID: "enr-empty", StudentID: "stu-1", CourseID: "crs-none"})
	at := time.Now()

	for _, enr := range []string{"enr-1", "enr-2"} {
		for _, les := range []string{"les-1", "les-2"} {
			_, _, err := s.MarkComplete(ctx, enr, les, at)
			require.NoError(t, err)
		}
	}

	ids, err := s.EnrollmentsAwaitingCertificate(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-1", "enr-2"}, ids)

	require.NoError(t, s.Create(ctx, &certificate.Certificate{ID: "cert-1", EnrollmentID: "enr-1", StudentID: "stu-1", CourseID: "crs-1"}))
	ids, err = s.EnrollmentsAwaitingCertificate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"enr-2"}, ids)
}
