// Package catalog defines the collaborators this service reads but does not own:
// enrollments, courses, lessons, users and the per-course question bank.
//
// Every reader returns a shared NotFound error for unknown ids. Implementations
// live in infrastructure/persistence (PostgreSQL read models and an in-memory store).
package catalog

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment is a student's registration in a course.
type Enrollment struct {
	ID        string
	StudentID string
	CourseID  string
}

// Course is the part of a course this service needs.
type Course struct {
	ID    string
	Title string
}

// Lesson belongs to exactly one course.
type Lesson struct {
	ID       string
	CourseID string
	Title    string
}

// User is a student or any other account referenced by id.
type User struct {
	ID          string
	Email       string
	DisplayName string
}

// BankQuestion is a mutable question in a course's question bank.
type BankQuestion struct {
	ID            string
	CourseID      string
	Text          string
	Options       []string
	CorrectAnswer string

	// Marks is nil when the author did not set it.
	Marks *int
}

// DefaultMarks is awarded for a question without explicit marks.
const DefaultMarks = 1

// EffectiveMarks returns the marks with the default applied.
func (q BankQuestion) EffectiveMarks() int {
	if q.Marks == nil {
		return DefaultMarks
	}
	return *q.Marks
}

// ══════════════════════════════════════════════════════════════════════════════
// READERS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentReader resolves enrollments.
type EnrollmentReader interface {
	// FindEnrollment returns ErrEnrollmentNotFound for an unknown id.
	FindEnrollment(ctx context.Context, id string) (*Enrollment, error)
}

// CourseReader resolves courses and their lessons.
type CourseReader interface {
	// FindCourse returns ErrCourseNotFound for an unknown id.
	FindCourse(ctx context.Context, id string) (*Course, error)

	// FindLesson returns ErrLessonNotFound for an unknown id.
	FindLesson(ctx context.Context, id string) (*Lesson, error)

	// LessonExists reports whether a lesson with this id exists.
	LessonExists(ctx context.Context, lessonID string) (bool, error)

	// LessonCount returns the number of lessons currently in the course.
	LessonCount(ctx context.Context, courseID string) (int, error)
}

// UserReader resolves users.
type UserReader interface {
	// FindUser returns ErrUserNotFound for an unknown id.
	FindUser(ctx context.Context, id string) (*User, error)
}

// QuestionBank is read-only from this service's point of view.
type QuestionBank interface {
	// QuestionsForCourse returns every question tagged with the course.
	// An unknown course yields an empty slice.
	QuestionsForCourse(ctx context.Context, courseID string) ([]BankQuestion, error)
}

// Reader bundles every collaborator lookup.
type Reader interface {
	EnrollmentReader
	CourseReader
	UserReader
}
