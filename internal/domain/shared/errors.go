// Package shared contains common domain types, errors and events
// used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// ErrNotFound: referenced entity does not exist. Safe to surface.
	ErrNotFound = errors.New("entity not found")

	// ErrPreconditionNotMet: the request is valid but cannot be served yet
	// (course not completed, no questions, no lessons).
	ErrPreconditionNotMet = errors.New("precondition not met")

	// ErrConflict: a uniqueness guard rejected a write. Internal only.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput: malformed ids or payloads.
	ErrInvalidInput = errors.New("invalid input")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "certificate", "assessment"
	Op      string // Operation that failed, e.g., "MarkComplete"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching against both Kind and the wrapped error.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Catalog errors (collaborator lookups)
var (
	ErrEnrollmentNotFound = NewDomainError("catalog", "FindEnrollment", ErrNotFound, "enrollment not found")
	ErrCourseNotFound     = NewDomainError("catalog", "FindCourse", ErrNotFound, "course not found")
	ErrLessonNotFound     = NewDomainError("catalog", "FindLesson", ErrNotFound, "lesson not found")
	ErrUserNotFound       = NewDomainError("catalog", "FindUser", ErrNotFound, "user not found")
)

// Progress errors
var (
	ErrLessonNotInCourse = NewDomainError("progress", "MarkComplete", ErrNotFound, "lesson does not belong to the enrollment's course")
)

// Certificate errors
var (
	ErrCertificateNotFound = NewDomainError("certificate", "Find", ErrNotFound, "certificate not found")
	ErrCertificateExists   = NewDomainError("certificate", "Create", ErrConflict, "certificate already issued for enrollment")
	ErrCourseNotCompleted  = NewDomainError("certificate", "Issue", ErrPreconditionNotMet, "not all lessons completed")
)

// Assessment errors
var (
	ErrAssessmentNotFound = NewDomainError("assessment", "Find", ErrNotFound, "assessment not found")
	ErrSubmissionNotFound = NewDomainError("assessment", "FindSubmission", ErrNotFound, "submission not found")
	ErrNoLessons          = NewDomainError("assessment", "Generate", ErrPreconditionNotMet, "no lessons found for course")
	ErrNoQuestions        = NewDomainError("assessment", "Generate", ErrPreconditionNotMet, "no questions available for this course")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPreconditionNotMet checks if the error is a "not yet" error.
func IsPreconditionNotMet(err error) bool {
	return errors.Is(err, ErrPreconditionNotMet)
}

// IsConflict checks if the error is a uniqueness conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidInput checks if the error is a validation error.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
