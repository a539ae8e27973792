package advisor

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the advisor packages.
var (
	// ErrNotFound is returned when a student or record is not found.
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrMissingFact is returned when a fact required by the engine is absent.
	ErrMissingFact = errors.New("required fact is missing")

	// ErrConflictingHistory is returned when a course appears in more than one
	// of the approved, failed and in-progress lists.
	ErrConflictingHistory = errors.New("course appears in more than one history list")

	// ErrUnknownCourse is returned when a course id is not in the curriculum.
	ErrUnknownCourse = errors.New("unknown course")

	// ErrInvalidStudent is returned when student data fails validation.
	ErrInvalidStudent = errors.New("invalid student")

	// ErrInvalidStatus is returned when a history status is not recognised.
	ErrInvalidStatus = errors.New("invalid history status")
)

// ValidationError is returned when configuration validation fails.
// Extractable via errors.As().
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// FactError reports a problem with a named fact.
// Extractable via errors.As(). Supports Unwrap().
type FactError struct {
	Fact string
	Err  error
}

func (e *FactError) Error() string {
	return fmt.Sprintf("fact %q: %v", e.Fact, e.Err)
}

func (e *FactError) Unwrap() error { return e.Err }

// RuleError is produced when a rule predicate or action panics. The engine
// treats the rule as not firing and keeps going.
type RuleError struct {
	RuleID string
	Phase  string // "when" or "then"
	Cause  any
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %s failed: %v", e.RuleID, e.Phase, e.Cause)
}

// CurriculumError is returned when a curriculum document cannot be loaded.
type CurriculumError struct {
	CourseID string
	Message  string
}

func (e *CurriculumError) Error() string {
	if e.CourseID == "" {
		return fmt.Sprintf("curriculum: %s", e.Message)
	}
	return fmt.Sprintf("curriculum: course %q: %s", e.CourseID, e.Message)
}

// CycleError is returned by strict curriculum validation when the
// prerequisite graph contains a cycle. Path starts and ends on the same id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("curriculum: prerequisite cycle: %s", strings.Join(e.Path, " -> "))
}
