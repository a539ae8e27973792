package advisor

import (
	"fmt"
	"strings"
	"sync"
)

// SuggestionRef identifies a suggested course for one student.
type SuggestionRef struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
}

// Session hands out short references (S1, S2, ...) for suggested courses so
// a later enrollment can name them without repeating course ids.
type Session struct {
	mu      sync.Mutex
	refs    map[string]SuggestionRef
	reverse map[SuggestionRef]string
	counter int
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		refs:    make(map[string]SuggestionRef),
		reverse: make(map[SuggestionRef]string),
	}
}

// Track returns the session reference of the student's course, allocating one
// on first sight.
func (s *Session) Track(studentID, courseID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := SuggestionRef{StudentID: studentID, CourseID: courseID}
	if ref, ok := s.reverse[key]; ok {
		return ref
	}

	s.counter++
	ref := fmt.Sprintf("S%d", s.counter)
	s.refs[ref] = key
	s.reverse[key] = ref
	return ref
}

// Resolve converts a session reference. References are case-insensitive.
func (s *Session) Resolve(ref string) (SuggestionRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.refs[strings.ToUpper(strings.TrimSpace(ref))]
	return r, ok
}

// CourseFor resolves ref for studentID. Anything that is not a reference
// owned by the student is returned unchanged as a course id.
func (s *Session) CourseFor(studentID, ref string) string {
	if r, ok := s.Resolve(ref); ok && r.StudentID == studentID {
		return r.CourseID
	}
	return ref
}

// All returns every tracked reference.
func (s *Session) All() map[string]SuggestionRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]SuggestionRef, len(s.refs))
	for ref, r := range s.refs {
		result[ref] = r
	}
	return result
}

// Count returns the number of tracked references.
func (s *Session) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

// Clear forgets every reference and restarts numbering.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs = make(map[string]SuggestionRef)
	s.reverse = make(map[SuggestionRef]string)
	s.counter = 0
}
