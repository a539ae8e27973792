package advisor_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hyperengineering/advisor"
)

func TestSession_Track(t *testing.T) {
	s := advisor.NewSession()

	if ref := s.Track("s1", "PRG2"); ref != "S1" {
		t.Errorf("first ref = %q, want S1", ref)
	}
	if ref := s.Track("s1", "RED2"); ref != "S2" {
		t.Errorf("second ref = %q, want S2", ref)
	}
	if ref := s.Track("s1", "PRG2"); ref != "S1" {
		t.Errorf("repeat ref = %q, want S1", ref)
	}
	if ref := s.Track("s2", "PRG2"); ref != "S3" {
		t.Errorf("other student ref = %q, want S3", ref)
	}
	if s.Count() != 3 {
		t.Errorf("Count() = %d, want 3", s.Count())
	}
}

func TestSession_Resolve(t *testing.T) {
	s := advisor.NewSession()
	s.Track("s1", "PRG2")

	for _, ref := range []string{"S1", "s1", " S1 "} {
		got, ok := s.Resolve(ref)
		if !ok {
			t.Errorf("Resolve(%q) not found", ref)
			continue
		}
		if diff := cmp.Diff(advisor.SuggestionRef{StudentID: "s1", CourseID: "PRG2"}, got); diff != "" {
			t.Errorf("Resolve(%q) mismatch (-want +got):\n%s", ref, diff)
		}
	}
	if _, ok := s.Resolve("S9"); ok {
		t.Error("Resolve(S9) found a reference")
	}
}

func TestSession_CourseFor(t *testing.T) {
	s := advisor.NewSession()
	s.Track("s1", "PRG2")

	tests := []struct {
		student, ref, want string
	}{
		{"s1", "S1", "PRG2"},
		{"s1", "MAT2", "MAT2"},
		{"s2", "S1", "S1"},
	}
	for _, tt := range tests {
		if got := s.CourseFor(tt.student, tt.ref); got != tt.want {
			t.Errorf("CourseFor(%s, %s) = %q, want %q", tt.student, tt.ref, got, tt.want)
		}
	}
}

func TestSession_AllAndClear(t *testing.T) {
	s := advisor.NewSession()
	s.Track("s1", "PRG2")
	s.Track("s1", "RED2")

	all := s.All()
	want := map[string]advisor.SuggestionRef{
		"S1": {StudentID: "s1", CourseID: "PRG2"},
		"S2": {StudentID: "s1", CourseID: "RED2"},
	}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("All() mismatch (-want +got):\n%s", diff)
	}
	delete(all, "S1")
	if s.Count() != 2 {
		t.Error("All() returned the session's own map")
	}

	s.Clear()
	if s.Count() != 0 {
		t.Errorf("Count() after Clear = %d", s.Count())
	}
	if ref := s.Track("s1", "BDD2"); ref != "S1" {
		t.Errorf("numbering after Clear = %q, want S1", ref)
	}
}

func TestSession_Concurrent(t *testing.T) {
	s := advisor.NewSession()
	courses := []string{"POR2", "MAT2", "FIS2", "QUI2", "GEO2", "PRG2", "RED2", "BDD2"}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range courses {
				s.Track("s1", c)
			}
		}()
	}
	wg.Wait()

	if s.Count() != len(courses) {
		t.Errorf("Count() = %d, want %d", s.Count(), len(courses))
	}
}
