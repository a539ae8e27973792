package advisor_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hyperengineering/advisor"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&advisor.ValidationError{Field: "LocalPath", Message: "required"}, "config: LocalPath: required"},
		{&advisor.FactError{Fact: "student_year", Err: advisor.ErrMissingFact}, `fact "student_year": required fact is missing`},
		{&advisor.RuleError{RuleID: "R4", Phase: "when", Cause: "nil course"}, "rule R4: when failed: nil course"},
		{&advisor.CurriculumError{Message: "course without id"}, "curriculum: course without id"},
		{&advisor.CurriculumError{CourseID: "MAT2", Message: "duplicate id"}, `curriculum: course "MAT2": duplicate id`},
		{&advisor.CycleError{Path: []string{"A", "B", "A"}}, "curriculum: prerequisite cycle: A -> B -> A"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestFactError_Unwrap(t *testing.T) {
	err := fmt.Errorf("infer: %w", &advisor.FactError{Fact: "student_year", Err: advisor.ErrMissingFact})

	if !errors.Is(err, advisor.ErrMissingFact) {
		t.Error("errors.Is(err, ErrMissingFact) = false")
	}
	var fe *advisor.FactError
	if !errors.As(err, &fe) || fe.Fact != "student_year" {
		t.Errorf("errors.As() = %v", fe)
	}
}
