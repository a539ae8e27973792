package advisor_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hyperengineering/advisor"
)

func TestStudent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		st      advisor.Student
		wantErr bool
	}{
		{"valid new", advisor.Student{ID: "s1", CurrentYear: 1, Type: advisor.StudentNew}, false},
		{"valid returning", advisor.Student{ID: "s1", CurrentYear: 3, Type: advisor.StudentReturning}, false},
		{"missing id", advisor.Student{CurrentYear: 1, Type: advisor.StudentNew}, true},
		{"zero year", advisor.Student{ID: "s1", Type: advisor.StudentNew}, true},
		{"unknown type", advisor.Student{ID: "s1", CurrentYear: 1, Type: "transfer"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.st.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, advisor.ErrInvalidStudent) {
				t.Errorf("Validate() error = %v, want ErrInvalidStudent", err)
			}
		})
	}
}

func TestHistoryStatus_IsValid(t *testing.T) {
	for _, s := range []advisor.HistoryStatus{advisor.HistoryApproved, advisor.HistoryFailed, advisor.HistoryInProgress} {
		if !s.IsValid() {
			t.Errorf("%q.IsValid() = false", s)
		}
	}
	if advisor.HistoryStatus("passed").IsValid() {
		t.Error(`"passed".IsValid() = true`)
	}
}

func TestInferenceResult_JSONShape(t *testing.T) {
	g := 8.5
	res := advisor.InferenceResult{
		Status:   advisor.StatusManualSelection,
		Approved: []advisor.ApprovedCourse{{CourseRef: advisor.CourseRef{ID: "ALG1", Year: 1}, Grade: &g}},
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, key := range []string{"status", "message", "target_year", "enrolled", "dependencies", "eligible", "blocked", "suggestions", "approved", "explanation", "statistics"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("result JSON lacks %q", key)
		}
	}
	approved := raw["approved"].([]any)[0].(map[string]any)
	if approved["id"] != "ALG1" || approved["grade"] != 8.5 {
		t.Errorf("approved course JSON = %v, want embedded course fields and grade", approved)
	}
}
