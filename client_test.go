package advisor_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hyperengineering/advisor"
)

func newTestClient(t *testing.T) *advisor.Client {
	t.Helper()
	client, err := advisor.New(advisor.Config{
		LocalPath: filepath.Join(t.TempDir(), "advisor.db"),
		Program:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := advisor.New(advisor.Config{LocalPath: filepath.Join(t.TempDir(), "a.db"), Program: "Not Valid"})
	var ve *advisor.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("New() error = %v, want *ValidationError", err)
	}
}

func TestNew_CustomCurriculum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curriculum.yaml")
	doc := "program: mini\ncourses:\n  - {id: A, name: Alpha, year: 1}\n  - {id: B, name: Beta, year: 1, prerequisites: [A]}\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	client, err := advisor.New(advisor.Config{
		LocalPath:        filepath.Join(dir, "advisor.db"),
		Program:          "mini",
		CurriculumPath:   path,
		StrictCurriculum: true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if client.Catalog().Len() != 2 || client.Catalog().Program() != "mini" {
		t.Errorf("catalog = %d courses of %q", client.Catalog().Len(), client.Catalog().Program())
	}
}

func TestNew_StrictCurriculumCycle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curriculum.yaml")
	doc := "- {id: A, year: 1, prerequisites: [B]}\n- {id: B, year: 1, prerequisites: [A]}\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := advisor.New(advisor.Config{
		LocalPath:        filepath.Join(dir, "advisor.db"),
		Program:          "cyclic",
		CurriculumPath:   path,
		StrictCurriculum: true,
	})
	var cycle *advisor.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("New() error = %v, want *CycleError", err)
	}
}

func TestClient_ConsultNewStudent(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	rec, err := client.Consult(ctx, advisor.ConsultParams{StudentID: "s1", Name: "Ana", Year: 3, Type: advisor.StudentNew})
	if err != nil {
		t.Fatalf("Consult() error = %v", err)
	}
	if rec.Student.CurrentYear != 1 {
		t.Errorf("new student stored in year %d, want 1", rec.Student.CurrentYear)
	}
	if rec.Result.Status != advisor.StatusAutoEnroll {
		t.Errorf("Status = %s, want %s", rec.Result.Status, advisor.StatusAutoEnroll)
	}
	if rec.LogID == "" {
		t.Error("recommendation was not logged")
	}

	logs, err := client.InferenceLogs(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("InferenceLogs() error = %v", err)
	}
	if len(logs) != 1 || logs[0].ID != rec.LogID {
		t.Fatalf("InferenceLogs() = %+v, want the consult entry", logs)
	}
	if diff := cmp.Diff([]string{"R1"}, logs[0].FiredRules); diff != "" {
		t.Errorf("logged FiredRules mismatch (-want +got):\n%s", diff)
	}

	var logged advisor.InferenceResult
	if err := json.Unmarshal(logs[0].Result, &logged); err != nil {
		t.Fatalf("logged result is not JSON: %v", err)
	}
	if diff := cmp.Diff(rec.Result.Enrolled, logged.Enrolled); diff != "" {
		t.Errorf("logged enrollment mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ConsultNewStudentIgnoresSubmittedCourses(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	rec, err := client.Consult(ctx, advisor.ConsultParams{
		StudentID: "s1",
		Year:      1,
		Type:      advisor.StudentNew,
		Approved:  []string{"ALG1", "INF1"},
		Failed:    []string{"POR1", "MAT1", "FIS1", "QUI1"},
	})
	if err != nil {
		t.Fatalf("Consult() error = %v", err)
	}
	if rec.Result.Status != advisor.StatusAutoEnroll {
		t.Fatalf("Status = %s (%s), want %s", rec.Result.Status, rec.Result.Message, advisor.StatusAutoEnroll)
	}
	if diff := cmp.Diff(yearOne, rec.Result.Enrolled); diff != "" {
		t.Errorf("Enrolled mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"R1"}, rec.Explanation.FiredRules); diff != "" {
		t.Errorf("FiredRules mismatch (-want +got):\n%s", diff)
	}

	h, err := client.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(h.Entries) != 0 {
		t.Errorf("history = %+v, want nothing stored for a new student", h.Entries)
	}
}

func TestClient_ConsultReturningStudent(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	approved := []string{"ALG1=9.5", "INF1=8.5", "POR1", "MAT1", "FIS1", "QUI1", "BIO1", "HIS1"}
	rec, err := client.Consult(ctx, advisor.ConsultParams{
		StudentID: "s1",
		Year:      2,
		Approved:  approved,
		Failed:    []string{"PRG2"},
	})
	if err != nil {
		t.Fatalf("Consult() error = %v", err)
	}
	if rec.Student.Name != "s1" || rec.Student.Type != advisor.StudentReturning {
		t.Errorf("student = %+v, want defaults for name and type", rec.Student)
	}
	if rec.Result.Status != advisor.StatusManualSelection {
		t.Fatalf("Status = %s, want %s", rec.Result.Status, advisor.StatusManualSelection)
	}
	if got := rec.SessionRefs["S1"]; got != rec.Result.Suggestions[0].ID {
		t.Errorf("S1 = %q, want top suggestion %q", got, rec.Result.Suggestions[0].ID)
	}
	if len(rec.SessionRefs) != len(rec.Result.Suggestions) {
		t.Errorf("%d refs for %d suggestions", len(rec.SessionRefs), len(rec.Result.Suggestions))
	}

	h, err := client.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	byCourse := map[string]advisor.HistoryEntry{}
	for _, e := range h.Entries {
		byCourse[e.CourseID] = e
	}
	if e := byCourse["ALG1"]; e.YearTaken != 1 || e.Grade == nil || *e.Grade != 9.5 {
		t.Errorf("ALG1 entry = %+v, want year 1 grade 9.5", e)
	}
	if e := byCourse["POR1"]; e.Grade == nil || *e.Grade != advisor.DefaultApprovedGrade {
		t.Errorf("POR1 entry = %+v, want the default approved grade", e)
	}
	if e := byCourse["PRG2"]; e.YearTaken != 2 || e.Grade == nil || *e.Grade != advisor.DefaultFailedGrade {
		t.Errorf("PRG2 entry = %+v, want year 2 with the default failed grade", e)
	}

	again, err := client.Recommend(ctx, "s1")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if diff := cmp.Diff(rec.Result, again.Result); diff != "" {
		t.Errorf("Recommend() differs from Consult() (-consult +recommend):\n%s", diff)
	}
	if diff := cmp.Diff(rec.SessionRefs, again.SessionRefs); diff != "" {
		t.Errorf("session refs changed between calls (-first +second):\n%s", diff)
	}
}

func TestClient_ConsultReplacesHistory(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.Consult(ctx, advisor.ConsultParams{StudentID: "s1", Year: 1, Approved: []string{"POR1", "MAT1"}}); err != nil {
		t.Fatalf("first Consult() error = %v", err)
	}
	if _, err := client.Consult(ctx, advisor.ConsultParams{StudentID: "s1", Year: 1, Failed: []string{"POR1"}}); err != nil {
		t.Fatalf("second Consult() error = %v", err)
	}

	h, err := client.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(h.Entries) != 1 || h.Entries[0].Status != advisor.HistoryFailed {
		t.Errorf("history = %+v, want only the failed POR1", h.Entries)
	}
}

func TestClient_ConsultErrors(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	tests := []struct {
		name    string
		params  advisor.ConsultParams
		wantErr error
	}{
		{"missing id", advisor.ConsultParams{Year: 1}, advisor.ErrInvalidStudent},
		{"missing year", advisor.ConsultParams{StudentID: "s1"}, advisor.ErrInvalidStudent},
		{"bad type", advisor.ConsultParams{StudentID: "s1", Year: 1, Type: "transfer"}, advisor.ErrInvalidStudent},
		{"conflict", advisor.ConsultParams{StudentID: "s1", Year: 1, Approved: []string{"MAT1"}, Failed: []string{"MAT1=3"}}, advisor.ErrConflictingHistory},
		{"empty course", advisor.ConsultParams{StudentID: "s1", Year: 1, Approved: []string{"=7"}}, advisor.ErrUnknownCourse},
		{"bad grade", advisor.ConsultParams{StudentID: "s1", Year: 1, Approved: []string{"MAT1=good"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Consult(ctx, tt.params)
			if err == nil {
				t.Fatal("Consult() returned nil error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Consult() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if students, _ := client.Students(ctx); len(students) != 0 {
		t.Errorf("failed consultations stored %d students", len(students))
	}
}

func TestClient_RecommendUnknownStudent(t *testing.T) {
	client := newTestClient(t)
	if _, err := client.Recommend(context.Background(), "ghost"); !errors.Is(err, advisor.ErrNotFound) {
		t.Errorf("Recommend(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestClient_RecordHistoryAndRecommend(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.SaveStudent(ctx, advisor.Student{ID: "s1", CurrentYear: 1, Type: advisor.StudentReturning}); err != nil {
		t.Fatalf("SaveStudent() error = %v", err)
	}
	for _, id := range []string{"POR1", "MAT1", "FIS1", "QUI1", "BIO1"} {
		if err := client.RecordHistory(ctx, advisor.HistoryEntry{StudentID: "s1", CourseID: id, Status: advisor.HistoryFailed}); err != nil {
			t.Fatalf("RecordHistory(%s) error = %v", id, err)
		}
	}

	h, _ := client.History(ctx, "s1")
	for _, e := range h.Entries {
		if e.YearTaken != 1 {
			t.Errorf("%s recorded in year %d, want the student's year 1", e.CourseID, e.YearTaken)
		}
	}

	rec, err := client.Recommend(ctx, "s1")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if rec.Result.Status != advisor.StatusYearRepeat {
		t.Errorf("Status = %s, want %s", rec.Result.Status, advisor.StatusYearRepeat)
	}

	err = client.RecordHistory(ctx, advisor.HistoryEntry{StudentID: "s1", CourseID: "GHOST", Status: advisor.HistoryApproved})
	if !errors.Is(err, advisor.ErrUnknownCourse) {
		t.Errorf("RecordHistory(GHOST) error = %v, want ErrUnknownCourse", err)
	}
	err = client.RecordHistory(ctx, advisor.HistoryEntry{StudentID: "ghost", CourseID: "MAT1", Status: advisor.HistoryApproved})
	if !errors.Is(err, advisor.ErrNotFound) {
		t.Errorf("RecordHistory(ghost student) error = %v, want ErrNotFound", err)
	}

	n, err := client.ClearHistory(ctx, "s1")
	if err != nil || n != 5 {
		t.Errorf("ClearHistory() = %d, %v; want 5", n, err)
	}
}

func TestClient_EnrollWithSessionRefs(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	rec, err := client.Consult(ctx, advisor.ConsultParams{
		StudentID: "s1", Year: 2,
		Approved: []string{"POR1", "MAT1", "FIS1", "QUI1", "BIO1", "HIS1", "ALG1", "INF1"},
		Failed:   []string{"GEO2"},
	})
	if err != nil {
		t.Fatalf("Consult() error = %v", err)
	}

	if len(rec.SessionRefs) < 2 {
		t.Fatalf("SessionRefs = %v, want at least two", rec.SessionRefs)
	}
	created, err := client.Enroll(ctx, "s1", []string{"s1", "S2"}, 0)
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	var got []string
	for _, e := range created {
		got = append(got, e.CourseID)
		if e.AcademicYear != 2 {
			t.Errorf("%s enrolled for year %d, want 2", e.CourseID, e.AcademicYear)
		}
	}
	want := []string{rec.SessionRefs["S1"], rec.SessionRefs["S2"]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("enrolled courses mismatch (-want +got):\n%s", diff)
	}

	if _, err := client.Enroll(ctx, "s1", []string{"S99"}, 0); !errors.Is(err, advisor.ErrUnknownCourse) {
		t.Errorf("Enroll(S99) error = %v, want ErrUnknownCourse", err)
	}
	if _, err := client.Enroll(ctx, "ghost", []string{"MAT2"}, 0); !errors.Is(err, advisor.ErrNotFound) {
		t.Errorf("Enroll(ghost) error = %v, want ErrNotFound", err)
	}

	active, err := client.Enrollments(ctx, "s1")
	if err != nil {
		t.Fatalf("Enrollments() error = %v", err)
	}
	if len(active) != len(want) {
		t.Errorf("Enrollments() = %d rows, want %d", len(active), len(want))
	}
}

func TestClient_Catalog(t *testing.T) {
	client := newTestClient(t)

	if n := len(client.Rules()); n != 11 {
		t.Errorf("Rules() = %d, want 11", n)
	}
	if n := len(client.Curriculum(0)); n != 24 {
		t.Errorf("Curriculum(0) = %d courses, want 24", n)
	}
	if n := len(client.Curriculum(2)); n != 8 {
		t.Errorf("Curriculum(2) = %d courses, want 8", n)
	}
	if client.Session() == nil {
		t.Error("Session() = nil")
	}
}

func TestClient_StatsAndDelete(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	if _, err := client.Consult(ctx, advisor.ConsultParams{StudentID: "s1", Type: advisor.StudentNew}); err != nil {
		t.Fatalf("Consult() error = %v", err)
	}
	if _, err := client.Enroll(ctx, "s1", []string{"POR1"}, 0); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	stats, err := client.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Program != "test" || stats.Students != 1 || stats.Inferences != 1 || stats.Enrollments != 1 {
		t.Errorf("Stats() = %+v", stats)
	}

	if err := client.DeleteStudent(ctx, "s1"); err != nil {
		t.Fatalf("DeleteStudent() error = %v", err)
	}
	if _, err := client.Student(ctx, "s1"); !errors.Is(err, advisor.ErrNotFound) {
		t.Errorf("Student() after delete error = %v, want ErrNotFound", err)
	}
}

func TestParseCourseGrade(t *testing.T) {
	tests := []struct {
		in        string
		wantID    string
		wantGrade *float64
		wantErr   bool
	}{
		{"MAT1", "MAT1", nil, false},
		{" MAT1 = 7.5 ", "MAT1", grade(7.5), false},
		{"MAT1=0", "MAT1", grade(0), false},
		{"MAT1=x", "", nil, true},
		{"", "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, g, err := advisor.ParseCourseGrade(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCourseGrade() error = %v, wantErr %v", err, tt.wantErr)
			}
			if id != tt.wantID {
				t.Errorf("id = %q, want %q", id, tt.wantID)
			}
			if diff := cmp.Diff(tt.wantGrade, g); diff != "" {
				t.Errorf("grade mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
