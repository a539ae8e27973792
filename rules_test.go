package advisor

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultRules(t *testing.T) {
	rb := DefaultRules()
	if rb.Len() != 11 {
		t.Fatalf("Len() = %d, want 11", rb.Len())
	}
	if DefaultRules() != rb {
		t.Error("DefaultRules() should return the same instance")
	}

	var ids []string
	for _, s := range rb.Summaries() {
		ids = append(ids, s.ID)
	}
	want := []string{"R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8", "R9", "R10", "R11"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("Summaries() order mismatch (-want +got):\n%s", diff)
	}

	for _, r := range rb.All() {
		if len(r.Reads) == 0 {
			t.Errorf("rule %s declares no facts it reads", r.ID)
		}
	}
}

func TestRuleBase_ByCategory(t *testing.T) {
	rb := DefaultRules()

	tests := []struct {
		category Category
		want     []string
	}{
		{CategoryYearRepeat, []string{"R5"}},
		{CategoryAutoEnroll, []string{"R1", "R2", "R3"}},
		{CategoryBlock, []string{"R4"}},
		{CategoryEligibility, []string{"R6", "R7"}},
		{CategoryHeuristic, []string{"R9", "R8", "R10", "R11"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			var got []string
			for _, r := range rb.ByCategory(tt.category) {
				got = append(got, r.ID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ByCategory(%s) mismatch (-want +got):\n%s", tt.category, diff)
			}
		})
	}
}

func TestNewRuleBase_StablePriority(t *testing.T) {
	rb, err := NewRuleBase(
		&Rule{ID: "a", Category: CategoryHeuristic, Priority: 1},
		&Rule{ID: "b", Category: CategoryHeuristic, Priority: 5},
		&Rule{ID: "c", Category: CategoryHeuristic, Priority: 1},
		&Rule{ID: "d", Category: CategoryHeuristic, Priority: 5},
	)
	if err != nil {
		t.Fatalf("NewRuleBase() error = %v", err)
	}

	var got []string
	for _, r := range rb.ByCategory(CategoryHeuristic) {
		got = append(got, r.ID)
	}
	if diff := cmp.Diff([]string{"b", "d", "a", "c"}, got); diff != "" {
		t.Errorf("evaluation order mismatch (-want +got):\n%s", diff)
	}
	if rb.Get("c") == nil || rb.Get("z") != nil {
		t.Error("Get() returned the wrong rule")
	}
}

func TestNewRuleBase_Invalid(t *testing.T) {
	if _, err := NewRuleBase(&Rule{ID: "a"}, &Rule{ID: "a"}); err == nil {
		t.Error("duplicate ids accepted")
	}
	if _, err := NewRuleBase(&Rule{}); err == nil {
		t.Error("rule without id accepted")
	}
	if _, err := NewRuleBase(nil); err == nil {
		t.Error("nil rule accepted")
	}
}

func TestRule_EvaluatePanics(t *testing.T) {
	tests := []struct {
		name      string
		rule      *Rule
		wantPhase string
	}{
		{
			name: "condition",
			rule: &Rule{
				ID:   "bad-when",
				when: func(Facts) bool { panic("boom") },
			},
			wantPhase: "when",
		},
		{
			name: "action",
			rule: &Rule{
				ID:   "bad-then",
				when: func(Facts) bool { return true },
				then: func(f Facts) Outcome {
					return Outcome{CourseID: f.Course.CourseID}
				},
			},
			wantPhase: "then",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, fired, err := tt.rule.Evaluate(Facts{})
			if fired {
				t.Error("a panicking rule must not fire")
			}
			if diff := cmp.Diff(Outcome{}, out); diff != "" {
				t.Errorf("outcome not empty (-want +got):\n%s", diff)
			}
			var re *RuleError
			if !errors.As(err, &re) {
				t.Fatalf("Evaluate() error = %v, want *RuleError", err)
			}
			if re.RuleID != tt.rule.ID || re.Phase != tt.wantPhase {
				t.Errorf("RuleError = %+v, want rule %s phase %s", re, tt.rule.ID, tt.wantPhase)
			}
		})
	}
}

func TestRule_EvaluateWithoutAction(t *testing.T) {
	r := &Rule{ID: "flag", when: func(Facts) bool { return true }}
	_, fired, err := r.Evaluate(Facts{})
	if err != nil || !fired {
		t.Errorf("Evaluate() = fired %v, err %v; want fired without error", fired, err)
	}

	r = &Rule{ID: "never"}
	if _, fired, _ := r.Evaluate(Facts{}); fired {
		t.Error("a rule without a condition must not fire")
	}
}

// factsFor builds the evaluation view for base over the default catalog.
func factsFor(t *testing.T, base BaseFacts) Facts {
	t.Helper()
	cat := mustDefaultCatalog(t)
	return newFacts(cat, base, NewDeriver(cat).compute(base), nil)
}

func TestStudentRules(t *testing.T) {
	yearOne := []string{"POR1", "MAT1", "FIS1", "QUI1", "BIO1", "HIS1", "ALG1", "INF1"}
	rb := DefaultRules()

	tests := []struct {
		name  string
		rule  string
		base  BaseFacts
		fires bool
	}{
		{"R1 new first-year", "R1", BaseFacts{Year: 1, IsNew: true}, true},
		{"R1 returning first-year", "R1", BaseFacts{Year: 1}, false},
		{"R1 new second-year", "R1", BaseFacts{Year: 2, IsNew: true}, false},
		{"R2 passed all", "R2", BaseFacts{Year: 1, Approved: yearOne}, true},
		{"R2 passed all but new", "R2", BaseFacts{Year: 1, IsNew: true, Approved: yearOne}, false},
		{"R2 final year", "R2", BaseFacts{Year: 3, Approved: []string{"POR3", "MAT3", "FIS3", "SOC3", "WEB3", "ESW3", "SEG3", "TCC3"}}, false},
		{"R3 one dependency", "R3", BaseFacts{Year: 2, Approved: yearOne[1:]}, true},
		{"R3 no dependency", "R3", BaseFacts{Year: 2, Approved: yearOne}, false},
		{"R3 four failures", "R3", BaseFacts{Year: 2, Failed: []string{"POR2", "MAT2", "FIS2", "QUI2"}}, false},
		{"R3 three failures", "R3", BaseFacts{Year: 2, Failed: []string{"POR2", "MAT2", "FIS2"}}, true},
		{"R5 four failures", "R5", BaseFacts{Year: 2, Failed: []string{"POR2", "MAT2", "FIS2", "QUI2"}}, true},
		{"R5 three failures", "R5", BaseFacts{Year: 2, Failed: []string{"POR2", "MAT2", "FIS2"}}, false},
		{"R5 old failures", "R5", BaseFacts{Year: 2, Failed: []string{"POR1", "MAT1", "FIS1", "QUI1"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fired, err := rb.Get(tt.rule).Evaluate(factsFor(t, tt.base))
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if fired != tt.fires {
				t.Errorf("%s fired = %v, want %v", tt.rule, fired, tt.fires)
			}
		})
	}
}

func TestStudentRules_Outcomes(t *testing.T) {
	rb := DefaultRules()
	cat := mustDefaultCatalog(t)

	out, _, _ := rb.Get("R1").Evaluate(factsFor(t, BaseFacts{Year: 1, IsNew: true}))
	want := Outcome{
		Action:     ActionEnroll,
		Message:    "New student automatically enrolled in every first-year course",
		TargetYear: 1,
		Enroll:     cat.CourseIDs(1),
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("R1 outcome mismatch (-want +got):\n%s", diff)
	}

	out, _, _ = rb.Get("R3").Evaluate(factsFor(t, BaseFacts{Year: 2, Approved: []string{"POR1", "MAT1", "FIS1", "QUI1", "BIO1", "HIS1"}}))
	if out.TargetYear != 3 {
		t.Errorf("R3 TargetYear = %d, want 3", out.TargetYear)
	}
	if diff := cmp.Diff([]string{"ALG1", "INF1"}, out.Dependencies); diff != "" {
		t.Errorf("R3 dependencies mismatch (-want +got):\n%s", diff)
	}

	out, _, _ = rb.Get("R5").Evaluate(factsFor(t, BaseFacts{Year: 2, Failed: []string{"POR2", "MAT2", "FIS2", "QUI2", "GEO2"}}))
	if out.Failures != 5 || out.TargetYear != 2 {
		t.Errorf("R5 outcome = %+v, want 5 failures repeating year 2", out)
	}
	if out.Message != "Year must be repeated: 5 failures (maximum allowed: 3)" {
		t.Errorf("R5 message = %q", out.Message)
	}
}

func TestCourseRules(t *testing.T) {
	rb := DefaultRules()
	cat := mustDefaultCatalog(t)
	d := NewDeriver(cat)

	base := BaseFacts{
		Year:     2,
		Approved: []string{"POR1", "MAT1", "FIS1", "QUI1", "BIO1", "HIS1", "INF1"},
		Grades:   map[string]float64{"INF1": 9.5},
	}
	f := factsFor(t, base)

	tests := []struct {
		rule   string
		course string
		fires  bool
		bonus  int
	}{
		{"R4", "PRG2", true, 0},
		{"R4", "RED2", false, 0},
		{"R6", "RED2", true, 0},
		{"R6", "GEO2", false, 0},
		{"R7", "GEO2", true, 0},
		{"R7", "SOC3", false, 0},
		{"R7", "INF1", false, 0},
		{"R8", "RED2", true, BonusStrongArea},
		{"R8", "GEO2", false, 0},
		{"R9", "ALG1", true, BonusDependency},
		{"R9", "RED2", false, 0},
		{"R10", "GEO2", true, BonusSameYear},
		{"R10", "ALG1", false, 0},
		{"R11", "RED2", true, BonusTechnical},
		{"R11", "MAT2", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.rule+" "+tt.course, func(t *testing.T) {
			cf := f.WithCourse(d.CourseContext(f, tt.course))
			out, fired, err := rb.Get(tt.rule).Evaluate(cf)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if fired != tt.fires {
				t.Fatalf("fired = %v, want %v", fired, tt.fires)
			}
			if fired && out.Bonus != tt.bonus {
				t.Errorf("Bonus = %d, want %d", out.Bonus, tt.bonus)
			}
			if fired && out.CourseID != tt.course {
				t.Errorf("CourseID = %q, want %q", out.CourseID, tt.course)
			}
		})
	}
}

func TestIsTechnicalArea(t *testing.T) {
	for _, area := range []string{"Technical", "Técnica", "Tecnica"} {
		if !IsTechnicalArea(area) {
			t.Errorf("IsTechnicalArea(%q) = false", area)
		}
	}
	if IsTechnicalArea("Sciences") {
		t.Error("IsTechnicalArea(Sciences) = true")
	}
}

func TestInfer_SkipsPanickingRules(t *testing.T) {
	broken := []*Rule{
		{
			ID: "X1", Name: "Broken condition", Category: CategoryHeuristic, Priority: 35,
			when: func(Facts) bool { panic("condition exploded") },
		},
		{
			ID: "X2", Name: "Broken action", Category: CategoryHeuristic, Priority: 25,
			when: func(f Facts) bool { return f.Course.SameYearAsStudent },
			then: func(Facts) Outcome { panic("action exploded") },
		},
	}
	rb, err := NewRuleBase(append(slices.Clone(DefaultRules().All()), broken...)...)
	if err != nil {
		t.Fatalf("NewRuleBase() error = %v", err)
	}

	cat := mustDefaultCatalog(t)
	core, logs := observer.New(zapcore.WarnLevel)
	withBroken := NewEngine(cat, WithRules(rb), WithLogger(zap.New(core)))
	plain := NewEngine(cat)

	base := BaseFacts{
		StudentID: "s1", Year: 2,
		Approved: []string{"POR1", "MAT1", "FIS1", "QUI1", "BIO1", "HIS1", "ALG1", "INF1"},
		Failed:   []string{"PRG2"},
		Grades:   map[string]float64{"ALG1": 9, "INF1": 8.5, "PRG2": 4},
	}
	got, err := withBroken.Infer(base)
	if err != nil {
		t.Fatalf("Infer() with broken rules error = %v", err)
	}
	want, err := plain.Infer(base)
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}

	if got.Result.Status != StatusManualSelection {
		t.Fatalf("Status = %s, want %s", got.Result.Status, StatusManualSelection)
	}
	if diff := cmp.Diff(want.Result, got.Result); diff != "" {
		t.Errorf("broken rules changed the result (-plain +broken):\n%s", diff)
	}
	if diff := cmp.Diff(want.Explanation().FiredRules, got.Explanation().FiredRules); diff != "" {
		t.Errorf("FiredRules mismatch (-plain +broken):\n%s", diff)
	}

	failed := map[string]int{}
	for _, entry := range logs.FilterMessage("rule failed").All() {
		failed[entry.ContextMap()["rule"].(string)]++
	}
	for _, id := range []string{"X1", "X2"} {
		if failed[id] == 0 {
			t.Errorf("no warning logged for %s (warnings: %v)", id, failed)
		}
	}
}
