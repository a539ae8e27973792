package advisor

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Category groups rules by the phase that evaluates them.
type Category string

const (
	CategoryAutoEnroll  Category = "auto_enroll"
	CategoryYearRepeat  Category = "year_repeat"
	CategoryBlock       Category = "block"
	CategoryEligibility Category = "eligibility"
	CategoryHeuristic   Category = "heuristic"
)

// Categories lists every category in evaluation order.
var Categories = []Category{
	CategoryYearRepeat,
	CategoryAutoEnroll,
	CategoryBlock,
	CategoryEligibility,
	CategoryHeuristic,
}

// Action tags the effect an Outcome asks for.
type Action string

const (
	ActionEnroll     Action = "enroll"
	ActionAdvance    Action = "advance"
	ActionBlock      Action = "block"
	ActionRepeatYear Action = "repeat_year"
	ActionEligible   Action = "eligible"
	ActionBoost      Action = "boost"
)

// Outcome is what a rule produces when it fires. Only the fields relevant to
// the rule's category are set.
type Outcome struct {
	Action               Action   `json:"action"`
	Message              string   `json:"message"`
	CourseID             string   `json:"course_id,omitempty"`
	TargetYear           int      `json:"target_year,omitempty"`
	Enroll               []string `json:"enroll,omitempty"`
	Dependencies         []string `json:"dependencies,omitempty"`
	MissingPrerequisites []string `json:"missing_prerequisites,omitempty"`
	Failures             int      `json:"failures,omitempty"`
	Area                 string   `json:"area,omitempty"`
	Bonus                int      `json:"bonus,omitempty"`
}

func (o Outcome) clone() Outcome {
	o.Enroll = slices.Clone(o.Enroll)
	o.Dependencies = slices.Clone(o.Dependencies)
	o.MissingPrerequisites = slices.Clone(o.MissingPrerequisites)
	return o
}

// Rule is a condition and the outcome it produces. Rules are built once and
// never modified.
type Rule struct {
	ID          string
	Name        string
	Category    Category
	Description string
	Priority    int

	// Reads names the facts the rule's condition depends on. They are the
	// facts copied into the explanation when the rule fires.
	Reads []string

	when func(Facts) bool
	then func(Facts) Outcome
}

// Evaluate runs the rule against f. A panic in the condition or the action is
// returned as a *RuleError and the rule does not fire.
func (r *Rule) Evaluate(f Facts) (out Outcome, fired bool, err error) {
	phase := "when"
	defer func() {
		if p := recover(); p != nil {
			out, fired, err = Outcome{}, false, &RuleError{RuleID: r.ID, Phase: phase, Cause: p}
		}
	}()

	if r.when == nil || !r.when(f) {
		return Outcome{}, false, nil
	}
	phase = "then"
	if r.then == nil {
		return Outcome{}, true, nil
	}
	return r.then(f), true, nil
}

// RuleSummary is the descriptive part of a rule.
type RuleSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
}

// RuleBase is an immutable, ordered set of rules.
type RuleBase struct {
	rules      []*Rule
	byID       map[string]*Rule
	byCategory map[Category][]*Rule
}

// NewRuleBase indexes rules. Within each category rules are ordered by
// descending priority; ties keep the order given.
func NewRuleBase(rules ...*Rule) (*RuleBase, error) {
	rb := &RuleBase{
		rules:      make([]*Rule, 0, len(rules)),
		byID:       make(map[string]*Rule, len(rules)),
		byCategory: make(map[Category][]*Rule),
	}
	for _, r := range rules {
		if r == nil || r.ID == "" {
			return nil, fmt.Errorf("rule base: rule without id")
		}
		if _, dup := rb.byID[r.ID]; dup {
			return nil, fmt.Errorf("rule base: duplicate rule %s", r.ID)
		}
		rb.rules = append(rb.rules, r)
		rb.byID[r.ID] = r
		rb.byCategory[r.Category] = append(rb.byCategory[r.Category], r)
	}
	for _, group := range rb.byCategory {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Priority > group[j].Priority
		})
	}
	return rb, nil
}

// All returns the rules in declaration order.
func (rb *RuleBase) All() []*Rule {
	return slices.Clone(rb.rules)
}

// ByCategory returns the category's rules in evaluation order.
func (rb *RuleBase) ByCategory(c Category) []*Rule {
	return slices.Clone(rb.byCategory[c])
}

// Get returns the rule with the given id, or nil.
func (rb *RuleBase) Get(id string) *Rule {
	return rb.byID[id]
}

// Len returns the number of rules.
func (rb *RuleBase) Len() int {
	return len(rb.rules)
}

// Summaries describes every rule in declaration order.
func (rb *RuleBase) Summaries() []RuleSummary {
	out := make([]RuleSummary, 0, len(rb.rules))
	for _, r := range rb.rules {
		out = append(out, RuleSummary{
			ID:          r.ID,
			Name:        r.Name,
			Category:    r.Category,
			Description: r.Description,
			Priority:    r.Priority,
		})
	}
	return out
}

var (
	defaultRulesOnce sync.Once
	defaultRules     *RuleBase
)

// DefaultRules returns the enrollment rule base R1 through R11. The same
// instance is returned on every call.
func DefaultRules() *RuleBase {
	defaultRulesOnce.Do(func() {
		rb, err := NewRuleBase(enrollmentRules()...)
		if err != nil {
			panic(err)
		}
		defaultRules = rb
	})
	return defaultRules
}

// Heuristic bonuses added to a suggestion's score.
const (
	BonusStrongArea = 3
	BonusDependency = 5
	BonusSameYear   = 2
	BonusTechnical  = 1
)

// finalAcademicYear is the last year students advance into automatically.
const finalAcademicYear = 3

func enrollmentRules() []*Rule {
	return []*Rule{
		{
			ID:          "R1",
			Name:        "New student auto-enrollment",
			Category:    CategoryAutoEnroll,
			Description: "A new first-year student is enrolled in every first-year course",
			Priority:    100,
			Reads:       []string{FactStudentYear, FactIsNew},
			when: func(f Facts) bool {
				return f.Year == 1 && f.IsNew
			},
			then: func(f Facts) Outcome {
				return Outcome{
					Action:     ActionEnroll,
					Message:    "New student automatically enrolled in every first-year course",
					TargetYear: 1,
					Enroll:     f.courseIDs(1),
				}
			},
		},
		{
			ID:          "R2",
			Name:        "Full approval advancement",
			Category:    CategoryAutoEnroll,
			Description: "A returning student who passed every course of the year advances with automatic enrollment",
			Priority:    90,
			Reads:       []string{FactStudentYear, FactIsNew, FactPassedAllCurrentYear},
			when: func(f Facts) bool {
				return f.Derived.PassedAllCurrentYear && f.Year < finalAcademicYear && !f.IsNew
			},
			then: func(f Facts) Outcome {
				return Outcome{
					Action:     ActionAdvance,
					Message:    fmt.Sprintf("Passed every course. Advancing to year %d with automatic enrollment", f.Year+1),
					TargetYear: f.Year + 1,
					Enroll:     f.courseIDs(f.Year + 1),
				}
			},
		},
		{
			ID:          "R3",
			Name:        "Advancement with dependencies",
			Category:    CategoryAutoEnroll,
			Description: "A returning student with few failures advances and carries open earlier-year courses",
			Priority:    80,
			Reads: []string{
				FactStudentYear, FactIsNew, FactHasDependency, FactFailuresThisYear,
				FactPassedAllCurrentYear, FactDependencyList,
			},
			when: func(f Facts) bool {
				d := f.Derived
				return d.HasDependency() && d.FailuresThisYear <= RepeatFailureLimit &&
					f.Year < finalAcademicYear && !f.IsNew && !d.PassedAllCurrentYear
			},
			then: func(f Facts) Outcome {
				return Outcome{
					Action:       ActionAdvance,
					Message:      fmt.Sprintf("Advancing to year %d with %d dependency course(s) to take", f.Year+1, f.Derived.DependencyCount()),
					TargetYear:   f.Year + 1,
					Enroll:       f.courseIDs(f.Year + 1),
					Dependencies: slices.Clone(f.Derived.Dependencies),
				}
			},
		},
		{
			ID:          "R4",
			Name:        "Missing prerequisite block",
			Category:    CategoryBlock,
			Description: "A course with unmet prerequisites is blocked",
			Priority:    100,
			Reads:       []string{FactHasPrerequisites, FactPrerequisitesSatisfied, FactMissingPrerequisites},
			when: func(f Facts) bool {
				return f.Course.HasPrerequisites && !f.Course.PrerequisitesSatisfied
			},
			then: func(f Facts) Outcome {
				return Outcome{
					Action:               ActionBlock,
					Message:              "Blocked: missing " + strings.Join(f.Course.MissingPrerequisites, ", "),
					CourseID:             f.Course.CourseID,
					MissingPrerequisites: slices.Clone(f.Course.MissingPrerequisites),
				}
			},
		},
		{
			ID:          "R5",
			Name:        "Year repeat",
			Category:    CategoryYearRepeat,
			Description: "More than three failures in the current year means repeating the year",
			Priority:    100,
			Reads:       []string{FactStudentYear, FactFailuresThisYear},
			when: func(f Facts) bool {
				return f.Derived.FailuresThisYear > RepeatFailureLimit
			},
			then: func(f Facts) Outcome {
				n := f.Derived.FailuresThisYear
				return Outcome{
					Action:     ActionRepeatYear,
					Message:    fmt.Sprintf("Year must be repeated: %d failures (maximum allowed: %d)", n, RepeatFailureLimit),
					TargetYear: f.Year,
					Failures:   n,
				}
			},
		},
		{
			ID:          "R6",
			Name:        "Prerequisites satisfied",
			Category:    CategoryEligibility,
			Description: "A course whose prerequisites are all approved is eligible",
			Priority:    50,
			Reads:       []string{FactHasPrerequisites, FactPrerequisitesSatisfied, FactAlreadyApproved},
			when: func(f Facts) bool {
				c := f.Course
				return c.HasPrerequisites && c.PrerequisitesSatisfied && !c.AlreadyApproved
			},
			then: func(f Facts) Outcome {
				return Outcome{Action: ActionEligible, Message: "Eligible: prerequisites satisfied", CourseID: f.Course.CourseID}
			},
		},
		{
			ID:          "R7",
			Name:        "No prerequisites",
			Category:    CategoryEligibility,
			Description: "A course without prerequisites up to the student's year is eligible",
			Priority:    50,
			Reads:       []string{FactHasPrerequisites, FactCourseYear, FactStudentYear, FactAlreadyApproved},
			when: func(f Facts) bool {
				c := f.Course
				return !c.HasPrerequisites && c.CourseYear <= f.Year && !c.AlreadyApproved
			},
			then: func(f Facts) Outcome {
				return Outcome{Action: ActionEligible, Message: "Eligible: no prerequisites", CourseID: f.Course.CourseID}
			},
		},
		{
			ID:          "R8",
			Name:        "Strong area",
			Category:    CategoryHeuristic,
			Description: "Courses in an area where the student averages 8.0 or more are favoured",
			Priority:    30,
			Reads:       []string{FactCourseArea, FactStrongArea},
			when: func(f Facts) bool {
				return f.Course.StrongArea
			},
			then: func(f Facts) Outcome {
				return Outcome{
					Action:   ActionBoost,
					Message:  "Strong performance in " + f.Course.Area,
					CourseID: f.Course.CourseID,
					Area:     f.Course.Area,
					Bonus:    BonusStrongArea,
				}
			},
		},
		{
			ID:          "R9",
			Name:        "Dependency first",
			Category:    CategoryHeuristic,
			Description: "Open courses from earlier years come first",
			Priority:    40,
			Reads:       []string{FactIsDependency},
			when: func(f Facts) bool {
				return f.Course.IsDependency
			},
			then: func(f Facts) Outcome {
				return Outcome{
					Action:   ActionBoost,
					Message:  "High priority: open course from an earlier year",
					CourseID: f.Course.CourseID,
					Bonus:    BonusDependency,
				}
			},
		},
		{
			ID:          "R10",
			Name:        "Current year",
			Category:    CategoryHeuristic,
			Description: "Courses of the student's own year are favoured",
			Priority:    20,
			Reads:       []string{FactSameYearAsStudent, FactIsDependency},
			when: func(f Facts) bool {
				return f.Course.SameYearAsStudent && !f.Course.IsDependency
			},
			then: func(f Facts) Outcome {
				return Outcome{
					Action:   ActionBoost,
					Message:  "Regular course of your year",
					CourseID: f.Course.CourseID,
					Bonus:    BonusSameYear,
				}
			},
		},
		{
			ID:          "R11",
			Name:        "Technical track",
			Category:    CategoryHeuristic,
			Description: "Technical courses are slightly favoured",
			Priority:    10,
			Reads:       []string{FactCourseArea},
			when: func(f Facts) bool {
				return IsTechnicalArea(f.Course.Area)
			},
			then: func(f Facts) Outcome {
				return Outcome{
					Action:   ActionBoost,
					Message:  "Important for technical training",
					CourseID: f.Course.CourseID,
					Area:     f.Course.Area,
					Bonus:    BonusTechnical,
				}
			},
		},
	}
}
