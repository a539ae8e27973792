package advisor

import (
	"slices"
)

const (
	// RepeatFailureLimit is the number of current-year failures a student may
	// have before the year must be repeated.
	RepeatFailureLimit = 3

	// StrongAreaThreshold is the mean grade at which an area counts as strong.
	StrongAreaThreshold = 8.0
)

// DerivedFacts are the aggregates computed once per inference from the base
// facts and the catalog.
type DerivedFacts struct {
	FailuresThisYear     int
	YearRepeat           bool
	PassedAllCurrentYear bool
	CurrentYearTotal     int
	CurrentYearApproved  int
	AverageGradeByArea   map[string]float64
	StrongAreas          map[string]bool
	Dependencies         []string
}

// HasDependency reports whether any earlier-year course is still open.
func (d DerivedFacts) HasDependency() bool { return len(d.Dependencies) > 0 }

// DependencyCount returns the number of open earlier-year courses.
func (d DerivedFacts) DependencyCount() int { return len(d.Dependencies) }

// Deriver computes derived facts and per-course contexts against a catalog.
type Deriver struct {
	catalog *Catalog
}

// NewDeriver returns a Deriver over catalog.
func NewDeriver(catalog *Catalog) *Deriver {
	return &Deriver{catalog: catalog}
}

// Derive computes the derived facts from the base facts held in s and writes
// them back into s. It fails when student_year is missing or the history
// lists overlap.
func (d *Deriver) Derive(s *FactStore) (DerivedFacts, error) {
	_, derived, err := d.derive(s)
	return derived, err
}

func (d *Deriver) derive(s *FactStore) (BaseFacts, DerivedFacts, error) {
	base, err := baseFactsFrom(s)
	if err != nil {
		return BaseFacts{}, DerivedFacts{}, err
	}
	derived := d.compute(base)

	s.Set(FactFailuresThisYear, IntValue(derived.FailuresThisYear))
	s.Set(FactYearRepeat, BoolValue(derived.YearRepeat))
	s.Set(FactPassedAllCurrentYear, BoolValue(derived.PassedAllCurrentYear))
	s.Set(FactCurrentYearTotal, IntValue(derived.CurrentYearTotal))
	s.Set(FactCurrentYearApproved, IntValue(derived.CurrentYearApproved))
	s.Set(FactAverageGradeByArea, MapValue(derived.AverageGradeByArea))
	for area, strong := range derived.StrongAreas {
		s.Set(StrongAreaKey(area), BoolValue(strong))
	}
	s.Set(FactDependencyList, ListValue(derived.Dependencies))
	s.Set(FactHasDependency, BoolValue(derived.HasDependency()))
	s.Set(FactDependencyCount, IntValue(derived.DependencyCount()))
	return base, derived, nil
}

func (d *Deriver) compute(b BaseFacts) DerivedFacts {
	approved := make(map[string]bool, len(b.Approved))
	for _, id := range b.Approved {
		approved[id] = true
	}

	out := DerivedFacts{
		AverageGradeByArea: map[string]float64{},
		StrongAreas:        map[string]bool{},
		Dependencies:       []string{},
	}

	for _, id := range b.Failed {
		if c, ok := d.catalog.Get(id); ok && c.Year == b.Year {
			out.FailuresThisYear++
		}
	}
	out.YearRepeat = out.FailuresThisYear > RepeatFailureLimit

	current := d.catalog.CourseIDs(b.Year)
	out.CurrentYearTotal = len(current)
	for _, id := range current {
		if approved[id] {
			out.CurrentYearApproved++
		}
	}
	out.PassedAllCurrentYear = out.CurrentYearTotal > 0 && out.CurrentYearApproved == out.CurrentYearTotal

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, id := range b.Approved {
		grade, graded := b.Grades[id]
		c, known := d.catalog.Get(id)
		if !graded || !known {
			continue
		}
		sums[c.Area] += grade
		counts[c.Area]++
	}
	for area, n := range counts {
		avg := round(sums[area]/float64(n), 2)
		out.AverageGradeByArea[area] = avg
		out.StrongAreas[area] = avg >= StrongAreaThreshold
	}

	for _, year := range d.catalog.Years() {
		if year >= b.Year {
			break
		}
		for _, id := range d.catalog.CourseIDs(year) {
			if !approved[id] {
				out.Dependencies = append(out.Dependencies, id)
			}
		}
	}
	return out
}

// CourseContext is the evaluation context of one course for one student.
type CourseContext struct {
	CourseID               string
	Name                   string
	Area                   string
	CourseYear             int
	CreditHours            int
	Known                  bool
	Prerequisites          []string
	MissingPrerequisites   []string
	HasPrerequisites       bool
	PrerequisitesSatisfied bool
	SameYearAsStudent      bool
	AlreadyApproved        bool
	IsDependency           bool
	StrongArea             bool
	Visible                bool
}

// CourseContext builds the context for courseID. Unknown ids yield a context
// carrying only the id, with Known false.
func (d *Deriver) CourseContext(f Facts, courseID string) CourseContext {
	c, ok := d.catalog.Get(courseID)
	if !ok {
		return CourseContext{
			CourseID:               courseID,
			Prerequisites:          []string{},
			MissingPrerequisites:   []string{},
			PrerequisitesSatisfied: true,
		}
	}

	missing := []string{}
	for _, pre := range c.Prerequisites {
		if !f.IsApproved(pre) {
			missing = append(missing, pre)
		}
	}

	return CourseContext{
		CourseID:               c.ID,
		Name:                   c.Name,
		Area:                   c.Area,
		CourseYear:             c.Year,
		CreditHours:            c.CreditHours,
		Known:                  true,
		Prerequisites:          cloneList(c.Prerequisites),
		MissingPrerequisites:   missing,
		HasPrerequisites:       c.HasPrerequisites(),
		PrerequisitesSatisfied: len(missing) == 0,
		SameYearAsStudent:      c.Year == f.Year,
		AlreadyApproved:        f.IsApproved(c.ID),
		IsDependency:           slices.Contains(f.Derived.Dependencies, c.ID),
		StrongArea:             f.Derived.StrongAreas[c.Area],
		Visible:                c.Year <= f.Year+1,
	}
}

func (c *CourseContext) lookup(key string) (Value, bool) {
	switch key {
	case FactCourseID:
		return StringValue(c.CourseID), true
	case FactCourseName:
		return StringValue(c.Name), true
	case FactCourseArea:
		return StringValue(c.Area), true
	case FactCourseYear:
		return IntValue(c.CourseYear), true
	case FactHasPrerequisites:
		return BoolValue(c.HasPrerequisites), true
	case FactPrerequisitesSatisfied:
		return BoolValue(c.PrerequisitesSatisfied), true
	case FactMissingPrerequisites:
		return ListValue(c.MissingPrerequisites), true
	case FactSameYearAsStudent:
		return BoolValue(c.SameYearAsStudent), true
	case FactAlreadyApproved:
		return BoolValue(c.AlreadyApproved), true
	case FactIsDependency:
		return BoolValue(c.IsDependency), true
	case FactStrongArea:
		return BoolValue(c.StrongArea), true
	}
	return Value{}, false
}
