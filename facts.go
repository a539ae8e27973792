package advisor

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// Fact names written by BaseFacts and the Deriver.
const (
	FactStudentID            = "student_id"
	FactStudentName          = "student_name"
	FactStudentYear          = "student_year"
	FactIsNew                = "is_new"
	FactApproved             = "approved"
	FactFailed               = "failed"
	FactInProgress           = "in_progress"
	FactGrades               = "grades"
	FactFailuresThisYear     = "failures_this_year"
	FactYearRepeat           = "year_repeat"
	FactPassedAllCurrentYear = "passed_all_current_year"
	FactCurrentYearTotal     = "current_year_total"
	FactCurrentYearApproved  = "current_year_approved"
	FactAverageGradeByArea   = "average_grade_by_area"
	FactDependencyList       = "dependency_list"
	FactHasDependency        = "has_dependency"
	FactDependencyCount      = "dependency_count"
	FactStatus               = "status"

	strongAreaPrefix = "strong_area:"
)

// Per-course fact names. They are never written to the FactStore; rules read
// them through Facts.Lookup while a course is under evaluation.
const (
	FactCourseID               = "course_id"
	FactCourseName             = "course_name"
	FactCourseArea             = "course_area"
	FactCourseYear             = "course_year"
	FactHasPrerequisites       = "has_prerequisites"
	FactPrerequisitesSatisfied = "prerequisites_satisfied"
	FactMissingPrerequisites   = "missing_prerequisites"
	FactSameYearAsStudent      = "same_year_as_student"
	FactAlreadyApproved        = "already_approved"
	FactIsDependency           = "is_dependency"
	FactStrongArea             = "strong_area"
)

// StrongAreaKey returns the fact name flagging area as a strong area.
func StrongAreaKey(area string) string {
	return strongAreaPrefix + area
}

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return "null"
}

// Value is a fact value: a bool, int, float, string, list of strings or
// mapping of strings to floats. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int
	f    float64
	s    string
	list []string
	m    map[string]float64
}

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func IntValue(i int) Value { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func ListValue(l []string) Value { return Value{kind: KindList, list: cloneList(l)} }
func MapValue(m map[string]float64) Value {
	if m == nil {
		m = map[string]float64{}
	}
	return Value{kind: KindMap, m: maps.Clone(m)}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is unset.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsInt() (int, bool) { return v.i, v.kind == KindInt }

// AsFloat accepts int values as well.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsList returns a copy of the list.
func (v Value) AsList() ([]string, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return cloneList(v.list), true
}

// AsMap returns a copy of the mapping.
func (v Value) AsMap() (map[string]float64, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return maps.Clone(v.m), true
}

// Truthy is the boolean reading used by rule predicates over arbitrary keys:
// false, zero, empty and null are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return v.s != ""
	case KindList:
		return len(v.list) > 0
	case KindMap:
		return len(v.m) > 0
	}
	return false
}

// Equal compares kind and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindList:
		return slices.Equal(v.list, o.list)
	case KindMap:
		return maps.Equal(v.m, o.m)
	}
	return true
}

func (v Value) clone() Value {
	switch v.kind {
	case KindList:
		v.list = cloneList(v.list)
	case KindMap:
		v.m = maps.Clone(v.m)
	}
	return v
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprint(v.b)
	case KindInt:
		return fmt.Sprint(v.i)
	case KindFloat:
		return fmt.Sprint(v.f)
	case KindString:
		return v.s
	case KindList:
		return "[" + strings.Join(v.list, ", ") + "]"
	case KindMap:
		keys := slices.Sorted(maps.Keys(v.m))
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %g", k, v.m[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "null"
}

// MarshalJSON encodes the value as its natural JSON form. Lists are never
// null and map keys come out sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.m == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.m)
	}
	return []byte("null"), nil
}

func cloneList(l []string) []string {
	if l == nil {
		return []string{}
	}
	return slices.Clone(l)
}

// Snapshot is an immutable copy of facts. Values never share storage with the
// FactStore they came from.
type Snapshot map[string]Value

// Keys returns the fact names in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Firing is one rule firing recorded against a FactStore.
type Firing struct {
	RuleID  string
	Facts   Snapshot
	Outcome Outcome
}

// FactStore is the per-inference bag of named facts about one student. It is
// not safe for concurrent use; each inference gets its own.
type FactStore struct {
	facts   map[string]Value
	firings []Firing
}

// NewFactStore returns an empty store.
func NewFactStore() *FactStore {
	return &FactStore{facts: make(map[string]Value)}
}

// Set stores a fact, replacing any previous value.
func (s *FactStore) Set(key string, v Value) {
	s.facts[key] = v.clone()
}

// Get returns the fact or def when it is absent.
func (s *FactStore) Get(key string, def Value) Value {
	v, ok := s.facts[key]
	if !ok {
		return def
	}
	return v.clone()
}

func (s *FactStore) Has(key string) bool {
	_, ok := s.facts[key]
	return ok
}

func (s *FactStore) Delete(key string) {
	delete(s.facts, key)
}

// Clear removes every fact and every recorded firing.
func (s *FactStore) Clear() {
	clear(s.facts)
	s.firings = nil
}

// Len returns the number of facts.
func (s *FactStore) Len() int {
	return len(s.facts)
}

// Snapshot returns a deep copy of the current facts.
func (s *FactStore) Snapshot() Snapshot {
	out := make(Snapshot, len(s.facts))
	for k, v := range s.facts {
		out[k] = v.clone()
	}
	return out
}

// RecordFiring appends a firing to the store's log. factsUsed is copied.
func (s *FactStore) RecordFiring(ruleID string, factsUsed Snapshot, outcome Outcome) {
	used := make(Snapshot, len(factsUsed))
	for k, v := range factsUsed {
		used[k] = v.clone()
	}
	s.firings = append(s.firings, Firing{RuleID: ruleID, Facts: used, Outcome: outcome.clone()})
}

// Firings returns the recorded firings in order.
func (s *FactStore) Firings() []Firing {
	return slices.Clone(s.firings)
}

func (s *FactStore) list(key string) []string {
	if l, ok := s.facts[key].AsList(); ok {
		return l
	}
	return []string{}
}

// BaseFacts are the caller-supplied facts an inference starts from.
type BaseFacts struct {
	StudentID   string
	StudentName string
	Year        int
	IsNew       bool
	Approved    []string
	Failed      []string
	InProgress  []string
	Grades      map[string]float64
}

// Validate checks the base facts contract: a positive year and each course in
// at most one of the history lists. Repeats within one list are allowed and
// collapse to a single entry once the facts are stored.
func (b BaseFacts) Validate() error {
	if b.Year <= 0 {
		return &FactError{Fact: FactStudentYear, Err: ErrMissingFact}
	}
	seen := make(map[string]string, len(b.Approved)+len(b.Failed)+len(b.InProgress))
	for _, group := range []struct {
		name string
		ids  []string
	}{
		{FactApproved, b.Approved},
		{FactFailed, b.Failed},
		{FactInProgress, b.InProgress},
	} {
		for _, id := range group.ids {
			if prev, dup := seen[id]; dup && prev != group.name {
				return fmt.Errorf("%w: %s is both %s and %s", ErrConflictingHistory, id, prev, group.name)
			}
			seen[id] = group.name
		}
	}
	return nil
}

// FactStore seeds a new FactStore with the base facts.
func (b BaseFacts) FactStore() *FactStore {
	s := NewFactStore()
	s.Set(FactStudentID, StringValue(b.StudentID))
	s.Set(FactStudentName, StringValue(b.StudentName))
	s.Set(FactStudentYear, IntValue(b.Year))
	s.Set(FactIsNew, BoolValue(b.IsNew))
	s.Set(FactApproved, ListValue(distinct(b.Approved)))
	s.Set(FactFailed, ListValue(distinct(b.Failed)))
	s.Set(FactInProgress, ListValue(distinct(b.InProgress)))
	s.Set(FactGrades, MapValue(b.Grades))
	return s
}

// distinct drops repeated ids, keeping first occurrences in order.
func distinct(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// baseFactsFrom reads the base facts back out of a store. A missing or
// non-positive student_year fails fast.
func baseFactsFrom(s *FactStore) (BaseFacts, error) {
	year, ok := s.Get(FactStudentYear, Value{}).AsInt()
	if !ok {
		return BaseFacts{}, &FactError{Fact: FactStudentYear, Err: ErrMissingFact}
	}
	b := BaseFacts{Year: year}
	b.StudentID, _ = s.Get(FactStudentID, StringValue("")).AsString()
	b.StudentName, _ = s.Get(FactStudentName, StringValue("")).AsString()
	b.IsNew, _ = s.Get(FactIsNew, BoolValue(false)).AsBool()
	b.Approved = distinct(s.list(FactApproved))
	b.Failed = distinct(s.list(FactFailed))
	b.InProgress = distinct(s.list(FactInProgress))
	b.Grades, _ = s.Get(FactGrades, MapValue(nil)).AsMap()
	if b.Grades == nil {
		b.Grades = map[string]float64{}
	}
	if err := b.Validate(); err != nil {
		return BaseFacts{}, err
	}
	return b, nil
}

// Facts is the read-only view rules evaluate against: the base facts, the
// derived aggregates and, during per-course evaluation, the course context.
type Facts struct {
	BaseFacts
	Derived DerivedFacts
	Course  *CourseContext

	catalog  *Catalog
	approved map[string]bool
	extra    Snapshot
}

func newFacts(catalog *Catalog, base BaseFacts, derived DerivedFacts, extra Snapshot) Facts {
	approved := make(map[string]bool, len(base.Approved))
	for _, id := range base.Approved {
		approved[id] = true
	}
	return Facts{BaseFacts: base, Derived: derived, catalog: catalog, approved: approved, extra: extra}
}

func (f Facts) courseIDs(year int) []string {
	if f.catalog == nil {
		return []string{}
	}
	return f.catalog.CourseIDs(year)
}

// IsApproved reports whether the student passed the course.
func (f Facts) IsApproved(id string) bool {
	return f.approved[id]
}

// WithCourse returns a copy of f scoped to one course.
func (f Facts) WithCourse(ctx CourseContext) Facts {
	f.Course = &ctx
	return f
}

// Lookup resolves a fact by name. Course-scoped names resolve only while a
// course is set; anything else falls back to the raw store snapshot.
func (f Facts) Lookup(key string) (Value, bool) {
	if f.Course != nil {
		if v, ok := f.Course.lookup(key); ok {
			return v, true
		}
	}
	d := f.Derived
	switch key {
	case FactStudentID:
		return StringValue(f.StudentID), true
	case FactStudentName:
		return StringValue(f.StudentName), true
	case FactStudentYear:
		return IntValue(f.Year), true
	case FactIsNew:
		return BoolValue(f.IsNew), true
	case FactApproved:
		return ListValue(f.Approved), true
	case FactFailed:
		return ListValue(f.Failed), true
	case FactInProgress:
		return ListValue(f.InProgress), true
	case FactGrades:
		return MapValue(f.Grades), true
	case FactFailuresThisYear:
		return IntValue(d.FailuresThisYear), true
	case FactYearRepeat:
		return BoolValue(d.YearRepeat), true
	case FactPassedAllCurrentYear:
		return BoolValue(d.PassedAllCurrentYear), true
	case FactCurrentYearTotal:
		return IntValue(d.CurrentYearTotal), true
	case FactCurrentYearApproved:
		return IntValue(d.CurrentYearApproved), true
	case FactAverageGradeByArea:
		return MapValue(d.AverageGradeByArea), true
	case FactDependencyList:
		return ListValue(d.Dependencies), true
	case FactHasDependency:
		return BoolValue(d.HasDependency()), true
	case FactDependencyCount:
		return IntValue(d.DependencyCount()), true
	}
	if area, ok := strings.CutPrefix(key, strongAreaPrefix); ok {
		return BoolValue(d.StrongAreas[area]), true
	}
	v, ok := f.extra[key]
	return v, ok
}

// Select returns a snapshot of the named facts that resolve.
func (f Facts) Select(keys ...string) Snapshot {
	out := make(Snapshot, len(keys))
	for _, k := range keys {
		if v, ok := f.Lookup(k); ok {
			out[k] = v.clone()
		}
	}
	return out
}
