package advisor

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// Engine runs enrollment inferences over an immutable catalog and rule base.
// An Engine is safe for concurrent use; each call works on its own FactStore.
type Engine struct {
	catalog *Catalog
	rules   *RuleBase
	deriver *Deriver
	logger  *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRules replaces the default rule base.
func WithRules(rb *RuleBase) EngineOption {
	return func(e *Engine) {
		if rb != nil {
			e.rules = rb
		}
	}
}

// WithLogger sets the logger used for phase and rule tracing.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine over catalog. The catalog must not be nil.
func NewEngine(catalog *Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		catalog: catalog,
		rules:   DefaultRules(),
		deriver: NewDeriver(catalog),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Rules returns the engine's rule base.
func (e *Engine) Rules() *RuleBase { return e.rules }

// Run is the outcome of one inference.
type Run struct {
	Result InferenceResult

	fired      []string
	entries    []ExplanationEntry
	totalRules int
	store      *FactStore
}

// Explanation returns the audit record of the run.
func (r *Run) Explanation() Explanation {
	return Explanation{
		FiredRules:   append([]string{}, r.fired...),
		TotalRules:   r.totalRules,
		TotalFired:   len(r.fired),
		Explanations: append([]ExplanationEntry{}, r.entries...),
		FinalFacts:   r.store.Snapshot(),
	}
}

// Facts returns a snapshot of the facts the run ended with.
func (r *Run) Facts() Snapshot {
	return r.store.Snapshot()
}

// Infer validates base and runs an inference for it.
func (e *Engine) Infer(base BaseFacts) (*Run, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	return e.InferStore(base.FactStore())
}

// InferStore runs an inference over a FactStore that already holds the base
// facts. The store is filled with derived facts and the final status.
func (e *Engine) InferStore(store *FactStore) (*Run, error) {
	base, derived, err := e.deriver.derive(store)
	if err != nil {
		return nil, fmt.Errorf("derive facts: %w", err)
	}

	in := &inference{
		engine: e,
		store:  store,
		facts:  newFacts(e.catalog, base, derived, store.Snapshot()),
		log:    e.logger.With(zap.String("student", base.StudentID), zap.Int("year", base.Year)),
		fired:  map[string]bool{},
	}
	return in.run(), nil
}

type inference struct {
	engine *Engine
	store  *FactStore
	facts  Facts
	log    *zap.Logger

	fired   map[string]bool
	order   []string
	entries []ExplanationEntry
}

func (in *inference) run() *Run {
	f := in.facts
	res := InferenceResult{
		TargetYear:   f.Year,
		Enrolled:     []string{},
		Dependencies: []string{},
		Eligible:     []EligibleCourse{},
		Blocked:      []BlockedCourse{},
		Suggestions:  []Suggestion{},
		Approved:     []ApprovedCourse{},
	}
	in.log.Debug("facts derived",
		zap.Int("failures_this_year", f.Derived.FailuresThisYear),
		zap.Bool("passed_all_current_year", f.Derived.PassedAllCurrentYear),
		zap.Int("dependency_count", f.Derived.DependencyCount()))

	if in.engine.catalog.countKnown(f.Approved) >= in.engine.catalog.Len() {
		res.Status = StatusCourseComplete
		res.Message = "Every course of the program is complete"
		return in.finish(res)
	}

	for _, rule := range in.engine.rules.ByCategory(CategoryYearRepeat) {
		out, ok := in.evaluate(rule, f)
		if !ok {
			continue
		}
		res.Status = StatusYearRepeat
		res.Message = out.Message
		res.TargetYear = out.TargetYear
		in.evaluateCourses(&res)
		return in.finish(res)
	}

	for _, rule := range in.engine.rules.ByCategory(CategoryAutoEnroll) {
		out, ok := in.evaluate(rule, f)
		if !ok {
			continue
		}
		res.Status = StatusAutoEnroll
		res.Message = out.Message
		if out.TargetYear > 0 {
			res.TargetYear = out.TargetYear
		}
		if out.Enroll != nil {
			res.Enrolled = slices.Clone(out.Enroll)
		}
		if out.Dependencies != nil {
			res.Dependencies = slices.Clone(out.Dependencies)
		}
		return in.finish(res)
	}

	in.evaluateCourses(&res)
	res.Suggestions = in.rank(res.Eligible)

	if n := len(res.Eligible); n > 0 {
		res.Status = StatusManualSelection
		res.Message = fmt.Sprintf("%d course(s) available for enrollment, ranked by priority", n)
	} else {
		res.Status = StatusPending
		res.Message = "No eligible courses right now. Check the prerequisites of the blocked courses"
	}
	return in.finish(res)
}

// evaluateCourses sorts every catalog course into approved, blocked or
// eligible. Courses more than one year ahead of the student are skipped.
func (in *inference) evaluateCourses(res *InferenceResult) {
	f := in.facts
	cat := in.engine.catalog
	blockRules := in.engine.rules.ByCategory(CategoryBlock)
	eligibilityRules := in.engine.rules.ByCategory(CategoryEligibility)

	for _, c := range cat.All() {
		if f.IsApproved(c.ID) {
			ac := ApprovedCourse{CourseRef: refOf(c)}
			if g, ok := f.Grades[c.ID]; ok {
				ac.Grade = &g
			}
			res.Approved = append(res.Approved, ac)
			continue
		}
		if c.Year > f.Year+1 {
			continue
		}

		ctx := in.engine.deriver.CourseContext(f, c.ID)
		cf := f.WithCourse(ctx)

		if len(ctx.MissingPrerequisites) > 0 {
			names := make([]string, 0, len(ctx.MissingPrerequisites))
			for _, id := range ctx.MissingPrerequisites {
				if name := cat.Name(id); name != "" {
					names = append(names, name)
				}
			}
			res.Blocked = append(res.Blocked, BlockedCourse{
				CourseRef:                refOf(c),
				Reason:                   "Missing prerequisites: " + strings.Join(names, ", "),
				MissingPrerequisites:     ctx.MissingPrerequisites,
				MissingPrerequisiteNames: names,
			})
			in.firstMatch(blockRules, cf)
			continue
		}

		reason := "No prerequisites"
		if c.HasPrerequisites() {
			reason = "Prerequisites satisfied"
		}
		res.Eligible = append(res.Eligible, EligibleCourse{
			CourseRef:   refOf(c),
			Reason:      reason,
			CurrentYear: c.Year == f.Year,
			NextYear:    c.Year == f.Year+1,
		})
		in.firstMatch(eligibilityRules, cf)
	}
	in.log.Debug("courses evaluated",
		zap.Int("approved", len(res.Approved)),
		zap.Int("blocked", len(res.Blocked)),
		zap.Int("eligible", len(res.Eligible)))
}

func (in *inference) firstMatch(rules []*Rule, f Facts) {
	for _, rule := range rules {
		if _, ok := in.evaluate(rule, f); ok {
			return
		}
	}
}

// evaluate runs one rule and records it when it fires. Rule failures are
// logged and count as not firing.
func (in *inference) evaluate(rule *Rule, f Facts) (Outcome, bool) {
	out, fired, err := rule.Evaluate(f)
	if err != nil {
		in.log.Warn("rule failed", zap.String("rule", rule.ID), zap.Error(err))
		return Outcome{}, false
	}
	if !fired {
		return Outcome{}, false
	}
	in.record(rule, f, out)
	return out, true
}

func (in *inference) record(rule *Rule, f Facts, out Outcome) {
	if !in.fired[rule.ID] {
		in.fired[rule.ID] = true
		in.order = append(in.order, rule.ID)
	}

	keys := []string{FactStudentID}
	if f.Course != nil {
		keys = append(keys, FactCourseID)
	}
	ctx := f.Select(append(keys, rule.Reads...)...)

	in.entries = append(in.entries, ExplanationEntry{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Category:    rule.Category,
		Description: rule.Description,
		Message:     out.Message,
		Context:     ctx,
	})
	in.store.RecordFiring(rule.ID, ctx, out)

	fields := []zap.Field{zap.String("rule", rule.ID), zap.String("category", string(rule.Category))}
	if out.CourseID != "" {
		fields = append(fields, zap.String("course", out.CourseID))
	}
	in.log.Debug("rule fired", fields...)
}

func (in *inference) finish(res InferenceResult) *Run {
	res.Statistics = ComputeStatistics(in.engine.catalog, in.facts.BaseFacts)
	res.Explanation = slices.Clone(in.entries)
	if res.Explanation == nil {
		res.Explanation = []ExplanationEntry{}
	}
	in.store.Set(FactStatus, StringValue(string(res.Status)))

	in.log.Debug("inference complete",
		zap.String("status", string(res.Status)),
		zap.Int("fired", len(in.order)))

	return &Run{
		Result:     res,
		fired:      append([]string{}, in.order...),
		entries:    res.Explanation,
		totalRules: in.engine.rules.Len(),
		store:      in.store,
	}
}
