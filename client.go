package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Default grades for consultations that list a course without one.
const (
	DefaultApprovedGrade = 7.0
	DefaultFailedGrade   = 4.0
)

// Client is the main interface for recommending enrollments.
type Client struct {
	store   *Store
	catalog *Catalog
	engine  *Engine
	session *Session
	config  Config
	logger  *zap.Logger
}

// New creates a client: it opens the program database and loads the
// curriculum.
func New(cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Debug, cfg.DebugLogPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}

	store, err := NewStore(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if err := store.SetMetadata(context.Background(), MetaProgram, cfg.Program); err != nil {
		store.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	logger.Debug("client ready",
		zap.String("program", cfg.Program),
		zap.String("db", cfg.LocalPath),
		zap.String("curriculum", catalog.Program()),
		zap.Int("courses", catalog.Len()))

	return &Client{
		store:   store,
		catalog: catalog,
		engine:  NewEngine(catalog, WithLogger(logger)),
		session: NewSession(),
		config:  cfg,
		logger:  logger,
	}, nil
}

func loadCatalog(cfg Config) (*Catalog, error) {
	var opts []CatalogOption
	if cfg.StrictCurriculum {
		opts = append(opts, WithStrictValidation())
	}
	if cfg.CurriculumPath != "" {
		return LoadCatalogFile(cfg.CurriculumPath, opts...)
	}
	return DefaultCatalog(opts...)
}

// Recommendation is an inference for a stored student.
type Recommendation struct {
	Student     Student         `json:"student"`
	Result      InferenceResult `json:"result"`
	Explanation Explanation     `json:"explanation"`
	// SessionRefs maps session references to the suggested course ids.
	SessionRefs map[string]string `json:"session_refs,omitempty"`
	LogID       string            `json:"log_id"`
}

// Recommend runs an inference over the student's recorded history and logs it.
func (c *Client) Recommend(ctx context.Context, studentID string) (*Recommendation, error) {
	st, err := c.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("student %s: %w", studentID, err)
	}
	h, err := c.store.History(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return c.infer(ctx, *st, h.BaseFacts(*st))
}

func (c *Client) infer(ctx context.Context, st Student, base BaseFacts) (*Recommendation, error) {
	run, err := c.engine.Infer(base)
	if err != nil {
		return nil, err
	}

	rec := &Recommendation{
		Student:     st,
		Result:      run.Result,
		Explanation: run.Explanation(),
	}
	if len(rec.Result.Suggestions) > 0 {
		rec.SessionRefs = make(map[string]string, len(rec.Result.Suggestions))
		for _, s := range rec.Result.Suggestions {
			rec.SessionRefs[c.session.Track(st.ID, s.ID)] = s.ID
		}
	}

	entry, err := c.logInference(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.LogID = entry.ID
	return rec, nil
}

func (c *Client) logInference(ctx context.Context, rec *Recommendation) (*InferenceLog, error) {
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	explanation, err := json.Marshal(rec.Explanation)
	if err != nil {
		return nil, fmt.Errorf("encode explanation: %w", err)
	}

	entry, err := c.store.LogInference(ctx, InferenceLog{
		StudentID:   rec.Student.ID,
		Status:      rec.Result.Status,
		FiredRules:  rec.Explanation.FiredRules,
		Message:     rec.Result.Message,
		Result:      result,
		Explanation: explanation,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("inference logged",
		zap.String("id", entry.ID),
		zap.String("student", rec.Student.ID),
		zap.String("status", string(rec.Result.Status)),
		zap.String("result", truncateForLog(string(result), 512)))
	return entry, nil
}

// ConsultParams describes a student and their full course record. Approved
// and failed entries are course ids, optionally with a grade as "ID=grade".
type ConsultParams struct {
	StudentID  string
	Name       string
	Year       int
	Type       StudentType
	Approved   []string
	Failed     []string
	InProgress []string
}

// Consult saves the student, replaces their history with the submitted record
// and runs an inference. New students always start in year 1 with an empty
// record; courses submitted for them are ignored.
func (c *Client) Consult(ctx context.Context, p ConsultParams) (*Recommendation, error) {
	st := Student{ID: p.StudentID, Name: p.Name, CurrentYear: p.Year, Type: p.Type}
	if st.Type == "" {
		st.Type = StudentReturning
	}
	if st.IsNew() {
		st.CurrentYear = 1
		if n := len(p.Approved) + len(p.Failed) + len(p.InProgress); n > 0 {
			c.logger.Debug("ignoring submitted history of new student",
				zap.String("student", st.ID),
				zap.Int("courses", n))
		}
		p.Approved, p.Failed, p.InProgress = nil, nil, nil
	}
	if st.Name == "" {
		st.Name = st.ID
	}
	if err := st.Validate(); err != nil {
		return nil, err
	}

	entries, err := c.consultEntries(st, p)
	if err != nil {
		return nil, err
	}
	base := (&History{StudentID: st.ID, Entries: entries}).BaseFacts(st)
	if err := base.Validate(); err != nil {
		return nil, err
	}

	saved, err := c.store.UpsertStudent(ctx, st)
	if err != nil {
		return nil, err
	}
	if err := c.store.ReplaceHistory(ctx, st.ID, entries); err != nil {
		return nil, err
	}
	return c.infer(ctx, *saved, base)
}

func (c *Client) consultEntries(st Student, p ConsultParams) ([]HistoryEntry, error) {
	var entries []HistoryEntry
	seen := map[string]HistoryStatus{}
	add := func(list []string, status HistoryStatus, def float64) error {
		for _, raw := range list {
			id, grade, err := ParseCourseGrade(raw)
			if err != nil {
				return err
			}
			if prev, ok := seen[id]; ok && prev != status {
				return fmt.Errorf("%w: %s is both %s and %s", ErrConflictingHistory, id, prev, status)
			}
			seen[id] = status
			if status != HistoryInProgress && grade == nil {
				g := def
				grade = &g
			}
			entries = append(entries, HistoryEntry{
				StudentID: st.ID,
				CourseID:  id,
				Status:    status,
				Grade:     grade,
				YearTaken: c.yearTaken(st, id, status),
			})
		}
		return nil
	}
	if err := add(p.Approved, HistoryApproved, DefaultApprovedGrade); err != nil {
		return nil, err
	}
	if err := add(p.Failed, HistoryFailed, DefaultFailedGrade); err != nil {
		return nil, err
	}
	if err := add(p.InProgress, HistoryInProgress, 0); err != nil {
		return nil, err
	}
	return entries, nil
}

// yearTaken places approvals in the course's own year and everything else in
// the student's current year.
func (c *Client) yearTaken(st Student, courseID string, status HistoryStatus) int {
	if status == HistoryApproved {
		if course, ok := c.catalog.Get(courseID); ok && course.Year < st.CurrentYear {
			return course.Year
		}
	}
	return st.CurrentYear
}

// ParseCourseGrade splits "ID" or "ID=grade". The grade is nil when absent.
func ParseCourseGrade(s string) (string, *float64, error) {
	id, gradeStr, hasGrade := strings.Cut(strings.TrimSpace(s), "=")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", nil, fmt.Errorf("%w: empty course in %q", ErrUnknownCourse, s)
	}
	if !hasGrade {
		return id, nil, nil
	}
	g, err := strconv.ParseFloat(strings.TrimSpace(gradeStr), 64)
	if err != nil {
		return "", nil, fmt.Errorf("grade of %s: %w", id, err)
	}
	return id, &g, nil
}

// SaveStudent creates or updates a student.
func (c *Client) SaveStudent(ctx context.Context, st Student) (*Student, error) {
	if st.Name == "" {
		st.Name = st.ID
	}
	return c.store.UpsertStudent(ctx, st)
}

// Student returns a stored student.
func (c *Client) Student(ctx context.Context, id string) (*Student, error) {
	return c.store.GetStudent(ctx, id)
}

// Students lists every stored student.
func (c *Client) Students(ctx context.Context) ([]Student, error) {
	return c.store.ListStudents(ctx)
}

// DeleteStudent removes the student and all their records.
func (c *Client) DeleteStudent(ctx context.Context, id string) error {
	return c.store.DeleteStudent(ctx, id)
}

// RecordHistory stores a course attempt. YearTaken defaults to the student's
// current year. Courses must be in the curriculum.
func (c *Client) RecordHistory(ctx context.Context, e HistoryEntry) error {
	if !c.catalog.Has(e.CourseID) {
		return fmt.Errorf("%w: %s", ErrUnknownCourse, e.CourseID)
	}
	if e.YearTaken <= 0 {
		st, err := c.store.GetStudent(ctx, e.StudentID)
		if err != nil {
			return fmt.Errorf("student %s: %w", e.StudentID, err)
		}
		e.YearTaken = st.CurrentYear
	}
	return c.store.RecordHistory(ctx, e)
}

// History returns the student's recorded attempts.
func (c *Client) History(ctx context.Context, studentID string) (*History, error) {
	return c.store.History(ctx, studentID)
}

// ClearHistory deletes the student's recorded attempts.
func (c *Client) ClearHistory(ctx context.Context, studentID string) (int, error) {
	return c.store.ClearHistory(ctx, studentID)
}

// Enroll registers the student in courses. Course ids may be session
// references from an earlier recommendation. An academicYear of zero means the
// student's current year.
func (c *Client) Enroll(ctx context.Context, studentID string, courses []string, academicYear int) ([]Enrollment, error) {
	ids := make([]string, 0, len(courses))
	for _, ref := range courses {
		id := c.session.CourseFor(studentID, ref)
		if !c.catalog.Has(id) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCourse, ref)
		}
		ids = append(ids, id)
	}

	if academicYear <= 0 {
		st, err := c.store.GetStudent(ctx, studentID)
		if err != nil {
			return nil, fmt.Errorf("student %s: %w", studentID, err)
		}
		academicYear = st.CurrentYear
	}

	created, err := c.store.Enroll(ctx, studentID, ids, academicYear)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("enrolled",
		zap.String("student", studentID),
		zap.Int("year", academicYear),
		zap.Strings("courses", ids),
		zap.Int("created", len(created)))
	return created, nil
}

// Enrollments returns the student's active enrollments.
func (c *Client) Enrollments(ctx context.Context, studentID string) ([]Enrollment, error) {
	return c.store.ActiveEnrollments(ctx, studentID)
}

// InferenceLogs returns the student's logged inferences, newest first.
func (c *Client) InferenceLogs(ctx context.Context, studentID string, limit int) ([]InferenceLog, error) {
	return c.store.InferenceLogs(ctx, studentID, limit)
}

// Rules describes the rule base.
func (c *Client) Rules() []RuleSummary {
	return c.engine.Rules().Summaries()
}

// Curriculum returns the courses of a year, or every course when year is 0.
func (c *Client) Curriculum(year int) []Course {
	if year == 0 {
		return c.catalog.All()
	}
	return c.catalog.ByYear(year)
}

// Catalog returns the loaded curriculum.
func (c *Client) Catalog() *Catalog {
	return c.catalog
}

// Session returns the client's suggestion references.
func (c *Client) Session() *Session {
	return c.session
}

// Stats returns store statistics.
func (c *Client) Stats(ctx context.Context) (*StoreStats, error) {
	return c.store.Stats(ctx)
}

// ExportJSON writes every student record as JSON.
func (c *Client) ExportJSON(ctx context.Context, w io.Writer) error {
	return c.store.ExportJSON(ctx, c.config.Program, w)
}

// ExportSQLite copies the database file to destPath.
func (c *Client) ExportSQLite(ctx context.Context, destPath string) error {
	return c.store.ExportSQLite(ctx, destPath)
}

// ImportJSON loads student records written by ExportJSON.
func (c *Client) ImportJSON(ctx context.Context, r io.Reader, strategy MergeStrategy, dryRun bool) (*ImportResult, error) {
	result, err := c.store.ImportJSON(ctx, r, strategy, dryRun)
	if result != nil {
		c.logger.Debug("import finished",
			zap.Int("total", result.Total),
			zap.Int("created", result.Created),
			zap.Int("merged", result.Merged),
			zap.Int("skipped", result.Skipped),
			zap.Int("errors", len(result.Errors)),
			zap.Bool("dry_run", dryRun))
	}
	return result, err
}

// Close flushes the logger and closes the store.
func (c *Client) Close() error {
	_ = c.logger.Sync()
	return c.store.Close()
}
