package advisor

import (
	"fmt"
	"time"
)

// Course is a single entry of the curriculum. Courses are immutable once the
// catalog is built.
type Course struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Year          int      `json:"year" yaml:"year"`
	Area          string   `json:"area" yaml:"area"`
	CreditHours   int      `json:"credit_hours" yaml:"credit_hours"`
	Prerequisites []string `json:"prerequisites,omitempty" yaml:"prerequisites"`
}

// HasPrerequisites reports whether the course requires any other course.
func (c Course) HasPrerequisites() bool {
	return len(c.Prerequisites) > 0
}

// AreaTechnical is the area label that earns the technical-track bonus.
const AreaTechnical = "Technical"

// IsTechnicalArea reports whether area names the technical track. Older
// curriculum documents use the Portuguese spelling.
func IsTechnicalArea(area string) bool {
	switch area {
	case AreaTechnical, "Técnica", "Tecnica":
		return true
	}
	return false
}

// StudentType tells new students apart from returning ones.
type StudentType string

const (
	StudentNew       StudentType = "new"
	StudentReturning StudentType = "returning"
)

// IsValid checks the student type.
func (t StudentType) IsValid() bool {
	return t == StudentNew || t == StudentReturning
}

// Student is the persisted student record.
type Student struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	CurrentYear int         `json:"current_year"`
	Type        StudentType `json:"type"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsNew reports whether the student is in their first enrollment.
func (s Student) IsNew() bool {
	return s.Type == StudentNew
}

// Validate checks the fields required to run an inference for the student.
func (s Student) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidStudent)
	}
	if s.CurrentYear <= 0 {
		return fmt.Errorf("%w: current year must be positive", ErrInvalidStudent)
	}
	if !s.Type.IsValid() {
		return fmt.Errorf("%w: type must be %q or %q", ErrInvalidStudent, StudentNew, StudentReturning)
	}
	return nil
}

// HistoryStatus is the outcome of one course attempt.
type HistoryStatus string

const (
	HistoryApproved   HistoryStatus = "approved"
	HistoryFailed     HistoryStatus = "failed"
	HistoryInProgress HistoryStatus = "in_progress"
)

// IsValid checks the history status.
func (s HistoryStatus) IsValid() bool {
	switch s {
	case HistoryApproved, HistoryFailed, HistoryInProgress:
		return true
	}
	return false
}

// HistoryEntry records one attempt of a course by a student.
type HistoryEntry struct {
	StudentID  string        `json:"student_id"`
	CourseID   string        `json:"course_id"`
	Status     HistoryStatus `json:"status"`
	Grade      *float64      `json:"grade,omitempty"`
	YearTaken  int           `json:"year_taken"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Enrollment is an active course registration.
type Enrollment struct {
	ID           string    `json:"id"`
	StudentID    string    `json:"student_id"`
	CourseID     string    `json:"course_id"`
	AcademicYear int       `json:"academic_year"`
	Status       string    `json:"status"`
	EnrolledAt   time.Time `json:"enrolled_at"`
}

// Status is the overall verdict of an inference.
type Status string

const (
	StatusAutoEnroll      Status = "auto_enroll"
	StatusManualSelection Status = "manual_selection"
	StatusYearRepeat      Status = "year_repeat"
	StatusPending         Status = "pending"
	StatusCourseComplete  Status = "course_complete"
)

// CourseRef carries the display fields shared by every course decision.
type CourseRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Year        int    `json:"year"`
	Area        string `json:"area"`
	CreditHours int    `json:"credit_hours"`
}

func refOf(c Course) CourseRef {
	return CourseRef{ID: c.ID, Name: c.Name, Year: c.Year, Area: c.Area, CreditHours: c.CreditHours}
}

// ApprovedCourse is a course the student already passed.
type ApprovedCourse struct {
	CourseRef
	Grade *float64 `json:"grade"`
}

// EligibleCourse is a course the student may enroll in now.
type EligibleCourse struct {
	CourseRef
	Reason      string `json:"reason"`
	CurrentYear bool   `json:"current_year"`
	NextYear    bool   `json:"next_year"`
}

// BlockedCourse is a visible course whose prerequisites are not all approved.
type BlockedCourse struct {
	CourseRef
	Reason                   string   `json:"reason"`
	MissingPrerequisites     []string `json:"missing_prerequisites"`
	MissingPrerequisiteNames []string `json:"missing_prerequisite_names"`
}

// Suggestion is an eligible course with its ranking score.
type Suggestion struct {
	EligibleCourse
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
	Unlocks []string `json:"unlocks,omitempty"`
	Rank    int      `json:"rank"`
}

// Statistics summarises the student's progress through the curriculum.
type Statistics struct {
	TotalCourses        int     `json:"total_courses"`
	Approved            int     `json:"approved"`
	Failed              int     `json:"failed"`
	Pending             int     `json:"pending"`
	CompletionPercent   float64 `json:"completion_percent"`
	MeanGrade           float64 `json:"mean_grade"`
	ApprovedCreditHours int     `json:"approved_credit_hours"`
	TotalCreditHours    int     `json:"total_credit_hours"`
	CreditHoursPercent  float64 `json:"credit_hours_percent"`
}

// ExplanationEntry records one rule firing for the audit trail.
type ExplanationEntry struct {
	RuleID      string   `json:"rule_id"`
	RuleName    string   `json:"rule_name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Message     string   `json:"message"`
	Context     Snapshot `json:"context"`
}

// InferenceResult is the recommendation produced for one student.
type InferenceResult struct {
	Status       Status             `json:"status"`
	Message      string             `json:"message"`
	TargetYear   int                `json:"target_year"`
	Enrolled     []string           `json:"enrolled"`
	Dependencies []string           `json:"dependencies"`
	Eligible     []EligibleCourse   `json:"eligible"`
	Blocked      []BlockedCourse    `json:"blocked"`
	Suggestions  []Suggestion       `json:"suggestions"`
	Approved     []ApprovedCourse   `json:"approved"`
	Explanation  []ExplanationEntry `json:"explanation"`
	Statistics   Statistics         `json:"statistics"`
}

// Explanation is the full audit record of one inference.
type Explanation struct {
	FiredRules   []string           `json:"fired_rules"`
	TotalRules   int                `json:"total_rules"`
	TotalFired   int                `json:"total_fired"`
	Explanations []ExplanationEntry `json:"explanations"`
	FinalFacts   Snapshot           `json:"final_facts"`
}

// InferenceLog is a persisted audit entry.
type InferenceLog struct {
	ID          string    `json:"id"`
	StudentID   string    `json:"student_id"`
	Status      Status    `json:"status"`
	FiredRules  []string  `json:"fired_rules"`
	Message     string    `json:"message"`
	Result      []byte    `json:"-"`
	Explanation []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoreStats contains statistics about the local store.
type StoreStats struct {
	Students      int    `json:"students"`
	HistoryRows   int    `json:"history_rows"`
	Enrollments   int    `json:"enrollments"`
	Inferences    int    `json:"inferences"`
	Program       string `json:"program"`
	SchemaVersion string `json:"schema_version"`
}
