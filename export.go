package advisor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportFormat is the top-level structure for JSON exports.
type ExportFormat struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Program    string          `json:"program"`
	Metadata   ExportMetadata  `json:"metadata"`
	Students   []ExportStudent `json:"students"`
}

// ExportMetadata contains database metadata in exports.
type ExportMetadata struct {
	CreatedAt    time.Time `json:"created_at,omitempty"`
	MigratedFrom string    `json:"migrated_from,omitempty"`
}

// ExportStudent is a student with their records in export format.
type ExportStudent struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CurrentYear int             `json:"current_year"`
	Type        StudentType     `json:"type"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	History     []ExportHistory `json:"history"`
	Enrollments []ExportEnroll  `json:"enrollments,omitempty"`
}

// ExportHistory is one course attempt in export format.
type ExportHistory struct {
	CourseID   string        `json:"course_id"`
	Status     HistoryStatus `json:"status"`
	Grade      *float64      `json:"grade,omitempty"`
	YearTaken  int           `json:"year_taken"`
	RecordedAt time.Time     `json:"recorded_at,omitempty"`
}

// ExportEnroll is one enrollment in export format.
type ExportEnroll struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"course_id"`
	AcademicYear int       `json:"academic_year"`
	Status       string    `json:"status"`
	EnrolledAt   time.Time `json:"enrolled_at"`
}

// MergeStrategy defines how to handle students that already exist during
// import.
type MergeStrategy string

const (
	// MergeStrategySkip leaves existing students untouched.
	MergeStrategySkip MergeStrategy = "skip"
	// MergeStrategyReplace discards an existing student's records first.
	MergeStrategyReplace MergeStrategy = "replace"
	// MergeStrategyMerge upserts the student and their history (default).
	MergeStrategyMerge MergeStrategy = "merge"
)

// IsValid checks the merge strategy.
func (m MergeStrategy) IsValid() bool {
	switch m {
	case MergeStrategySkip, MergeStrategyReplace, MergeStrategyMerge:
		return true
	}
	return false
}

// ImportResult summarizes an import operation.
type ImportResult struct {
	Total   int      `json:"total"`
	Created int      `json:"created"`
	Merged  int      `json:"merged"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportJSON streams every student with their history and enrollments as JSON
// to w.
func (s *Store) ExportJSON(ctx context.Context, program string, w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	createdAtStr, _ := s.getMetadata(ctx, MetaCreatedAt)
	migratedFrom, _ := s.getMetadata(ctx, MetaMigratedFrom)
	meta := ExportMetadata{MigratedFrom: migratedFrom}
	if createdAtStr != "" {
		meta.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	header := fmt.Sprintf(`{"version":%s,"exported_at":%s,"program":%s,"metadata":%s,"students":[`,
		jsonString(ExportVersion),
		jsonString(time.Now().UTC().Format(time.RFC3339)),
		jsonString(program),
		metaJSON,
	)
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	ids, err := s.studentIDs(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	for i, id := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		st, err := s.exportStudent(ctx, id)
		if err != nil {
			return fmt.Errorf("export student %s: %w", id, err)
		}
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return fmt.Errorf("write separator: %w", err)
			}
		}
		if err := enc.Encode(st); err != nil {
			return fmt.Errorf("encode student: %w", err)
		}
	}

	if _, err := io.WriteString(w, "]}"); err != nil {
		return fmt.Errorf("write footer: %w", err)
	}
	return nil
}

func (s *Store) studentIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM students ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) exportStudent(ctx context.Context, id string) (*ExportStudent, error) {
	st, err := s.getStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &ExportStudent{
		ID:          st.ID,
		Name:        st.Name,
		CurrentYear: st.CurrentYear,
		Type:        st.Type,
		CreatedAt:   st.CreatedAt,
		UpdatedAt:   st.UpdatedAt,
		History:     []ExportHistory{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT course_id, status, grade, year_taken, recorded_at
		FROM course_history WHERE student_id = ?
		ORDER BY year_taken, recorded_at, course_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	for rows.Next() {
		var (
			h          ExportHistory
			status     string
			grade      sql.NullFloat64
			recordedAt string
		)
		if err := rows.Scan(&h.CourseID, &status, &grade, &h.YearTaken, &recordedAt); err != nil {
			rows.Close()
			return nil, err
		}
		h.Status = HistoryStatus(status)
		if grade.Valid {
			g := grade.Float64
			h.Grade = &g
		}
		h.RecordedAt, _ = time.Parse(sortableTime, recordedAt)
		out.History = append(out.History, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, course_id, academic_year, status, enrolled_at
		FROM enrollments WHERE student_id = ?
		ORDER BY academic_year, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			e          ExportEnroll
			enrolledAt string
		)
		if err := rows.Scan(&e.ID, &e.CourseID, &e.AcademicYear, &e.Status, &enrolledAt); err != nil {
			return nil, err
		}
		e.EnrolledAt, _ = time.Parse(time.RFC3339, enrolledAt)
		out.Enrollments = append(out.Enrollments, e)
	}
	return out, rows.Err()
}

// jsonString returns a JSON-encoded string.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// ExportSQLite copies the database to destPath after a WAL checkpoint.
func (s *Store) ExportSQLite(ctx context.Context, destPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint WAL: %w", err)
	}

	srcFile, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer srcFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, srcFile); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("copy database: %w", err)
	}

	return destFile.Sync()
}
