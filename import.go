package advisor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oklog/ulid/v2"
)

// ImportJSON loads students from a JSON export. The stream is decoded one
// student at a time.
//
// The store's write lock is held for the whole import, so large imports block
// other operations. Run with dryRun first to see what would change.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader, strategy MergeStrategy, dryRun bool) (*ImportResult, error) {
	if strategy == "" {
		strategy = MergeStrategyMerge
	}
	if !strategy.IsValid() {
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	dec := json.NewDecoder(r)
	result := &ImportResult{}

	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected opening brace, got %v", token)
	}

	var version string
	for dec.More() {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		token, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read field name: %w", err)
		}
		fieldName, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", token)
		}

		switch fieldName {
		case "version":
			if err := dec.Decode(&version); err != nil {
				return nil, fmt.Errorf("decode version: %w", err)
			}
			if version != ExportVersion {
				return nil, fmt.Errorf("unsupported export version %q (expected %q)", version, ExportVersion)
			}

		case "students":
			if version == "" {
				return nil, fmt.Errorf("version field must precede students")
			}
			if err := s.importStudents(ctx, dec, strategy, dryRun, result); err != nil {
				return result, fmt.Errorf("import students: %w", err)
			}

		default:
			var discard any
			if err := dec.Decode(&discard); err != nil {
				return nil, fmt.Errorf("decode %s: %w", fieldName, err)
			}
		}
	}

	if version == "" {
		return nil, fmt.Errorf("missing version field in export file")
	}
	return result, nil
}

func (s *Store) importStudents(ctx context.Context, dec *json.Decoder, strategy MergeStrategy, dryRun bool, result *ImportResult) error {
	token, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read students array start: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return fmt.Errorf("expected students array, got %v", token)
	}

	for dec.More() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var st ExportStudent
		if err := dec.Decode(&st); err != nil {
			return fmt.Errorf("decode student: %w", err)
		}
		result.Total++

		if err := st.validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("student %q: %v", st.ID, err))
			continue
		}

		_, err := s.getStudent(ctx, st.ID)
		exists := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf("check existence %s: %v", st.ID, err))
			continue
		}

		switch {
		case exists && strategy == MergeStrategySkip:
			result.Skipped++
			continue
		case dryRun:
			if exists {
				result.Merged++
			} else {
				result.Created++
			}
			continue
		}

		if err := s.importStudent(ctx, &st, strategy, exists); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("import %s: %v", st.ID, err))
			continue
		}
		if exists {
			result.Merged++
		} else {
			result.Created++
		}
	}

	token, err = dec.Token()
	if err != nil {
		return fmt.Errorf("read students array end: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != ']' {
		return fmt.Errorf("expected students array end, got %v", token)
	}
	return nil
}

func (e *ExportStudent) validate() error {
	st := Student{ID: e.ID, Name: e.Name, CurrentYear: e.CurrentYear, Type: e.Type}
	if err := st.Validate(); err != nil {
		return err
	}
	for _, h := range e.History {
		if !h.Status.IsValid() {
			return fmt.Errorf("%w: %q for %s", ErrInvalidStatus, h.Status, h.CourseID)
		}
		if h.CourseID == "" {
			return fmt.Errorf("history entry without course")
		}
	}
	return nil
}

// importStudent writes one student and their records in a single transaction.
// Replace drops the student's history and enrollments first; merge upserts
// over them.
func (s *Store) importStudent(ctx context.Context, st *ExportStudent, strategy MergeStrategy, exists bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	createdAt, updatedAt := st.CreatedAt, st.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO students (id, name, current_year, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			current_year = excluded.current_year,
			type = excluded.type,
			updated_at = excluded.updated_at
	`, st.ID, st.Name, st.CurrentYear, string(st.Type),
		createdAt.UTC().Format(time.RFC3339), updatedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}

	if exists && strategy == MergeStrategyReplace {
		for _, table := range []string{"course_history", "enrollments"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE student_id = ?", st.ID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	for _, h := range st.History {
		if err := importHistory(ctx, tx, st.ID, h, now); err != nil {
			return err
		}
	}
	for _, e := range st.Enrollments {
		if err := importEnrollment(ctx, tx, st.ID, e, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func importHistory(ctx context.Context, tx *sql.Tx, studentID string, h ExportHistory, now time.Time) error {
	return upsertHistory(ctx, tx, HistoryEntry{
		StudentID:  studentID,
		CourseID:   h.CourseID,
		Status:     h.Status,
		Grade:      h.Grade,
		YearTaken:  h.YearTaken,
		RecordedAt: h.RecordedAt,
	}, now)
}

func importEnrollment(ctx context.Context, tx *sql.Tx, studentID string, e ExportEnroll, now time.Time) error {
	id := e.ID
	if id == "" {
		id = ulid.Make().String()
	}
	status := e.Status
	if status == "" {
		status = EnrollmentActive
	}
	enrolledAt := e.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = now
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, course_id, academic_year, status, enrolled_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, course_id, academic_year) DO UPDATE SET
			status = excluded.status
	`, id, studentID, e.CourseID, e.AcademicYear, status, enrolledAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("enrollment %s: %w", e.CourseID, err)
	}
	return nil
}
