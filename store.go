package advisor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/advisor/internal/store/migrations"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "2"

// Metadata keys written by the store and the client.
const (
	MetaSchemaVersion = "schema_version"
	MetaCreatedAt     = "created_at"
	MetaProgram       = "program"
	MetaMigratedFrom  = "migrated_from"
)

// sortableTime keeps fractional seconds at fixed width so stored timestamps
// order correctly as text.
const sortableTime = "2006-01-02T15:04:05.000000000Z07:00"

// EnrollmentActive is the status of a live enrollment row.
const EnrollmentActive = "active"

// Store manages the local SQLite student database.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewStore opens or creates a student database at path.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	if _, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, schemaVersion); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', ?)
	`, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// UpsertStudent creates the student or updates name, year and type.
func (s *Store) UpsertStudent(ctx context.Context, st Student) (*Student, error) {
	if err := st.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO students (id, name, current_year, type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			current_year = excluded.current_year,
			type = excluded.type,
			updated_at = excluded.updated_at
	`, st.ID, st.Name, st.CurrentYear, string(st.Type), now, now)
	if err != nil {
		return nil, fmt.Errorf("store: upsert student: %w", err)
	}

	return s.getStudent(ctx, st.ID)
}

// GetStudent returns the student or ErrNotFound.
func (s *Store) GetStudent(ctx context.Context, id string) (*Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	return s.getStudent(ctx, id)
}

func (s *Store) getStudent(ctx context.Context, id string) (*Student, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, current_year, type, created_at, updated_at
		FROM students WHERE id = ?
	`, id)
	return scanStudent(row)
}

// ListStudents returns every student ordered by id.
func (s *Store) ListStudents(ctx context.Context) ([]Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, current_year, type, created_at, updated_at
		FROM students ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list students: %w", err)
	}
	defer rows.Close()

	results := []Student{}
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *st)
	}
	return results, rows.Err()
}

// DeleteStudent removes the student with their history, enrollments and
// inference log.
func (s *Store) DeleteStudent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	for _, table := range []string{"course_history", "enrollments", "inference_log"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE student_id = ?", id); err != nil {
			return fmt.Errorf("store: delete %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// RecordHistory stores one course attempt. An attempt of the same course in
// the same year replaces the earlier record.
func (s *Store) RecordHistory(ctx context.Context, e HistoryEntry) error {
	if err := e.check(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.getStudent(ctx, e.StudentID); err != nil {
		return err
	}
	return upsertHistory(ctx, s.db, e, time.Now().UTC())
}

// ReplaceHistory swaps the student's whole history for entries in one
// transaction. On error the previous history is left untouched.
func (s *Store) ReplaceHistory(ctx context.Context, studentID string, entries []HistoryEntry) error {
	for i := range entries {
		entries[i].StudentID = studentID
		if err := entries[i].check(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.getStudent(ctx, studentID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM course_history WHERE student_id = ?`, studentID); err != nil {
		return fmt.Errorf("store: clear history: %w", err)
	}
	now := time.Now().UTC()
	for _, e := range entries {
		if err := upsertHistory(ctx, tx, e, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (e HistoryEntry) check() error {
	if !e.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, e.Status)
	}
	if e.StudentID == "" || e.CourseID == "" {
		return fmt.Errorf("store: history entry needs student and course")
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertHistory(ctx context.Context, db execer, e HistoryEntry, now time.Time) error {
	recordedAt := e.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = now
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO course_history (student_id, course_id, status, grade, year_taken, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id, course_id, year_taken) DO UPDATE SET
			status = excluded.status,
			grade = excluded.grade,
			recorded_at = excluded.recorded_at
	`, e.StudentID, e.CourseID, string(e.Status), e.Grade, e.YearTaken, recordedAt.UTC().Format(sortableTime))
	if err != nil {
		return fmt.Errorf("store: record history %s: %w", e.CourseID, err)
	}
	return nil
}

// History returns every recorded attempt of the student, oldest first.
func (s *Store) History(ctx context.Context, studentID string) (*History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, course_id, status, grade, year_taken, recorded_at
		FROM course_history WHERE student_id = ?
		ORDER BY year_taken, recorded_at, course_id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	defer rows.Close()

	h := &History{StudentID: studentID, Entries: []HistoryEntry{}}
	for rows.Next() {
		var (
			e          HistoryEntry
			status     string
			grade      sql.NullFloat64
			recordedAt string
		)
		if err := rows.Scan(&e.StudentID, &e.CourseID, &status, &grade, &e.YearTaken, &recordedAt); err != nil {
			return nil, err
		}
		e.Status = HistoryStatus(status)
		if grade.Valid {
			g := grade.Float64
			e.Grade = &g
		}
		e.RecordedAt, _ = time.Parse(sortableTime, recordedAt)
		h.Entries = append(h.Entries, e)
	}
	return h, rows.Err()
}

// ClearHistory deletes the student's history and returns how many rows went.
func (s *Store) ClearHistory(ctx context.Context, studentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM course_history WHERE student_id = ?`, studentID)
	if err != nil {
		return 0, fmt.Errorf("store: clear history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Enroll registers the student in courses for an academic year. Existing
// enrollments are kept; only new rows are returned.
func (s *Store) Enroll(ctx context.Context, studentID string, courseIDs []string, academicYear int) ([]Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if _, err := s.getStudent(ctx, studentID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	created := []Enrollment{}
	for _, courseID := range courseIDs {
		e := Enrollment{
			ID:           ulid.Make().String(),
			StudentID:    studentID,
			CourseID:     courseID,
			AcademicYear: academicYear,
			Status:       EnrollmentActive,
			EnrolledAt:   now,
		}
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO enrollments (id, student_id, course_id, academic_year, status, enrolled_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ID, e.StudentID, e.CourseID, e.AcademicYear, e.Status, e.EnrolledAt.Format(time.RFC3339))
		if err != nil {
			return nil, fmt.Errorf("store: enroll %s: %w", courseID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created = append(created, e)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit enrollment: %w", err)
	}
	return created, nil
}

// ActiveEnrollments returns the student's active enrollments.
func (s *Store) ActiveEnrollments(ctx context.Context, studentID string) ([]Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, course_id, academic_year, status, enrolled_at
		FROM enrollments WHERE student_id = ? AND status = ?
		ORDER BY academic_year, id
	`, studentID, EnrollmentActive)
	if err != nil {
		return nil, fmt.Errorf("store: query enrollments: %w", err)
	}
	defer rows.Close()

	results := []Enrollment{}
	for rows.Next() {
		var (
			e          Enrollment
			enrolledAt string
		)
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.AcademicYear, &e.Status, &enrolledAt); err != nil {
			return nil, err
		}
		e.EnrolledAt, _ = time.Parse(time.RFC3339, enrolledAt)
		results = append(results, e)
	}
	return results, rows.Err()
}

// LogInference appends an audit entry. ID and CreatedAt are filled in when
// empty.
func (s *Store) LogInference(ctx context.Context, entry InferenceLog) (*InferenceLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	if entry.ID == "" {
		entry.ID = ulid.Make().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.FiredRules == nil {
		entry.FiredRules = []string{}
	}
	fired, err := json.Marshal(entry.FiredRules)
	if err != nil {
		return nil, fmt.Errorf("store: encode fired rules: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inference_log (id, student_id, status, message, fired_rules, result, explanation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.StudentID, string(entry.Status), entry.Message, string(fired),
		jsonText(entry.Result), jsonText(entry.Explanation), entry.CreatedAt.UTC().Format(sortableTime))
	if err != nil {
		return nil, fmt.Errorf("store: log inference: %w", err)
	}
	return &entry, nil
}

// InferenceLogs returns the student's audit entries, newest first. A limit of
// zero or less returns all of them.
func (s *Store) InferenceLogs(ctx context.Context, studentID string, limit int) ([]InferenceLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	query := `
		SELECT id, student_id, status, message, fired_rules, result, explanation, created_at
		FROM inference_log WHERE student_id = ?
		ORDER BY created_at DESC, id DESC
	`
	args := []any{studentID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query inference log: %w", err)
	}
	defer rows.Close()

	results := []InferenceLog{}
	for rows.Next() {
		var (
			e                   InferenceLog
			status, fired       string
			result, explanation string
			createdAt           string
		)
		if err := rows.Scan(&e.ID, &e.StudentID, &status, &e.Message, &fired, &result, &explanation, &createdAt); err != nil {
			return nil, err
		}
		e.Status = Status(status)
		if err := json.Unmarshal([]byte(fired), &e.FiredRules); err != nil {
			return nil, fmt.Errorf("store: decode fired rules of %s: %w", e.ID, err)
		}
		e.Result = []byte(result)
		e.Explanation = []byte(explanation)
		e.CreatedAt, _ = time.Parse(sortableTime, createdAt)
		results = append(results, e)
	}
	return results, rows.Err()
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &StoreStats{SchemaVersion: schemaVersion}
	counts := []struct {
		table string
		dest  *int
	}{
		{"students", &stats.Students},
		{"course_history", &stats.HistoryRows},
		{"enrollments", &stats.Enrollments},
		{"inference_log", &stats.Inferences},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("store: count %s: %w", c.table, err)
		}
	}

	program, err := s.getMetadata(ctx, MetaProgram)
	if err != nil {
		return nil, err
	}
	stats.Program = program
	return stats, nil
}

// GetMetadata returns a metadata value, or "" when the key is unset.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	return s.getMetadata(ctx, key)
}

func (s *Store) getMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: get metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores a metadata value.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set metadata %s: %w", key, err)
	}
	return nil
}

// CreatedAt returns when the database was first created.
func (s *Store) CreatedAt(ctx context.Context) (time.Time, error) {
	v, err := s.GetMetadata(ctx, MetaCreatedAt)
	if err != nil || v == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanStudent returns ErrNotFound only for sql.ErrNoRows from *sql.Row.
func scanStudent(sc scanner) (*Student, error) {
	var (
		st                   Student
		typ                  string
		createdAt, updatedAt string
	)
	err := sc.Scan(&st.ID, &st.Name, &st.CurrentYear, &typ, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	st.Type = StudentType(typ)
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	st.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &st, nil
}

func jsonText(b []byte) string {
	if len(strings.TrimSpace(string(b))) == 0 {
		return "{}"
	}
	return string(b)
}
