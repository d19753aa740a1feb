// Package snapshot keeps an offline copy of coaching records in SQLite so
// reports can run without the data service.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/claude/freecoach/internal/analytics"
	"github.com/claude/freecoach/internal/models"
	"github.com/claude/freecoach/internal/source"
)

const (
	sourceName = "sqlite"
	// atLayout is fixed-width so session times sort and compare as text.
	atLayout = "2006-01-02T15:04:05.000000000"
)

const schema = `
CREATE TABLE IF NOT EXISTS students (
	id   INTEGER PRIMARY KEY,
	nome TEXT NOT NULL,
	body TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS plans (
	id         INTEGER PRIMARY KEY,
	student_id INTEGER NOT NULL,
	body       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plans_student ON plans (student_id);
CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY,
	student_id INTEGER NOT NULL,
	at         TEXT NOT NULL,
	body       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_student_at ON sessions (student_id, at);
CREATE TABLE IF NOT EXISTS payments (
	id         INTEGER PRIMARY KEY,
	student_id INTEGER NOT NULL,
	body       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payments_student ON payments (student_id);
CREATE TABLE IF NOT EXISTS exports (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	source      TEXT NOT NULL,
	students    INTEGER NOT NULL,
	plans       INTEGER NOT NULL,
	sessions    INTEGER NOT NULL,
	payments    INTEGER NOT NULL
);`

// Store is a SQLite-backed DataSource holding the last exported dataset.
type Store struct {
	db *sql.DB
}

var (
	_ source.DataSource    = (*Store)(nil)
	_ source.PaymentLister = (*Store)(nil)
)

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, multierr.Append(fmt.Errorf("creating snapshot schema: %w", err), db.Close())
	}
	return &Store{db: db}, nil
}

// Close closes the snapshot database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dataset is everything a snapshot holds.
type Dataset struct {
	Students []models.Student
	Plans    []models.WorkoutPlan
	Sessions []models.Session
	Payments []models.Payment
}

// ExportRecord describes one completed export.
type ExportRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Source     string    `json:"source"`
	Students   int       `json:"students"`
	Plans      int       `json:"plans"`
	Sessions   int       `json:"sessions"`
	Payments   int       `json:"payments"`
}

// Replace swaps the stored dataset for ds and logs rec, in one transaction.
func (s *Store) Replace(ctx context.Context, ds Dataset, rec ExportRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot tx: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	for _, table := range []string{"students", "plans", "sessions", "payments"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, st := range ds.Students {
		st.Plans, st.Payments = nil, nil
		if err := insertJSON(ctx, tx, `INSERT INTO students (id, nome, body) VALUES (?, ?, ?)`, st, st.ID, st.Name); err != nil {
			return fmt.Errorf("inserting student %d: %w", st.ID, err)
		}
	}
	for _, p := range ds.Plans {
		if err := insertJSON(ctx, tx, `INSERT INTO plans (id, student_id, body) VALUES (?, ?, ?)`, p, p.ID, p.StudentID); err != nil {
			return fmt.Errorf("inserting plan %d: %w", p.ID, err)
		}
	}
	for _, x := range ds.Sessions {
		if err := insertJSON(ctx, tx, `INSERT INTO sessions (id, student_id, at, body) VALUES (?, ?, ?, ?)`,
			x, x.ID, x.StudentID, wallClock(x.Time.Time)); err != nil {
			return fmt.Errorf("inserting session %d: %w", x.ID, err)
		}
	}
	for _, p := range ds.Payments {
		if err := insertJSON(ctx, tx, `INSERT INTO payments (id, student_id, body) VALUES (?, ?, ?)`, p, p.ID, p.StudentID); err != nil {
			return fmt.Errorf("inserting payment %d: %w", p.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO exports (id, started_at, finished_at, source, students, plans, sessions, payments)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), rec.Source,
		rec.Students, rec.Plans, rec.Sessions, rec.Payments); err != nil {
		return fmt.Errorf("recording export: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// insertJSON executes query with args followed by v encoded as JSON.
func insertJSON(ctx context.Context, tx *sql.Tx, query string, v any, args ...any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, append(args, string(body))...)
	return err
}

func wallClock(t time.Time) string {
	return t.Format(atLayout)
}

// LastExport returns the most recent export, or nil when the store is empty.
func (s *Store) LastExport(ctx context.Context) (*ExportRecord, error) {
	var rec ExportRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, source, students, plans, sessions, payments
		 FROM exports ORDER BY finished_at DESC LIMIT 1`).
		Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Source, &rec.Students, &rec.Plans, &rec.Sessions, &rec.Payments)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("querying last export", err)
	}
	return &rec, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return analytics.Unavailable(sourceName, fmt.Errorf("%s: %w", what, err))
}

// queryJSON decodes the single body column of every row into T.
func queryJSON[T any](ctx context.Context, db *sql.DB, what, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("querying "+what, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, wrap("scanning "+what, err)
		}
		var v T
		if err := json.Unmarshal([]byte(body), &v); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", what, err)
		}
		out = append(out, v)
	}
	return out, wrap("iterating "+what, rows.Err())
}

func (s *Store) ListStudents(ctx context.Context) ([]models.Student, error) {
	return queryJSON[models.Student](ctx, s.db, "students", `SELECT body FROM students ORDER BY nome, id`)
}

func (s *Store) GetStudent(ctx context.Context, studentID int64) (*models.Student, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM students WHERE id = ?`, studentID).Scan(&body)
	if err != nil {
		return nil, wrap("querying student", err)
	}
	var st models.Student
	if err := json.Unmarshal([]byte(body), &st); err != nil {
		return nil, fmt.Errorf("decoding student: %w", err)
	}
	return &st, nil
}

func (s *Store) ListPlans(ctx context.Context, studentID int64) ([]models.WorkoutPlan, error) {
	return queryJSON[models.WorkoutPlan](ctx, s.db, "plans",
		`SELECT body FROM plans WHERE student_id = ? ORDER BY id`, studentID)
}

func (s *Store) ListSessions(ctx context.Context, studentID int64, from, to time.Time) ([]models.Session, error) {
	query := `SELECT body FROM sessions WHERE student_id = ?`
	args := []any{studentID}
	if !from.IsZero() {
		query += ` AND at >= ?`
		args = append(args, wallClock(from))
	}
	if !to.IsZero() {
		query += ` AND at < ?`
		args = append(args, wallClock(to))
	}
	return queryJSON[models.Session](ctx, s.db, "sessions", query+` ORDER BY at, id`, args...)
}

func (s *Store) ListPayments(ctx context.Context, studentID int64) ([]models.Payment, error) {
	return queryJSON[models.Payment](ctx, s.db, "payments",
		`SELECT body FROM payments WHERE student_id = ? ORDER BY id`, studentID)
}

func (s *Store) ListAllPayments(ctx context.Context) ([]models.Payment, error) {
	return queryJSON[models.Payment](ctx, s.db, "payments", `SELECT body FROM payments ORDER BY id`)
}
