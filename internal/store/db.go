package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"attendance-reconciler/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when a run id is not in history.
var ErrRunNotFound = errors.New("run not found")

// Store persists run history in sqlite.
type Store struct {
	db *sql.DB
}

// Open connects to the sqlite database at dbPath and creates the tables if needed.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	runTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		course TEXT,
		requested_by TEXT,
		out_prefix TEXT,
		join_mode TEXT,
		start_date TEXT,
		end_date TEXT,
		status TEXT,
		notes TEXT,
		summary TEXT,
		diagnostics TEXT,
		run_at DATETIME
	);
	`
	artifactTable := `
	CREATE TABLE IF NOT EXISTS run_artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT REFERENCES runs(id) ON DELETE CASCADE,
		filename TEXT,
		relative_path TEXT
	);
	`
	for _, stmt := range []string{runTable, artifactTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or replaces a run together with its artifacts.
func (s *Store) SaveRun(ctx context.Context, run model.RunRecord) error {
	var summaryJSON []byte
	if run.Summary != nil {
		var err error
		if summaryJSON, err = json.Marshal(run.Summary); err != nil {
			return err
		}
	}
	diagJSON, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return err
	}
	if run.RunAt.IsZero() {
		run.RunAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(id, course, requested_by, out_prefix, join_mode, start_date, end_date, status, notes, summary, diagnostics, run_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Course, run.RequestedBy, run.OutPrefix, string(run.JoinMode), run.StartDate, run.EndDate,
		run.Status, run.Notes, string(summaryJSON), string(diagJSON), run.RunAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM run_artifacts WHERE run_id = ?`, run.ID); err != nil {
		return err
	}
	for _, a := range run.Artifacts {
		_, err := tx.ExecContext(ctx, `INSERT INTO run_artifacts (run_id, filename, relative_path) VALUES (?, ?, ?)`,
			run.ID, a.Filename, a.RelativePath)
		if err != nil {
			return fmt.Errorf("failed to save artifact: %w", err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs first. A non-positive limit returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, course, requested_by, out_prefix, join_mode, start_date, end_date,
		status, notes, summary, diagnostics, run_at FROM runs ORDER BY run_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].Artifacts, err = s.artifacts(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (model.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, course, requested_by, out_prefix, join_mode, start_date, end_date,
		status, notes, summary, diagnostics, run_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return model.RunRecord{}, err
	}
	run.Artifacts, err = s.artifacts(ctx, id)
	return run, err
}

func (s *Store) artifacts(ctx context.Context, runID string) ([]model.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, relative_path FROM run_artifacts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Artifact
	for rows.Next() {
		var a model.Artifact
		if err := rows.Scan(&a.Filename, &a.RelativePath); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.RunRecord, error) {
	var (
		run                   model.RunRecord
		joinMode              string
		summaryJSON, diagJSON string
	)
	err := sc.Scan(&run.ID, &run.Course, &run.RequestedBy, &run.OutPrefix, &joinMode, &run.StartDate, &run.EndDate,
		&run.Status, &run.Notes, &summaryJSON, &diagJSON, &run.RunAt)
	if err != nil {
		return run, err
	}
	run.JoinMode = model.JoinMode(joinMode)
	if summaryJSON != "" {
		run.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON), run.Summary); err != nil {
			return run, fmt.Errorf("corrupt summary for run %s: %w", run.ID, err)
		}
	}
	if diagJSON != "" {
		if err := json.Unmarshal([]byte(diagJSON), &run.Diagnostics); err != nil {
			return run, fmt.Errorf("corrupt diagnostics for run %s: %w", run.ID, err)
		}
	}
	return run, nil
}
