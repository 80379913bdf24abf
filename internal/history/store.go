// Package history keeps a local record of installer runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kayleschmoyer/Fv2/internal/domain"
)

var ErrUnknownRun = errors.New("unknown run")

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

type Run struct {
	ID       string
	Started  time.Time
	Ended    *time.Time
	Status   RunStatus
	Error    string
	Options  map[string]bool
	Steps    int
	FailedAt string
}

type StepResult struct {
	RunID   string
	StepID  string
	Title   string
	Status  domain.StepStatus
	Message string
	Started time.Time
	Ended   time.Time
}

func (r StepResult) Duration() time.Duration { return r.Ended.Sub(r.Started) }

type Store struct {
	db *sql.DB
}

// DefaultPath is where history lives when the config does not say otherwise.
func DefaultPath() string {
	if pd := os.Getenv("ProgramData"); pd != "" {
		return filepath.Join(pd, "Ensight", "fv2", "history.db")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fv2", "history.db")
	}
	return filepath.Join(os.TempDir(), "fv2-history.db")
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// One connection keeps the per-connection pragmas in force.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure history db (%s): %w", pragma, err)
		}
	}
	for _, ddl := range []string{`
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	ended_at TEXT,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	options_json TEXT NOT NULL DEFAULT '{}'
)`, `
CREATE TABLE IF NOT EXISTS step_results (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	step_id TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	ended_at TEXT NOT NULL,
	PRIMARY KEY (run_id, step_id)
)`} {
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize history schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func (s *Store) BeginRun(ctx context.Context, runID string, started time.Time, opts map[string]bool) error {
	if opts == nil {
		opts = map[string]bool{}
	}
	payload, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("marshal run options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, options_json) VALUES (?, ?, ?, ?)`,
		runID, formatTime(started), string(RunRunning), string(payload),
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// RecordStep stores the terminal state of one step. Recording the same step
// twice keeps the latest outcome.
func (s *Store) RecordStep(ctx context.Context, runID string, st domain.StepState, started, ended time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO step_results (run_id, step_id, title, status, message, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, step_id) DO UPDATE SET
		 title = excluded.title,
		 status = excluded.status,
		 message = excluded.message,
		 started_at = excluded.started_at,
		 ended_at = excluded.ended_at`,
		runID, st.ID, st.Title, string(st.Status), st.Message, formatTime(started), formatTime(ended),
	)
	if err != nil {
		return fmt.Errorf("record step %s/%s: %w", runID, st.ID, err)
	}
	return nil
}

func (s *Store) FinishRun(ctx context.Context, runID string, ended time.Time, runErr error) error {
	status, msg := RunSucceeded, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET ended_at = ?, status = ?, error = ? WHERE id = ?`,
		formatTime(ended), string(status), msg, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrUnknownRun)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.started_at, r.ended_at, r.status, r.error, r.options_json,
	(SELECT COUNT(*) FROM step_results sr WHERE sr.run_id = r.id),
	COALESCE((SELECT sr.step_id FROM step_results sr
		WHERE sr.run_id = r.id AND sr.status = ? ORDER BY sr.ended_at DESC LIMIT 1), '')
FROM runs r
ORDER BY r.started_at DESC
LIMIT ?`, string(domain.StepError), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0)
	for rows.Next() {
		var (
			r               Run
			started, status string
			ended           sql.NullString
			optionsJSON     string
		)
		if err := rows.Scan(&r.ID, &started, &ended, &status, &r.Error, &optionsJSON, &r.Steps, &r.FailedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if r.Started, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("run %s: started_at: %w", r.ID, err)
		}
		if ended.Valid {
			t, err := parseTime(ended.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: ended_at: %w", r.ID, err)
			}
			r.Ended = &t
		}
		r.Status = RunStatus(status)
		if err := json.Unmarshal([]byte(optionsJSON), &r.Options); err != nil {
			return nil, fmt.Errorf("run %s: options: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return out, nil
}

// Steps returns the recorded steps of runID in execution order.
func (s *Store) Steps(ctx context.Context, runID string) ([]StepResult, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT step_id, title, status, message, started_at, ended_at
FROM step_results WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list steps of %s: %w", runID, err)
	}
	defer rows.Close()

	out := make([]StepResult, 0)
	for rows.Next() {
		var (
			sr             StepResult
			status         string
			started, ended string
		)
		if err := rows.Scan(&sr.StepID, &sr.Title, &status, &sr.Message, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan step row: %w", err)
		}
		sr.RunID = runID
		sr.Status = domain.StepStatus(status)
		if sr.Started, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("step %s: started_at: %w", sr.StepID, err)
		}
		if sr.Ended, err = parseTime(ended); err != nil {
			return nil, fmt.Errorf("step %s: ended_at: %w", sr.StepID, err)
		}
		out = append(out, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step rows: %w", err)
	}
	return out, nil
}
