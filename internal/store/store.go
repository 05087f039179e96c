// Package store keeps the history of script runs in SQLite: one row per run
// plus the commands, recovered errors and threads recorded by the result
// collector.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JzHartmut/jzcmd/internal/script/result"
)

// Run is the stored summary of one script run.
type Run struct {
	ID         string
	ScriptPath string
	Station    string // empty for local runs
	Status     string // "ok" or "failed"
	StartedAt  time.Time
	FinishedAt time.Time
	DurationMs int64
	Summary    result.Summary
	Errors     []string
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    script_path TEXT NOT NULL,
    station TEXT DEFAULT '',
    status TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    duration_ms INTEGER DEFAULT 0,
    commands INTEGER DEFAULT 0,
    failed_commands INTEGER DEFAULT 0,
    recovered INTEGER DEFAULT 0,
    threads INTEGER DEFAULT 0,
    failed_threads INTEGER DEFAULT 0,
    errors TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS commands (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    argv TEXT NOT NULL,
    dir TEXT DEFAULT '',
    exit_code INTEGER NOT NULL,
    background INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    duration_ms INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS recovered_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    kind TEXT NOT NULL,
    message TEXT DEFAULT '',
    timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS threads (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    name TEXT NOT NULL,
    error TEXT DEFAULT '',
    duration_ms INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_commands_run ON commands(run_id);
CREATE INDEX IF NOT EXISTS idx_recovered_errors_run ON recovered_errors(run_id);
CREATE INDEX IF NOT EXISTS idx_threads_run ON threads(run_id);`

// New opens (and creates if needed) the database at dbPath. ":memory:" gives
// a private in-memory store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// SQLite requires single-connection mode for :memory: databases
	// (each pool connection gets its own in-memory DB otherwise).
	// For file-based DBs this also avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout has a fixed-width fraction so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// SaveReport stores r and its detail lists in one transaction. station names
// the remote station the commands ran on, or is empty.
func (s *Store) SaveReport(r *result.RunReport, station string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	errs, err := json.Marshal(r.Errors)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO runs (id, script_path, station, status, started_at, finished_at, duration_ms,
		                   commands, failed_commands, recovered, threads, failed_threads, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.ScriptPath, station, r.Status, formatTime(r.StartTime), formatTime(r.EndTime), r.Duration.Milliseconds(),
		r.Summary.Commands, r.Summary.FailedCommands, r.Summary.Recovered, r.Summary.Threads, r.Summary.FailedThreads,
		string(errs),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}

	for _, c := range r.Commands {
		argv, err := json.Marshal(c.Argv)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO commands (run_id, argv, dir, exit_code, background, started_at, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, string(argv), c.Dir, c.ExitCode, boolToInt(c.Background), formatTime(c.StartTime), c.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("insert command: %w", err)
		}
	}
	for _, e := range r.Recovered {
		_, err = tx.Exec(
			`INSERT INTO recovered_errors (run_id, kind, message, timestamp) VALUES (?, ?, ?, ?)`,
			r.RunID, e.Kind, e.Message, formatTime(e.Time),
		)
		if err != nil {
			return fmt.Errorf("insert recovered error: %w", err)
		}
	}
	for _, t := range r.Threads {
		_, err = tx.Exec(
			`INSERT INTO threads (run_id, name, error, duration_ms) VALUES (?, ?, ?, ?)`,
			r.RunID, t.Name, t.Error, t.DurationMs,
		)
		if err != nil {
			return fmt.Errorf("insert thread: %w", err)
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

const runColumns = `id, script_path, station, status, started_at, finished_at, duration_ms,
       commands, failed_commands, recovered, threads, failed_threads, errors`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var startedAt, finishedAt, errs string
	err := row.Scan(&r.ID, &r.ScriptPath, &r.Station, &r.Status, &startedAt, &finishedAt, &r.DurationMs,
		&r.Summary.Commands, &r.Summary.FailedCommands, &r.Summary.Recovered, &r.Summary.Threads, &r.Summary.FailedThreads,
		&errs)
	if err != nil {
		return nil, err
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, err
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return nil, err
	}
	if errs != "" && errs != "null" {
		if err := json.Unmarshal([]byte(errs), &r.Errors); err != nil {
			return nil, fmt.Errorf("run %s errors: %w", r.ID, err)
		}
	}
	return &r, nil
}

// GetRun returns the run with the given id, or nil if there is none.
func (s *Store) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// QueryRuns returns the most recent runs first. A limit of zero or less
// returns all runs. A non-empty script restricts the result to that path.
func (s *Store) QueryRuns(script string, limit int) ([]Run, error) {
	var where []string
	var args []interface{}
	if script != "" {
		where = append(where, "script_path = ?")
		args = append(args, script)
	}
	q := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY started_at DESC, _rowid_ DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// ---------------------------------------------------------------------------
// Details
// ---------------------------------------------------------------------------

// QueryCommands returns the commands of a run in execution order.
func (s *Store) QueryCommands(runID string) ([]result.CommandResult, error) {
	rows, err := s.db.Query(
		`SELECT argv, dir, exit_code, background, started_at, duration_ms
		 FROM commands WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cmds := []result.CommandResult{}
	for rows.Next() {
		var c result.CommandResult
		var argv, startedAt string
		var background int
		if err := rows.Scan(&argv, &c.Dir, &c.ExitCode, &background, &startedAt, &c.DurationMs); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(argv), &c.Argv); err != nil {
			return nil, fmt.Errorf("command argv: %w", err)
		}
		c.Background = background != 0
		if c.StartTime, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
	}
	return cmds, rows.Err()
}

// QueryRecovered returns the recovered errors of a run in order.
func (s *Store) QueryRecovered(runID string) ([]result.RecoveredError, error) {
	rows, err := s.db.Query(
		`SELECT kind, message, timestamp FROM recovered_errors WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []result.RecoveredError{}
	for rows.Next() {
		var e result.RecoveredError
		var ts string
		if err := rows.Scan(&e.Kind, &e.Message, &ts); err != nil {
			return nil, err
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// QueryThreads returns the threads of a run in completion order.
func (s *Store) QueryThreads(runID string) ([]result.ThreadResult, error) {
	rows, err := s.db.Query(
		`SELECT name, error, duration_ms FROM threads WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []result.ThreadResult{}
	for rows.Next() {
		var t result.ThreadResult
		if err := rows.Scan(&t.Name, &t.Error, &t.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LoadReport reassembles the full report of a run, or returns nil if the run
// is unknown.
func (s *Store) LoadReport(runID string) (*result.RunReport, error) {
	run, err := s.GetRun(runID)
	if err != nil || run == nil {
		return nil, err
	}
	r := &result.RunReport{
		RunID:      run.ID,
		ScriptPath: run.ScriptPath,
		Status:     run.Status,
		Errors:     run.Errors,
		Summary:    run.Summary,
		StartTime:  run.StartedAt,
		EndTime:    run.FinishedAt,
		Duration:   time.Duration(run.DurationMs) * time.Millisecond,
	}
	if r.Commands, err = s.QueryCommands(runID); err != nil {
		return nil, err
	}
	if r.Recovered, err = s.QueryRecovered(runID); err != nil {
		return nil, err
	}
	if r.Threads, err = s.QueryThreads(runID); err != nil {
		return nil, err
	}
	return r, nil
}
