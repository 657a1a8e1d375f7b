// ABOUTME: SQLite-backed history of pipeline runs across branches and invocations.
// ABOUTME: Acts as a run checkpointer so every iteration upserts the run's row with its full record.
package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/2389-research/ratchet/pipeline"
	_ "github.com/mattn/go-sqlite3"
)

// DBFile is the history database file name inside the data directory.
const DBFile = "history.db"

// ErrRunNotFound is returned by Get when no run has the given id.
var ErrRunNotFound = errors.New("run not found")

const timeLayout = "2006-01-02T15:04:05Z07:00"

// RunSummary is one row of the runs table.
type RunSummary struct {
	RunID        string `json:"run_id"`
	Branch       string `json:"branch"`
	Feature      string `json:"feature"`
	Status       string `json:"status"`
	StopReason   string `json:"stop_reason,omitempty"`
	Iterations   int    `json:"iterations"`
	LastWarnings int    `json:"last_warnings"`
	FailedStep   string `json:"failed_step,omitempty"`
	Seed         uint64 `json:"seed"`
	ResultsPath  string `json:"results_path"`
	StartedAt    string `json:"started_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Index is the run history database. The per-branch run-results.json files
// remain the source of truth for a single run; the index keeps every run.
type Index struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the history database at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			branch TEXT NOT NULL,
			feature TEXT NOT NULL,
			status TEXT NOT NULL,
			stop_reason TEXT NOT NULL,
			iterations INTEGER NOT NULL,
			last_warnings INTEGER NOT NULL,
			failed_step TEXT NOT NULL,
			seed TEXT NOT NULL,
			results_path TEXT NOT NULL,
			started_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			record_json TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS runs_branch ON runs(branch, run_id);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Index{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// Recorder returns a Checkpointer that upserts runs whose record lives at resultsPath.
func (idx *Index) Recorder(resultsPath string) pipeline.Checkpointer {
	return pipeline.CheckpointFunc(func(run *pipeline.PipelineRun) error {
		return idx.Upsert(run, resultsPath)
	})
}

// Upsert inserts or replaces the row for run.
func (idx *Index) Upsert(run *pipeline.PipelineRun, resultsPath string) error {
	record, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.RunID, err)
	}

	var lastWarnings int
	var failedStep string
	if last, ok := run.LastIteration(); ok {
		lastWarnings = last.TotalWarnings()
		if last.FailedStep != nil {
			failedStep = *last.FailedStep
		}
	}

	_, err = idx.db.Exec(
		`INSERT INTO runs (run_id, branch, feature, status, stop_reason, iterations, last_warnings,
			failed_step, seed, results_path, started_at, updated_at, record_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			stop_reason = excluded.stop_reason,
			iterations = excluded.iterations,
			last_warnings = excluded.last_warnings,
			failed_step = excluded.failed_step,
			results_path = excluded.results_path,
			updated_at = excluded.updated_at,
			record_json = excluded.record_json`,
		run.RunID,
		run.Branch,
		run.Feature,
		string(run.Status),
		run.StopReason,
		len(run.Iterations),
		lastWarnings,
		failedStep,
		fmt.Sprintf("%d", run.Seed),
		resultsPath,
		run.StartedAt.UTC().Format(timeLayout),
		idx.now().UTC().Format(timeLayout),
		string(record),
	)
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", run.RunID, err)
	}
	return nil
}

// List returns the most recent runs first. A branch of "" matches every
// branch; limit <= 0 means no limit.
func (idx *Index) List(branch string, limit int) ([]RunSummary, error) {
	query := `SELECT run_id, branch, feature, status, stop_reason, iterations, last_warnings,
		failed_step, seed, results_path, started_at, updated_at FROM runs`
	var args []any
	if branch != "" {
		query += " WHERE branch = ?"
		args = append(args, branch)
	}
	query += " ORDER BY started_at DESC, run_id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := idx.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		r, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Lookup returns the summary row for runID.
func (idx *Index) Lookup(runID string) (RunSummary, error) {
	row := idx.db.QueryRow(`SELECT run_id, branch, feature, status, stop_reason, iterations, last_warnings,
		failed_step, seed, results_path, started_at, updated_at FROM runs WHERE run_id = ?`, runID)
	r, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (RunSummary, error) {
	var r RunSummary
	var seed string
	if err := row.Scan(&r.RunID, &r.Branch, &r.Feature, &r.Status, &r.StopReason, &r.Iterations,
		&r.LastWarnings, &r.FailedStep, &seed, &r.ResultsPath, &r.StartedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run row: %w", err)
	}
	if _, err := fmt.Sscanf(seed, "%d", &r.Seed); err != nil {
		return r, fmt.Errorf("parse seed for %s: %w", r.RunID, err)
	}
	return r, nil
}

// Get returns the full record stored for runID.
func (idx *Index) Get(runID string) (*pipeline.PipelineRun, error) {
	var record string
	err := idx.db.QueryRow("SELECT record_json FROM runs WHERE run_id = ?", runID).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run %s: %w", runID, err)
	}
	var run pipeline.PipelineRun
	if err := json.Unmarshal([]byte(record), &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &run, nil
}

// Delete removes a run from the history.
func (idx *Index) Delete(runID string) error {
	res, err := idx.db.Exec("DELETE FROM runs WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
