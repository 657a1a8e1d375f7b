// ABOUTME: Tests for "ratchet history" and "ratchet report" against a seeded index and run record.
package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/ratchet/history"
	"github.com/2389-research/ratchet/pipeline"
)

func seedHistory(t *testing.T, dataDir string, runs ...*pipeline.PipelineRun) {
	t.Helper()
	idx, err := history.Open(filepath.Join(dataDir, history.DBFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer idx.Close()
	for _, r := range runs {
		if err := idx.Upsert(r, filepath.Join(dataDir, r.RunID, pipeline.RunResultsFile)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func sampleRun(id, branch string, status pipeline.RunStatus) *pipeline.PipelineRun {
	return &pipeline.PipelineRun{
		RunID:     id,
		Branch:    branch,
		Feature:   "login",
		Seed:      7,
		Status:    status,
		StartedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

// --- history tests ---

func TestHistoryEmpty(t *testing.T) {
	code, stdout, _ := runCLI(t, "history", "--data-dir", t.TempDir())
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(stdout) != "No runs recorded." {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestHistoryFiltersAndJSON(t *testing.T) {
	data := t.TempDir()
	seedHistory(t, data,
		sampleRun("run-a", "ai-gen/login", pipeline.RunCompleted),
		sampleRun("run-b", "ai-gen/signup", pipeline.RunAborted),
	)

	code, stdout, _ := runCLI(t, "history", "--data-dir", data)
	if code != exitOK || !strings.Contains(stdout, "run-a") || !strings.Contains(stdout, "run-b") {
		t.Errorf("expected both runs (exit %d): %q", code, stdout)
	}

	code, stdout, _ = runCLI(t, "history", "--data-dir", data, "--branch", "ai-gen/signup", "--json")
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var runs []history.RunSummary
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != "run-b" || runs[0].Status != string(pipeline.RunAborted) {
		t.Errorf("unexpected filtered runs: %+v", runs)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	code, _, _ := runCLI(t, "history", "--limit=0", "--data-dir", t.TempDir())
	if code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, code)
	}
}

func TestHistoryUsesDataDirEnv(t *testing.T) {
	data := t.TempDir()
	t.Setenv(dataDirEnv, data)
	seedHistory(t, data, sampleRun("run-env", "ai-gen/login", pipeline.RunCompleted))

	code, stdout, _ := runCLI(t, "history")
	if code != exitOK || !strings.Contains(stdout, "run-env") {
		t.Errorf("expected the run from %s (exit %d): %q", dataDirEnv, code, stdout)
	}
}

func TestHistoryDelete(t *testing.T) {
	data := t.TempDir()
	seedHistory(t, data,
		sampleRun("run-a", "ai-gen/login", pipeline.RunCompleted),
		sampleRun("run-b", "ai-gen/login", pipeline.RunAborted),
	)

	code, stdout, _ := runCLI(t, "history", "--data-dir", data, "--delete", "run-a")
	if code != exitOK || strings.TrimSpace(stdout) != "deleted run run-a" {
		t.Fatalf("expected deletion (exit %d): %q", code, stdout)
	}
	_, stdout, _ = runCLI(t, "history", "--data-dir", data)
	if strings.Contains(stdout, "run-a") || !strings.Contains(stdout, "run-b") {
		t.Errorf("expected only run-b left: %q", stdout)
	}

	code, _, stderr := runCLI(t, "history", "--data-dir", data, "--delete", "run-a")
	if code != exitFailure || !strings.Contains(stderr, "run not found") {
		t.Errorf("expected not-found failure (exit %d): %q", code, stderr)
	}
}

// --- report tests ---

func TestReportRequiresPath(t *testing.T) {
	code, _, _ := runCLI(t, "report")
	if code != exitUsage {
		t.Errorf("expected exit %d, got %d", exitUsage, code)
	}
}

func TestReportMissingFile(t *testing.T) {
	code, _, _ := runCLI(t, "report", filepath.Join(t.TempDir(), pipeline.RunResultsFile))
	if code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
}
