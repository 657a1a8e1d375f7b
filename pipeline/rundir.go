// ABOUTME: RunDirectory manages the on-disk layout of a run: iteration-<n>/step-<id>/ artifact folders.
// ABOUTME: Also owns the run-level files (run-results.json, progress log, report) and resets them between runs.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Standard per-step artifact names.
const (
	OutputLogFile = "output.log"
	StatusFile    = "status.json"
	SummaryFile   = "summary.txt"
	ProgressFile  = "progress.ndjson"
	LiveStateFile = "live.json"
	ReportFile    = "report.md"
)

const (
	iterationGlob      = "iteration-*"
	iterationDirFormat = "iteration-%d"
	stepDirFormat      = "step-%s"
)

// RunDirectory represents the directory holding one branch's run.
type RunDirectory struct {
	BaseDir string
}

// NewRunDirectory creates the directory if needed.
func NewRunDirectory(baseDir string) (*RunDirectory, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir must not be empty")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	return &RunDirectory{BaseDir: baseDir}, nil
}

// ResultsPath returns the path of the run record.
func (rd *RunDirectory) ResultsPath() string {
	return filepath.Join(rd.BaseDir, RunResultsFile)
}

// Path joins name onto the run directory.
func (rd *RunDirectory) Path(name string) string {
	return filepath.Join(rd.BaseDir, name)
}

// IterationDir returns the directory for a 0-based iteration.
func (rd *RunDirectory) IterationDir(iteration int) string {
	return filepath.Join(rd.BaseDir, fmt.Sprintf(iterationDirFormat, iteration))
}

// StepDir returns the artifact directory for a step within an iteration.
func (rd *RunDirectory) StepDir(iteration int, stepID string) string {
	return filepath.Join(rd.IterationDir(iteration), fmt.Sprintf(stepDirFormat, stepID))
}

// EnsureStepDir creates the step's directory, parents included, and returns its path.
func (rd *RunDirectory) EnsureStepDir(iteration int, stepID string) (string, error) {
	if stepID == "" {
		return "", fmt.Errorf("stepID must not be empty")
	}
	dir := rd.StepDir(iteration, stepID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating step directory: %w", err)
	}
	return dir, nil
}

// ReadStepArtifact reads a file from a step's directory.
func (rd *RunDirectory) ReadStepArtifact(iteration int, stepID, filename string) ([]byte, error) {
	return os.ReadFile(filepath.Join(rd.StepDir(iteration, stepID), filename))
}

// ListStepArtifacts returns the filenames in a step's directory.
func (rd *RunDirectory) ListStepArtifacts(iteration int, stepID string) ([]string, error) {
	entries, err := os.ReadDir(rd.StepDir(iteration, stepID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Reset removes the previous run's iterations, record, and report so a fresh
// run starts empty. The progress log is truncated by its own logger.
func (rd *RunDirectory) Reset() error {
	matches, err := filepath.Glob(filepath.Join(rd.BaseDir, iterationGlob))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			return fmt.Errorf("removing %s: %w", m, err)
		}
	}
	for _, name := range []string{RunResultsFile, ReportFile} {
		if err := os.Remove(rd.Path(name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", name, err)
		}
	}
	return nil
}

// BranchSlug turns a branch name into a single path segment, e.g.
// "ai-gen/login" becomes "ai-gen-login".
func BranchSlug(branch string) string {
	var b strings.Builder
	for _, r := range branch {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-.")
	if slug == "" {
		return "default"
	}
	return slug
}
