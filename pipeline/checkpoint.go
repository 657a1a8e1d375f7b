// ABOUTME: Checkpointing of the in-memory run record to durable sinks.
// ABOUTME: FileCheckpointer rewrites run-results.json atomically via temp file and rename.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// RunResultsFile is the name of the run record inside a run directory.
const RunResultsFile = "run-results.json"

// Checkpointer persists a snapshot of the run record.
type Checkpointer interface {
	Checkpoint(run *PipelineRun) error
}

// CheckpointFunc adapts a function to the Checkpointer interface.
type CheckpointFunc func(run *PipelineRun) error

// Checkpoint calls f.
func (f CheckpointFunc) Checkpoint(run *PipelineRun) error { return f(run) }

// Compile-time check that FileCheckpointer implements Checkpointer.
var _ Checkpointer = (*FileCheckpointer)(nil)

// FileCheckpointer writes the run record as indented JSON to Path.
type FileCheckpointer struct {
	Path string
}

// Checkpoint atomically replaces the file at Path with the run record.
func (c *FileCheckpointer) Checkpoint(run *PipelineRun) error {
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	return writeJSONAtomic(c.Path, run)
}

// LoadRun reads a run record written by FileCheckpointer.
func LoadRun(path string) (*PipelineRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run record: %w", err)
	}
	var run PipelineRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run record %s: %w", path, err)
	}
	if run.Iterations == nil {
		run.Iterations = []IterationResult{}
	}
	return &run, nil
}

// writeJSONAtomic marshals v as indented JSON and writes it to path by first
// writing to a temp file in the same directory and renaming it into place.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}
