// ABOUTME: Run record types: the append-only PipelineRun and its iteration and step results.
// ABOUTME: The orchestrator owns the canonical copy in memory and hands out deep-copied snapshots.
package pipeline

import (
	"time"
)

// IterationStatus is the outcome of one iteration.
type IterationStatus string

const (
	IterationSuccess IterationStatus = "success"
	IterationFailed  IterationStatus = "failed"
)

// RunStatus is the lifecycle status of a whole run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
	RunCancelled RunStatus = "cancelled"
)

// StepExecutionResult records a single step invocation.
type StepExecutionResult struct {
	StepID          string    `json:"step_id"`
	StepName        string    `json:"step_name"`
	Required        bool      `json:"required"`
	ExitCode        int       `json:"exit_code"`
	DurationSeconds float64   `json:"duration_seconds"`
	WarningCount    int       `json:"warning_count"`
	Timestamp       time.Time `json:"timestamp"`
	InvocationID    string    `json:"invocation_id"`
	Error           string    `json:"error,omitempty"`
}

// Passed reports whether the step exited zero.
func (r StepExecutionResult) Passed() bool {
	return r.ExitCode == 0
}

// IterationResult is one bounded pass over the selected steps.
type IterationResult struct {
	Iteration  int                   `json:"iteration"`
	Timestamp  time.Time             `json:"timestamp"`
	StepsRun   int                   `json:"steps_run"`
	Steps      []StepExecutionResult `json:"steps"`
	Skipped    []string              `json:"skipped,omitempty"`
	Status     IterationStatus       `json:"status"`
	FailedStep *string               `json:"failed_step"`
}

// TotalWarnings sums warning counts over the executed steps.
func (it IterationResult) TotalWarnings() int {
	total := 0
	for _, s := range it.Steps {
		total += s.WarningCount
	}
	return total
}

// FailedSteps returns the ids of every step that exited nonzero, required or not.
func (it IterationResult) FailedSteps() []string {
	var out []string
	for _, s := range it.Steps {
		if !s.Passed() {
			out = append(out, s.StepID)
		}
	}
	return out
}

func (it IterationResult) clone() IterationResult {
	cp := it
	cp.Steps = append([]StepExecutionResult(nil), it.Steps...)
	if cp.Steps == nil {
		cp.Steps = []StepExecutionResult{}
	}
	cp.Skipped = append([]string(nil), it.Skipped...)
	if it.FailedStep != nil {
		id := *it.FailedStep
		cp.FailedStep = &id
	}
	return cp
}

// PipelineRun is the full history of one orchestrator invocation.
type PipelineRun struct {
	RunID       string            `json:"run_id"`
	Branch      string            `json:"branch"`
	Feature     string            `json:"feature"`
	Seed        uint64            `json:"seed"`
	Status      RunStatus         `json:"status"`
	StopReason  string            `json:"stop_reason,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Iterations  []IterationResult `json:"iterations"`
}

// NewPipelineRun creates an empty running record.
func NewPipelineRun(runID, branch, feature string, seed uint64, startedAt time.Time) *PipelineRun {
	return &PipelineRun{
		RunID:      runID,
		Branch:     branch,
		Feature:    feature,
		Seed:       seed,
		Status:     RunRunning,
		StartedAt:  startedAt,
		Iterations: []IterationResult{},
	}
}

// Append adds a finished iteration. The record keeps its own copy.
func (r *PipelineRun) Append(it IterationResult) {
	r.Iterations = append(r.Iterations, it.clone())
}

// Finish moves the run to a terminal status.
func (r *PipelineRun) Finish(status RunStatus, reason string, at time.Time) {
	r.Status = status
	r.StopReason = reason
	r.CompletedAt = &at
}

// LastIteration returns the most recent iteration, if any.
func (r *PipelineRun) LastIteration() (IterationResult, bool) {
	if len(r.Iterations) == 0 {
		return IterationResult{}, false
	}
	return r.Iterations[len(r.Iterations)-1], true
}

// Snapshot returns a deep copy safe to hand to other goroutines.
func (r *PipelineRun) Snapshot() *PipelineRun {
	cp := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	cp.Iterations = make([]IterationResult, len(r.Iterations))
	for i, it := range r.Iterations {
		cp.Iterations[i] = it.clone()
	}
	return &cp
}
