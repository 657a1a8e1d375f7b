// ABOUTME: Per-step artifact files (summary.txt, output.log, <id>.json, status.json) and standalone step runs.
// ABOUTME: The orchestrator and "ratchet step" share these so both leave the same layout behind.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// stepStatus is the status.json document written for every step.
type stepStatus struct {
	StepID          string    `json:"step_id"`
	StepName        string    `json:"step_name"`
	InvocationID    string    `json:"invocation_id"`
	Iteration       int       `json:"iteration"`
	Required        bool      `json:"required"`
	Passed          bool      `json:"passed"`
	ExitCode        int       `json:"exit_code"`
	WarningCount    int       `json:"warning_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	Timestamp       time.Time `json:"timestamp"`
	Error           string    `json:"error,omitempty"`
}

// apply copies an outcome into the result.
func (r *StepExecutionResult) apply(outcome *StepOutcome, elapsed time.Duration) {
	r.ExitCode = outcome.ExitCode
	r.WarningCount = outcome.Warnings
	r.Error = ""
	if outcome.ExitCode != 0 {
		r.Error = outcome.Reason
		if r.Error == "" {
			r.Error = fmt.Sprintf("exit code %d", outcome.ExitCode)
		}
	}
	r.DurationSeconds = elapsed.Seconds()
}

// WriteStepArtifacts writes a step's files into dir. Every file is attempted;
// the returned error joins whatever failed.
func WriteStepArtifacts(dir string, iteration int, def StepDefinition, res StepExecutionResult, outcome *StepOutcome, log []byte) error {
	var errs []error
	write := func(name string, data []byte) {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", name, err))
		}
	}

	name := def.Name
	if name == "" {
		name = def.ID
	}
	summary := outcome.Summary
	if summary == "" {
		verdict := "PASS"
		if !res.Passed() {
			verdict = "FAIL: " + res.Error
		}
		summary = fmt.Sprintf("%s (iteration %d): %s\n", name, iteration, verdict)
	}
	write(SummaryFile, []byte(summary))
	write(OutputLogFile, log)

	if outcome.Result != nil {
		data, err := json.MarshalIndent(outcome.Result, "", "  ")
		if err != nil {
			errs = append(errs, fmt.Errorf("encode result: %w", err))
		} else {
			write(def.ID+".json", append(data, '\n'))
		}
	}

	status := stepStatus{
		StepID:          res.StepID,
		StepName:        res.StepName,
		InvocationID:    res.InvocationID,
		Iteration:       iteration,
		Required:        res.Required,
		Passed:          res.Passed(),
		ExitCode:        res.ExitCode,
		WarningCount:    res.WarningCount,
		DurationSeconds: res.DurationSeconds,
		Timestamp:       res.Timestamp,
		Error:           res.Error,
	}
	if err := writeJSONAtomic(filepath.Join(dir, StatusFile), status); err != nil {
		errs = append(errs, fmt.Errorf("write %s: %w", StatusFile, err))
	}
	return errors.Join(errs...)
}

// RunStep executes one step outside a run. in.OutputDir must exist; the
// step's artifacts are written there exactly as the orchestrator would. The
// error reports artifact write failures only; step failures are in the result.
func RunStep(ctx context.Context, step Step, def StepDefinition, in StepInput) (StepExecutionResult, error) {
	if def.ID == "" {
		def.ID = step.ID()
	}
	if def.Name == "" {
		def.Name = def.ID
	}
	if def.TimeoutSeconds <= 0 {
		def.TimeoutSeconds = DefaultStepTimeoutSeconds
	}
	if in.Log == nil {
		in.Log = NewStepLogger(def.ID, nil)
	}

	start := time.Now()
	res := StepExecutionResult{
		StepID:       def.ID,
		StepName:     def.Name,
		Required:     def.Required,
		Timestamp:    start,
		InvocationID: NewInvocationID(),
	}
	outcome := InvokeStep(ctx, step, def, in)
	res.apply(outcome, time.Since(start))

	err := WriteStepArtifacts(in.OutputDir, in.Iteration, def, res, outcome, in.Log.Bytes())
	return res, err
}
