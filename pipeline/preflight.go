// ABOUTME: Pre-run validation that checks the workspace and step resolution before iterating.
// ABOUTME: Every check runs so the caller sees all problems at once.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// PreflightCheck is a single validation run before the orchestrator starts.
type PreflightCheck struct {
	Name  string                          // human-readable check name
	Check func(ctx context.Context) error // nil error means pass

	// Advisory failures are reported as warnings and do not block the run.
	Advisory bool
}

// PreflightResult holds the aggregated results of all preflight checks.
type PreflightResult struct {
	Passed   []string
	Failed   []PreflightFailure
	Warnings []PreflightFailure
}

// PreflightFailure records a single check failure with its name and reason.
type PreflightFailure struct {
	Name   string
	Reason string
}

// OK returns true if no checks failed.
func (r PreflightResult) OK() bool {
	return len(r.Failed) == 0
}

// Error formats all failures as a multi-line string. Returns empty string if no failures.
func (r PreflightResult) Error() string {
	if len(r.Failed) == 0 {
		return ""
	}
	lines := make([]string, 0, len(r.Failed)+1)
	lines = append(lines, fmt.Sprintf("preflight: %d check(s) failed:", len(r.Failed)))
	for _, f := range r.Failed {
		lines = append(lines, fmt.Sprintf("  - %s: %s", f.Name, f.Reason))
	}
	return strings.Join(lines, "\n")
}

// RunPreflight executes all checks and collects results.
func RunPreflight(ctx context.Context, checks []PreflightCheck) PreflightResult {
	result := PreflightResult{
		Passed: make([]string, 0, len(checks)),
		Failed: make([]PreflightFailure, 0),
	}
	for _, c := range checks {
		err := c.Check(ctx)
		switch {
		case err != nil && c.Advisory:
			result.Warnings = append(result.Warnings, PreflightFailure{Name: c.Name, Reason: err.Error()})
		case err != nil:
			result.Failed = append(result.Failed, PreflightFailure{Name: c.Name, Reason: err.Error()})
		default:
			result.Passed = append(result.Passed, c.Name)
		}
	}
	return result
}

// BuildPreflightChecks returns the checks for a run. The workspace must be a
// directory. A required step that does not resolve is an advisory failure:
// the run still starts so the record shows the iteration aborting on it.
// Optional steps that do not resolve are skipped by the run.
func BuildPreflightChecks(cfg *Config, reg *Registry, workspace string) []PreflightCheck {
	checks := []PreflightCheck{
		{
			Name: "workspace",
			Check: func(ctx context.Context) error {
				info, err := os.Stat(workspace)
				if err != nil {
					return err
				}
				if !info.IsDir() {
					return fmt.Errorf("%s is not a directory", workspace)
				}
				return nil
			},
		},
	}

	for _, def := range cfg.RequiredSteps() {
		checks = append(checks, PreflightCheck{
			Name:     "step " + def.ID,
			Advisory: true,
			Check: func(ctx context.Context) error {
				_, err := reg.Resolve(def, cfg.Dir)
				if errors.Is(err, ErrStepNotFound) {
					return fmt.Errorf("required step cannot be resolved: %w", err)
				}
				return err
			},
		})
	}
	return checks
}
