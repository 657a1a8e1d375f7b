// ABOUTME: Tests for the post-iteration stopping rule.
package pipeline

import (
	"strings"
	"testing"
)

func TestEvaluateStop(t *testing.T) {
	failed := "syntax_check"
	tests := []struct {
		name       string
		it         IterationResult
		max        int
		wantStop   bool
		wantReason string
	}{
		{
			name:       "required failure",
			it:         IterationResult{Iteration: 0, Status: IterationFailed, FailedStep: &failed},
			max:        5,
			wantStop:   true,
			wantReason: StopRequiredFail,
		},
		{
			name:       "last allowed iteration",
			it:         IterationResult{Iteration: 2, Status: IterationSuccess, Steps: []StepExecutionResult{{WarningCount: 3}}},
			max:        3,
			wantStop:   true,
			wantReason: StopMaxIterations,
		},
		{
			name:       "clean iteration",
			it:         IterationResult{Iteration: 0, Status: IterationSuccess, Steps: []StepExecutionResult{{WarningCount: 0}}},
			max:        3,
			wantStop:   true,
			wantReason: StopClean,
		},
		{
			name:     "warnings remain",
			it:       IterationResult{Iteration: 0, Status: IterationSuccess, Steps: []StepExecutionResult{{WarningCount: 1}, {WarningCount: 2}}},
			max:      3,
			wantStop: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateStop(tt.it, tt.max)
			if d.Stop != tt.wantStop {
				t.Fatalf("expected stop=%v, got %v (%q)", tt.wantStop, d.Stop, d.Reason)
			}
			if !strings.HasPrefix(d.Reason, tt.wantReason) {
				t.Errorf("expected reason %q, got %q", tt.wantReason, d.Reason)
			}
		})
	}
}

func TestEvaluateStopNamesFailedStep(t *testing.T) {
	failed := "security_scan"
	d := EvaluateStop(IterationResult{Status: IterationFailed, FailedStep: &failed}, 3)
	if !strings.Contains(d.Reason, "security_scan") {
		t.Errorf("expected reason to name the step, got %q", d.Reason)
	}
}
