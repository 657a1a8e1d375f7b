// ABOUTME: Tests for StepPanelModel: iteration resets, step status updates, history lines, and rendering.
package tui

import (
	"strings"
	"testing"

	"github.com/2389-research/ratchet/pipeline"
)

func TestStepPanelInitialView(t *testing.T) {
	m := NewStepPanelModel("ai-gen/login")
	view := m.View()
	if !strings.Contains(view, "BRANCH: ai-gen/login") {
		t.Errorf("expected branch header, got %q", view)
	}
	if strings.Contains(view, "iteration") {
		t.Error("expected no iteration before the first one starts")
	}
}

func TestStepPanelTracksSteps(t *testing.T) {
	m := NewStepPanelModel("ai-gen/login")
	m.StartIteration(0, 2)
	m.SetStep("syntax_check", "Syntax Check", true, StepRunning)
	if got := m.StatusOf("syntax_check"); got != StepRunning {
		t.Errorf("expected running, got %v", got)
	}
	m.SetResult("syntax_check", StepPassed, 0, 3)
	m.SetStep("code_style", "", false, StepRunning)
	m.SetResult("code_style", StepFailed, 1, 0)

	view := m.View()
	for _, want := range []string{"iteration 0", "Syntax Check (required)", "3 warning(s)", "code_style (optional)", "exit 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestStepPanelStartIterationClearsRows(t *testing.T) {
	m := NewStepPanelModel("b")
	m.StartIteration(0, 1)
	m.SetStep("a", "A", true, StepPassed)
	m.FinishIteration(0, false, 4)
	m.StartIteration(1, 1)

	if got := m.StatusOf("a"); got != StepPending {
		t.Errorf("expected cleared rows after a new iteration, got %v", got)
	}
	if !strings.Contains(m.View(), "iteration 0: success, 4 warning(s)") {
		t.Error("expected history line for the finished iteration")
	}
}

func TestStepPanelSpinnerOnlyWhileRunning(t *testing.T) {
	m := NewStepPanelModel("b")
	m.StartIteration(0, 1)
	m.SetStep("a", "A", true, StepRunning)
	if !strings.Contains(m.View(), SpinnerFrames[0]) {
		t.Error("expected spinner frame for the running step")
	}
	m.AdvanceSpinner()
	if !strings.Contains(m.View(), SpinnerFrames[1]) {
		t.Error("expected spinner to advance")
	}
}

func TestStepStatusFor(t *testing.T) {
	tests := []struct {
		evt  pipeline.EventType
		want StepStatus
		ok   bool
	}{
		{pipeline.EventStepStarted, StepRunning, true},
		{pipeline.EventStepPassed, StepPassed, true},
		{pipeline.EventStepFailed, StepFailed, true},
		{pipeline.EventStepSkipped, StepSkipped, true},
		{pipeline.EventRunStarted, StepPending, false},
	}
	for _, tt := range tests {
		got, ok := stepStatusFor(tt.evt)
		if got != tt.want || ok != tt.ok {
			t.Errorf("stepStatusFor(%s) = %v, %v; want %v, %v", tt.evt, got, ok, tt.want, tt.ok)
		}
	}
}
