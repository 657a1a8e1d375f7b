// ABOUTME: Tests for DetailPanelModel rendering of the most recent step.
package tui

import (
	"strings"
	"testing"
	"time"
)

func TestDetailPanelEmpty(t *testing.T) {
	m := NewDetailPanelModel()
	if !strings.Contains(m.View(), "No step yet") {
		t.Error("expected placeholder when no step is set")
	}
}

func TestDetailPanelFinishedStep(t *testing.T) {
	m := NewDetailPanelModel()
	m.SetStep(StepDetail{
		ID:       "security_scan",
		Name:     "Security Scan",
		Required: true,
		Status:   StepFailed,
		ExitCode: 124,
		Duration: 1500 * time.Millisecond,
		Warnings: 2,
		Reason:   "timed out after 1s",
	})
	view := m.View()
	for _, want := range []string{"Security Scan", "security_scan", "yes", "failed", "1.5s", "124", "timed out after 1s"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q, got:\n%s", want, view)
		}
	}
}

func TestDetailPanelRunningStepHidesExitCode(t *testing.T) {
	m := NewDetailPanelModel()
	m.SetStep(StepDetail{ID: "a", Name: "A", Status: StepRunning})
	if strings.Contains(m.View(), "Exit code") {
		t.Error("expected no exit code while running")
	}
}

func TestDetailPanelClear(t *testing.T) {
	m := NewDetailPanelModel()
	m.SetStep(StepDetail{ID: "a"})
	m.Clear()
	if m.Step() != nil {
		t.Error("expected nil step after Clear")
	}
}

func TestTruncateReason(t *testing.T) {
	short := "short"
	if truncateReason(short) != short {
		t.Error("expected short reason unchanged")
	}
	long := strings.Repeat("x", maxReasonLen+10)
	got := truncateReason(long)
	if len([]rune(got)) != maxReasonLen+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("unexpected truncation: %q", got)
	}
}
