// ABOUTME: Bubble Tea sub-model listing the steps of the current iteration with status markers.
// ABOUTME: Required steps are listed first, followed by whichever optional steps the iteration sampled.
package tui

import (
	"fmt"
	"strings"

	"github.com/2389-research/ratchet/pipeline"
)

type stepRow struct {
	id       string
	name     string
	required bool
	status   StepStatus
	warnings int
	exitCode int
}

// StepPanelModel displays the steps of the current iteration.
type StepPanelModel struct {
	branch       string
	iteration    int
	stepsToRun   int
	rows         []stepRow
	history      []string // one line per finished iteration
	spinnerIndex int
	width        int
}

// NewStepPanelModel creates an empty panel for branch.
func NewStepPanelModel(branch string) StepPanelModel {
	return StepPanelModel{branch: branch, iteration: -1}
}

// StartIteration clears the step list for iteration n.
func (m *StepPanelModel) StartIteration(n, stepsToRun int) {
	m.iteration = n
	m.stepsToRun = stepsToRun
	m.rows = nil
}

// FinishIteration records a one-line summary of the iteration.
func (m *StepPanelModel) FinishIteration(n int, failed bool, warnings int) {
	status := PassedStyle.Render("success")
	if failed {
		status = FailedStyle.Render("failed")
	}
	m.history = append(m.history, fmt.Sprintf("iteration %d: %s, %d warning(s)", n, status, warnings))
}

// SetStep adds or updates the row for id.
func (m *StepPanelModel) SetStep(id, name string, required bool, status StepStatus) {
	for i := range m.rows {
		if m.rows[i].id == id {
			m.rows[i].status = status
			return
		}
	}
	if name == "" {
		name = id
	}
	m.rows = append(m.rows, stepRow{id: id, name: name, required: required, status: status})
}

// SetResult records the outcome of id.
func (m *StepPanelModel) SetResult(id string, status StepStatus, exitCode, warnings int) {
	for i := range m.rows {
		if m.rows[i].id == id {
			m.rows[i].status = status
			m.rows[i].exitCode = exitCode
			m.rows[i].warnings = warnings
			return
		}
	}
	m.rows = append(m.rows, stepRow{id: id, name: id, status: status, exitCode: exitCode, warnings: warnings})
}

// StatusOf returns the status of id in the current iteration.
func (m StepPanelModel) StatusOf(id string) StepStatus {
	for _, r := range m.rows {
		if r.id == id {
			return r.status
		}
	}
	return StepPending
}

// AdvanceSpinner increments the spinner frame index.
func (m *StepPanelModel) AdvanceSpinner() {
	m.spinnerIndex++
}

// SetWidth sets the available width for rendering.
func (m *StepPanelModel) SetWidth(w int) {
	m.width = w
}

// View renders the panel.
func (m StepPanelModel) View() string {
	var b strings.Builder

	header := fmt.Sprintf("=== BRANCH: %s ===", m.branch)
	if m.iteration >= 0 {
		header = fmt.Sprintf("=== BRANCH: %s | iteration %d | %d step(s) ===", m.branch, m.iteration, m.stepsToRun)
	}
	b.WriteString(TitleStyle.Render(header))
	b.WriteString("\n")

	for _, line := range m.history {
		b.WriteString(PendingStyle.Render("  " + line))
		b.WriteString("\n")
	}

	for _, r := range m.rows {
		tag := "optional"
		if r.required {
			tag = "required"
		}
		line := fmt.Sprintf("  %s %s (%s)", r.status.Icon(), r.name, tag)
		switch r.status {
		case StepRunning:
			line += " " + SpinnerFrames[m.spinnerIndex%len(SpinnerFrames)]
		case StepPassed:
			line += fmt.Sprintf(" %d warning(s)", r.warnings)
		case StepFailed:
			line += fmt.Sprintf(" exit %d", r.exitCode)
		}
		b.WriteString(StyleForStatus(r.status).Render(line))
		b.WriteString("\n")
	}

	content := strings.TrimRight(b.String(), "\n")
	if m.width > 0 {
		return BorderStyle.Width(m.width - 2).Render(content)
	}
	return BorderStyle.Render(content)
}

// stepStatusFor maps a step lifecycle event to a display status.
func stepStatusFor(t pipeline.EventType) (StepStatus, bool) {
	switch t {
	case pipeline.EventStepStarted:
		return StepRunning, true
	case pipeline.EventStepPassed:
		return StepPassed, true
	case pipeline.EventStepFailed:
		return StepFailed, true
	case pipeline.EventStepSkipped:
		return StepSkipped, true
	}
	return StepPending, false
}
