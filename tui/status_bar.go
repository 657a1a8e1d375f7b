// ABOUTME: Implements a single-line status bar for the bottom of the dashboard.
// ABOUTME: Displays the run id, elapsed time, iteration progress, warnings, and the active step.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatusBarModel displays run status in a single line.
type StatusBarModel struct {
	runID         string
	startTime     time.Time
	maxIterations int
	iteration     int
	lastWarnings  int
	activeStep    string
	width         int
}

// NewStatusBarModel creates a StatusBarModel for a run with the given iteration cap.
func NewStatusBarModel(maxIterations int) StatusBarModel {
	return StatusBarModel{maxIterations: maxIterations, lastWarnings: -1}
}

// Start records the run start time and id.
func (m *StatusBarModel) Start(runID string) {
	m.runID = runID
	m.startTime = time.Now()
}

// SetIteration updates the current iteration.
func (m *StatusBarModel) SetIteration(n int) {
	m.iteration = n
}

// SetWarnings records the warning total of the last finished iteration.
func (m *StatusBarModel) SetWarnings(n int) {
	m.lastWarnings = n
}

// SetActiveStep sets the running step id.
func (m *StatusBarModel) SetActiveStep(id string) {
	m.activeStep = id
}

// SetWidth sets the bar width for rendering.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// Elapsed returns the time since Start, or zero if not started.
func (m StatusBarModel) Elapsed() time.Duration {
	if m.startTime.IsZero() {
		return 0
	}
	return time.Since(m.startTime)
}

// formatElapsed formats a duration as "12s" or "2m30s".
func formatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) - minutes*60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}

// View renders the status bar as a single styled line.
func (m StatusBarModel) View() string {
	active := m.activeStep
	if active == "" {
		active = "idle"
	}
	warnings := "-"
	if m.lastWarnings >= 0 {
		warnings = fmt.Sprintf("%d", m.lastWarnings)
	}
	runID := m.runID
	if runID == "" {
		runID = "pending"
	}

	content := fmt.Sprintf("Run: %s | Elapsed: %s | Iteration %d/%d | Warnings: %s | Active: %s",
		runID, formatElapsed(m.Elapsed()), m.iteration+1, m.maxIterations, warnings, active)

	return lipgloss.PlaceHorizontal(m.width, lipgloss.Left, StatusBarStyle.Width(m.width).Render(content))
}
