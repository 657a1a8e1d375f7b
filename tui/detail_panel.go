// ABOUTME: Bubble Tea sub-model for displaying details of the most recent step.
// ABOUTME: Renders step name, id, status, exit code, duration, warnings, and failure reason.
package tui

import (
	"fmt"
	"strings"
	"time"
)

// StepDetail holds metadata for the most recent step.
type StepDetail struct {
	ID       string
	Name     string
	Required bool
	Status   StepStatus
	ExitCode int
	Duration time.Duration
	Warnings int
	Reason   string
}

// DetailPanelModel displays information about the active or last step.
type DetailPanelModel struct {
	active *StepDetail
	width  int
	height int
}

// NewDetailPanelModel creates a DetailPanelModel with no step.
func NewDetailPanelModel() DetailPanelModel {
	return DetailPanelModel{}
}

// SetStep replaces the displayed step.
func (m *DetailPanelModel) SetStep(detail StepDetail) {
	m.active = &detail
}

// Step returns the displayed step, or nil.
func (m DetailPanelModel) Step() *StepDetail {
	return m.active
}

// Clear removes the displayed step.
func (m *DetailPanelModel) Clear() {
	m.active = nil
}

// SetSize sets the available dimensions.
func (m *DetailPanelModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// maxReasonLen is the maximum number of characters shown for Reason.
const maxReasonLen = 80

func truncateReason(s string) string {
	runes := []rune(s)
	if len(runes) <= maxReasonLen {
		return s
	}
	return string(runes[:maxReasonLen]) + "..."
}

// View renders the detail panel.
func (m DetailPanelModel) View() string {
	title := TitleStyle.Render("STEP DETAIL")

	var content string
	if m.active == nil {
		content = title + "\n\n" + ValueStyle.Render("No step yet")
	} else {
		d := m.active

		statusStr := StyleForStatus(d.Status).Render(d.Status.String())
		if d.Duration > 0 {
			statusStr += " " + d.Duration.Round(time.Millisecond).String()
		}
		required := "no"
		if d.Required {
			required = "yes"
		}

		lines := []string{
			title,
			row("Name:", d.Name),
			row("ID:", d.ID),
			row("Required:", required),
			LabelStyle.Render("Status:") + statusStr,
		}
		if d.Status == StepPassed || d.Status == StepFailed {
			lines = append(lines,
				row("Exit code:", fmt.Sprintf("%d", d.ExitCode)),
				row("Warnings:", fmt.Sprintf("%d", d.Warnings)))
		}
		if d.Reason != "" {
			lines = append(lines, row("Reason:", truncateReason(d.Reason)))
		}
		content = strings.Join(lines, "\n")
	}

	style := BorderStyle
	if m.width > 0 {
		style = style.Width(m.width)
	}
	if m.height > 0 {
		style = style.Height(m.height)
	}
	return style.Render(content)
}

func row(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}
