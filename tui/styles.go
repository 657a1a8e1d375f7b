// ABOUTME: Defines lipgloss styles for the dashboard panels, step status colors, log lines, and the CLI printer.
// ABOUTME: Provides StyleForStatus to map StepStatus values to their display styles.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	// Title styling
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Status colors
	PendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	PassedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	SkippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// Log event colors
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogEventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	LogSuccessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	LogSkipStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	// Detail panel labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(11)
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// Review gate
	ReviewGateStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 2)

	// Summary table
	TableBorderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
)

// StyleForStatus returns the lipgloss style for a StepStatus.
func StyleForStatus(status StepStatus) lipgloss.Style {
	switch status {
	case StepPending:
		return PendingStyle
	case StepRunning:
		return RunningStyle
	case StepPassed:
		return PassedStyle
	case StepFailed:
		return FailedStyle
	case StepSkipped:
		return SkippedStyle
	default:
		return PendingStyle
	}
}
