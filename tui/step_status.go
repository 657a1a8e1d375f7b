// ABOUTME: Defines the StepStatus enum for the display state of a step within the current iteration.
// ABOUTME: Provides String/Icon methods and spinner animation frames for TUI rendering.
package tui

// StepStatus represents the execution state of a step in the current iteration.
type StepStatus int

const (
	StepPending StepStatus = iota // Step has not started
	StepRunning                   // Step is currently executing
	StepPassed                    // Step exited zero
	StepFailed                    // Step exited nonzero
	StepSkipped                   // Step could not be found
)

// String returns the lowercase name of the status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Icon returns a bracket-style status marker.
func (s StepStatus) Icon() string {
	switch s {
	case StepPending:
		return "[ ]"
	case StepRunning:
		return "[~]"
	case StepPassed:
		return "[*]"
	case StepFailed:
		return "[!]"
	case StepSkipped:
		return "[-]"
	default:
		return "[?]"
	}
}

// SpinnerFrames contains the Braille-dot animation frames shown next to the
// running step.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
