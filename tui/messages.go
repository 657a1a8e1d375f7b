// ABOUTME: Bubble Tea message types used in the dashboard message loop.
// ABOUTME: Each type wraps orchestrator events or results for the tea.Msg interface.
package tui

import (
	"time"

	"github.com/2389-research/ratchet/pipeline"
)

// RunEventMsg wraps a pipeline.Event for the Bubble Tea message loop.
type RunEventMsg struct {
	Event pipeline.Event
}

// RunResultMsg signals that the orchestrator has returned.
type RunResultMsg struct {
	Run *pipeline.PipelineRun
	Err error
}

// TickMsg is sent periodically to update timers and spinners.
type TickMsg struct {
	Time time.Time
}

// ReviewRequestMsg signals that a review step needs an answer.
type ReviewRequestMsg struct {
	Question string
	Options  []string
}
