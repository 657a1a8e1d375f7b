// ABOUTME: Bridge connecting the orchestrator to the Bubble Tea message loop.
// ABOUTME: Provides EventBridge for event injection and tea.Cmd factories for the run, review prompts, and ticks.
package tui

import (
	"context"
	"time"

	"github.com/2389-research/ratchet/pipeline"
	tea "github.com/charmbracelet/bubbletea"
)

// reviewRequest carries a question from the orchestrator goroutine into the
// TUI message loop.
type reviewRequest struct {
	question string
	options  []string
}

// Runner is the part of the orchestrator the dashboard drives.
type Runner interface {
	Run(ctx context.Context) (*pipeline.PipelineRun, error)
}

// EventBridge wraps a tea.Program's Send method for injecting orchestrator
// events into the Bubble Tea message loop.
type EventBridge struct {
	send func(msg tea.Msg)
}

// NewEventBridge creates an EventBridge that sends messages via the given function.
// Typically called with program.Send as the argument.
func NewEventBridge(send func(msg tea.Msg)) *EventBridge {
	return &EventBridge{send: send}
}

// HandleEvent has the pipeline.EventHandler signature.
func (b *EventBridge) HandleEvent(evt pipeline.Event) {
	b.send(RunEventMsg{Event: evt})
}

// RunPipelineCmd returns a tea.Cmd that runs the orchestrator and reports
// its result as a RunResultMsg. ctx cancels the run when the user quits.
func RunPipelineCmd(ctx context.Context, runner Runner) tea.Cmd {
	return func() tea.Msg {
		run, err := runner.Run(ctx)
		return RunResultMsg{Run: run, Err: err}
	}
}

// WaitForReviewCmd blocks on requestCh and turns the next request into a
// ReviewRequestMsg.
func WaitForReviewCmd(requestCh <-chan reviewRequest) tea.Cmd {
	return func() tea.Msg {
		req, ok := <-requestCh
		if !ok {
			return nil
		}
		return ReviewRequestMsg{Question: req.question, Options: req.options}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
func TickCmd(interval time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(interval)
		return TickMsg{Time: time.Now()}
	}
}
