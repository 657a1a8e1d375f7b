// ABOUTME: Lifecycle events emitted by the orchestrator for printers, progress logs, and the TUI.
// ABOUTME: EventHandler callbacks receive every event synchronously on the orchestrator goroutine.
package pipeline

import "time"

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	EventRunStarted         EventType = "run.started"
	EventRunCompleted       EventType = "run.completed"
	EventRunAborted         EventType = "run.aborted"
	EventRunCancelled       EventType = "run.cancelled"
	EventIterationStarted   EventType = "iteration.started"
	EventIterationCompleted EventType = "iteration.completed"
	EventIterationFailed    EventType = "iteration.failed"
	EventStepStarted        EventType = "step.started"
	EventStepPassed         EventType = "step.passed"
	EventStepFailed         EventType = "step.failed"
	EventStepSkipped        EventType = "step.skipped"
	EventCheckpointSaved    EventType = "checkpoint.saved"
)

// Event is a single lifecycle notification.
type Event struct {
	Type      EventType
	Iteration int
	StepID    string
	Data      map[string]any
	Timestamp time.Time
}

// EventHandler receives events.
type EventHandler func(Event)

// MultiHandler fans an event out to every non-nil handler in order.
func MultiHandler(handlers ...EventHandler) EventHandler {
	var hs []EventHandler
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return func(evt Event) {
		for _, h := range hs {
			h(evt)
		}
	}
}
