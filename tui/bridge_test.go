// ABOUTME: Tests for the EventBridge, RunPipelineCmd, WaitForReviewCmd, and TickCmd.
// ABOUTME: Validates the layer connecting orchestrator events to the Bubble Tea message loop.
package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/2389-research/ratchet/pipeline"
	tea "github.com/charmbracelet/bubbletea"
)

// fakeRunner returns a fixed result, or blocks until ctx is done when block is set.
type fakeRunner struct {
	run   *pipeline.PipelineRun
	err   error
	block bool
}

func (f *fakeRunner) Run(ctx context.Context) (*pipeline.PipelineRun, error) {
	if f.block {
		<-ctx.Done()
		return f.run, ctx.Err()
	}
	return f.run, f.err
}

func TestEventBridgeHandleEvent(t *testing.T) {
	var received tea.Msg
	bridge := NewEventBridge(func(msg tea.Msg) { received = msg })

	evt := pipeline.Event{
		Type:      pipeline.EventStepStarted,
		Iteration: 2,
		StepID:    "syntax_check",
		Timestamp: time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC),
	}
	bridge.HandleEvent(evt)

	msg, ok := received.(RunEventMsg)
	if !ok {
		t.Fatalf("received message is %T, want RunEventMsg", received)
	}
	if msg.Event.StepID != "syntax_check" || msg.Event.Iteration != 2 {
		t.Errorf("unexpected event: %+v", msg.Event)
	}
}

func TestEventBridgeAsEventHandler(t *testing.T) {
	var count int
	bridge := NewEventBridge(func(tea.Msg) { count++ })
	var h pipeline.EventHandler = bridge.HandleEvent
	h(pipeline.Event{Type: pipeline.EventRunStarted})
	h(pipeline.Event{Type: pipeline.EventRunCompleted})
	if count != 2 {
		t.Errorf("expected 2 messages, got %d", count)
	}
}

func TestRunPipelineCmdReturnsResult(t *testing.T) {
	run := pipeline.NewPipelineRun("01RUN", "ai-gen/x", "x", 1, time.Now())
	runErr := errors.New("boom")
	msg := RunPipelineCmd(context.Background(), &fakeRunner{run: run, err: runErr})()

	res, ok := msg.(RunResultMsg)
	if !ok {
		t.Fatalf("got %T, want RunResultMsg", msg)
	}
	if res.Run != run || !errors.Is(res.Err, runErr) {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRunPipelineCmdHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msg := RunPipelineCmd(ctx, &fakeRunner{block: true})()
	res := msg.(RunResultMsg)
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Err)
	}
}

func TestWaitForReviewCmd(t *testing.T) {
	ch := make(chan reviewRequest, 1)
	ch <- reviewRequest{question: "Approve?", options: []string{"approve", "reject"}}

	msg := WaitForReviewCmd(ch)()
	req, ok := msg.(ReviewRequestMsg)
	if !ok {
		t.Fatalf("got %T, want ReviewRequestMsg", msg)
	}
	if req.Question != "Approve?" || len(req.Options) != 2 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestWaitForReviewCmdClosedChannel(t *testing.T) {
	ch := make(chan reviewRequest)
	close(ch)
	if msg := WaitForReviewCmd(ch)(); msg != nil {
		t.Errorf("expected nil message for closed channel, got %T", msg)
	}
}

func TestTickCmd(t *testing.T) {
	before := time.Now()
	msg := TickCmd(time.Millisecond)()
	tick, ok := msg.(TickMsg)
	if !ok {
		t.Fatalf("got %T, want TickMsg", msg)
	}
	if tick.Time.Before(before) {
		t.Error("tick time precedes command start")
	}
}
