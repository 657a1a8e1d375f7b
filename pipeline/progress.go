// ABOUTME: Append-only NDJSON event logger for pipeline run observability.
// ABOUTME: Writes orchestrator events to progress.ndjson and maintains a live.json status snapshot.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ProgressEntry is one line of progress.ndjson.
type ProgressEntry struct {
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Iteration int            `json:"iteration"`
	StepID    string         `json:"step_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// LiveState is the current run snapshot, rewritten to live.json after every
// event so external tools can poll for status.
type LiveState struct {
	Status     string   `json:"status"`
	Iteration  int      `json:"iteration"`
	ActiveStep string   `json:"active_step"`
	Passed     []string `json:"passed"`
	Failed     []string `json:"failed"`
	StartedAt  string   `json:"started_at"`
	UpdatedAt  string   `json:"updated_at"`
	EventCount int      `json:"event_count"`
}

// ProgressLogger writes events to progress.ndjson and keeps live.json current.
type ProgressLogger struct {
	dir         string
	file        *os.File
	state       LiveState
	mu          sync.Mutex
	closed      bool
	WriteErrors int // count of write errors encountered (for diagnostics)
}

// NewProgressLogger creates progress.ndjson in dir, truncating any previous
// run's log, and writes an initial pending live.json.
func NewProgressLogger(dir string) (*ProgressLogger, error) {
	f, err := os.OpenFile(filepath.Join(dir, ProgressFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}

	pl := &ProgressLogger{
		dir:  dir,
		file: f,
		state: LiveState{
			Status: "pending",
			Passed: []string{},
			Failed: []string{},
		},
	}

	if err := pl.writeLiveJSON(); err != nil {
		f.Close()
		return nil, err
	}
	return pl, nil
}

// HandleEvent appends evt to the NDJSON log and refreshes live.json. Its
// signature matches EventHandler so it can be wired directly.
func (p *ProgressLogger) HandleEvent(evt Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	entry := ProgressEntry{
		Timestamp: evt.Timestamp.UTC().Format(time.RFC3339),
		Type:      string(evt.Type),
		Iteration: evt.Iteration,
		StepID:    evt.StepID,
		Data:      evt.Data,
	}

	// Best-effort: live state is updated even when the append fails.
	line, err := json.Marshal(entry)
	if err != nil {
		p.WriteErrors++
		fmt.Fprintf(os.Stderr, "[progress] marshal error: %v\n", err)
	} else {
		line = append(line, '\n')
		if _, err := p.file.Write(line); err != nil {
			p.WriteErrors++
			fmt.Fprintf(os.Stderr, "[progress] write error: %v\n", err)
		}
	}

	stepKey := fmt.Sprintf("%d/%s", evt.Iteration, evt.StepID)
	switch evt.Type {
	case EventRunStarted:
		p.state.Status = "running"
		p.state.StartedAt = evt.Timestamp.UTC().Format(time.RFC3339)
	case EventIterationStarted:
		p.state.Iteration = evt.Iteration
	case EventStepStarted:
		p.state.ActiveStep = evt.StepID
	case EventStepPassed:
		p.state.Passed = append(p.state.Passed, stepKey)
		p.state.ActiveStep = ""
	case EventStepFailed:
		p.state.Failed = append(p.state.Failed, stepKey)
		p.state.ActiveStep = ""
	case EventRunCompleted:
		p.state.Status = "completed"
	case EventRunAborted:
		p.state.Status = "aborted"
	case EventRunCancelled:
		p.state.Status = "cancelled"
	}

	p.state.EventCount++
	p.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	if err := p.writeLiveJSON(); err != nil {
		fmt.Fprintf(os.Stderr, "[progress] live.json write error: %v\n", err)
	}
}

// Close closes the NDJSON file. HandleEvent is a no-op afterwards.
func (p *ProgressLogger) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.file.Close()
}

// State returns a copy of the current live state.
func (p *ProgressLogger) State() LiveState {
	p.mu.Lock()
	defer p.mu.Unlock()

	cp := p.state
	cp.Passed = append([]string{}, p.state.Passed...)
	cp.Failed = append([]string{}, p.state.Failed...)
	return cp
}

// writeLiveJSON atomically writes the current state. Caller must hold p.mu.
func (p *ProgressLogger) writeLiveJSON() error {
	return writeJSONAtomic(filepath.Join(p.dir, LiveStateFile), p.state)
}
