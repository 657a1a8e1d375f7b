// ABOUTME: Pipeline orchestrator: drives iterations of required and sampled optional steps to a terminal state.
// ABOUTME: Records every step result, checkpoints after each iteration, and evaluates the stopping rule.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"time"
)

// State is the orchestrator's position in its lifecycle.
type State string

const (
	StateIdle               State = "idle"
	StateRunningIteration   State = "running_iteration"
	StateIterationSucceeded State = "iteration_succeeded"
	StateIterationFailed    State = "iteration_failed"
	StateCompleted          State = "completed"
	StateAborted            State = "aborted"
	StateCancelled          State = "cancelled"
)

// AbortError is returned when a required step fails and the run stops.
type AbortError struct {
	RunID     string
	Iteration int
	StepID    string
	Reason    string
}

func (e *AbortError) Error() string {
	msg := fmt.Sprintf("run aborted: required step %q failed in iteration %d", e.StepID, e.Iteration)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// OrchestratorConfig holds everything a run needs.
type OrchestratorConfig struct {
	Config        *Config
	Registry      *Registry
	RunDir        *RunDirectory
	Workspace     string
	Branch        string
	Feature       string
	MaxIterations int // 0 = Config.MaxIterations
	Debug         bool

	RunID    string   // empty = NewRunID()
	Seed     uint64   // used when Selector is nil
	Selector Selector // nil = NewRandSelector(Seed)

	EventHandler  EventHandler   // optional
	Checkpointers []Checkpointer // extra sinks after run-results.json; failures are logged, not fatal
	LogMirror     io.Writer      // receives step log lines when Debug is set (nil = stderr)
	Now           func() time.Time
}

// Orchestrator runs a pipeline against one branch.
type Orchestrator struct {
	cfg      OrchestratorConfig
	selector Selector
	file     *FileCheckpointer
	now      func() time.Time

	mu    sync.Mutex
	state State
	run   *PipelineRun
}

// NewOrchestrator validates cfg and prepares an idle orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("orchestrator: config must not be nil")
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.RunDir == nil {
		return nil, fmt.Errorf("orchestrator: run directory must not be nil")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("orchestrator: branch must not be empty")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = cfg.Config.MaxIterations
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.RunID == "" {
		cfg.RunID = NewRunID()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	sel := cfg.Selector
	if sel == nil {
		if cfg.Seed == 0 {
			cfg.Seed = NewSeed()
		}
		sel = NewRandSelector(cfg.Seed)
	}

	return &Orchestrator{
		cfg:      cfg,
		selector: sel,
		file:     &FileCheckpointer{Path: cfg.RunDir.ResultsPath()},
		now:      cfg.Now,
		state:    StateIdle,
	}, nil
}

// SetEventHandler replaces the event callback. Call before Run.
func (o *Orchestrator) SetEventHandler(h EventHandler) {
	o.cfg.EventHandler = h
}

// RunID returns the id of the run this orchestrator executes.
func (o *Orchestrator) RunID() string {
	return o.cfg.RunID
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Record returns a snapshot of the run record, or nil before Run starts.
func (o *Orchestrator) Record() *PipelineRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return nil
	}
	return o.run.Snapshot()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run executes iterations until a stopping condition, a required-step failure,
// or cancellation. It always returns the final record. The error is nil on
// completion, an *AbortError on a required failure, and wraps ctx.Err() when
// cancelled.
func (o *Orchestrator) Run(ctx context.Context) (*PipelineRun, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator: already ran (state %s)", o.state)
	}
	seed := uint64(0)
	if rs, ok := o.selector.(*RandSelector); ok {
		seed = rs.Seed()
	}
	o.run = NewPipelineRun(o.cfg.RunID, o.cfg.Branch, o.cfg.Feature, seed, o.now())
	o.mu.Unlock()

	if err := o.cfg.RunDir.Reset(); err != nil {
		return o.Record(), fmt.Errorf("reset run directory: %w", err)
	}

	o.emit(Event{Type: EventRunStarted, Data: map[string]any{
		"run_id":         o.cfg.RunID,
		"branch":         o.cfg.Branch,
		"feature":        o.cfg.Feature,
		"max_iterations": o.cfg.MaxIterations,
		"seed":           seed,
	}})
	if err := o.checkpoint(); err != nil {
		return o.Record(), err
	}

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return o.cancel(err)
		}

		o.setState(StateRunningIteration)
		it, err := o.runIteration(ctx, i)
		if err != nil {
			return o.cancel(err)
		}

		decision := EvaluateStop(it, o.cfg.MaxIterations)

		o.mu.Lock()
		o.run.Append(it)
		switch {
		case it.Status == IterationFailed:
			o.state = StateAborted
			o.run.Finish(RunAborted, decision.Reason, o.now())
		case decision.Stop:
			o.state = StateCompleted
			o.run.Finish(RunCompleted, decision.Reason, o.now())
		default:
			o.state = StateIterationSucceeded
		}
		o.mu.Unlock()

		if err := o.checkpoint(); err != nil {
			return o.Record(), err
		}

		if it.Status == IterationFailed {
			failed := *it.FailedStep
			reason := ""
			if n := len(it.Steps); n > 0 {
				reason = it.Steps[n-1].Error
			}
			o.emit(Event{Type: EventIterationFailed, Iteration: i, StepID: failed})
			o.emit(Event{Type: EventRunAborted, Iteration: i, StepID: failed, Data: map[string]any{"reason": reason}})
			return o.Record(), &AbortError{RunID: o.cfg.RunID, Iteration: i, StepID: failed, Reason: reason}
		}

		o.emit(Event{Type: EventIterationCompleted, Iteration: i, Data: map[string]any{
			"steps_run": it.StepsRun,
			"warnings":  it.TotalWarnings(),
			"failed":    it.FailedSteps(),
		}})

		if decision.Stop {
			o.emit(Event{Type: EventRunCompleted, Iteration: i, Data: map[string]any{
				"iterations": i + 1,
				"reason":     decision.Reason,
			}})
			return o.Record(), nil
		}
	}
}

// cancel finishes the run as cancelled. Iterations interrupted midway are not
// recorded, so the record stays a valid prefix.
func (o *Orchestrator) cancel(cause error) (*PipelineRun, error) {
	o.mu.Lock()
	o.state = StateCancelled
	o.run.Finish(RunCancelled, "interrupted", o.now())
	o.mu.Unlock()

	if err := o.checkpoint(); err != nil {
		fmt.Fprintf(os.Stderr, "[checkpoint] warning: %v\n", err)
	}
	o.emit(Event{Type: EventRunCancelled, Data: map[string]any{"error": cause.Error()}})
	return o.Record(), fmt.Errorf("run cancelled: %w", cause)
}

// runIteration executes one iteration. A non-nil error means the context was
// cancelled and the iteration must be discarded.
func (o *Orchestrator) runIteration(ctx context.Context, n int) (IterationResult, error) {
	cfg := o.cfg.Config

	stepsToRun := o.selector.Between(cfg.MinSteps, cfg.MaxSteps)
	if stepsToRun > len(cfg.Steps) {
		stepsToRun = len(cfg.Steps)
	}

	it := IterationResult{
		Iteration: n,
		Timestamp: o.now(),
		Steps:     []StepExecutionResult{},
	}
	o.emit(Event{Type: EventIterationStarted, Iteration: n, Data: map[string]any{"steps_to_run": stepsToRun}})

	required := cfg.RequiredSteps()
	for _, def := range required {
		if err := ctx.Err(); err != nil {
			return it, err
		}
		res := o.executeStep(ctx, n, def)
		if err := ctx.Err(); err != nil {
			return it, err
		}
		it.Steps = append(it.Steps, res)
		if !res.Passed() {
			id := def.ID
			it.Status = IterationFailed
			it.FailedStep = &id
			it.StepsRun = len(it.Steps)
			o.setState(StateIterationFailed)
			return it, nil
		}
	}

	if budget := stepsToRun - len(required); budget > 0 {
		for _, def := range o.selector.Sample(cfg.OptionalSteps(), budget) {
			if err := ctx.Err(); err != nil {
				return it, err
			}
			if _, err := o.cfg.Registry.Resolve(def, cfg.Dir); errors.Is(err, ErrStepNotFound) {
				it.Skipped = append(it.Skipped, def.ID)
				o.emit(Event{Type: EventStepSkipped, Iteration: n, StepID: def.ID, Data: map[string]any{"reason": err.Error()}})
				continue
			}
			res := o.executeStep(ctx, n, def)
			if err := ctx.Err(); err != nil {
				return it, err
			}
			it.Steps = append(it.Steps, res)
		}
	}

	it.Status = IterationSuccess
	it.StepsRun = len(it.Steps)
	return it, nil
}

// executeStep resolves and runs one step, writes its artifacts, and returns
// the recorded result. It never returns an error: every failure mode becomes
// a nonzero exit code so it lands in the record.
func (o *Orchestrator) executeStep(ctx context.Context, iteration int, def StepDefinition) StepExecutionResult {
	start := o.now()
	res := StepExecutionResult{
		StepID:       def.ID,
		StepName:     def.Name,
		Required:     def.Required,
		Timestamp:    start,
		InvocationID: NewInvocationID(),
	}
	o.emit(Event{Type: EventStepStarted, Iteration: iteration, StepID: def.ID, Data: map[string]any{
		"name":     def.Name,
		"required": def.Required,
	}})

	var mirror io.Writer
	if o.cfg.Debug {
		mirror = o.cfg.LogMirror
		if mirror == nil {
			mirror = os.Stderr
		}
	}
	logger := NewStepLogger(def.ID, mirror)

	var outcome *StepOutcome
	dir, err := o.cfg.RunDir.EnsureStepDir(iteration, def.ID)
	if err != nil {
		outcome = &StepOutcome{ExitCode: ExitFailure, Reason: err.Error()}
	} else if step, rerr := o.cfg.Registry.Resolve(def, o.cfg.Config.Dir); rerr != nil {
		code := ExitFailure
		if errors.Is(rerr, ErrStepNotFound) {
			code = ExitNotFound
		}
		outcome = &StepOutcome{ExitCode: code, Reason: rerr.Error()}
	} else {
		in := StepInput{
			Workspace: o.cfg.Workspace,
			Branch:    o.cfg.Branch,
			Feature:   o.cfg.Feature,
			Iteration: iteration,
			Baseline:  o.cfg.Config.Baseline,
			Debug:     o.cfg.Debug,
			OutputDir: dir,
			Threshold: o.cfg.Config.ThresholdsFor(def).For(iteration),
			Log:       logger,
		}
		outcome = InvokeStep(ctx, step, def, in)
	}

	res.apply(outcome, o.now().Sub(start))

	if dir != "" {
		if err := WriteStepArtifacts(dir, iteration, def, res, outcome, logger.Bytes()); err != nil {
			fmt.Fprintf(os.Stderr, "[step] %s: %v\n", def.ID, err)
		}
	}

	evtType := EventStepPassed
	if !res.Passed() {
		evtType = EventStepFailed
	}
	data := map[string]any{
		"name":       def.Name,
		"required":   def.Required,
		"exit_code":  res.ExitCode,
		"duration_s": res.DurationSeconds,
		"warnings":   res.WarningCount,
	}
	if res.Error != "" {
		data["reason"] = res.Error
	}
	o.emit(Event{Type: evtType, Iteration: iteration, StepID: def.ID, Data: data})
	return res
}

// InvokeStep runs step under def's timeout and normalizes the outcome: a
// timeout, a returned error, a panic, or a nil outcome all become nonzero
// exit codes. A step that ignores its context is abandoned when the deadline
// fires; its goroutine finishes in the background.
func InvokeStep(ctx context.Context, step Step, def StepDefinition, in StepInput) *StepOutcome {
	stepCtx, cancel := context.WithTimeout(ctx, def.Timeout())
	defer cancel()

	type result struct {
		outcome *StepOutcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := safeRun(stepCtx, step, in)
		done <- result{outcome: outcome, err: err}
	}()

	var outcome *StepOutcome
	var err error
	select {
	case r := <-done:
		outcome, err = r.outcome, r.err
	case <-stepCtx.Done():
		err = stepCtx.Err()
	}

	switch {
	case errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		in.Logf("timed out after %s", def.Timeout())
		return &StepOutcome{ExitCode: ExitTimeout, Reason: fmt.Sprintf("timed out after %s", def.Timeout())}
	case err != nil:
		in.Logf("error: %v", err)
		return &StepOutcome{ExitCode: ExitFailure, Reason: err.Error()}
	case outcome == nil:
		return &StepOutcome{ExitCode: ExitFailure, Reason: "step returned no outcome"}
	}
	if outcome.ExitCode < 0 {
		outcome.ExitCode = ExitFailure
	}
	return outcome
}

// safeRun calls step.Run, converting a panic into an error.
func safeRun(ctx context.Context, step Step, in StepInput) (outcome *StepOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %q panicked: %v\n%s", step.ID(), r, debug.Stack())
			outcome = nil
		}
	}()
	return step.Run(ctx, in)
}

// checkpoint writes run-results.json (fatal on failure) and then feeds the
// extra checkpointers (logged on failure).
func (o *Orchestrator) checkpoint() error {
	snap := o.Record()
	if err := o.file.Checkpoint(snap); err != nil {
		return fmt.Errorf("checkpoint run record: %w", err)
	}
	for _, c := range o.cfg.Checkpointers {
		if c == nil {
			continue
		}
		if err := c.Checkpoint(snap); err != nil {
			fmt.Fprintf(os.Stderr, "[checkpoint] warning: %v\n", err)
		}
	}
	o.emit(Event{Type: EventCheckpointSaved, Iteration: len(snap.Iterations) - 1, Data: map[string]any{
		"path":       o.file.Path,
		"iterations": len(snap.Iterations),
	}})
	return nil
}

func (o *Orchestrator) emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = o.now()
	}
	if o.cfg.EventHandler != nil {
		o.cfg.EventHandler(evt)
	}
}
