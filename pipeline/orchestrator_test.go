// ABOUTME: Tests for the orchestrator's iteration loop, step selection, failure propagation, and checkpoints.
// ABOUTME: Uses in-process StepFunc steps and fixed selector seeds so every run is deterministic.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"
)

// --- helpers ---

func passStep(id string, warnings int) Step {
	return StepFunc{StepID: id, Fn: func(ctx context.Context, in StepInput) (*StepOutcome, error) {
		in.Logf("%s ran on %s", id, in.Branch)
		return &StepOutcome{Warnings: warnings, Result: map[string]int{"warnings": warnings}}, nil
	}}
}

func failStep(id string) Step {
	return StepFunc{StepID: id, Fn: func(ctx context.Context, in StepInput) (*StepOutcome, error) {
		return &StepOutcome{ExitCode: 1, Reason: id + " found problems"}, nil
	}}
}

func newTestConfig(minSteps, maxSteps, maxIterations int, steps ...StepDefinition) *Config {
	cfg := &Config{
		MinSteps:      minSteps,
		MaxSteps:      maxSteps,
		MaxIterations: maxIterations,
		Steps:         steps,
	}
	cfg.applyDefaults()
	return cfg
}

func newTestOrchestrator(t *testing.T, cfg *Config, reg *Registry, seed uint64) (*Orchestrator, *RunDirectory) {
	t.Helper()
	rd, err := NewRunDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, err := NewOrchestrator(OrchestratorConfig{
		Config:    cfg,
		Registry:  reg,
		RunDir:    rd,
		Workspace: t.TempDir(),
		Branch:    "ai-gen/login",
		Feature:   "login",
		Seed:      seed,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return o, rd
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) ofType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func scenarioRegistry(syntax Step) *Registry {
	reg := NewRegistry()
	reg.Register(syntax)
	reg.Register(passStep("code_style", 0))
	reg.Register(passStep("security_scan", 0))
	return reg
}

func scenarioSteps() []StepDefinition {
	return []StepDefinition{
		{ID: "syntax_check", Name: "Syntax Check", Required: true},
		{ID: "code_style", Name: "Code Style"},
		{ID: "security_scan", Name: "Security Scan"},
	}
}

// --- scenario tests ---

func TestOrchestratorSingleIterationScenario(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		cfg := newTestConfig(1, 2, 1, scenarioSteps()...)
		o, rd := newTestOrchestrator(t, cfg, scenarioRegistry(passStep("syntax_check", 0)), seed)

		run, err := o.Run(context.Background())
		if err != nil {
			t.Fatalf("seed %d: unexpected error: %v", seed, err)
		}
		if len(run.Iterations) != 1 {
			t.Fatalf("seed %d: expected 1 iteration, got %d", seed, len(run.Iterations))
		}
		it := run.Iterations[0]
		if it.StepsRun < 1 || it.StepsRun > 2 {
			t.Errorf("seed %d: steps_run %d outside [1,2]", seed, it.StepsRun)
		}
		if it.Steps[0].StepID != "syntax_check" {
			t.Errorf("seed %d: expected syntax_check first, got %s", seed, it.Steps[0].StepID)
		}
		if it.Status != IterationSuccess {
			t.Errorf("seed %d: expected success, got %s", seed, it.Status)
		}
		if it.FailedStep != nil {
			t.Errorf("seed %d: expected nil failed step, got %q", seed, *it.FailedStep)
		}
		if run.Status != RunCompleted {
			t.Errorf("seed %d: expected completed run, got %s", seed, run.Status)
		}
		if o.State() != StateCompleted {
			t.Errorf("seed %d: expected completed state, got %s", seed, o.State())
		}

		onDisk, err := LoadRun(rd.ResultsPath())
		if err != nil {
			t.Fatalf("seed %d: load run: %v", seed, err)
		}
		if len(onDisk.Iterations) != 1 || onDisk.Status != RunCompleted {
			t.Errorf("seed %d: unexpected persisted record: %+v", seed, onDisk)
		}
	}
}

func TestOrchestratorMissingRequiredScriptAborts(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "syntax_check.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	steps := scenarioSteps()
	steps[0].Script = "syntax_check.sh"
	cfg := newTestConfig(1, 2, 1, steps...)
	cfg.Dir = dir

	if err := os.Remove(script); err != nil {
		t.Fatalf("remove script: %v", err)
	}

	o, rd := newTestOrchestrator(t, cfg, scenarioRegistry(passStep("unused", 0)), 7)
	run, err := o.Run(context.Background())

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected *AbortError, got %T (%v)", err, err)
	}
	if abort.StepID != "syntax_check" {
		t.Errorf("expected failing step syntax_check, got %q", abort.StepID)
	}
	if len(run.Iterations) != 1 {
		t.Fatalf("expected exactly 1 iteration, got %d", len(run.Iterations))
	}
	it := run.Iterations[0]
	if it.Status != IterationFailed {
		t.Errorf("expected failed iteration, got %s", it.Status)
	}
	if it.FailedStep == nil || *it.FailedStep != "syntax_check" {
		t.Errorf("expected failed_step syntax_check, got %v", it.FailedStep)
	}
	if it.Steps[0].ExitCode != ExitNotFound {
		t.Errorf("expected exit code %d, got %d", ExitNotFound, it.Steps[0].ExitCode)
	}
	if run.Status != RunAborted || o.State() != StateAborted {
		t.Errorf("expected aborted run/state, got %s/%s", run.Status, o.State())
	}

	onDisk, err := LoadRun(rd.ResultsPath())
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if onDisk.Iterations[0].FailedStep == nil || *onDisk.Iterations[0].FailedStep != "syntax_check" {
		t.Errorf("expected persisted failed_step, got %+v", onDisk.Iterations[0])
	}
}

func TestOrchestratorStopsAfterCleanIteration(t *testing.T) {
	cfg := newTestConfig(1, 3, 5, scenarioSteps()...)
	o, _ := newTestOrchestrator(t, cfg, scenarioRegistry(passStep("syntax_check", 0)), 3)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Iterations) != 1 {
		t.Fatalf("expected 1 iteration, got %d", len(run.Iterations))
	}
	if run.StopReason != StopClean {
		t.Errorf("expected stop reason %q, got %q", StopClean, run.StopReason)
	}
}

func TestOrchestratorContinuesWhileWarningsRemain(t *testing.T) {
	cfg := newTestConfig(1, 1, 3, scenarioSteps()...)
	o, _ := newTestOrchestrator(t, cfg, scenarioRegistry(passStep("syntax_check", 2)), 3)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Iterations) != 3 {
		t.Fatalf("expected 3 iterations, got %d", len(run.Iterations))
	}
	for i, it := range run.Iterations {
		if it.Iteration != i {
			t.Errorf("expected iteration number %d, got %d", i, it.Iteration)
		}
		if it.TotalWarnings() != 2 {
			t.Errorf("iteration %d: expected 2 warnings, got %d", i, it.TotalWarnings())
		}
	}
	if run.StopReason != StopMaxIterations {
		t.Errorf("expected stop reason %q, got %q", StopMaxIterations, run.StopReason)
	}
}

func TestOrchestratorMaxIterationsOverride(t *testing.T) {
	cfg := newTestConfig(1, 1, 10, scenarioSteps()...)
	rd, err := NewRunDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, err := NewOrchestrator(OrchestratorConfig{
		Config:        cfg,
		Registry:      scenarioRegistry(passStep("syntax_check", 1)),
		RunDir:        rd,
		Branch:        "ai-gen/x",
		MaxIterations: 2,
		Seed:          1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Iterations) != 2 {
		t.Errorf("expected 2 iterations, got %d", len(run.Iterations))
	}
}

// --- property tests ---

func TestOrchestratorStepCountWithinBounds(t *testing.T) {
	steps := []StepDefinition{
		{ID: "a", Required: true},
		{ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"}, {ID: "f"},
	}
	reg := NewRegistry()
	for _, s := range steps {
		reg.Register(passStep(s.ID, 1))
	}

	for seed := uint64(1); seed <= 25; seed++ {
		cfg := newTestConfig(2, 4, 4, steps...)
		o, _ := newTestOrchestrator(t, cfg, reg, seed)
		run, err := o.Run(context.Background())
		if err != nil {
			t.Fatalf("seed %d: unexpected error: %v", seed, err)
		}
		for _, it := range run.Iterations {
			if it.StepsRun < 2 || it.StepsRun > 4 {
				t.Errorf("seed %d iteration %d: steps_run %d outside [2,4]", seed, it.Iteration, it.StepsRun)
			}
			if len(it.Steps) != it.StepsRun {
				t.Errorf("seed %d: steps_run %d disagrees with %d results", seed, it.StepsRun, len(it.Steps))
			}
			seen := map[string]bool{}
			for _, s := range it.Steps {
				if seen[s.StepID] {
					t.Errorf("seed %d: step %s ran twice in one iteration", seed, s.StepID)
				}
				seen[s.StepID] = true
			}
		}
	}
}

func TestOrchestratorCapsStepsAtConfiguredCount(t *testing.T) {
	steps := []StepDefinition{{ID: "a", Required: true}, {ID: "b"}}
	reg := NewRegistry()
	reg.Register(passStep("a", 0))
	reg.Register(passStep("b", 0))
	cfg := newTestConfig(2, 2, 1, steps...)
	o, _ := newTestOrchestrator(t, cfg, reg, 9)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Iterations[0].StepsRun != 2 {
		t.Errorf("expected both steps to run, got %d", run.Iterations[0].StepsRun)
	}
}

func TestOrchestratorRequiredStepsRunFirst(t *testing.T) {
	steps := []StepDefinition{
		{ID: "opt1"},
		{ID: "req1", Required: true},
		{ID: "opt2"},
		{ID: "req2", Required: true},
		{ID: "opt3"},
	}
	reg := NewRegistry()
	for _, s := range steps {
		reg.Register(passStep(s.ID, 1))
	}

	for seed := uint64(1); seed <= 10; seed++ {
		cfg := newTestConfig(3, 5, 3, steps...)
		o, _ := newTestOrchestrator(t, cfg, reg, seed)
		run, err := o.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, it := range run.Iterations {
			if it.Steps[0].StepID != "req1" || it.Steps[1].StepID != "req2" {
				t.Errorf("seed %d: expected req1, req2 first in config order, got %s, %s",
					seed, it.Steps[0].StepID, it.Steps[1].StepID)
			}
			for _, s := range it.Steps[2:] {
				if s.Required {
					t.Errorf("seed %d: required step %s ran after optional steps", seed, s.StepID)
				}
			}
		}
	}
}

func TestOrchestratorRequiredFailureStopsEverything(t *testing.T) {
	steps := []StepDefinition{
		{ID: "first", Required: true},
		{ID: "second", Required: true},
		{ID: "third", Required: true},
		{ID: "opt"},
	}
	ran := map[string]int{}
	var mu sync.Mutex
	track := func(s Step) Step {
		return StepFunc{StepID: s.ID(), Fn: func(ctx context.Context, in StepInput) (*StepOutcome, error) {
			mu.Lock()
			ran[s.ID()]++
			mu.Unlock()
			return s.Run(ctx, in)
		}}
	}
	reg := NewRegistry()
	reg.Register(track(passStep("first", 1)))
	reg.Register(track(failStep("second")))
	reg.Register(track(passStep("third", 0)))
	reg.Register(track(passStep("opt", 0)))

	cfg := newTestConfig(4, 4, 5, steps...)
	o, _ := newTestOrchestrator(t, cfg, reg, 2)
	run, err := o.Run(context.Background())

	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected *AbortError, got %v", err)
	}
	if !strings.Contains(abort.Error(), "second found problems") {
		t.Errorf("expected failure reason in error, got %q", abort.Error())
	}
	if len(run.Iterations) != 1 {
		t.Fatalf("expected no iteration after the failure, got %d", len(run.Iterations))
	}
	if ran["third"] != 0 || ran["opt"] != 0 {
		t.Errorf("expected no steps after the failing required step, got %v", ran)
	}
	last, _ := run.LastIteration()
	if last.StepsRun != 2 {
		t.Errorf("expected 2 recorded steps, got %d", last.StepsRun)
	}
	if last.Steps[1].Passed() {
		t.Error("expected failing step to be recorded with nonzero exit")
	}
}

func TestOrchestratorOptionalFailureIsRecordedNotFatal(t *testing.T) {
	steps := []StepDefinition{{ID: "req", Required: true}, {ID: "flaky"}}
	reg := NewRegistry()
	reg.Register(passStep("req", 0))
	reg.Register(failStep("flaky"))

	cfg := newTestConfig(2, 2, 2, steps...)
	o, _ := newTestOrchestrator(t, cfg, reg, 4)
	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	it := run.Iterations[0]
	if it.Status != IterationSuccess {
		t.Errorf("expected success despite optional failure, got %s", it.Status)
	}
	if got := it.FailedSteps(); !reflect.DeepEqual(got, []string{"flaky"}) {
		t.Errorf("expected flaky recorded as failed, got %v", got)
	}
	if it.FailedStep != nil {
		t.Errorf("expected nil failed_step, got %q", *it.FailedStep)
	}
}

func TestOrchestratorSkipsMissingOptionalStep(t *testing.T) {
	steps := []StepDefinition{
		{ID: "req", Required: true},
		{ID: "ghost", Script: "does-not-exist.sh"},
	}
	reg := NewRegistry()
	reg.Register(passStep("req", 0))
	cfg := newTestConfig(2, 2, 1, steps...)
	cfg.Dir = t.TempDir()

	rec := &eventRecorder{}
	o, _ := newTestOrchestrator(t, cfg, reg, 5)
	o.SetEventHandler(rec.handle)

	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	it := run.Iterations[0]
	if !reflect.DeepEqual(it.Skipped, []string{"ghost"}) {
		t.Errorf("expected ghost skipped, got %v", it.Skipped)
	}
	if it.StepsRun != 1 {
		t.Errorf("expected 1 step run, got %d", it.StepsRun)
	}
	if len(rec.ofType(EventStepSkipped)) != 1 {
		t.Error("expected a step.skipped event")
	}
}

func TestOrchestratorRecordIsAppendOnly(t *testing.T) {
	var snapshots [][]byte
	capture := CheckpointFunc(func(run *PipelineRun) error {
		data, err := json.Marshal(run.Iterations)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, data)
		return nil
	})

	cfg := newTestConfig(1, 3, 4, scenarioSteps()...)
	rd, err := NewRunDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o, err := NewOrchestrator(OrchestratorConfig{
		Config:        cfg,
		Registry:      scenarioRegistry(passStep("syntax_check", 1)),
		RunDir:        rd,
		Branch:        "ai-gen/x",
		Seed:          11,
		Checkpointers: []Checkpointer{capture},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(snapshots) != 5 {
		t.Fatalf("expected initial + 4 iteration checkpoints, got %d", len(snapshots))
	}
	for k := 1; k < len(snapshots); k++ {
		var prev, next []IterationResult
		if err := json.Unmarshal(snapshots[k-1], &prev); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if err := json.Unmarshal(snapshots[k], &next); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(next) != len(prev)+1 {
			t.Fatalf("checkpoint %d: expected %d iterations, got %d", k, len(prev)+1, len(next))
		}
		if !reflect.DeepEqual(prev, next[:len(prev)]) {
			t.Errorf("checkpoint %d is not an extension of checkpoint %d", k, k-1)
		}
	}
}

// --- failure mode tests ---

func TestOrchestratorStepTimeoutIsFailure(t *testing.T) {
	steps := []StepDefinition{{ID: "slow", Required: true, TimeoutSeconds: 1}}
	reg := NewRegistry()
	reg.Register(StepFunc{StepID: "slow", Fn: func(ctx context.Context, in StepInput) (*StepOutcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}})
	cfg := newTestConfig(1, 1, 1, steps...)
	o, _ := newTestOrchestrator(t, cfg, reg, 1)

	run, err := o.Run(context.Background())
	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("expected *AbortError, got %v", err)
	}
	res := run.Iterations[0].Steps[0]
	if res.ExitCode != ExitTimeout {
		t.Errorf("expected exit code %d, got %d", ExitTimeout, res.ExitCode)
	}
	if !strings.Contains(res.Error, "timed out") {
		t.Errorf("expected timeout reason, got %q", res.Error)
	}
}

func TestOrchestratorRecoversStepPanic(t *testing.T) {
	steps := []StepDefinition{{ID: "boom", Required: true}}
	reg := NewRegistry()
	reg.Register(StepFunc{StepID: "boom", Fn: func(ctx context.Context, in StepInput) (*StepOutcome, error) {
		panic("kaboom")
	}})
	cfg := newTestConfig(1, 1, 1, steps...)
	o, _ := newTestOrchestrator(t, cfg, reg, 1)

	run, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected abort error")
	}
	res := run.Iterations[0].Steps[0]
	if res.Passed() || !strings.Contains(res.Error, "kaboom") {
		t.Errorf("expected recorded panic failure, got %+v", res)
	}
}

func TestOrchestratorCancellationKeepsCompletedIterations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	reg := NewRegistry()
	reg.Register(StepFunc{StepID: "req", Fn: func(ctx context.Context, in StepInput) (*StepOutcome, error) {
		calls++
		if calls == 2 {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &StepOutcome{Warnings: 1}, nil
	}})
	cfg := newTestConfig(1, 1, 5, StepDefinition{ID: "req", Required: true})
	o, rd := newTestOrchestrator(t, cfg, reg, 1)

	run, err := o.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if run.Status != RunCancelled {
		t.Errorf("expected cancelled status, got %s", run.Status)
	}
	if len(run.Iterations) != 1 {
		t.Errorf("expected only the completed iteration, got %d", len(run.Iterations))
	}
	onDisk, err := LoadRun(rd.ResultsPath())
	if err != nil {
		t.Fatalf("load run: %v", err)
	}
	if len(onDisk.Iterations) != 1 || onDisk.Status != RunCancelled {
		t.Errorf("unexpected persisted record: %+v", onDisk)
	}
}

func TestOrchestratorRunsOnlyOnce(t *testing.T) {
	cfg := newTestConfig(1, 1, 1, scenarioSteps()...)
	o, _ := newTestOrchestrator(t, cfg, scenarioRegistry(passStep("syntax_check", 0)), 1)
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := o.Run(context.Background()); err == nil {
		t.Error("expected second Run to fail")
	}
}

func TestNewOrchestratorValidation(t *testing.T) {
	rd, _ := NewRunDirectory(t.TempDir())
	cfg := newTestConfig(1, 1, 1, scenarioSteps()...)
	if _, err := NewOrchestrator(OrchestratorConfig{RunDir: rd, Branch: "b"}); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewOrchestrator(OrchestratorConfig{Config: cfg, Branch: "b"}); err == nil {
		t.Error("expected error for nil run directory")
	}
	if _, err := NewOrchestrator(OrchestratorConfig{Config: cfg, RunDir: rd}); err == nil {
		t.Error("expected error for empty branch")
	}
}

// --- artifact and event tests ---

func TestOrchestratorWritesStepArtifacts(t *testing.T) {
	cfg := newTestConfig(1, 1, 1, scenarioSteps()...)
	o, rd := newTestOrchestrator(t, cfg, scenarioRegistry(passStep("syntax_check", 0)), 1)
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names, err := rd.ListStepArtifacts(0, "syntax_check")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]bool{OutputLogFile: true, StatusFile: true, SummaryFile: true, "syntax_check.json": true}
	for _, n := range names {
		delete(want, n)
	}
	if len(want) != 0 {
		t.Errorf("missing artifacts: %v (have %v)", want, names)
	}

	data, err := rd.ReadStepArtifact(0, "syntax_check", StatusFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st["passed"] != true || st["invocation_id"] == "" {
		t.Errorf("unexpected status.json: %v", st)
	}

	logData, _ := rd.ReadStepArtifact(0, "syntax_check", OutputLogFile)
	if !strings.Contains(string(logData), "syntax_check ran on ai-gen/login") {
		t.Errorf("expected step log line, got %q", logData)
	}
}

func TestOrchestratorFreshRunClearsPreviousIterations(t *testing.T) {
	cfg := newTestConfig(1, 1, 1, scenarioSteps()...)
	o, rd := newTestOrchestrator(t, cfg, scenarioRegistry(passStep("syntax_check", 0)), 1)

	stale := rd.StepDir(7, "old")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(rd.IterationDir(7)); !os.IsNotExist(err) {
		t.Errorf("expected stale iteration dir to be removed, stat err = %v", err)
	}
}

func TestOrchestratorEmitsLifecycleEvents(t *testing.T) {
	cfg := newTestConfig(1, 1, 1, scenarioSteps()...)
	o, _ := newTestOrchestrator(t, cfg, scenarioRegistry(passStep("syntax_check", 0)), 1)
	rec := &eventRecorder{}
	o.SetEventHandler(rec.handle)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var types []EventType
	for _, e := range rec.events {
		if e.Type != EventCheckpointSaved {
			types = append(types, e.Type)
		}
	}
	want := []EventType{
		EventRunStarted,
		EventIterationStarted,
		EventStepStarted,
		EventStepPassed,
		EventIterationCompleted,
		EventRunCompleted,
	}
	if !reflect.DeepEqual(types, want) {
		t.Errorf("unexpected event sequence:\n got %v\nwant %v", types, want)
	}
	for _, e := range rec.events {
		if e.Timestamp.IsZero() {
			t.Errorf("event %s has zero timestamp", e.Type)
		}
	}
}

func TestOrchestratorUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cfg := newTestConfig(1, 1, 1, scenarioSteps()...)
	rd, _ := NewRunDirectory(t.TempDir())
	o, err := NewOrchestrator(OrchestratorConfig{
		Config:   cfg,
		Registry: scenarioRegistry(passStep("syntax_check", 0)),
		RunDir:   rd,
		Branch:   "b",
		Seed:     1,
		Now:      func() time.Time { return fixed },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	run, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !run.StartedAt.Equal(fixed) || !run.Iterations[0].Timestamp.Equal(fixed) {
		t.Errorf("expected injected clock, got %v / %v", run.StartedAt, run.Iterations[0].Timestamp)
	}
	if run.Iterations[0].Steps[0].DurationSeconds != 0 {
		t.Errorf("expected zero duration with frozen clock, got %v", run.Iterations[0].Steps[0].DurationSeconds)
	}
}
