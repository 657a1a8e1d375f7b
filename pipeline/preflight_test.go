// ABOUTME: Tests for preflight checks run before the orchestrator starts.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunPreflightCollectsEveryFailure(t *testing.T) {
	checks := []PreflightCheck{
		{Name: "one", Check: func(ctx context.Context) error { return nil }},
		{Name: "two", Check: func(ctx context.Context) error { return errors.New("bad two") }},
		{Name: "three", Check: func(ctx context.Context) error { return errors.New("bad three") }},
	}
	res := RunPreflight(context.Background(), checks)
	if res.OK() {
		t.Fatal("expected failures")
	}
	if len(res.Passed) != 1 || len(res.Failed) != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
	msg := res.Error()
	if !strings.Contains(msg, "2 check(s) failed") || !strings.Contains(msg, "two: bad two") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestRunPreflightAdvisoryFailuresWarn(t *testing.T) {
	checks := []PreflightCheck{
		{Name: "hard", Check: func(ctx context.Context) error { return nil }},
		{Name: "soft", Advisory: true, Check: func(ctx context.Context) error { return errors.New("meh") }},
	}
	res := RunPreflight(context.Background(), checks)
	if !res.OK() {
		t.Fatalf("advisory failure should not block: %s", res.Error())
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Reason != "meh" {
		t.Errorf("unexpected warnings: %+v", res.Warnings)
	}
}

func TestRunPreflightAllPass(t *testing.T) {
	res := RunPreflight(context.Background(), nil)
	if !res.OK() || res.Error() != "" {
		t.Errorf("expected OK, got %+v", res)
	}
}

func TestBuildPreflightChecks(t *testing.T) {
	dir := t.TempDir()
	cfg := newTestConfig(1, 3, 1,
		StepDefinition{ID: "syntax_check", Required: true},
		StepDefinition{ID: "gate", Script: "gate.sh", Required: true},
		StepDefinition{ID: "optional_missing", Script: "nope.sh"},
	)
	cfg.Dir = dir
	reg := NewRegistry()
	reg.Register(passStep("syntax_check", 0))

	res := RunPreflight(context.Background(), BuildPreflightChecks(cfg, reg, dir))
	if !res.OK() {
		t.Fatalf("a missing required script should only warn, got %s", res.Error())
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Name != "step gate" {
		t.Errorf("unexpected warnings: %+v", res.Warnings)
	}

	os.WriteFile(filepath.Join(dir, "gate.sh"), []byte("#!/bin/sh\n"), 0o755)
	res = RunPreflight(context.Background(), BuildPreflightChecks(cfg, reg, dir))
	if !res.OK() || len(res.Warnings) != 0 {
		t.Errorf("expected preflight to pass cleanly, got %+v", res)
	}

	res = RunPreflight(context.Background(), BuildPreflightChecks(cfg, reg, filepath.Join(dir, "gate.sh")))
	if res.OK() || res.Failed[0].Name != "workspace" {
		t.Errorf("expected workspace failure for a file, got %+v", res)
	}
}
