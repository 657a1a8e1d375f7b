// ABOUTME: Tests for "ratchet step": flag handling, unknown ids, and standalone artifact output.
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/2389-research/ratchet/pipeline"
)

// --- step flag tests ---

func TestParseStepFlagsAcceptsIDAnywhere(t *testing.T) {
	for _, args := range [][]string{
		{"syntax_check", "--branch=b", "--iteration=2"},
		{"--branch=b", "--iteration=2", "syntax_check"},
	} {
		var stderr bytes.Buffer
		opts, _, ok := parseStepFlags(args, &stderr)
		if !ok {
			t.Fatalf("%v: unexpected parse failure: %s", args, stderr.String())
		}
		if opts.id != "syntax_check" || opts.iteration != 2 || opts.branch != "b" {
			t.Errorf("%v: unexpected options %+v", args, opts)
		}
		if !filepath.IsAbs(opts.workspace) {
			t.Errorf("expected an absolute workspace, got %q", opts.workspace)
		}
	}
}

func TestParseStepFlagsUsageErrors(t *testing.T) {
	cases := map[string][]string{
		"missing id":         {"--branch=b"},
		"missing branch":     {"syntax_check"},
		"negative iteration": {"syntax_check", "--branch=b", "--iteration=-1"},
	}
	for name, args := range cases {
		var stderr bytes.Buffer
		_, code, ok := parseStepFlags(args, &stderr)
		if ok || code != exitUsage {
			t.Errorf("%s: expected usage error, got ok=%v code=%d", name, ok, code)
		}
	}
}

// --- step command tests ---

func TestStepUnknownIDExitsNotFound(t *testing.T) {
	t.Setenv(configEnv, "")
	code, _, stderr := runCLI(t, "step", "does_not_exist", "--branch=b", "--workspace", t.TempDir(), "--output-dir", t.TempDir())
	if code != pipeline.ExitNotFound {
		t.Errorf("expected exit %d, got %d", pipeline.ExitNotFound, code)
	}
	if !strings.Contains(stderr, "syntax_check") {
		t.Errorf("expected the known ids in the error, got %q", stderr)
	}
}

func TestStepWritesArtifacts(t *testing.T) {
	t.Setenv(configEnv, "")
	t.Setenv(baselineEnv, "")
	ws := newRepo(t)
	out := filepath.Join(t.TempDir(), "syntax")

	code, stdout, stderr := runCLI(t, "step", "syntax_check", "--branch=ai-gen/login", "--workspace", ws, "--output-dir", out)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "PASS") {
		t.Errorf("expected the summary on stdout, got %q", stdout)
	}
	for _, name := range []string{pipeline.StatusFile, pipeline.SummaryFile, pipeline.OutputLogFile, "syntax_check.json"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestStepDefaultsToRunDirectoryLayout(t *testing.T) {
	t.Setenv(configEnv, "")
	t.Setenv(baselineEnv, "")
	t.Setenv(pipeline.OutputDirEnv, "")
	ws := newRepo(t)

	code, _, stderr := runCLI(t, "step", "context_validation", "--branch=ai-gen/login", "--feature=login", "--workspace", ws)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\nstderr: %s", code, stderr)
	}
	rd := &pipeline.RunDirectory{BaseDir: filepath.Join(ws, ".ratchet", "runs", pipeline.BranchSlug("ai-gen/login"))}
	if _, err := os.Stat(filepath.Join(rd.StepDir(0, "context_validation"), pipeline.StatusFile)); err != nil {
		t.Errorf("expected status.json in the run directory layout: %v", err)
	}
}
