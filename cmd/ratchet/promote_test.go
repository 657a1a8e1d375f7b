// ABOUTME: Tests for "ratchet promote" flag validation and a local-only promotion.
package main

import (
	"strings"
	"testing"
)

func TestPromoteUsageErrors(t *testing.T) {
	cases := map[string][]string{
		"missing feature": {"promote", "--to=ai-review"},
		"missing target":  {"promote", "--feature=login"},
		"bad target":      {"promote", "--feature=login", "--to=ai-gen"},
		"stray argument":  {"promote", "--feature=login", "--to=ai-prod", "extra"},
	}
	for name, args := range cases {
		code, _, _ := runCLI(t, args...)
		if code != exitUsage {
			t.Errorf("%s: expected exit %d, got %d", name, exitUsage, code)
		}
	}
}

func TestPromoteLocalOnly(t *testing.T) {
	ws := newRepo(t)

	code, stdout, stderr := runCLI(t, "promote", "--feature=login", "--to=ai-review", "--no-push", "--workspace", ws)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d\nstderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "promoted ai-gen/login -> ai-review/login") || !strings.Contains(stdout, "not pushed") {
		t.Errorf("unexpected output %q", stdout)
	}

	// ai-prod now has a source
	code, _, stderr = runCLI(t, "promote", "--feature=login", "--to=ai-prod", "--no-push", "--workspace", ws)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d\nstderr: %s", code, stderr)
	}
}

func TestPromoteMissingSourceFails(t *testing.T) {
	ws := newRepo(t)
	code, _, stderr := runCLI(t, "promote", "--feature=login", "--to=ai-prod", "--no-push", "--workspace", ws)
	if code != exitFailure {
		t.Errorf("expected exit %d, got %d", exitFailure, code)
	}
	if !strings.Contains(stderr, "ai-review/login") {
		t.Errorf("expected the missing source in the error, got %q", stderr)
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Errorf("unexpected short commit %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Errorf("unexpected short commit %q", got)
	}
}
