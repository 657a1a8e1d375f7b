// ABOUTME: Tests for data directory resolution order.
package main

import (
	"path/filepath"
	"testing"
)

func TestResolveDataDirOverrideWins(t *testing.T) {
	t.Setenv(dataDirEnv, "/from/env")
	got, err := resolveDataDir("/explicit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/explicit" {
		t.Errorf("expected /explicit, got %q", got)
	}
}

func TestResolveDataDirEnv(t *testing.T) {
	t.Setenv(dataDirEnv, "/from/env")
	got, err := resolveDataDir("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/from/env" {
		t.Errorf("expected /from/env, got %q", got)
	}
}

func TestResolveDataDirXDG(t *testing.T) {
	t.Setenv(dataDirEnv, "")
	t.Setenv("XDG_DATA_HOME", "/xdg")
	got, err := resolveDataDir("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join("/xdg", "ratchet") {
		t.Errorf("expected /xdg/ratchet, got %q", got)
	}
}

func TestDefaultDataDirHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/tester")
	got, err := defaultDataDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join("/home/tester", ".local", "share", "ratchet") {
		t.Errorf("unexpected default %q", got)
	}
}
