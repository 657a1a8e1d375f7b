// ABOUTME: Tests for .env parsing and loading without clobbering the environment.
package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDotEnvLine(t *testing.T) {
	cases := []struct {
		line       string
		key, value string
		ok         bool
	}{
		{"RATCHET_DATA_DIR=/tmp/data", "RATCHET_DATA_DIR", "/tmp/data", true},
		{"export RATCHET_CONFIG=ratchet.yaml", "RATCHET_CONFIG", "ratchet.yaml", true},
		{`QUOTED="a b"`, "QUOTED", "a b", true},
		{"SINGLE='x=y'", "SINGLE", "x=y", true},
		{"  SPACED = v  ", "SPACED", "v", true},
		{"EMPTY=", "EMPTY", "", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"no-equals", "", "", false},
		{"=value", "", "", false},
	}
	for _, tc := range cases {
		key, value, ok := parseDotEnvLine(tc.line)
		if ok != tc.ok || key != tc.key || value != tc.value {
			t.Errorf("parseDotEnvLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.line, key, value, ok, tc.key, tc.value, tc.ok)
		}
	}
}

func TestLoadDotEnvDoesNotClobber(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "RATCHET_TEST_KEEP=from-file\nRATCHET_TEST_NEW=fresh\n# skipped\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RATCHET_TEST_KEEP", "from-env")
	t.Setenv("RATCHET_TEST_NEW", "")
	os.Unsetenv("RATCHET_TEST_NEW")

	if n := loadDotEnv(path); n != 1 {
		t.Errorf("expected 1 variable set, got %d", n)
	}
	if got := os.Getenv("RATCHET_TEST_KEEP"); got != "from-env" {
		t.Errorf("existing variable was replaced: %q", got)
	}
	if got := os.Getenv("RATCHET_TEST_NEW"); got != "fresh" {
		t.Errorf("expected fresh, got %q", got)
	}
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	if n := loadDotEnv(filepath.Join(t.TempDir(), "absent")); n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}
