// ABOUTME: Tests for help output and environment status reporting.
package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintHelpShowsEnvironmentStatus(t *testing.T) {
	t.Setenv(configEnv, "ratchet.yaml")
	t.Setenv(dataDirEnv, "")

	var buf bytes.Buffer
	printHelp(&buf, "1.2.3")
	out := buf.String()

	for _, want := range []string{"1.2.3", "ratchet [run]", "ratchet step", "Exit codes", configEnv} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), configEnv) && !strings.Contains(line, "[set]") {
			t.Errorf("expected %s to be reported as set: %q", configEnv, line)
		}
		if strings.HasPrefix(strings.TrimSpace(line), dataDirEnv) && !strings.Contains(line, "[not set]") {
			t.Errorf("expected %s to be reported as not set: %q", dataDirEnv, line)
		}
	}
}
