// ABOUTME: Loads RATCHET_* overrides from .env files at startup.
// ABOUTME: Never replaces a variable that is already set in the environment.
package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// parseDotEnvLine splits one .env line. Blank lines, comments, and lines
// without '=' are rejected. Supports KEY=VALUE, KEY="VALUE", KEY='VALUE', and
// an "export " prefix.
func parseDotEnvLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")

	// values may contain '='
	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return "", "", false
	}

	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			value = value[1 : len(value)-1]
		}
	}
	return key, value, true
}

// loadDotEnv sets every variable in the file at path that is not already in
// the environment and returns how many it set. A missing file sets nothing.
func loadDotEnv(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	set := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := parseDotEnvLine(scanner.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if os.Setenv(key, value) == nil {
			set++
		}
	}
	return set
}

// loadDotEnvAuto loads .env from the current directory and each parent up to
// the enclosing repository root, then the one next to the executable. Files
// closer to the working directory win because earlier loads are not clobbered.
func loadDotEnvAuto() {
	seen := map[string]bool{}
	load := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		loadDotEnv(p)
	}

	if wd, err := os.Getwd(); err == nil {
		for dir := wd; ; {
			load(filepath.Join(dir, ".env"))
			if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if exe, err := os.Executable(); err == nil {
		load(filepath.Join(filepath.Dir(exe), ".env"))
	}
}
