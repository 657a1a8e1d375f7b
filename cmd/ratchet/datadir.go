// ABOUTME: XDG-based data directory resolution for the ratchet history database.
// ABOUTME: Checks an explicit override, then XDG_DATA_HOME, then falls back to ~/.local/share/ratchet.
package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultDataDir returns the default data directory for ratchet persistent state.
// It checks XDG_DATA_HOME first, then falls back to ~/.local/share/ratchet.
func defaultDataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "ratchet"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "ratchet"), nil
}

// resolveDataDir returns the data directory to use: an explicit override,
// then $RATCHET_DATA_DIR, then the XDG default.
func resolveDataDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv(dataDirEnv); env != "" {
		return env, nil
	}
	return defaultDataDir()
}
