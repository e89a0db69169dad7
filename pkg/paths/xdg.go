// Package paths resolves the per-user directories of statesync.
//
// Resolution order:
//  1. STATESYNC_HOME (portable root): $STATESYNC_HOME/{config,state}
//  2. XDG env vars: $XDG_*_HOME/statesync
//  3. Defaults: ~/.config/statesync and ~/.local/state/statesync
package paths

import (
	"os"
	"path/filepath"
)

const appName = "statesync"

func home(portable, xdgVar string, fallback ...string) string {
	if root := os.Getenv("STATESYNC_HOME"); root != "" {
		return filepath.Join(root, portable)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append(append([]string{homeDir}, fallback...), appName)...)
	}
	return ""
}

// ConfigDir holds the user-level statesync.yml.
func ConfigDir() string {
	return home("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir holds log files.
func StateDir() string {
	return home("state", "XDG_STATE_HOME", ".local", "state")
}
