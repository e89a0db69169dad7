package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPortableHomeWins(t *testing.T) {
	t.Setenv("STATESYNC_HOME", "/opt/sync")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")

	assert.Equal(t, filepath.Join("/opt/sync", "config"), ConfigDir())
	assert.Equal(t, filepath.Join("/opt/sync", "state"), StateDir())
}

func TestXDGDirs(t *testing.T) {
	t.Setenv("STATESYNC_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")

	assert.Equal(t, filepath.Join("/xdg/config", "statesync"), ConfigDir())
	assert.Equal(t, filepath.Join("/xdg/state", "statesync"), StateDir())
}

func TestHomeFallback(t *testing.T) {
	t.Setenv("STATESYNC_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/tester")

	assert.Equal(t, filepath.Join("/home/tester", ".config", "statesync"), ConfigDir())
	assert.Equal(t, filepath.Join("/home/tester", ".local", "state", "statesync"), StateDir())
}
