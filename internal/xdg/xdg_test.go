package xdg

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppStateDirHonorsEnvOverride(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/var/lib/state")
	assert.Equal(t, filepath.Join("/var/lib/state", "toolbench"),
		NewXDGDirs().AppStateDir("toolbench"))
}

func TestAppStateDirDefaultsUnderHome(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", "/home/bench")
	assert.Equal(t, "/home/bench/.local/state/toolbench",
		NewXDGDirs().AppStateDir("toolbench"))
}
