package xdg

import (
	"os"
	"path/filepath"
)

// XDGDirs resolves XDG Base Directory Specification compliant paths. Only
// the state home is needed here: it hosts the default run output root.
type XDGDirs struct {
	stateHome string
}

// NewXDGDirs creates a new XDGDirs instance with proper defaults according to XDG spec
func NewXDGDirs() *XDGDirs {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			homeDir = "/tmp" // Last resort fallback
		}
	}

	xdg := &XDGDirs{}

	// XDG_STATE_HOME: user-specific state data
	xdg.stateHome = os.Getenv("XDG_STATE_HOME")
	if xdg.stateHome == "" {
		xdg.stateHome = filepath.Join(homeDir, ".local", "state")
	}

	return xdg
}

// AppStateDir returns the application-specific state directory
func (x *XDGDirs) AppStateDir(appName string) string {
	return filepath.Join(x.stateHome, appName)
}

// EnsureDir creates the directory with appropriate permissions if it doesn't exist
func (x *XDGDirs) EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
