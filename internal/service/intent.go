package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// IntentFile records whether the user left the service running.
const IntentFile = "service.state"

const (
	intentRunning = "running"
	intentStopped = "stopped"
)

// Intent persists the user's start/stop choice so the service comes back
// after the daemon restarts.
type Intent struct {
	fs   afero.Fs
	path string
}

// NewIntent keeps the intent in dir on fs.
func NewIntent(fs afero.Fs, dir string) *Intent {
	return &Intent{fs: fs, path: filepath.Join(dir, IntentFile)}
}

// Running reports whether the last explicit action was a start.
func (i *Intent) Running() bool {
	data, err := afero.ReadFile(i.fs, i.path)
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == intentRunning
}

// Save records the intent.
func (i *Intent) Save(running bool) error {
	v := intentStopped
	if running {
		v = intentRunning
	}
	if err := i.fs.MkdirAll(filepath.Dir(i.path), 0o755); err != nil {
		return fmt.Errorf("save service intent: %w", err)
	}
	if err := afero.WriteFile(i.fs, i.path, []byte(v+"\n"), 0o644); err != nil {
		return fmt.Errorf("save service intent: %w", err)
	}
	return nil
}
