package usage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AccessFile is the marker written when the user grants usage access.
const AccessFile = "usage-access"

// Access is the user's consent to foreground-window tracking.
type Access struct {
	fs   afero.Fs
	path string
}

// NewAccess stores the grant in dir on fs.
func NewAccess(fs afero.Fs, dir string) *Access {
	return &Access{fs: fs, path: filepath.Join(dir, AccessFile)}
}

// Granted reports whether usage access has been granted.
func (a *Access) Granted() bool {
	_, err := a.fs.Stat(a.path)
	return err == nil
}

// Set grants or revokes usage access.
func (a *Access) Set(granted bool) error {
	if !granted {
		if err := a.fs.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("revoke usage access: %w", err)
		}
		return nil
	}
	if err := a.fs.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("grant usage access: %w", err)
	}
	if err := afero.WriteFile(a.fs, a.path, []byte("granted\n"), 0o600); err != nil {
		return fmt.Errorf("grant usage access: %w", err)
	}
	return nil
}
