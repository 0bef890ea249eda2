// Package config handles the daemon configuration file and persistence of
// user preferences.
package config

import (
	"fmt"

	"github.com/micro-nova/unlockchime/internal/models"
)

// Store backends.
const (
	BackendBolt = "bolt"
	BackendJSON = "json"
)

// Store is the interface for persisting user preferences.
type Store interface {
	// Load loads the current preferences. Returns DefaultPreferences if
	// nothing has been saved yet.
	Load() (*models.Preferences, error)

	// Save persists the preferences. Writes are durable when Save returns.
	Save(prefs *models.Preferences) error

	// Path returns the file path used by this store.
	Path() string

	// Flush forces an immediate write of any pending state.
	Flush() error

	// Close releases any resources held by the store.
	Close() error
}

// OpenStore opens the preference store for the given backend in dir. When
// the bolt backend is opened for the first time and a JSON preferences file
// is present, its values are imported.
func OpenStore(backend, dir string) (Store, error) {
	switch backend {
	case BackendJSON:
		return NewJSONStore(dir), nil
	case BackendBolt, "":
		s, err := NewBoltStore(dir)
		if err != nil {
			return nil, err
		}
		if err := migrateJSONToBolt(NewJSONStore(dir), s); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}
