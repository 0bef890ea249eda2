package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/rs/zerolog/log"
)

const jsonFileName = "prefs.json"

// JSONStore is an atomic JSON file store. Each Save is written to disk
// before it returns so a toggle survives an immediate process exit.
type JSONStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStore creates a new JSON store in the given config directory.
func NewJSONStore(configDir string) *JSONStore {
	return &JSONStore{
		path: filepath.Join(configDir, jsonFileName),
	}
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

// Load reads the preferences from disk. Returns defaults on ENOENT or parse errors.
func (s *JSONStore) Load() (*models.Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			def := models.DefaultPreferences()
			return &def, nil
		}
		return nil, err
	}

	prefs := models.DefaultPreferences()
	if err := json.Unmarshal(data, &prefs); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("config: corrupt preferences file, using defaults")
		def := models.DefaultPreferences()
		return &def, nil
	}
	return &prefs, nil
}

// Save writes the preferences atomically.
func (s *JSONStore) Save(prefs *models.Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeAtomic(prefs)
}

// Flush is a no-op; Save never defers writes.
func (s *JSONStore) Flush() error { return nil }

// Close is a no-op for file stores.
func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *JSONStore) writeAtomic(prefs *models.Preferences) error {
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	// Write to temp file, then rename (atomic on Linux)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

var _ Store = (*JSONStore)(nil)
