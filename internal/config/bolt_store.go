package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const (
	boltFileName = "prefs.db"
	// PrefsBucket holds one key per preference.
	PrefsBucket = "UnlockPrefs"
)

// BoltStore keeps preferences in a bbolt database, one key per preference.
// Every Save is committed before it returns.
type BoltStore struct {
	db   *bolt.DB
	path string
}

// NewBoltStore opens (or creates) the preference database in configDir.
func NewBoltStore(configDir string) (*BoltStore, error) {
	path := filepath.Join(configDir, boltFileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open preference db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(PrefsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create preference bucket: %w", err)
	}
	return &BoltStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *BoltStore) Path() string { return s.path }

// Load reads all preferences. Missing keys keep their defaults; a boolean
// that fails to parse is treated as false and logged.
func (s *BoltStore) Load() (*models.Preferences, error) {
	prefs := models.DefaultPreferences()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(PrefsBucket))
		if b == nil {
			return nil
		}
		for _, key := range models.BoolKeys {
			raw := b.Get([]byte(key))
			if raw == nil {
				continue
			}
			v, err := strconv.ParseBool(string(raw))
			if err != nil {
				log.Warn().Str("key", key).Str("value", string(raw)).Msg("config: unreadable boolean preference, using false")
				continue
			}
			_ = prefs.SetBool(key, v)
		}
		if raw := b.Get([]byte(models.KeySoundURI)); raw != nil {
			prefs.SoundURI = string(raw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	return &prefs, nil
}

// Save writes all preferences in a single transaction. An empty sound
// reference deletes the key so it reads back as absent.
func (s *BoltStore) Save(prefs *models.Preferences) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(PrefsBucket))
		if err != nil {
			return err
		}
		for _, key := range models.BoolKeys {
			v, _ := prefs.Bool(key)
			if err := b.Put([]byte(key), []byte(strconv.FormatBool(v))); err != nil {
				return fmt.Errorf("write %s: %w", key, err)
			}
		}
		if prefs.SoundURI == "" {
			return b.Delete([]byte(models.KeySoundURI))
		}
		return b.Put([]byte(models.KeySoundURI), []byte(prefs.SoundURI))
	})
}

// Flush is a no-op; bbolt commits are synchronous.
func (s *BoltStore) Flush() error { return nil }

// Close closes the database.
func (s *BoltStore) Close() error { return s.db.Close() }

// empty reports whether no preference has ever been written.
func (s *BoltStore) empty() (bool, error) {
	empty := true
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(PrefsBucket))
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().First()
		empty = k == nil
		return nil
	})
	return empty, err
}

var _ Store = (*BoltStore)(nil)
