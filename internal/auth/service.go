// Package auth protects the settings API with optional access keys.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// UsersFile lists the access keys allowed to use the API.
const UsersFile = "users.json"

// User is one entry in users.json.
type User struct {
	AccessKey        string `json:"access_key"`
	AccessKeyUpdated string `json:"access_key_updated,omitempty"`
}

// Service holds the known keys and reloads them when users.json changes.
type Service struct {
	mu        sync.RWMutex
	configDir string
	users     map[string]User
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

// NewService loads users.json from configDir and watches it. A missing file
// means open mode.
func NewService(configDir string) (*Service, error) {
	s := &Service{
		configDir: configDir,
		users:     make(map[string]User),
		done:      make(chan struct{}),
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("auth: could not create fsnotify watcher")
		close(s.done)
		return s, nil
	}
	s.watcher = watcher

	if err := watcher.Add(configDir); err != nil {
		log.Warn().Err(err).Str("dir", configDir).Msg("auth: could not watch config dir")
	}

	go s.watchLoop(s.usersPath())
	return s, nil
}

func (s *Service) usersPath() string {
	return filepath.Join(s.configDir, UsersFile)
}

// Reload re-reads users.json.
func (s *Service) Reload() error {
	data, err := os.ReadFile(s.usersPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.users = make(map[string]User)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("auth: read users: %w", err)
	}

	var users map[string]User
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("auth: parse users: %w", err)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()
	log.Debug().Int("count", len(users)).Msg("auth: reloaded users")
	return nil
}

// IsOpenMode reports whether no access key is configured, in which case
// every request is allowed.
func (s *Service) IsOpenMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.AccessKey != "" {
			return false
		}
	}
	return true
}

// VerifyKey reports whether key belongs to a user. The comparison is
// constant-time.
func (s *Service) VerifyKey(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.AccessKey == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(u.AccessKey)) == 1 {
			return true
		}
	}
	return false
}

// Close stops the file watcher and waits for it to exit.
func (s *Service) Close() {
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	<-s.done
}

func (s *Service) watchLoop(usersPath string) {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != usersPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				if err := s.Reload(); err != nil {
					log.Warn().Err(err).Msg("auth: failed to reload users")
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("auth: watcher error")
		}
	}
}
