package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/micro-nova/unlockchime/internal/config"
	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- shared store behaviour ---

type storeFactory func(t *testing.T, dir string) config.Store

func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"bolt": func(t *testing.T, dir string) config.Store {
			t.Helper()
			s, err := config.NewBoltStore(dir)
			require.NoError(t, err)
			return s
		},
		"json": func(t *testing.T, dir string) config.Store {
			t.Helper()
			return config.NewJSONStore(dir)
		},
	}
}

func TestStore_LoadEmpty_ReturnsDefaults(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t, t.TempDir())
			defer s.Close()

			prefs, err := s.Load()
			require.NoError(t, err)
			assert.Equal(t, models.DefaultPreferences(), *prefs)
		})
	}
}

// Toggling a preference and reopening the store (a process restart) yields
// the same value.
func TestStore_RoundTripAcrossReopen(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			want := models.Preferences{
				HeadphoneOnly: true,
				DesktopOnly:   false,
				NoOtherAudio:  true,
				SoundURI:      "file:///home/user/Music/chime.ogg",
			}

			s := open(t, dir)
			require.NoError(t, s.Save(&want))
			require.NoError(t, s.Flush())
			require.NoError(t, s.Close())

			reopened := open(t, dir)
			defer reopened.Close()
			got, err := reopened.Load()
			require.NoError(t, err)
			assert.Equal(t, want, *got)
		})
	}
}

func TestStore_ClearSoundURI(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t, t.TempDir())
			defer s.Close()

			require.NoError(t, s.Save(&models.Preferences{SoundURI: "file:///a.wav"}))
			require.NoError(t, s.Save(&models.Preferences{}))

			got, err := s.Load()
			require.NoError(t, err)
			assert.False(t, got.HasSound())
		})
	}
}

func TestStore_Path(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			s := open(t, dir)
			defer s.Close()
			assert.Equal(t, dir, filepath.Dir(s.Path()))
		})
	}
}

// --- JSONStore specifics ---

func TestJSONStore_CorruptJSON_ReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	s := config.NewJSONStore(dir)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{invalid json!!!"), 0o644))

	prefs, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences(), *prefs)
}

func TestJSONStore_SaveWritesImmediately(t *testing.T) {
	dir := t.TempDir()
	s := config.NewJSONStore(dir)

	require.NoError(t, s.Save(&models.Preferences{DesktopOnly: true}))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"desktopOnly": true`)
	_, err = os.Stat(s.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

// --- BoltStore specifics ---

func TestOpenStore_ImportsJSONIntoEmptyBolt(t *testing.T) {
	dir := t.TempDir()
	js := config.NewJSONStore(dir)
	require.NoError(t, js.Save(&models.Preferences{NoOtherAudio: true, SoundURI: "file:///b.mp3"}))

	s, err := config.OpenStore(config.BackendBolt, dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load()
	require.NoError(t, err)
	assert.True(t, got.NoOtherAudio)
	assert.Equal(t, "file:///b.mp3", got.SoundURI)

	_, err = os.Stat(js.Path())
	assert.True(t, os.IsNotExist(err), "json file should be renamed after import")
	_, err = os.Stat(js.Path() + ".imported")
	assert.NoError(t, err)
}

func TestOpenStore_DoesNotOverwriteExistingBolt(t *testing.T) {
	dir := t.TempDir()
	b, err := config.NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, b.Save(&models.Preferences{HeadphoneOnly: true}))
	require.NoError(t, b.Close())

	require.NoError(t, config.NewJSONStore(dir).Save(&models.Preferences{DesktopOnly: true}))

	s, err := config.OpenStore(config.BackendBolt, dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Load()
	require.NoError(t, err)
	assert.True(t, got.HeadphoneOnly)
	assert.False(t, got.DesktopOnly)
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := config.OpenStore("sqlite", t.TempDir())
	assert.Error(t, err)
}

// --- MemStore ---

func TestMemStore_IsolatesCopies(t *testing.T) {
	m := config.NewMemStore()
	p := models.Preferences{HeadphoneOnly: true}
	require.NoError(t, m.Save(&p))
	p.HeadphoneOnly = false

	got, err := m.Load()
	require.NoError(t, err)
	assert.True(t, got.HeadphoneOnly)
	assert.Equal(t, 1, m.Saves())
	assert.Equal(t, ":memory:", m.Path())
}
