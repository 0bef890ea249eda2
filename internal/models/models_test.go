package models_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_JSON(t *testing.T) {
	appErr := models.ErrNotFound("resource not found")

	data, err := json.Marshal(appErr)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	assert.Contains(t, m, "error")
	assert.Contains(t, m, "message")
	// Status is tagged json:"-"
	assert.NotContains(t, m, "status")
}

func TestAppError_ErrorConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *models.AppError
		status int
		code   string
	}{
		{"NotFound", models.ErrNotFound("not found"), http.StatusNotFound, "NOT_FOUND"},
		{"BadRequest", models.ErrBadRequest("bad request"), http.StatusBadRequest, "BAD_REQUEST"},
		{"BadField", models.ErrBadField("uri", "bad uri"), http.StatusBadRequest, "BAD_REQUEST"},
		{"Internal", models.ErrInternal("internal error"), http.StatusInternalServerError, "INTERNAL"},
		{"Unavailable", models.ErrUnavailable("no portal"), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{"Unauthorized", models.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.Equal(t, tc.code, tc.err.Code)
			assert.NotEmpty(t, tc.err.Error())
		})
	}
}

func TestDefaultPreferences(t *testing.T) {
	p := models.DefaultPreferences()
	assert.False(t, p.HeadphoneOnly)
	assert.False(t, p.DesktopOnly)
	assert.False(t, p.NoOtherAudio)
	assert.Empty(t, p.SoundURI)
	assert.False(t, p.HasSound())
}

func TestPreferences_BoolByKey(t *testing.T) {
	var p models.Preferences
	for _, key := range models.BoolKeys {
		require.NoError(t, p.SetBool(key, true))
		got, err := p.Bool(key)
		require.NoError(t, err)
		assert.True(t, got, key)
	}
	assert.True(t, p.HeadphoneOnly && p.DesktopOnly && p.NoOtherAudio)

	assert.Error(t, p.SetBool(models.KeySoundURI, true))
	_, err := p.Bool("volume")
	assert.Error(t, err)
}

func TestPreferences_JSONKeys(t *testing.T) {
	p := models.Preferences{HeadphoneOnly: true, SoundURI: "file:///tmp/a.wav"}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, key := range []string{models.KeyHeadphoneOnly, models.KeyDesktopOnly, models.KeyNoOtherAudio, models.KeySoundURI} {
		assert.Contains(t, m, key)
	}
}

func TestPreferencesUpdate_Apply(t *testing.T) {
	on := true
	off := false
	p := models.Preferences{DesktopOnly: true, SoundURI: "file:///x.ogg"}

	upd := models.PreferencesUpdate{HeadphoneOnly: &on, DesktopOnly: &off}
	assert.False(t, upd.Empty())
	upd.Apply(&p)

	assert.True(t, p.HeadphoneOnly)
	assert.False(t, p.DesktopOnly)
	assert.False(t, p.NoOtherAudio)
	assert.Equal(t, "file:///x.ogg", p.SoundURI)

	assert.True(t, models.PreferencesUpdate{}.Empty())
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, models.StatusLabelRunning, models.LabelFor(models.ServiceRunning))
	assert.Equal(t, models.StatusLabelStarting, models.LabelFor(models.ServiceStarting))
	assert.Equal(t, models.StatusLabelStopped, models.LabelFor(models.ServiceStopped))
	assert.Equal(t, models.StatusLabelStopped, models.LabelFor(""))
}
