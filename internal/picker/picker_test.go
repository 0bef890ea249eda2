package picker_test

import (
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/micro-nova/unlockchime/internal/picker"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRequestPath(t *testing.T) {
	assert.Equal(t,
		dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_42/tok"),
		picker.RequestPath(":1.42", "tok"))
}

func TestParseResponse(t *testing.T) {
	ok := map[string]dbus.Variant{"uris": dbus.MakeVariant([]string{"file:///home/me/chime.ogg"})}

	uri, err := picker.ParseResponse([]interface{}{uint32(0), ok})
	require.NoError(t, err)
	assert.Equal(t, "file:///home/me/chime.ogg", uri)

	_, err = picker.ParseResponse([]interface{}{uint32(1), map[string]dbus.Variant{}})
	assert.ErrorIs(t, err, picker.ErrCancelled)

	_, err = picker.ParseResponse([]interface{}{uint32(0), map[string]dbus.Variant{}})
	assert.ErrorIs(t, err, picker.ErrCancelled, "no uris is treated as nothing picked")

	_, err = picker.ParseResponse([]interface{}{uint32(2), ok})
	assert.Error(t, err)

	_, err = picker.ParseResponse([]interface{}{"bad"})
	assert.Error(t, err)
}

func TestGrant(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/music/chime.wav", []byte("RIFF"), 0o644))
	require.NoError(t, fs.MkdirAll("/music/folder", 0o755))
	p := &picker.Portal{Fs: fs}

	assert.NoError(t, p.Grant("file:///music/chime.wav"))
	assert.NoError(t, p.Grant("/music/chime.wav"))
	assert.ErrorIs(t, p.Grant("file:///music/gone.wav"), picker.ErrNoAccess)
	assert.ErrorIs(t, p.Grant("file:///music/folder"), picker.ErrNoAccess)
	assert.ErrorIs(t, p.Grant("https://example.com/a.wav"), picker.ErrNoAccess)
}

func TestDisplayName(t *testing.T) {
	name, err := picker.DisplayName("file:///home/me/My%20Chime.mp3")
	require.NoError(t, err)
	assert.Equal(t, "My Chime.mp3", name)

	_, err = picker.DisplayName("file:///")
	assert.Error(t, err)
	_, err = picker.DisplayName("")
	assert.Error(t, err)
}

func TestIsDocumentPortalPath(t *testing.T) {
	uid := unix.Getuid()
	assert.True(t, picker.IsDocumentPortalPath(fmt.Sprintf("/run/user/%d/doc/abc/x.wav", uid)))
	assert.False(t, picker.IsDocumentPortalPath("/home/me/x.wav"))
}
