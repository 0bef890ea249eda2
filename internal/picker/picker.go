// Package picker selects a sound file through the desktop portal and
// checks that it stays readable.
package picker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/micro-nova/unlockchime/internal/playback"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

const (
	portalService = "org.freedesktop.portal.Desktop"
	portalPath    = "/org/freedesktop/portal/desktop"
	fileChooser   = "org.freedesktop.portal.FileChooser"
	requestIface  = "org.freedesktop.portal.Request"
)

var (
	// ErrCancelled is returned when the user dismisses the picker.
	ErrCancelled = errors.New("file selection cancelled")
	// ErrNoAccess is returned when a picked file cannot be read.
	ErrNoAccess = errors.New("cannot obtain access to this file")
)

type filterRule struct {
	Kind    uint32
	Pattern string
}

type filter struct {
	Name  string
	Rules []filterRule
}

// Portal uses xdg-desktop-portal's FileChooser.
type Portal struct {
	Fs    afero.Fs
	Title string
}

// New returns a picker over the real filesystem.
func New() *Portal {
	return &Portal{Fs: afero.NewOsFs(), Title: "Select unlock sound"}
}

// OpenAudio asks the user for one audio file and returns its URI.
func (p *Portal) OpenAudio(ctx context.Context) (string, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return "", fmt.Errorf("portal: connect session bus: %w", err)
	}
	defer conn.Close()

	names := conn.Names()
	if len(names) == 0 {
		return "", errors.New("portal: connection has no unique name")
	}
	token := "unlockchime_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	handle := RequestPath(names[0], token)

	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(handle),
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	}
	if err := conn.AddMatchSignal(match...); err != nil {
		return "", fmt.Errorf("portal: add match: %w", err)
	}
	defer func() { _ = conn.RemoveMatchSignal(match...) }()
	signals := make(chan *dbus.Signal, 4)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	opts := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
		"modal":        dbus.MakeVariant(true),
		"multiple":     dbus.MakeVariant(false),
		"filters": dbus.MakeVariant([]filter{
			{Name: "Audio", Rules: []filterRule{{Kind: 1, Pattern: "audio/*"}}},
		}),
	}
	var got dbus.ObjectPath
	err = conn.Object(portalService, portalPath).
		CallWithContext(ctx, fileChooser+".OpenFile", 0, "", p.Title, opts).
		Store(&got)
	if err != nil {
		return "", fmt.Errorf("portal: open file: %w", err)
	}
	if got != handle {
		// older portals ignore handle_token
		log.Debug().Str("handle", string(got)).Msg("portal: unexpected request handle")
		_ = conn.AddMatchSignal(dbus.WithMatchObjectPath(got), dbus.WithMatchInterface(requestIface))
		handle = got
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Object(portalService, handle).Call(requestIface+".Close", 0).Err
			return "", ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return "", errors.New("portal: connection closed")
			}
			if sig.Path != handle || sig.Name != requestIface+".Response" {
				continue
			}
			return ParseResponse(sig.Body)
		}
	}
}

// RequestPath is the object path the portal uses for a request made by
// sender with token.
func RequestPath(sender, token string) dbus.ObjectPath {
	s := strings.TrimPrefix(sender, ":")
	s = strings.ReplaceAll(s, ".", "_")
	return dbus.ObjectPath(portalPath + "/request/" + s + "/" + token)
}

// ParseResponse extracts the picked URI from a Request.Response body.
func ParseResponse(body []interface{}) (string, error) {
	if len(body) < 2 {
		return "", errors.New("portal: malformed response")
	}
	code, ok := body[0].(uint32)
	if !ok {
		return "", errors.New("portal: malformed response code")
	}
	switch code {
	case 0:
	case 1:
		return "", ErrCancelled
	default:
		return "", fmt.Errorf("portal: request failed (code %d)", code)
	}
	results, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return "", errors.New("portal: malformed results")
	}
	uris, ok := results["uris"].Value().([]string)
	if !ok || len(uris) == 0 {
		return "", ErrCancelled
	}
	return uris[0], nil
}

// Grant confirms that uri can be read now. Files handed out by the
// document portal stay readable across restarts; plain paths are as
// durable as the file itself.
func (p *Portal) Grant(uri string) error {
	path, err := playback.Path(uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoAccess, err)
	}
	f, err := p.Fs.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoAccess, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		return ErrNoAccess
	}
	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil && st.Size() > 0 {
		return fmt.Errorf("%w: %v", ErrNoAccess, err)
	}
	if IsDocumentPortalPath(path) {
		log.Debug().Str("path", path).Msg("picker: persistent document portal grant")
	}
	return nil
}

// DisplayName returns the file name shown to the user.
func DisplayName(uri string) (string, error) {
	path, err := playback.Path(uri)
	if err != nil {
		return "", err
	}
	name := filepath.Base(path)
	if name == "/" || name == "." {
		return "", fmt.Errorf("no file name in %q", uri)
	}
	return name, nil
}

// IsDocumentPortalPath reports whether path lives in the current user's
// document portal mount.
func IsDocumentPortalPath(path string) bool {
	return strings.HasPrefix(path, fmt.Sprintf("/run/user/%d/doc/", unix.Getuid()))
}
