// Package notify posts desktop notifications through the freedesktop
// notification service.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	notifyService = "org.freedesktop.Notifications"
	notifyPath    = "/org/freedesktop/Notifications"
	notifyIface   = "org.freedesktop.Notifications"
)

// caller invokes method on the notification service and stores the reply
// in ret when ret is non-nil.
type caller func(ctx context.Context, method string, ret any, args ...any) error

// Desktop talks to the notification daemon on the session bus.
type Desktop struct {
	AppName string
	Icon    string

	call     caller
	mu       sync.Mutex
	statusID uint32
}

// New returns a notifier that labels notifications with appName.
func New(appName string) *Desktop {
	return &Desktop{AppName: appName, Icon: "audio-volume-high", call: sessionCall}
}

func sessionCall(ctx context.Context, method string, ret any, args ...any) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}
	defer conn.Close()

	call := conn.Object(notifyService, notifyPath).CallWithContext(ctx, notifyIface+"."+method, 0, args...)
	if ret == nil {
		return call.Err
	}
	return call.Store(ret)
}

// Permitted reports whether notifications can be posted at all.
func (d *Desktop) Permitted(ctx context.Context) bool {
	var caps []string
	if err := d.call(ctx, "GetCapabilities", &caps); err != nil {
		log.Debug().Err(err).Msg("notify: notification service unavailable")
		return false
	}
	return true
}

// ShowStatus posts or updates the resident status notification.
func (d *Desktop) ShowStatus(ctx context.Context, summary, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	hints := map[string]dbus.Variant{
		"resident": dbus.MakeVariant(true),
		"urgency":  dbus.MakeVariant(byte(0)),
		"category": dbus.MakeVariant("device"),
	}
	id, err := d.notify(ctx, d.statusID, summary, body, hints, 0)
	if err != nil {
		return err
	}
	d.statusID = id
	return nil
}

// CloseStatus removes the status notification if one is showing.
func (d *Desktop) CloseStatus(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.statusID == 0 {
		return nil
	}
	id := d.statusID
	d.statusID = 0

	if err := d.call(ctx, "CloseNotification", nil, id); err != nil {
		return fmt.Errorf("notify: close: %w", err)
	}
	return nil
}

// Notice posts a short-lived message.
func (d *Desktop) Notice(ctx context.Context, summary, body string) error {
	hints := map[string]dbus.Variant{"transient": dbus.MakeVariant(true)}
	_, err := d.notify(ctx, 0, summary, body, hints, -1)
	return err
}

func (d *Desktop) notify(ctx context.Context, replaces uint32, summary, body string, hints map[string]dbus.Variant, timeout int32) (uint32, error) {
	var id uint32
	err := d.call(ctx, "Notify", &id,
		d.AppName, replaces, d.Icon, summary, body, []string{}, hints, timeout)
	if err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}
	return id, nil
}
