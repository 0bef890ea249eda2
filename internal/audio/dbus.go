package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	bluezService   = "org.bluez"
	bluezDevice    = "org.bluez.Device1"
	mprisPrefix    = "org.mpris.MediaPlayer2."
	mprisPath      = "/org/mpris/MediaPlayer2"
	mprisPlayer    = "org.mpris.MediaPlayer2.Player"
	propertiesGet  = "org.freedesktop.DBus.Properties.Get"
	managedObjects = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

type managed = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZ answers the headphone question from the Bluetooth stack alone. It
// is the fallback used when no sound server can be reached.
type BlueZ struct{}

// HeadphonesConnected reports whether a connected Bluetooth device
// advertises itself as a headset or headphones.
func (BlueZ) HeadphonesConnected(ctx context.Context) (bool, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return false, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	defer conn.Close()

	var objects managed
	call := conn.Object(bluezService, "/").CallWithContext(ctx, managedObjects, 0)
	if call.Err != nil {
		return false, fmt.Errorf("bluez: managed objects: %w", call.Err)
	}
	if err := call.Store(&objects); err != nil {
		return false, fmt.Errorf("bluez: decode managed objects: %w", err)
	}
	devs := ConnectedHeadphones(objects)
	if len(devs) > 0 {
		log.Debug().Strs("devices", devs).Msg("bluez: headphones connected")
	}
	return len(devs) > 0, nil
}

// ConnectedHeadphones returns the object paths of connected Device1
// objects whose icon names a headset or headphones.
func ConnectedHeadphones(objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant) []string {
	var out []string
	for path, ifaces := range objects {
		props, ok := ifaces[bluezDevice]
		if !ok {
			continue
		}
		connected, _ := variantValue[bool](props["Connected"])
		if !connected {
			continue
		}
		icon, _ := variantValue[string](props["Icon"])
		switch icon {
		case "audio-headset", "audio-headphones":
			out = append(out, string(path))
		}
	}
	return out
}

// MPRIS checks media players on the session bus.
type MPRIS struct{}

// OtherAudioPlaying reports whether any MPRIS player is in the Playing
// state.
func (MPRIS) OtherAudioPlaying(ctx context.Context) (bool, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return false, fmt.Errorf("mpris: connect session bus: %w", err)
	}
	defer conn.Close()

	var names []string
	if err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return false, fmt.Errorf("mpris: list names: %w", err)
	}

	statuses := make(map[string]string)
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		var v dbus.Variant
		err := conn.Object(name, mprisPath).
			CallWithContext(ctx, propertiesGet, 0, mprisPlayer, "PlaybackStatus").
			Store(&v)
		if err != nil {
			log.Debug().Err(err).Str("player", name).Msg("mpris: status unavailable")
			continue
		}
		statuses[name], _ = variantValue[string](v)
	}
	return AnyPlaying(statuses), nil
}

// AnyPlaying reports whether any player status is "Playing".
func AnyPlaying(statuses map[string]string) bool {
	for _, s := range statuses {
		if s == "Playing" {
			return true
		}
	}
	return false
}

func variantValue[T any](v dbus.Variant) (T, bool) {
	t, ok := v.Value().(T)
	return t, ok
}
