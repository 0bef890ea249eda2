// Package audio answers questions about the desktop's audio state: which
// output routes exist and whether anything else is currently playing.
package audio

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// Sink is an output device as reported by the sound server.
type Sink struct {
	Name       string
	ActivePort string
	Props      map[string]string
}

// SinkInput is a playback stream attached to a sink.
type SinkInput struct {
	Index  uint32
	Corked bool
	Props  map[string]string
}

// Pulse queries a PulseAudio (or pipewire-pulse) server. Each query opens
// its own connection so a restarted sound server is picked up transparently.
type Pulse struct {
	AppName string
}

func (p Pulse) dial() (*pulse.Client, error) {
	name := p.AppName
	if name == "" {
		name = "unlockchime"
	}
	c, err := pulse.NewClient(pulse.ClientApplicationName(name))
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return c, nil
}

// Sinks lists the output devices.
func (p Pulse) Sinks(ctx context.Context) ([]Sink, error) {
	return withContext(ctx, func() ([]Sink, error) {
		c, err := p.dial()
		if err != nil {
			return nil, err
		}
		defer c.Close()

		var reply proto.GetSinkInfoListReply
		if err := c.RawRequest(&proto.GetSinkInfoList{}, &reply); err != nil {
			return nil, fmt.Errorf("pulse list sinks: %w", err)
		}
		sinks := make([]Sink, 0, len(reply))
		for _, s := range reply {
			if s == nil {
				continue
			}
			sinks = append(sinks, Sink{
				Name:       s.SinkName,
				ActivePort: s.ActivePortName,
				Props:      props(s.Properties),
			})
		}
		return sinks, nil
	})
}

// SinkInputs lists the playback streams.
func (p Pulse) SinkInputs(ctx context.Context) ([]SinkInput, error) {
	return withContext(ctx, func() ([]SinkInput, error) {
		c, err := p.dial()
		if err != nil {
			return nil, err
		}
		defer c.Close()

		var reply proto.GetSinkInputInfoListReply
		if err := c.RawRequest(&proto.GetSinkInputInfoList{}, &reply); err != nil {
			return nil, fmt.Errorf("pulse list sink inputs: %w", err)
		}
		inputs := make([]SinkInput, 0, len(reply))
		for _, in := range reply {
			if in == nil {
				continue
			}
			inputs = append(inputs, SinkInput{
				Index:  in.SinkInputIndex,
				Corked: in.Corked,
				Props:  props(in.Properties),
			})
		}
		return inputs, nil
	})
}

// HeadphonesConnected reports whether any sink is a personal listening
// device.
func (p Pulse) HeadphonesConnected(ctx context.Context) (bool, error) {
	sinks, err := p.Sinks(ctx)
	if err != nil {
		return false, err
	}
	return AnyHeadphoneSink(sinks), nil
}

// OtherAudioPlaying reports whether a stream other than our own is
// actively playing.
func (p Pulse) OtherAudioPlaying(ctx context.Context) (bool, error) {
	inputs, err := p.SinkInputs(ctx)
	if err != nil {
		return false, err
	}
	return AnyForeignStreamPlaying(inputs, os.Getpid()), nil
}

func props(pl proto.PropList) map[string]string {
	out := make(map[string]string, len(pl))
	for k, v := range pl {
		out[k] = strings.TrimRight(v.String(), "\x00")
	}
	return out
}

// AnyHeadphoneSink reports whether any of sinks is wired headphones, a
// wired or USB headset, or a Bluetooth audio device.
func AnyHeadphoneSink(sinks []Sink) bool {
	for _, s := range sinks {
		if IsHeadphoneSink(s) {
			return true
		}
	}
	return false
}

// IsHeadphoneSink classifies one sink.
func IsHeadphoneSink(s Sink) bool {
	switch strings.ToLower(s.Props["device.form_factor"]) {
	case "headphone", "headset", "hands-free":
		return true
	}
	if strings.EqualFold(s.Props["device.bus"], "bluetooth") {
		return true
	}
	if strings.HasPrefix(s.Name, "bluez_output.") || strings.HasPrefix(s.Name, "bluez_sink.") {
		return true
	}
	port := strings.ToLower(s.ActivePort)
	return strings.Contains(port, "headphone") || strings.Contains(port, "headset")
}

// AnyForeignStreamPlaying reports whether an uncorked stream belongs to a
// process other than selfPID.
func AnyForeignStreamPlaying(inputs []SinkInput, selfPID int) bool {
	self := strconv.Itoa(selfPID)
	for _, in := range inputs {
		if in.Corked {
			continue
		}
		if in.Props["application.process.id"] == self {
			continue
		}
		// event sounds and similar short-lived roles are not "music"
		if in.Props["media.role"] == "event" {
			continue
		}
		return true
	}
	return false
}

func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
