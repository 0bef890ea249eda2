package gates

import (
	"context"
	"sync"
	"time"

	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/micro-nova/unlockchime/internal/usage"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// HeadphoneProbe answers whether a personal listening device is attached.
type HeadphoneProbe interface {
	HeadphonesConnected(ctx context.Context) (bool, error)
}

// Headphone passes when headphones are connected. Primary is asked first;
// Legacy only when Primary cannot answer.
type Headphone struct {
	Primary HeadphoneProbe
	Legacy  HeadphoneProbe
}

func (Headphone) Name() string { return models.KeyHeadphoneOnly }

func (h Headphone) Pass(ctx context.Context) bool {
	return h.Connected(ctx)
}

// Connected reports whether headphones are connected. Errors count as
// not connected.
func (h Headphone) Connected(ctx context.Context) bool {
	for _, p := range []HeadphoneProbe{h.Primary, h.Legacy} {
		if p == nil {
			continue
		}
		qctx, cancel := context.WithTimeout(ctx, probeTimeout)
		ok, err := p.HeadphonesConnected(qctx)
		cancel()
		if err != nil {
			log.Debug().Err(err).Msg("gates: headphone probe failed")
			continue
		}
		return ok
	}
	return false
}

// PlaybackProbe answers whether something else is playing audio.
type PlaybackProbe interface {
	OtherAudioPlaying(ctx context.Context) (bool, error)
}

// OtherAudio passes when nothing else is playing.
type OtherAudio struct {
	Probes []PlaybackProbe
}

func (OtherAudio) Name() string { return models.KeyNoOtherAudio }

func (o OtherAudio) Pass(ctx context.Context) bool {
	return !o.Playing(ctx)
}

// Playing reports whether any probe sees active playback. Probes that fail
// are ignored.
func (o OtherAudio) Playing(ctx context.Context) bool {
	for _, p := range o.Probes {
		qctx, cancel := context.WithTimeout(ctx, probeTimeout)
		playing, err := p.OtherAudioPlaying(qctx)
		cancel()
		if err != nil {
			log.Debug().Err(err).Msg("gates: playback probe failed")
			continue
		}
		if playing {
			return true
		}
	}
	return false
}

// UsageGrant reports whether the user has granted usage access.
type UsageGrant interface {
	Granted() bool
}

// RecentUsage returns the most recently used application inside a window.
type RecentUsage interface {
	Recent(window time.Duration) (usage.Entry, bool)
}

// DesktopWindow is how far back the foreground history is consulted.
const DesktopWindow = 10 * time.Second

// Desktop passes when the most recently used application is a launcher.
type Desktop struct {
	Access UsageGrant
	Usage  RecentUsage

	mu        sync.RWMutex
	launchers usage.LauncherSet

	warn rate.Sometimes
}

// NewDesktop returns a desktop gate with an empty launcher set.
func NewDesktop(access UsageGrant, recent RecentUsage) *Desktop {
	return &Desktop{
		Access: access,
		Usage:  recent,
		warn:   rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

func (*Desktop) Name() string { return models.KeyDesktopOnly }

// SetLaunchers replaces the launcher set.
func (d *Desktop) SetLaunchers(set usage.LauncherSet) {
	d.mu.Lock()
	d.launchers = set
	d.mu.Unlock()
}

func (d *Desktop) Pass(ctx context.Context) bool {
	return d.OnDesktop(ctx)
}

// OnDesktop reports whether the user is on the home screen. Without usage
// access it is false and a warning is logged.
func (d *Desktop) OnDesktop(_ context.Context) bool {
	if d.Access == nil || !d.Access.Granted() {
		d.warn.Do(func() {
			log.Warn().Msg("gates: cannot check desktop, usage access not granted")
		})
		return false
	}
	if d.Usage == nil {
		return false
	}
	d.mu.RLock()
	launchers := d.launchers
	d.mu.RUnlock()
	if len(launchers) == 0 {
		return false
	}
	top, ok := d.Usage.Recent(DesktopWindow)
	if !ok {
		return false
	}
	log.Debug().Str("foreground", top.Package).Msg("gates: current foreground app")
	return launchers.Contains(top.Package)
}
