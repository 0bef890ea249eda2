// Package gates decides whether an unlock should produce a sound.
package gates

import (
	"context"
	"time"

	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/rs/zerolog/log"
)

// probeTimeout bounds each platform query so a hung bus cannot stall the
// unlock handler.
const probeTimeout = 2 * time.Second

// Gate is one playback condition. Pass reports whether the condition
// allows playback. Each gate decides how a failed platform query counts:
// Headphone and Desktop fail closed, OtherAudio ignores probes that error.
type Gate interface {
	Name() string
	Pass(ctx context.Context) bool
}

// Set holds the gate for each boolean preference.
type Set struct {
	Headphone  Gate
	OtherAudio Gate
	Desktop    Gate
}

func (s Set) forKey(key string) Gate {
	switch key {
	case models.KeyHeadphoneOnly:
		return s.Headphone
	case models.KeyNoOtherAudio:
		return s.OtherAudio
	case models.KeyDesktopOnly:
		return s.Desktop
	}
	return nil
}

// Decision is the outcome of evaluating the enabled gates.
type Decision struct {
	Play       bool
	FailedGate string
}

// Evaluate runs the gates enabled in prefs in the order headphone,
// other-audio, desktop and stops at the first one that does not pass.
// Disabled gates are never queried. An enabled preference without a gate
// fails.
func Evaluate(ctx context.Context, prefs models.Preferences, set Set) Decision {
	for _, key := range models.BoolKeys {
		if on, _ := prefs.Bool(key); !on {
			continue
		}
		g := set.forKey(key)
		if g == nil {
			log.Warn().Str("gate", key).Msg("gates: no checker configured")
			return Decision{FailedGate: key}
		}
		if !g.Pass(ctx) {
			log.Debug().Str("gate", g.Name()).Msg("gates: condition not met")
			return Decision{FailedGate: key}
		}
	}
	return Decision{Play: true}
}

// Func adapts a function to a Gate.
type Func struct {
	GateName string
	Fn       func(ctx context.Context) bool
}

func (f Func) Name() string                  { return f.GateName }
func (f Func) Pass(ctx context.Context) bool { return f.Fn(ctx) }
