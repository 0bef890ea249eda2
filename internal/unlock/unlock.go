// Package unlock delivers session-unlock notifications from the desktop.
package unlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Event is one observed unlock.
type Event struct {
	Source string
	At     time.Time
}

// Handler receives unlock events. It is called from the source's own
// goroutine.
type Handler func(Event)

// Source is something that can report unlocks.
type Source interface {
	Name() string
	// Subscribe registers h until the returned function is called or ctx
	// is cancelled. The returned function is safe to call more than once.
	Subscribe(ctx context.Context, h Handler) (unsubscribe func(), err error)
}

// ErrNoSource is returned by Multi when no source could be subscribed.
var ErrNoSource = errors.New("no unlock source available")

// sameUnlockWindow is how close two reports from different sources must be
// to count as the same physical unlock.
const sameUnlockWindow = time.Second

// Multi fans in several sources. One unlock is frequently reported by both
// logind and the screensaver; reports from a different source inside
// sameUnlockWindow are folded into the first. Repeated reports from the
// same source are always delivered.
type Multi struct {
	sources []Source
	clock   clockwork.Clock

	mu       sync.Mutex
	lastAt   time.Time
	lastFrom string
}

// NewMulti returns a Source that subscribes to all of sources.
func NewMulti(clock clockwork.Clock, sources ...Source) *Multi {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Multi{sources: sources, clock: clock}
}

func (m *Multi) Name() string { return "multi" }

// Subscribe subscribes to every source and succeeds if at least one did.
func (m *Multi) Subscribe(ctx context.Context, h Handler) (func(), error) {
	var unsubs []func()
	var errs []error
	for _, src := range m.sources {
		unsub, err := src.Subscribe(ctx, func(ev Event) {
			if m.admit(ev) {
				h(ev)
			}
		})
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("unlock: source unavailable")
			errs = append(errs, err)
			continue
		}
		log.Debug().Str("source", src.Name()).Msg("unlock: subscribed")
		unsubs = append(unsubs, unsub)
	}
	if len(unsubs) == 0 {
		return nil, errors.Join(append([]error{ErrNoSource}, errs...)...)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
		})
	}, nil
}

func (m *Multi) admit(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	if m.lastFrom != "" && m.lastFrom != ev.Source && now.Sub(m.lastAt) < sameUnlockWindow {
		return false
	}
	m.lastAt = now
	m.lastFrom = ev.Source
	return true
}
