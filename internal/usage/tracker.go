// Package usage keeps a short history of which application was in the
// foreground and knows which applications are desktop shells.
package usage

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Entry is one application and the last time it was in the foreground.
type Entry struct {
	Package  string
	LastUsed time.Time
}

// Tracker records foreground changes. The application currently in the
// foreground counts as used right now.
type Tracker struct {
	clock clockwork.Clock

	mu      sync.Mutex
	last    map[string]time.Time
	current string
	online  bool
}

// NewTracker returns an empty tracker. A nil clock uses the real clock.
func NewTracker(clock clockwork.Clock) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Tracker{clock: clock, last: make(map[string]time.Time)}
}

// Record notes that pkg is now in the foreground.
func (t *Tracker) Record(pkg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	if t.current != "" {
		t.last[t.current] = now
	}
	t.current = pkg
	if pkg != "" {
		t.last[pkg] = now
	}
	t.online = true
}

// SetOnline marks whether a foreground feed is attached. Queries against an
// offline tracker return nothing.
func (t *Tracker) SetOnline(online bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.online = online
	if !online {
		t.current = ""
	}
}

// Available reports whether foreground changes are being recorded.
func (t *Tracker) Available() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}

// Query returns the applications used within [begin, end], most recent
// first.
func (t *Tracker) Query(begin, end time.Time) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.online {
		return nil
	}
	now := t.clock.Now()
	var out []Entry
	for pkg, at := range t.last {
		if pkg == t.current {
			at = now
		}
		if at.Before(begin) || at.After(end) {
			continue
		}
		out = append(out, Entry{Package: pkg, LastUsed: at})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUsed.Equal(out[j].LastUsed) {
			if out[i].Package == t.current || out[j].Package == t.current {
				return out[i].Package == t.current
			}
			return out[i].Package < out[j].Package
		}
		return out[i].LastUsed.After(out[j].LastUsed)
	})
	return out
}

// Recent returns the most recently used application within window of now.
func (t *Tracker) Recent(window time.Duration) (Entry, bool) {
	now := t.clock.Now()
	entries := t.Query(now.Add(-window), now)
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[0], true
}

