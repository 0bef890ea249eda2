package notify

import (
	"context"
	"sync"
	"time"
)

// Recorder is an in-memory notifier for tests.
type Recorder struct {
	Denied bool
	// CloseDelay stands in for the bus round trip of CloseStatus.
	CloseDelay time.Duration

	mu      sync.Mutex
	status  string
	showing bool
	notices []string
}

func (r *Recorder) Permitted(context.Context) bool { return !r.Denied }

func (r *Recorder) ShowStatus(_ context.Context, summary, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = summary
	r.showing = true
	return nil
}

func (r *Recorder) CloseStatus(context.Context) error {
	if r.CloseDelay > 0 {
		time.Sleep(r.CloseDelay)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.showing = false
	return nil
}

func (r *Recorder) Notice(_ context.Context, summary, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, summary+": "+body)
	return nil
}

// Showing reports whether the status notification is up, and its summary.
func (r *Recorder) Showing() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.showing, r.status
}

// Notices returns the transient notices posted so far.
func (r *Recorder) Notices() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notices...)
}
