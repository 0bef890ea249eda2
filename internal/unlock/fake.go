package unlock

import (
	"context"
	"sync"
	"time"
)

// Fake is an in-process Source. Emit delivers an unlock to the current
// subscriber, if any.
type Fake struct {
	SourceName string
	Err        error

	mu      sync.Mutex
	handler Handler
	subs    int
}

func (f *Fake) Name() string {
	if f.SourceName == "" {
		return "fake"
	}
	return f.SourceName
}

func (f *Fake) Subscribe(ctx context.Context, h Handler) (func(), error) {
	if f.Err != nil {
		return nil, f.Err
	}
	f.mu.Lock()
	f.handler = h
	f.subs++
	f.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			f.mu.Lock()
			f.handler = nil
			f.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return unsub, nil
}

// Emit reports an unlock. It returns false when nobody is subscribed.
func (f *Fake) Emit() bool {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(Event{Source: f.Name(), At: time.Now()})
	return true
}

// Subscribed reports whether a handler is currently registered.
func (f *Fake) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler != nil
}

// Subscriptions counts Subscribe calls that succeeded.
func (f *Fake) Subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs
}
