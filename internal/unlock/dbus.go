package unlock

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"
)

const (
	login1Service   = "org.freedesktop.login1"
	login1Path      = "/org/freedesktop/login1"
	login1Manager   = "org.freedesktop.login1.Manager"
	login1Session   = "org.freedesktop.login1.Session"
	screenSaverFdo  = "org.freedesktop.ScreenSaver"
	screenSaverGnom = "org.gnome.ScreenSaver"
)

// signalWatch owns a private bus connection and the goroutine that drains
// its signal channel.
type signalWatch struct {
	conn    *dbus.Conn
	ch      chan *dbus.Signal
	matches [][]dbus.MatchOption
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func newSignalWatch(conn *dbus.Conn) *signalWatch {
	return &signalWatch{
		conn: conn,
		ch:   make(chan *dbus.Signal, 10),
		stop: make(chan struct{}),
	}
}

func (w *signalWatch) addMatch(opts ...dbus.MatchOption) error {
	if err := w.conn.AddMatchSignal(opts...); err != nil {
		return err
	}
	w.matches = append(w.matches, opts)
	return nil
}

// run calls fn for each signal until ctx is done or close is called.
func (w *signalWatch) run(ctx context.Context, fn func(*dbus.Signal)) {
	w.conn.Signal(w.ch)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			case sig, ok := <-w.ch:
				if !ok || sig == nil {
					return
				}
				fn(sig)
			}
		}
	}()
}

func (w *signalWatch) close() {
	w.once.Do(func() {
		close(w.stop)
		w.wg.Wait()
		for _, m := range w.matches {
			_ = w.conn.RemoveMatchSignal(m...)
		}
		w.conn.RemoveSignal(w.ch)
		_ = w.conn.Close()
	})
}

// Logind reports Unlock signals emitted by systemd-logind for the user's
// session on the system bus.
type Logind struct {
	// SessionID overrides the session lookup. Empty means $XDG_SESSION_ID,
	// then the session owning this process, then any session.
	SessionID string
}

func (l *Logind) Name() string { return "logind" }

func (l *Logind) Subscribe(ctx context.Context, h Handler) (func(), error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("logind: connect system bus: %w", err)
	}

	path := l.sessionPath(ctx, conn)
	opts := []dbus.MatchOption{
		dbus.WithMatchInterface(login1Session),
		dbus.WithMatchMember("Unlock"),
	}
	if path != "" {
		opts = append(opts, dbus.WithMatchObjectPath(path))
	}

	w := newSignalWatch(conn)
	if err := w.addMatch(opts...); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("logind: add match: %w", err)
	}
	log.Debug().Str("session", string(path)).Msg("unlock: watching logind session")

	w.run(ctx, func(sig *dbus.Signal) {
		if sig.Name != login1Session+".Unlock" {
			return
		}
		if path != "" && sig.Path != path {
			return
		}
		h(Event{Source: l.Name(), At: time.Now()})
	})
	return w.close, nil
}

func (l *Logind) sessionPath(ctx context.Context, conn *dbus.Conn) dbus.ObjectPath {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	mgr := conn.Object(login1Service, login1Path)
	var path dbus.ObjectPath

	id := l.SessionID
	if id == "" {
		id = os.Getenv("XDG_SESSION_ID")
	}
	if id != "" {
		err := mgr.CallWithContext(ctx, login1Manager+".GetSession", 0, id).Store(&path)
		if err == nil {
			return path
		}
		log.Debug().Err(err).Str("id", id).Msg("unlock: GetSession failed")
	}

	err := mgr.CallWithContext(ctx, login1Manager+".GetSessionByPID", 0, uint32(os.Getpid())).Store(&path)
	if err == nil {
		return path
	}
	log.Debug().Err(err).Msg("unlock: process is not in a logind session, watching all sessions")
	return ""
}

// ScreenSaver reports the screensaver becoming inactive on the session bus,
// which desktop environments emit when the lock screen is dismissed.
type ScreenSaver struct{}

func (ScreenSaver) Name() string { return "screensaver" }

func (s ScreenSaver) Subscribe(ctx context.Context, h Handler) (func(), error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("screensaver: connect session bus: %w", err)
	}

	w := newSignalWatch(conn)
	for _, iface := range []string{screenSaverFdo, screenSaverGnom} {
		if err := w.addMatch(
			dbus.WithMatchInterface(iface),
			dbus.WithMatchMember("ActiveChanged"),
		); err != nil {
			w.close()
			return nil, fmt.Errorf("screensaver: add match: %w", err)
		}
	}

	w.run(ctx, func(sig *dbus.Signal) {
		if sig.Name != screenSaverFdo+".ActiveChanged" && sig.Name != screenSaverGnom+".ActiveChanged" {
			return
		}
		if len(sig.Body) < 1 {
			return
		}
		if active, ok := sig.Body[0].(bool); ok && !active {
			h(Event{Source: s.Name(), At: time.Now()})
		}
	})
	return w.close, nil
}
