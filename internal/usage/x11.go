package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/process"
)

// X11Foreground follows the EWMH active window and feeds the owning
// process name into a Tracker.
type X11Foreground struct {
	Tracker *Tracker
	// Resolve maps a pid to a process name. Nil uses the process table.
	Resolve func(ctx context.Context, pid int32) (string, error)
}

// Windows reads the EWMH properties the foreground feed needs.
type Windows interface {
	// Active returns the focused window, 0 when none is.
	Active() (uint32, error)
	// PID returns the process owning win, 0 when unknown.
	PID(win uint32) (uint32, error)
	// IsDesktop reports whether win is the root window or has
	// _NET_WM_WINDOW_TYPE_DESKTOP.
	IsDesktop(win uint32) bool
}

// Run watches the active window until ctx is cancelled. It returns an
// error if no X display can be reached.
func (x *X11Foreground) Run(ctx context.Context) error {
	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("x11: connect: %w", err)
	}
	defer conn.Close()

	wins, err := newX11Windows(conn)
	if err != nil {
		return err
	}

	err = xproto.ChangeWindowAttributesChecked(conn, wins.root, xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		return fmt.Errorf("x11: select root events: %w", err)
	}

	x.Tracker.SetOnline(true)
	defer x.Tracker.SetOnline(false)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	x.Update(ctx, wins)
	for {
		ev, xerr := conn.WaitForEvent()
		if ev == nil && xerr == nil {
			// connection closed
			if ctx.Err() != nil {
				return nil
			}
			return errors.New("x11: connection closed")
		}
		if xerr != nil {
			log.Debug().Str("err", xerr.Error()).Msg("x11: event error")
			continue
		}
		if pn, ok := ev.(xproto.PropertyNotifyEvent); ok && pn.Atom == wins.active {
			x.Update(ctx, wins)
		}
	}
}

// Update records the current foreground application. No focused window,
// the root window and desktop-type windows all record DesktopIdentity.
func (x *X11Foreground) Update(ctx context.Context, wins Windows) {
	win, err := wins.Active()
	if err != nil {
		log.Debug().Err(err).Msg("x11: active window unavailable")
		return
	}
	if win == 0 || wins.IsDesktop(win) {
		x.Tracker.Record(DesktopIdentity)
		return
	}
	pid, err := wins.PID(win)
	if err != nil || pid == 0 {
		return
	}
	name, err := x.resolve(ctx, int32(pid))
	if err != nil {
		log.Debug().Err(err).Uint32("pid", pid).Msg("x11: process name unavailable")
		return
	}
	x.Tracker.Record(name)
}

func (x *X11Foreground) resolve(ctx context.Context, pid int32) (string, error) {
	if x.Resolve != nil {
		return x.Resolve(ctx, pid)
	}
	return ProcessName(ctx, pid)
}

// ProcessName looks up a process's executable name.
func ProcessName(ctx context.Context, pid int32) (string, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", fmt.Errorf("process %d: %w", pid, err)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("process %d name: %w", pid, err)
	}
	return name, nil
}

type x11Windows struct {
	conn        *xgb.Conn
	root        xproto.Window
	active      xproto.Atom
	pid         xproto.Atom
	windowType  xproto.Atom
	typeDesktop xproto.Atom
}

func newX11Windows(conn *xgb.Conn) (*x11Windows, error) {
	w := &x11Windows{conn: conn, root: xproto.Setup(conn).DefaultScreen(conn).Root}
	var err error
	if w.active, err = internAtom(conn, "_NET_ACTIVE_WINDOW"); err != nil {
		return nil, err
	}
	if w.pid, err = internAtom(conn, "_NET_WM_PID"); err != nil {
		return nil, err
	}
	// window types are optional; without them only None and root count
	w.windowType, _ = internAtom(conn, "_NET_WM_WINDOW_TYPE")
	w.typeDesktop, _ = internAtom(conn, "_NET_WM_WINDOW_TYPE_DESKTOP")
	return w, nil
}

func (w *x11Windows) Active() (uint32, error) {
	return windowProperty(w.conn, w.root, w.active, xproto.AtomWindow)
}

func (w *x11Windows) PID(win uint32) (uint32, error) {
	return windowProperty(w.conn, xproto.Window(win), w.pid, xproto.AtomCardinal)
}

func (w *x11Windows) IsDesktop(win uint32) bool {
	if xproto.Window(win) == w.root {
		return true
	}
	if w.windowType == 0 || w.typeDesktop == 0 {
		return false
	}
	reply, err := xproto.GetProperty(w.conn, false, xproto.Window(win), w.windowType, xproto.AtomAtom, 0, 16).Reply()
	if err != nil || reply.Format != 32 {
		return false
	}
	for v := reply.Value; len(v) >= 4; v = v[4:] {
		if xproto.Atom(xgb.Get32(v)) == w.typeDesktop {
			return true
		}
	}
	return false
}

func internAtom(conn *xgb.Conn, name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(conn, true, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("x11: intern %s: %w", name, err)
	}
	if reply.Atom == xproto.AtomNone {
		return 0, fmt.Errorf("x11: window manager does not support %s", name)
	}
	return reply.Atom, nil
}

func windowProperty(conn *xgb.Conn, win xproto.Window, prop, typ xproto.Atom) (uint32, error) {
	reply, err := xproto.GetProperty(conn, false, win, prop, typ, 0, 1).Reply()
	if err != nil {
		return 0, err
	}
	if reply.Format != 32 || len(reply.Value) < 4 {
		return 0, nil
	}
	return xgb.Get32(reply.Value), nil
}
