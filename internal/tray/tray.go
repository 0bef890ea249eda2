// Package tray puts the settings screen into the system tray.
package tray

import (
	"context"
	_ "embed"
	"os/exec"

	"fyne.io/systray"
	"github.com/google/uuid"
	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/rs/zerolog/log"
)

//go:embed icon.png
var icon []byte

// Controller is the subset of the settings controller the menu drives.
type Controller interface {
	Status(ctx context.Context) models.Status
	SetPreference(ctx context.Context, key string, value bool) (models.Result, error)
	SelectSound(ctx context.Context) (models.Result, error)
	StartService(ctx context.Context) (models.Result, error)
	StopService(ctx context.Context) (models.Result, error)
}

// EventBus delivers status changes.
type EventBus interface {
	Subscribe(id string) <-chan models.Event
	Unsubscribe(id string)
}

// Action is a menu entry the user clicked.
type Action int

const (
	ActHeadphoneOnly Action = iota
	ActNoOtherAudio
	ActDesktopOnly
	ActSelectSound
	ActStart
	ActStop
	ActOpenSettings
	ActQuit
)

// View is what the menu shows for a given status.
type View struct {
	HeadphoneOnly bool
	NoOtherAudio  bool
	DesktopOnly   bool
	File          string
	State         string
	CanStart      bool
	CanStop       bool
}

// ViewOf maps a status to menu state.
func ViewOf(st models.Status) View {
	return View{
		HeadphoneOnly: st.Preferences.HeadphoneOnly,
		NoOtherAudio:  st.Preferences.NoOtherAudio,
		DesktopOnly:   st.Preferences.DesktopOnly,
		File:          st.SelectedFile,
		State:         st.StatusLabel,
		CanStart:      st.Service == models.ServiceStopped,
		CanStop:       st.Service != models.ServiceStopped,
	}
}

// Tray runs the menu.
type Tray struct {
	Ctrl        Controller
	Bus         EventBus
	SettingsURL string
	// Open launches the settings page; defaults to xdg-open.
	Open func(url string) error
}

// Handle performs act. checked is the new state for checkbox entries.
func (t *Tray) Handle(ctx context.Context, act Action, checked bool) error {
	var err error
	switch act {
	case ActHeadphoneOnly:
		_, err = t.Ctrl.SetPreference(ctx, models.KeyHeadphoneOnly, checked)
	case ActNoOtherAudio:
		_, err = t.Ctrl.SetPreference(ctx, models.KeyNoOtherAudio, checked)
	case ActDesktopOnly:
		_, err = t.Ctrl.SetPreference(ctx, models.KeyDesktopOnly, checked)
	case ActSelectSound:
		_, err = t.Ctrl.SelectSound(ctx)
	case ActStart:
		_, err = t.Ctrl.StartService(ctx)
	case ActStop:
		_, err = t.Ctrl.StopService(ctx)
	case ActOpenSettings:
		open := t.Open
		if open == nil {
			open = xdgOpen
		}
		err = open(t.SettingsURL)
	}
	return err
}

func xdgOpen(url string) error {
	return exec.Command("xdg-open", url).Start()
}

type menu struct {
	headphone, noOther, desktop *systray.MenuItem
	file, pick                  *systray.MenuItem
	state, start, stop          *systray.MenuItem
	open, quit                  *systray.MenuItem
}

func (m *menu) render(v View) {
	setChecked(m.headphone, v.HeadphoneOnly)
	setChecked(m.noOther, v.NoOtherAudio)
	setChecked(m.desktop, v.DesktopOnly)
	m.file.SetTitle(v.File)
	m.state.SetTitle(v.State)
	setEnabled(m.start, v.CanStart)
	setEnabled(m.stop, v.CanStop)
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}

func setEnabled(item *systray.MenuItem, on bool) {
	if on {
		item.Enable()
	} else {
		item.Disable()
	}
}

// Run shows the tray icon and blocks until Quit is chosen or ctx ends.
// onExit runs after the icon is removed.
func (t *Tray) Run(ctx context.Context, onExit func()) {
	systray.Run(func() { t.onReady(ctx) }, onExit)
}

func (t *Tray) onReady(ctx context.Context) {
	systray.SetIcon(icon)
	systray.SetTitle("Unlock sound")
	systray.SetTooltip("Unlock sound")

	m := &menu{
		headphone: systray.AddMenuItemCheckbox("Only with headphones", "", false),
		noOther:   systray.AddMenuItemCheckbox("Only when no other audio plays", "", false),
		desktop:   systray.AddMenuItemCheckbox("Only on the desktop", "", false),
	}
	systray.AddSeparator()
	m.file = systray.AddMenuItem(models.SelectedFileNone, "")
	m.file.Disable()
	m.pick = systray.AddMenuItem("Select sound…", "Choose the unlock sound")
	systray.AddSeparator()
	m.state = systray.AddMenuItem(models.StatusLabelStopped, "")
	m.state.Disable()
	m.start = systray.AddMenuItem("Start", "Start the unlock listener")
	m.stop = systray.AddMenuItem("Stop", "Stop the unlock listener")
	systray.AddSeparator()
	m.open = systray.AddMenuItem("Open settings", "Open the settings page")
	m.quit = systray.AddMenuItem("Quit", "Quit unlockchime")

	m.render(ViewOf(t.Ctrl.Status(ctx)))

	id := "tray-" + uuid.New().String()
	events := t.Bus.Subscribe(id)

	go func() {
		defer t.Bus.Unsubscribe(id)
		do := func(act Action, checked bool) {
			if err := t.Handle(ctx, act, checked); err != nil {
				log.Warn().Err(err).Int("action", int(act)).Msg("tray: action failed")
			}
		}
		for {
			select {
			case <-ctx.Done():
				systray.Quit()
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				m.render(ViewOf(ev.Status))
			case <-m.headphone.ClickedCh:
				do(ActHeadphoneOnly, !m.headphone.Checked())
			case <-m.noOther.ClickedCh:
				do(ActNoOtherAudio, !m.noOther.Checked())
			case <-m.desktop.ClickedCh:
				do(ActDesktopOnly, !m.desktop.Checked())
			case <-m.pick.ClickedCh:
				go do(ActSelectSound, false)
			case <-m.start.ClickedCh:
				do(ActStart, false)
			case <-m.stop.ClickedCh:
				do(ActStop, false)
			case <-m.open.ClickedCh:
				do(ActOpenSettings, false)
			case <-m.quit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}
