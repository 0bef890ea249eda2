// Package controller implements the settings screen logic: the single place
// where preferences change, the service is started and stopped, and status
// is assembled for the UI.
package controller

import (
	"context"
	"sync"

	"github.com/micro-nova/unlockchime/internal/config"
	"github.com/micro-nova/unlockchime/internal/events"
	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/rs/zerolog/log"
)

// Service is the unlock listener as seen by the UI.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	State() models.ServiceState
	Running() bool
}

// Picker selects a sound and secures read access to it.
type Picker interface {
	OpenAudio(ctx context.Context) (string, error)
	Grant(uri string) error
}

// Notifier checks notification permission and posts transient notices.
type Notifier interface {
	Permitted(ctx context.Context) bool
	Notice(ctx context.Context, summary, body string) error
}

// UsageAccess is the usage-access grant.
type UsageAccess interface {
	Granted() bool
	Set(granted bool) error
}

// Deps are the collaborators of a Controller. Store, Bus and Service are
// required.
type Deps struct {
	Store       config.Store
	Bus         *events.Bus
	Service     Service
	Picker      Picker
	Notifier    Notifier
	Access      UsageAccess
	DisplayName func(uri string) (string, error)
}

// Controller serialises all user-initiated changes.
// All preference mutations go through apply(), which persists immediately
// and publishes the new status.
type Controller struct {
	mu sync.Mutex
	Deps
}

// New creates a Controller.
func New(deps Deps) *Controller {
	if deps.Bus == nil {
		deps.Bus = events.NewBus()
	}
	return &Controller{Deps: deps}
}

// apply is the core mutation primitive. It loads the stored preferences,
// lets fn modify a copy, writes the copy back and publishes the result.
func (c *Controller) apply(ctx context.Context, fn func(*models.Preferences) error) (models.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, err := c.Store.Load()
	if err != nil {
		return models.Status{}, models.ErrInternal("cannot read preferences: " + err.Error())
	}
	next := *cur
	if err := fn(&next); err != nil {
		return models.Status{}, err
	}
	if err := c.Store.Save(&next); err != nil {
		return models.Status{}, models.ErrInternal("cannot save preferences: " + err.Error())
	}
	st := c.status(ctx, next)
	c.Bus.Publish(models.Event{Status: st})
	return st, nil
}

// Status returns what the settings UI shows.
func (c *Controller) Status(ctx context.Context) models.Status {
	prefs, err := c.Store.Load()
	if err != nil {
		log.Warn().Err(err).Msg("controller: cannot read preferences, showing defaults")
		def := models.DefaultPreferences()
		prefs = &def
	}
	return c.status(ctx, *prefs)
}

func (c *Controller) status(ctx context.Context, prefs models.Preferences) models.Status {
	state := c.Service.State()
	st := models.Status{
		Preferences:  prefs,
		SelectedFile: c.fileLabel(prefs),
		Service:      state,
		Running:      c.Service.Running(),
		StatusLabel:  models.LabelFor(state),
		UsageAccess:  c.Access != nil && c.Access.Granted(),
	}
	if c.Notifier != nil {
		st.Notifications = c.Notifier.Permitted(ctx)
	}
	st.NeedsUsageGrant = prefs.DesktopOnly && !st.UsageAccess
	return st
}

func (c *Controller) fileLabel(prefs models.Preferences) string {
	if !prefs.HasSound() {
		return models.SelectedFileNone
	}
	if c.DisplayName == nil {
		return models.SelectedFilePrefix + models.UnknownFileName
	}
	name, err := c.DisplayName(prefs.SoundURI)
	if err != nil || name == "" {
		return models.SelectedFilePrefix + models.UnknownFileName
	}
	return models.SelectedFilePrefix + name
}

// PublishStatus pushes the current status to subscribers. The service
// calls it on every state change.
func (c *Controller) PublishStatus(ctx context.Context) {
	c.Bus.Publish(models.Event{Status: c.Status(ctx)})
}

// notify publishes a notice alongside the current status and mirrors it to
// the desktop.
func (c *Controller) notify(ctx context.Context, st models.Status, n *models.Notice) models.Result {
	c.Bus.Publish(models.Event{Status: st, Notice: n})
	if c.Notifier != nil && n.Level == models.NoticeWarning {
		if err := c.Notifier.Notice(ctx, "Unlock sound", n.Message); err != nil {
			log.Debug().Err(err).Msg("controller: desktop notice failed")
		}
	}
	return models.Result{Status: st, Notice: n}
}
