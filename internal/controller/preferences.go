package controller

import (
	"context"
	"errors"

	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/micro-nova/unlockchime/internal/picker"
	"github.com/rs/zerolog/log"
)

// Notice texts.
const (
	MsgUsageAccessNeeded = "Usage access is required to detect the desktop. Grant it in settings."
	MsgUsageGranted      = "Usage access granted."
	MsgUsageRevoked      = "Usage access revoked."
	MsgFileSelected      = "File selected!"
	MsgNoFileAccess      = "Cannot obtain access to this file."
	MsgNotifyDenied      = "Notification permission is required for the status notification."
	MsgServiceStarted    = "Service started"
	MsgServiceStopped    = "Service stopped"
)

// SetPreference sets one boolean preference and persists it immediately.
func (c *Controller) SetPreference(ctx context.Context, key string, value bool) (models.Result, error) {
	st, err := c.apply(ctx, func(p *models.Preferences) error {
		if err := p.SetBool(key, value); err != nil {
			return models.ErrBadField(key, err.Error())
		}
		return nil
	})
	if err != nil {
		return models.Result{}, err
	}
	return c.usageHint(ctx, st, key == models.KeyDesktopOnly && value), nil
}

// UpdatePreferences applies any subset of the boolean preferences.
func (c *Controller) UpdatePreferences(ctx context.Context, u models.PreferencesUpdate) (models.Result, error) {
	if u.Empty() {
		return models.Result{}, models.ErrBadRequest("no preferences given")
	}
	st, err := c.apply(ctx, func(p *models.Preferences) error {
		u.Apply(p)
		return nil
	})
	if err != nil {
		return models.Result{}, err
	}
	return c.usageHint(ctx, st, u.DesktopOnly != nil && *u.DesktopOnly), nil
}

func (c *Controller) usageHint(ctx context.Context, st models.Status, desktopTurnedOn bool) models.Result {
	if desktopTurnedOn && st.NeedsUsageGrant {
		return c.notify(ctx, st, &models.Notice{Level: models.NoticeWarning, Message: MsgUsageAccessNeeded})
	}
	return models.Result{Status: st}
}

// SelectSound runs the file picker and stores the chosen file. Cancelling
// the picker changes nothing.
func (c *Controller) SelectSound(ctx context.Context) (models.Result, error) {
	if c.Picker == nil {
		return models.Result{}, models.ErrUnavailable("no file picker available")
	}
	uri, err := c.Picker.OpenAudio(ctx)
	if errors.Is(err, picker.ErrCancelled) {
		return models.Result{Status: c.Status(ctx)}, nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("controller: file picker failed")
		return models.Result{}, models.ErrUnavailable("file picker unavailable: " + err.Error())
	}
	return c.SetSoundURI(ctx, uri)
}

// SetSoundURI stores uri as the sound after securing read access to it.
// When access cannot be obtained the stored sound is left unchanged.
func (c *Controller) SetSoundURI(ctx context.Context, uri string) (models.Result, error) {
	if uri == "" {
		return models.Result{}, models.ErrBadField("uri", "uri is required")
	}
	if c.Picker != nil {
		if err := c.Picker.Grant(uri); err != nil {
			log.Warn().Err(err).Str("uri", uri).Msg("controller: cannot obtain file access")
			return c.notify(ctx, c.Status(ctx), &models.Notice{Level: models.NoticeWarning, Message: MsgNoFileAccess}), nil
		}
	}
	st, err := c.apply(ctx, func(p *models.Preferences) error {
		p.SoundURI = uri
		return nil
	})
	if err != nil {
		return models.Result{}, err
	}
	return c.notify(ctx, st, &models.Notice{Level: models.NoticeInfo, Message: MsgFileSelected}), nil
}

// GrantUsageAccess records the user's usage-access decision.
func (c *Controller) GrantUsageAccess(ctx context.Context, granted bool) (models.Result, error) {
	if c.Access == nil {
		return models.Result{}, models.ErrUnavailable("usage tracking unavailable")
	}
	if err := c.Access.Set(granted); err != nil {
		return models.Result{}, models.ErrInternal(err.Error())
	}
	msg := MsgUsageRevoked
	if granted {
		msg = MsgUsageGranted
	}
	return c.notify(ctx, c.Status(ctx), &models.Notice{Level: models.NoticeInfo, Message: msg}), nil
}
