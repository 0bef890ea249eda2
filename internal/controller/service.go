package controller

import (
	"context"

	"github.com/micro-nova/unlockchime/internal/models"
	"github.com/rs/zerolog/log"
)

// StartService starts the unlock listener. Missing notification permission
// is reported but does not prevent the start.
func (c *Controller) StartService(ctx context.Context) (models.Result, error) {
	permitted := c.Notifier == nil || c.Notifier.Permitted(ctx)
	if err := c.Service.Start(ctx); err != nil {
		log.Error().Err(err).Msg("controller: service start failed")
		return models.Result{}, models.ErrUnavailable(err.Error())
	}
	st := c.Status(ctx)
	if !permitted {
		return c.notify(ctx, st, &models.Notice{Level: models.NoticeWarning, Message: MsgNotifyDenied}), nil
	}
	return c.notify(ctx, st, &models.Notice{Level: models.NoticeInfo, Message: MsgServiceStarted}), nil
}

// StopService stops the unlock listener.
func (c *Controller) StopService(ctx context.Context) (models.Result, error) {
	c.Service.Stop(ctx)
	return c.notify(ctx, c.Status(ctx), &models.Notice{Level: models.NoticeInfo, Message: MsgServiceStopped}), nil
}
