// Package api implements the HTTP settings API and serves the settings page.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/micro-nova/unlockchime/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl   Controller
	events EventBus
	info   func() models.Info
	done   <-chan struct{}
}

// Controller is what the handlers drive.
type Controller interface {
	Status(ctx context.Context) models.Status
	UpdatePreferences(ctx context.Context, u models.PreferencesUpdate) (models.Result, error)
	SelectSound(ctx context.Context) (models.Result, error)
	SetSoundURI(ctx context.Context, uri string) (models.Result, error)
	StartService(ctx context.Context) (models.Result, error)
	StopService(ctx context.Context) (models.Result, error)
	GrantUsageAccess(ctx context.Context, granted bool) (models.Result, error)
}

// EventBus is the interface for subscribing to status events.
type EventBus interface {
	Subscribe(id string) <-chan models.Event
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response. Other errors become 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, appErr)
		return
	}
	writeJSON(w, http.StatusInternalServerError, models.ErrInternal(err.Error()))
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// respond writes the outcome of a controller operation.
func respond(w http.ResponseWriter, res models.Result, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
