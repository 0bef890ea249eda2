package api

import (
	_ "embed"
	"net/http"

	"github.com/micro-nova/unlockchime/internal/models"
)

//go:embed web/index.html
var indexHTML []byte

func (h *Handlers) index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexHTML)
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status(r.Context()))
}

func (h *Handlers) patchPreferences(w http.ResponseWriter, r *http.Request) {
	var upd models.PreferencesUpdate
	if err := decode(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.ctrl.UpdatePreferences(r.Context(), upd)
	respond(w, res, err)
}

func (h *Handlers) pickSound(w http.ResponseWriter, r *http.Request) {
	res, err := h.ctrl.SelectSound(r.Context())
	respond(w, res, err)
}

type soundRequest struct {
	URI string `json:"uri"`
}

func (h *Handlers) putSound(w http.ResponseWriter, r *http.Request) {
	var req soundRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.ctrl.SetSoundURI(r.Context(), req.URI)
	respond(w, res, err)
}

func (h *Handlers) startService(w http.ResponseWriter, r *http.Request) {
	res, err := h.ctrl.StartService(r.Context())
	respond(w, res, err)
}

func (h *Handlers) stopService(w http.ResponseWriter, r *http.Request) {
	res, err := h.ctrl.StopService(r.Context())
	respond(w, res, err)
}

type usageAccessRequest struct {
	Granted *bool `json:"granted"`
}

func (h *Handlers) putUsageAccess(w http.ResponseWriter, r *http.Request) {
	var req usageAccessRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Granted == nil {
		writeError(w, models.ErrBadField("granted", "granted is required"))
		return
	}
	res, err := h.ctrl.GrantUsageAccess(r.Context(), *req.Granted)
	respond(w, res, err)
}

func (h *Handlers) getInfo(w http.ResponseWriter, _ *http.Request) {
	if h.info == nil {
		writeJSON(w, http.StatusOK, models.Info{})
		return
	}
	writeJSON(w, http.StatusOK, h.info())
}
