package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/render"

	"couchremote/internal/mixer"
)

func (h *handlers) getVolume(w http.ResponseWriter, r *http.Request) {
	volume, err := h.mixer.Volume(r.Context())
	if err != nil {
		log.Error("read volume failed", "error", err)
		writeError(w, r, "mixer failed to report volume", http.StatusBadGateway)
		return
	}

	render.PlainText(w, r, strconv.Itoa(volume))
}

func (h *handlers) setVolume(w http.ResponseWriter, r *http.Request) {
	volume, err := strconv.Atoi(r.URL.Query().Get("volume"))
	if err != nil {
		writeError(w, r, "volume must be an integer", http.StatusBadRequest)
		return
	}

	if err := h.mixer.SetVolume(r.Context(), volume); err != nil {
		if errors.Is(err, mixer.ErrInvalidVolume) {
			writeError(w, r, err.Error(), http.StatusBadRequest)
			return
		}
		log.Error("set volume failed", "volume", volume, "error", err)
		writeError(w, r, "mixer failed to set volume", http.StatusBadGateway)
		return
	}

	log.Debug("Volume set", "volume", volume)
	render.PlainText(w, r, "Done")
}
