package server

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/render"

	"couchremote/internal/browser"
)

func (h *handlers) music(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, r, "missing id", http.StatusBadRequest)
		return
	}

	target := browser.VideoURL(id, r.URL.Query().Get("list"))
	if err := h.browser.Navigate(r.Context(), target); err != nil {
		log.Error("open video failed", "url", target, "error", err)
		writeError(w, r, "browser failed to open video", http.StatusBadGateway)
		return
	}

	log.Info("Changed music", "id", id)
	render.PlainText(w, r, "Change Music . . .")
}

func (h *handlers) link(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, r, "missing url", http.StatusBadRequest)
		return
	}
	if h.links.Blocks(target) {
		log.Warn("blocked link target", "url", target)
		writeError(w, r, "url is blocked", http.StatusForbidden)
		return
	}

	if err := h.browser.Navigate(r.Context(), target); err != nil {
		log.Error("open url failed", "url", target, "error", err)
		writeError(w, r, "browser failed to open url", http.StatusBadGateway)
		return
	}

	render.PlainText(w, r, "Url opened")
}

func (h *handlers) pauseAndPlay(w http.ResponseWriter, r *http.Request) {
	if err := h.browser.TogglePlayback(r.Context()); err != nil {
		if errors.Is(err, browser.ErrNoVideo) {
			writeError(w, r, err.Error(), http.StatusConflict)
			return
		}
		log.Error("toggle playback failed", "error", err)
		writeError(w, r, "browser failed to toggle playback", http.StatusBadGateway)
		return
	}

	render.PlainText(w, r, "Done")
}

func (h *handlers) getTitle(w http.ResponseWriter, r *http.Request) {
	title, err := h.browser.Title(r.Context())
	if err != nil {
		log.Error("read title failed", "error", err)
		writeError(w, r, "browser failed to report title", http.StatusBadGateway)
		return
	}

	render.PlainText(w, r, title)
}
