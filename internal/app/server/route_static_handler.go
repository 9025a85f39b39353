package server

import (
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

const indexFile = "index.html"

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, os.DirFS(h.staticDir), indexFile)
}

// staticFile serves files below <staticDir>/<dir>. Names that would leave the
// directory and directories themselves are reported as missing.
func (h *handlers) staticFile(dir string) http.HandlerFunc {
	root := os.DirFS(filepath.Join(h.staticDir, dir))

	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "*")
		if name == "" || !fs.ValidPath(name) {
			http.NotFound(w, r)
			return
		}

		info, err := fs.Stat(root, name)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}

		http.ServeFileFS(w, r, root, name)
	}
}
