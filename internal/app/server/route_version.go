package server

import (
	"net/http"

	"couchremote/internal/app/version"
)

func getVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, version.Get())
}
