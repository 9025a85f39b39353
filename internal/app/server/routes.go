package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/sagernet/cors"
	"golang.org/x/sync/errgroup"

	"couchremote/internal/admission"
	"couchremote/internal/browser"
	"couchremote/internal/config"
	"couchremote/internal/geolite"
	"couchremote/internal/mixer"
)

const shutdownTimeout = 5 * time.Second

// Dependencies are the collaborators the routes delegate to.
type Dependencies struct {
	Filter  *admission.Filter
	Browser browser.Session
	Mixer   mixer.Mixer
	Locator *geolite.Locator

	StaticDir     string
	CORSOrigins   []string
	LinkBlocklist config.LinkBlocklist
}

type handlers struct {
	browser   browser.Session
	mixer     mixer.Mixer
	staticDir string
	links     config.LinkBlocklist
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	render.Status(r, status)
	render.JSON(w, r, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, status int) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// NewRouter builds the full handler tree. The admission filter is the
// outermost layer, so it also sees preflights and unknown paths.
func NewRouter(deps Dependencies) http.Handler {
	h := &handlers{
		browser:   deps.Browser,
		mixer:     deps.Mixer,
		staticDir: deps.StaticDir,
		links:     deps.LinkBlocklist,
	}

	router := chi.NewRouter()
	router.Use(admission.Middleware(deps.Filter, logRejection(deps.Locator)))
	router.Use(cors.New(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}).Handler)
	router.Use(middleware.GetHead)
	router.Use(middleware.Recoverer)

	router.Get("/", h.index)
	for _, dir := range []string{"js", "css", "image", "fonts"} {
		router.Get("/"+dir+"/*", h.staticFile(dir))
	}

	router.Get("/music", h.music)
	router.Get("/link", h.link)
	router.Get("/pause_and_play", h.pauseAndPlay)
	router.Get("/get_title", h.getTitle)

	router.Get("/get_volume", h.getVolume)
	router.Get("/set_volume", h.setVolume)

	router.Get("/version", getVersion)

	log.Debug("Routes opened")
	return router
}

func logRejection(locator *geolite.Locator) admission.RejectFunc {
	return func(r *http.Request, addr string) {
		log.Warn("Rejected request from untrusted origin",
			"addr", addr,
			"path", r.URL.Path,
			"country", locator.Country(addr))
	}
}

// OpenRoutes serves handler on addr until ctx is cancelled, then shuts down gracefully.
func OpenRoutes(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Starting couchremote on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		log.Info("API server stopped")
		return nil
	})
	return g.Wait()
}
