package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"couchremote/internal/admission"
	"couchremote/internal/browser"
	"couchremote/internal/config"
	"couchremote/internal/mixer"
)

const (
	trustedAddr   = "192.168.1.20:40000"
	untrustedAddr = "140.113.0.1:40000"
)

type fakeBrowser struct {
	mu        sync.Mutex
	navigated []string
	toggles   int
	title     string
	err       error
}

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	return f.err
}

func (f *fakeBrowser) TogglePlayback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles++
	return f.err
}

func (f *fakeBrowser) Title(context.Context) (string, error) {
	return f.title, f.err
}

func (f *fakeBrowser) Close() error { return nil }

func (f *fakeBrowser) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.navigated) + f.toggles
}

type fakeMixer struct {
	volume int
	sets   []int
	err    error
}

func (f *fakeMixer) Volume(context.Context) (int, error) { return f.volume, f.err }

func (f *fakeMixer) SetVolume(_ context.Context, v int) error {
	if v < 0 || v > 100 {
		return mixer.ErrInvalidVolume
	}
	f.sets = append(f.sets, v)
	return f.err
}

var (
	_ browser.Session = (*fakeBrowser)(nil)
	_ mixer.Mixer     = (*fakeMixer)(nil)
)

type fixture struct {
	router  http.Handler
	browser *fakeBrowser
	mixer   *fakeMixer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	staticDir := t.TempDir()
	writeFile(t, filepath.Join(staticDir, "index.html"), "<h1>remote</h1>")
	writeFile(t, filepath.Join(staticDir, "js", "app", "main.js"), "console.log(1)")
	writeFile(t, filepath.Join(staticDir, "secret.txt"), "do not serve")
	require.NoError(t, os.MkdirAll(filepath.Join(staticDir, "css", "themes"), 0o755))

	home, err := admission.ParseRange("192.168.0.0/16")
	require.NoError(t, err)
	filter, err := admission.NewFilter([]admission.Range{home}, []string{"127.0.0.1"})
	require.NoError(t, err)

	f := &fixture{
		browser: &fakeBrowser{title: "Song - YouTube"},
		mixer:   &fakeMixer{volume: 42},
	}
	f.router = NewRouter(Dependencies{
		Filter:        filter,
		Browser:       f.browser,
		Mixer:         f.mixer,
		StaticDir:     staticDir,
		CORSOrigins:   []string{"*"},
		LinkBlocklist: config.NewLinkBlocklist([]string{"blocked.example"}),
	})
	return f
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func (f *fixture) get(target, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestUntrustedOriginNeverReachesCollaborators(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/",
		"/js/app/main.js",
		"/music?id=abc",
		"/link?url=https://example.com",
		"/get_volume",
		"/set_volume?volume=10",
		"/pause_and_play",
		"/get_title",
		"/version",
		"/does-not-exist",
	} {
		rec := f.get(target, untrustedAddr)
		assert.Equal(t, admission.RejectStatus, rec.Code, target)
	}

	assert.Zero(t, f.browser.calls())
	assert.Empty(t, f.mixer.sets)
}

func TestPreflightIsGated(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/get_title", nil)
	req.RemoteAddr = untrustedAddr
	req.Header.Set("Origin", "http://phone.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, admission.RejectStatus, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoopbackLiteralIsTrusted(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/get_title", "127.0.0.1:5555")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Song - YouTube", rec.Body.String())
}

func TestMusic(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/music?id=abc123", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Change Music . . .", rec.Body.String())

	rec = f.get("/music?id=abc123&list=PL9", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{
		"https://www.youtube.com/watch?v=abc123",
		"https://www.youtube.com/watch?v=abc123&list=PL9",
	}, f.browser.navigated)

	rec = f.get("/music", trustedAddr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, f.browser.navigated, 2)
}

func TestMusicBrowserFailure(t *testing.T) {
	f := newFixture(t)
	f.browser.err = errors.New("navigation timed out")

	rec := f.get("/music?id=abc", trustedAddr)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestLink(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/link?url=https%3A%2F%2Fexample.com%2Fwatch%3Fv%3D1", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Url opened", rec.Body.String())
	assert.Equal(t, []string{"https://example.com/watch?v=1"}, f.browser.navigated)

	rec = f.get("/link", trustedAddr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.get("/link?url=https://www.blocked.example/", trustedAddr)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, f.browser.navigated, 1)
}

func TestPauseAndPlay(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/pause_and_play", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Done", rec.Body.String())
	assert.Equal(t, 1, f.browser.toggles)

	f.browser.err = browser.ErrNoVideo
	rec = f.get("/pause_and_play", trustedAddr)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetTitleFailure(t *testing.T) {
	f := newFixture(t)
	f.browser.err = errors.New("target closed")

	rec := f.get("/get_title", trustedAddr)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestVolume(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/get_volume", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = f.get("/set_volume?volume=65", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Done", rec.Body.String())
	assert.Equal(t, []int{65}, f.mixer.sets)

	for _, bad := range []string{"/set_volume", "/set_volume?volume=loud", "/set_volume?volume=150"} {
		rec = f.get(bad, trustedAddr)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
	assert.Equal(t, []int{65}, f.mixer.sets)

	f.mixer.err = errors.New("amixer: not found")
	rec = f.get("/get_volume", trustedAddr)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestStaticFiles(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>remote</h1>", rec.Body.String())

	rec = f.get("/js/app/main.js", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())

	for _, target := range []string{
		"/js/../secret.txt",
		"/js/%2e%2e/secret.txt",
		"/js/missing.js",
		"/css/themes",
		"/fonts/",
	} {
		rec = f.get(target, trustedAddr)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.NotContains(t, rec.Body.String(), "do not serve", target)
	}
}

func TestCORSHeaders(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/get_volume", nil)
	req.RemoteAddr = trustedAddr
	req.Header.Set("Origin", "http://phone.local")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestVersion(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/version", trustedAddr)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dev", body["buildVersion"])
}

func TestOpenRoutesStopsOnCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- OpenRoutes(ctx, "127.0.0.1:0", f.router) }()

	cancel()
	assert.NoError(t, <-done)
}

func TestHeadAnsweredLikeGet(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{"/", "/get_volume", "/js/app/main.js"} {
		req := httptest.NewRequest(http.MethodHead, target, nil)
		req.RemoteAddr = trustedAddr
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, target)
	}

	req := httptest.NewRequest(http.MethodHead, "/", nil)
	req.RemoteAddr = untrustedAddr
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, admission.RejectStatus, rec.Code)
}
