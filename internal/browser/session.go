package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"couchremote/internal/config"
)

var ErrNoVideo = errors.New("no video element on the current page")

// Session is the browser tab being remote-controlled.
type Session interface {
	Navigate(ctx context.Context, url string) error
	TogglePlayback(ctx context.Context) error
	Title(ctx context.Context) (string, error)
	Close() error
}

/*
RodSession drives a single Chrome tab over the DevTools protocol.

Calls are serialised on one mutex. If the DevTools connection drops, the
session relaunches (or re-attaches) once and retries the call.
*/
type RodSession struct {
	settings config.BrowserSettings

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

var _ Session = (*RodSession)(nil)

// Launch starts Chrome, or attaches to settings.ControlURL, and opens the controlled tab.
func Launch(settings config.BrowserSettings) (*RodSession, error) {
	s := &RodSession{settings: settings}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RodSession) Navigate(ctx context.Context, url string) error {
	return s.withPage(ctx, func(p *rod.Page) error {
		if err := p.Navigate(url); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if err := p.WaitLoad(); err != nil {
			return fmt.Errorf("wait load %s: %w", url, err)
		}
		return nil
	})
}

// TogglePlayback presses Space on the first <video> element.
func (s *RodSession) TogglePlayback(ctx context.Context) error {
	return s.withPage(ctx, func(p *rod.Page) error {
		found, video, err := p.Has("video")
		if err != nil {
			return fmt.Errorf("find video: %w", err)
		}
		if !found {
			return ErrNoVideo
		}
		if err := video.Type(input.Space); err != nil {
			return fmt.Errorf("send space: %w", err)
		}
		return nil
	})
}

func (s *RodSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.withPage(ctx, func(p *rod.Page) error {
		info, err := p.Info()
		if err != nil {
			return fmt.Errorf("page info: %w", err)
		}
		title = info.Title
		return nil
	})
	return title, err
}

func (s *RodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardown()
}

func (s *RodSession) withPage(ctx context.Context, fn func(p *rod.Page) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		if err := s.connect(); err != nil {
			return err
		}
	}

	err := s.run(ctx, fn)
	if !isConnClosed(err) {
		return err
	}

	log.Warn("browser connection lost, relaunching", "error", err)
	_ = s.teardown()
	if err := s.connect(); err != nil {
		return fmt.Errorf("relaunch browser: %w", err)
	}
	return s.run(ctx, fn)
}

func (s *RodSession) run(ctx context.Context, fn func(p *rod.Page) error) error {
	p := s.page.Context(ctx).Timeout(s.settings.Timeout)
	defer p.CancelTimeout()
	return fn(p)
}

func (s *RodSession) connect() error {
	controlURL := s.settings.ControlURL
	if controlURL == "" {
		l := launcher.New().
			Leakless(true).
			Headless(s.settings.Headless).
			Set("disable-background-timer-throttling").
			Set("disable-backgrounding-occluded-windows").
			Set("disable-renderer-backgrounding").
			Set("autoplay-policy", "no-user-gesture-required")
		if s.settings.Bin != "" {
			l = l.Bin(s.settings.Bin)
		}
		if dir := s.settings.ExtensionDir; dir != "" {
			l = l.Set("load-extension", dir).Set("disable-extensions-except", dir)
		}

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch chrome: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	// connect with simple backoff
	var err error
	for i := 0; i < 10; i++ {
		if err = b.Connect(); err == nil {
			break
		}
		time.Sleep(time.Duration(250*(i+1)) * time.Millisecond)
	}
	if err != nil {
		s.killLauncher()
		return fmt.Errorf("browser connect failed: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		s.killLauncher()
		return fmt.Errorf("open controlled tab: %w", err)
	}

	s.browser = b
	s.page = page

	if s.launcher != nil {
		s.closeOtherTabs()
	}

	log.Info("Browser session ready", "attached", s.settings.ControlURL != "", "headless", s.settings.Headless)
	return nil
}

// closeOtherTabs drops start-up tabs, such as the welcome page an extension opens.
func (s *RodSession) closeOtherTabs() {
	pages, err := s.browser.Pages()
	if err != nil {
		log.Warn("list browser tabs failed", "error", err)
		return
	}
	for _, p := range pages {
		if p.TargetID == s.page.TargetID {
			continue
		}
		if err := p.Close(); err != nil {
			log.Debug("close start-up tab failed", "error", err)
		}
	}
}

func (s *RodSession) teardown() error {
	var err error
	switch {
	case s.browser == nil:
	case s.launcher != nil:
		err = rod.Try(func() { s.browser.MustClose() })
	case s.page != nil:
		// Attached to someone else's Chrome: only close our tab.
		err = s.page.Close()
	}

	s.killLauncher()
	s.browser = nil
	s.page = nil
	return err
}

func (s *RodSession) killLauncher() {
	if s.launcher == nil {
		return
	}
	s.launcher.Kill()
	s.launcher = nil
}

func isConnClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "websocket: close") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "broken pipe")
}
