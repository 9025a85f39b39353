package config

import (
	"strings"
	"time"

	"couchremote/internal/support"
)

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 5000
	DefaultStaticDir      = "static"
	DefaultAccessFile     = "data/access.yaml"
	defaultBrowserTimeout = 15 * time.Second
	defaultMixerControl   = "Master"
)

// Settings is resolved once at startup and never mutated afterwards.
type Settings struct {
	Host      string
	Port      int
	StaticDir string

	Access Access

	Browser BrowserSettings
	Mixer   MixerSettings

	// GeoLiteDB points at a GeoLite2 Country database. Empty disables lookups.
	GeoLiteDB string

	CORSOrigins   []string
	LinkBlocklist LinkBlocklist
}

type BrowserSettings struct {
	// ControlURL attaches to an already running Chrome instead of launching one.
	ControlURL   string
	Bin          string
	Headless     bool
	ExtensionDir string
	Timeout      time.Duration
}

type MixerSettings struct {
	Card    string
	Control string
}

// Flags carries values parsed from the command line; env overrides are applied in Load.
type Flags struct {
	Host       string
	Port       int
	StaticDir  string
	AccessFile string
}

func Load(flags Flags) (Settings, error) {
	access, err := LoadAccess(support.GetEnv("ACCESS_FILE", flags.AccessFile))
	if err != nil {
		return Settings{}, err
	}

	port := support.GetEnvInt("PORT", 0)
	if port <= 0 {
		port = flags.Port
	}

	timeout := time.Duration(support.GetEnvInt("BROWSER_TIMEOUT_MS", 0)) * time.Millisecond
	if timeout <= 0 {
		timeout = defaultBrowserTimeout
	}

	return Settings{
		Host:      support.GetEnv("HOST", flags.Host),
		Port:      port,
		StaticDir: support.GetEnv("STATIC_DIR", flags.StaticDir),
		Access:    access,
		Browser: BrowserSettings{
			ControlURL:   support.GetEnv("BROWSER_CONTROL_URL", ""),
			Bin:          support.GetEnv("BROWSER_BIN", ""),
			Headless:     support.GetEnvBool("BROWSER_HEADLESS", false),
			ExtensionDir: support.GetEnv("BROWSER_EXTENSION_DIR", ""),
			Timeout:      timeout,
		},
		Mixer: MixerSettings{
			Card:    support.GetEnv("MIXER_CARD", ""),
			Control: support.GetEnv("MIXER_CONTROL", defaultMixerControl),
		},
		GeoLiteDB:     support.GetEnv("GEOLITE_DB", ""),
		CORSOrigins:   splitList(support.GetEnv("CORS_ORIGINS", "*")),
		LinkBlocklist: NewLinkBlocklist(splitList(support.GetEnv("LINK_BLOCKLIST", ""))),
	}, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
