package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"couchremote/internal/admission"
	"couchremote/internal/app/server"
	"couchremote/internal/app/version"
	"couchremote/internal/browser"
	"couchremote/internal/config"
	"couchremote/internal/geolite"
	"couchremote/internal/mixer"
)

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	hostFlag := flag.String("host", config.DefaultHost, "Address to listen on")
	portFlag := flag.IntP("port", "p", config.DefaultPort, "Port to listen on")
	staticFlag := flag.String("static-dir", config.DefaultStaticDir, "Directory holding index.html and the js/css/image/fonts folders")
	accessFlag := flag.String("access-file", config.DefaultAccessFile, "YAML file listing trusted networks and addresses")
	productionFlag := flag.Bool("production", false, "Run in production mode")
	flag.Parse()

	log.SetLevel(resolveLevel(os.Getenv("LOG_LEVEL"), *productionFlag))

	settings, err := config.Load(config.Flags{
		Host:       *hostFlag,
		Port:       *portFlag,
		StaticDir:  *staticFlag,
		AccessFile: *accessFlag,
	})
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	filter, err := admission.NewFilter(settings.Access.Networks, settings.Access.Addresses)
	if err != nil {
		return fmt.Errorf("build admission filter: %w", err)
	}

	var locator *geolite.Locator
	if settings.GeoLiteDB != "" {
		if locator, err = geolite.Open(settings.GeoLiteDB); err != nil {
			log.Warn("GeoLite lookups disabled", "error", err)
		} else {
			defer closeLogged("geolite database", locator)
		}
	}

	session, err := browser.Launch(settings.Browser)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer closeLogged("browser", session)

	handler := server.NewRouter(server.Dependencies{
		Filter:        filter,
		Browser:       session,
		Mixer:         mixer.NewALSA(settings.Mixer),
		Locator:       locator,
		StaticDir:     settings.StaticDir,
		CORSOrigins:   settings.CORSOrigins,
		LinkBlocklist: settings.LinkBlocklist,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting couchremote", "version", version.Get().BuildVersion, "trusted_networks", len(settings.Access.Networks))
	return server.OpenRoutes(ctx, listenAddr(settings.Host, settings.Port), handler)
}

// closeLogged closes c and reports a failure at warn level.
func closeLogged(name string, c io.Closer) error {
	err := c.Close()
	if err != nil {
		log.Warn("error closing "+name, "error", err)
	}
	return err
}

func listenAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func resolveLevel(raw string, production bool) log.Level {
	if raw != "" {
		if level, err := log.ParseLevel(raw); err == nil {
			return level
		}
		log.Warn("invalid log level override", "value", raw)
	}
	if production {
		return log.InfoLevel
	}
	return log.DebugLevel
}
