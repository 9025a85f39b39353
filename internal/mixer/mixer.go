package mixer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"couchremote/internal/config"
)

var (
	ErrInvalidVolume = errors.New("volume must be between 0 and 100")
	ErrNoReading     = errors.New("mixer reported no volume")

	percentRegex = regexp.MustCompile(`\[(\d{1,3})%\]`)
)

// Mixer reads and sets the host's output volume as a 0-100 percentage.
type Mixer interface {
	Volume(ctx context.Context) (int, error)
	SetVolume(ctx context.Context, volume int) error
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ALSA talks to a simple mixer control through the amixer utility.
type ALSA struct {
	card    string
	control string
	run     commandRunner
}

var _ Mixer = (*ALSA)(nil)

func NewALSA(settings config.MixerSettings) *ALSA {
	control := settings.Control
	if control == "" {
		control = "Master"
	}
	return &ALSA{card: settings.Card, control: control, run: runCommand}
}

// Volume returns the first channel's level, mapped the way alsamixer shows it.
func (a *ALSA) Volume(ctx context.Context) (int, error) {
	out, err := a.run(ctx, "amixer", a.args("get", a.control)...)
	if err != nil {
		return 0, fmt.Errorf("amixer get %s: %w", a.control, err)
	}
	return parseVolume(out)
}

func (a *ALSA) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidVolume, volume)
	}
	if _, err := a.run(ctx, "amixer", a.args("-q", "set", a.control, strconv.Itoa(volume)+"%")...); err != nil {
		return fmt.Errorf("amixer set %s: %w", a.control, err)
	}
	return nil
}

func (a *ALSA) args(rest ...string) []string {
	args := []string{"-M"}
	if a.card != "" {
		args = append(args, "-c", a.card)
	}
	return append(args, rest...)
}

func parseVolume(out []byte) (int, error) {
	m := percentRegex.FindSubmatch(out)
	if m == nil {
		return 0, ErrNoReading
	}
	return strconv.Atoi(string(m[1]))
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
