package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const defaultSettings = `# LED Panels display configuration

[hardware]
width = 64           # single panel width in pixels
height = 32          # single panel height in pixels
chain = 2            # panels chained horizontally
parallel = 4         # panels stacked vertically
gpio_slowdown = 3

[display]
line_height = 24         # athlete row height in pixels
header_line_height = 16  # header row height in pixels
header_rows = 1          # header rows (long names wrap)
interval = 2.0           # seconds per page
font_shift = 0           # raise text baseline by this many pixels
brightness = 1.0         # 0 < brightness <= 1

[fonts]
font_path = ""           # directory with .ttf/.otf fonts; empty uses the built-in face
font_name = ""

[files]
lynx_file = "lynx.evt"
colors_file = "colors.csv"
schedule_file = "lynx.sch"  # optional

[output]
backend = ""             # colorlight, ddp, emulator, nrzled or sim; empty reads the [network] flags

[network]
fpp_enabled = false
fpp_host = "127.0.0.1"
fpp_port = 4048
colorlight_enabled = false
colorlight_interface = "eth0"

[nrzled]
spi_port = ""
freq_khz = 2500
serpentine = true

[keyboard]
enabled = true

[behavior]
once = false

[monitoring]
file_watch_enabled = true
poll_interval = 1.0      # seconds, polling fallback only

[web]
web_enabled = true
web_host = "0.0.0.0"
web_port = 5000
`

// CurrentEvent is the heat on display, persisted across restarts.
type CurrentEvent struct {
	Event int `json:"event"`
	Round int `json:"round"`
	Heat  int `json:"heat"`
}

func (e CurrentEvent) Validate() error {
	for _, f := range []struct {
		name string
		v    int
	}{{"event", e.Event}, {"round", e.Round}, {"heat", e.Heat}} {
		if f.v < 1 {
			return &Error{Section: CurrentEventFile, Key: f.name, Msg: fmt.Sprintf("must be >= 1 (got %d)", f.v)}
		}
	}
	return nil
}

// EnsureDir creates dir and writes default settings.toml and
// current_event.json when they are missing. Existing files are left alone.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: create %s: %w", dir, err)
	}
	settings := filepath.Join(dir, SettingsFile)
	if _, err := os.Stat(settings); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(settings, []byte(defaultSettings), 0644); err != nil {
			return fmt.Errorf("config: write default settings: %w", err)
		}
		log.Info().Str("path", settings).Msg("created default settings")
	}
	current := filepath.Join(dir, CurrentEventFile)
	if _, err := os.Stat(current); errors.Is(err, os.ErrNotExist) {
		if err := SaveCurrentEvent(current, CurrentEvent{Event: 1, Round: 1, Heat: 1}); err != nil {
			return fmt.Errorf("config: write default current event: %w", err)
		}
		log.Info().Str("path", current).Msg("created default current event")
	}
	return nil
}

// LoadDir prepares dir and loads its settings.toml.
func LoadDir(dir string) (*Config, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	c, err := Load(filepath.Join(dir, SettingsFile))
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("dir", dir).
		Int("width", c.TotalWidth()).
		Int("height", c.TotalHeight()).
		Str("lynx", c.Files.LynxFile).
		Str("colors", c.Files.ColorsFile).
		Msg("settings loaded")
	return c, nil
}

func LoadCurrentEvent(path string) (CurrentEvent, error) {
	var e CurrentEvent
	b, err := os.ReadFile(path)
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("config: parse %s: %w", filepath.Base(path), err)
	}
	return e, e.Validate()
}

func SaveCurrentEvent(path string, e CurrentEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, append(b, '\n'))
}
