package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// File names inside the config directory.
const (
	SettingsFile     = "settings.toml"
	CurrentEventFile = "current_event.json"
)

// Backend names accepted by [output] backend.
const (
	BackendColorLight = "colorlight"
	BackendDDP        = "ddp"
	BackendEmulator   = "emulator"
	BackendNRZ        = "nrzled"
	BackendSim        = "sim"
)

var Backends = []string{BackendColorLight, BackendDDP, BackendEmulator, BackendNRZ, BackendSim}

type Hardware struct {
	Width        int `toml:"width" yaml:"width"`   // single panel width in pixels
	Height       int `toml:"height" yaml:"height"` // single panel height in pixels
	Chain        int `toml:"chain" yaml:"chain"`
	Parallel     int `toml:"parallel" yaml:"parallel"`
	GPIOSlowdown int `toml:"gpio_slowdown" yaml:"gpio_slowdown"`
}

type Display struct {
	LineHeight       int     `toml:"line_height" yaml:"line_height"`
	HeaderLineHeight int     `toml:"header_line_height" yaml:"header_line_height"`
	HeaderRows       int     `toml:"header_rows" yaml:"header_rows"`
	Interval         float64 `toml:"interval" yaml:"interval"` // seconds per page
	FontShift        int     `toml:"font_shift" yaml:"font_shift"`
	Brightness       float64 `toml:"brightness" yaml:"brightness"` // 0 < b <= 1
}

type Fonts struct {
	FontPath string `toml:"font_path" yaml:"font_path"`
	FontName string `toml:"font_name" yaml:"font_name"`
}

type Files struct {
	LynxFile     string `toml:"lynx_file" yaml:"lynx_file"`
	ColorsFile   string `toml:"colors_file" yaml:"colors_file"`
	ScheduleFile string `toml:"schedule_file" yaml:"schedule_file"`
}

type Output struct {
	Backend string `toml:"backend" yaml:"backend"`
}

type Network struct {
	FPPEnabled          bool   `toml:"fpp_enabled" yaml:"fpp_enabled"`
	FPPHost             string `toml:"fpp_host" yaml:"fpp_host"`
	FPPPort             int    `toml:"fpp_port" yaml:"fpp_port"`
	ColorLightEnabled   bool   `toml:"colorlight_enabled" yaml:"colorlight_enabled"`
	ColorLightInterface string `toml:"colorlight_interface" yaml:"colorlight_interface"`
}

type NRZ struct {
	SPIPort    string `toml:"spi_port" yaml:"spi_port"` // "" = first port
	FreqKHz    int    `toml:"freq_khz" yaml:"freq_khz"`
	Serpentine bool   `toml:"serpentine" yaml:"serpentine"`
}

type Keyboard struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

type Behavior struct {
	Once bool `toml:"once" yaml:"once"`
}

type Monitoring struct {
	FileWatchEnabled bool    `toml:"file_watch_enabled" yaml:"file_watch_enabled"`
	PollInterval     float64 `toml:"poll_interval" yaml:"poll_interval"`
}

type Web struct {
	WebEnabled bool   `toml:"web_enabled" yaml:"web_enabled"`
	WebHost    string `toml:"web_host" yaml:"web_host"`
	WebPort    int    `toml:"web_port" yaml:"web_port"`
}

type Config struct {
	Hardware   Hardware   `toml:"hardware" yaml:"hardware"`
	Display    Display    `toml:"display" yaml:"display"`
	Fonts      Fonts      `toml:"fonts" yaml:"fonts"`
	Files      Files      `toml:"files" yaml:"files"`
	Output     Output     `toml:"output" yaml:"output"`
	Network    Network    `toml:"network" yaml:"network"`
	NRZ        NRZ        `toml:"nrzled" yaml:"nrzled"`
	Keyboard   Keyboard   `toml:"keyboard" yaml:"keyboard"`
	Behavior   Behavior   `toml:"behavior" yaml:"behavior"`
	Monitoring Monitoring `toml:"monitoring" yaml:"monitoring"`
	Web        Web        `toml:"web" yaml:"web"`
}

// Default matches the settings.toml written by EnsureDir.
func Default() *Config {
	return &Config{
		Hardware: Hardware{Width: 64, Height: 32, Chain: 2, Parallel: 4, GPIOSlowdown: 3},
		Display: Display{
			LineHeight:       24,
			HeaderLineHeight: 16,
			HeaderRows:       1,
			Interval:         2.0,
			FontShift:        0,
			Brightness:       1.0,
		},
		Files:      Files{LynxFile: "lynx.evt", ColorsFile: "colors.csv", ScheduleFile: "lynx.sch"},
		Network:    Network{FPPHost: "127.0.0.1", FPPPort: 4048, ColorLightInterface: "eth0"},
		NRZ:        NRZ{FreqKHz: 2500, Serpentine: true},
		Keyboard:   Keyboard{Enabled: true},
		Monitoring: Monitoring{FileWatchEnabled: true, PollInterval: 1.0},
		Web:        Web{WebEnabled: true, WebHost: "0.0.0.0", WebPort: 5000},
	}
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Error names the offending setting.
type Error struct {
	Section string
	Key     string
	Msg     string
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: [%s] %s", e.Section, e.Msg)
	}
	return fmt.Sprintf("config: [%s] %s: %s", e.Section, e.Key, e.Msg)
}

func (e *Error) Unwrap() error { return ErrInvalid }

func invalid(section, key, format string, args ...any) error {
	return &Error{Section: section, Key: key, Msg: fmt.Sprintf(format, args...)}
}

// Load reads a settings file. The format follows the extension: .yaml/.yml
// is YAML, anything else TOML. Keys missing from the file keep their
// Default values.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(b, c)
	} else {
		err = toml.Unmarshal(b, c)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filepath.Base(path), err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = yaml.Marshal(c)
	} else {
		b, err = toml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, b)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Validate checks ranges and that the output backend resolves to exactly one
// choice.
func (c *Config) Validate() error {
	positive := []struct {
		section, key string
		v            int
	}{
		{"hardware", "width", c.Hardware.Width},
		{"hardware", "height", c.Hardware.Height},
		{"hardware", "chain", c.Hardware.Chain},
		{"hardware", "parallel", c.Hardware.Parallel},
		{"display", "line_height", c.Display.LineHeight},
		{"display", "header_line_height", c.Display.HeaderLineHeight},
		{"display", "header_rows", c.Display.HeaderRows},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return invalid(p.section, p.key, "must be a positive integer (got %d)", p.v)
		}
	}
	if c.Hardware.GPIOSlowdown < 0 {
		return invalid("hardware", "gpio_slowdown", "must not be negative (got %d)", c.Hardware.GPIOSlowdown)
	}
	if c.Display.Interval <= 0 {
		return invalid("display", "interval", "must be a positive number (got %g)", c.Display.Interval)
	}
	if c.Display.Brightness <= 0 || c.Display.Brightness > 1 {
		return invalid("display", "brightness", "must be in (0, 1] (got %g)", c.Display.Brightness)
	}
	if c.Files.LynxFile == "" {
		return invalid("files", "lynx_file", "must not be empty")
	}
	if c.Files.ColorsFile == "" {
		return invalid("files", "colors_file", "must not be empty")
	}
	if err := validPort("network", "fpp_port", c.Network.FPPPort); err != nil {
		return err
	}
	if c.Monitoring.PollInterval <= 0 {
		return invalid("monitoring", "poll_interval", "must be a positive number (got %g)", c.Monitoring.PollInterval)
	}
	if c.Web.WebEnabled {
		if err := validPort("web", "web_port", c.Web.WebPort); err != nil {
			return err
		}
	}
	if c.NRZ.FreqKHz < 0 {
		return invalid("nrzled", "freq_khz", "must not be negative (got %d)", c.NRZ.FreqKHz)
	}
	backend, err := c.BackendName()
	if err != nil {
		return err
	}
	switch backend {
	case BackendColorLight:
		if c.Network.ColorLightInterface == "" {
			return invalid("network", "colorlight_interface", "required for the colorlight backend")
		}
	case BackendDDP:
		if c.Network.FPPHost == "" {
			return invalid("network", "fpp_host", "required for the ddp backend")
		}
	}
	return nil
}

func validPort(section, key string, p int) error {
	if p < 1 || p > 65535 {
		return invalid(section, key, "must be a port number 1-65535 (got %d)", p)
	}
	return nil
}

// BackendName resolves the output backend. An explicit [output] backend
// wins; otherwise at most one of the legacy network flags may be set, and
// with neither the terminal emulator is used.
func (c *Config) BackendName() (string, error) {
	if b := strings.ToLower(strings.TrimSpace(c.Output.Backend)); b != "" {
		for _, known := range Backends {
			if b == known {
				return b, nil
			}
		}
		return "", invalid("output", "backend", "unknown backend %q (want one of %s)", b, strings.Join(Backends, ", "))
	}
	switch {
	case c.Network.FPPEnabled && c.Network.ColorLightEnabled:
		return "", invalid("network", "", "fpp_enabled and colorlight_enabled are mutually exclusive")
	case c.Network.ColorLightEnabled:
		return BackendColorLight, nil
	case c.Network.FPPEnabled:
		return BackendDDP, nil
	}
	return BackendEmulator, nil
}

// Override applies command-line choices on top of the file settings and
// validates the result. Empty values leave the setting alone.
func (c *Config) Override(backend, iface string) error {
	if backend != "" {
		c.Output.Backend = backend
	}
	if iface != "" {
		c.Network.ColorLightInterface = iface
	}
	return c.Validate()
}

// TotalWidth is the canvas width across the whole chain.
func (c *Config) TotalWidth() int { return c.Hardware.Width * c.Hardware.Chain }

// TotalHeight is the canvas height across the parallel chains.
func (c *Config) TotalHeight() int { return c.Hardware.Height * c.Hardware.Parallel }

func (c *Config) PageInterval() time.Duration { return seconds(c.Display.Interval) }

func (c *Config) PollInterval() time.Duration { return seconds(c.Monitoring.PollInterval) }

// WebAddr is host:port for the web server.
func (c *Config) WebAddr() string { return fmt.Sprintf("%s:%d", c.Web.WebHost, c.Web.WebPort) }

// Path resolves a data file name against the config directory. Absolute
// names are returned unchanged and "" stays "".
func Path(dir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

// WriteFileAtomic writes b to a temp file next to path and renames it into
// place, so readers never see a partial file.
func WriteFileAtomic(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
