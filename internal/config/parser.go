package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/doridoridoriand/glowping/internal/led"
	"github.com/doridoridoriand/glowping/internal/ring"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GLOWPING_"

// DefaultPath is read when no --config flag is given. Its absence is not an error.
const DefaultPath = "/etc/glowping/glowping.toml"

// Default returns the documented baseline settings.
func Default() *Config {
	return &Config{
		TargetAddress:     "192.168.1.1",
		SampleCount:       6,
		PacketsPerProbe:   1,
		BrightnessOn:      32,
		RingSize:          6,
		HistoryBaseOffset: 12,
		AttemptBaseOffset: 0,
		OutcomeBaseOffset: 6,
		SuccessThreshold:  0.8,
		StateLog:          "/var/log/glowping/state.log",
		StateLogMaxSizeMB: 1,
		Interval:          Duration(10 * time.Minute),
		Probe: ProbeOptions{
			Method:  ProbeAuto,
			Timeout: Duration(2 * time.Second),
			Command: "ping",
		},
		Display: DisplayOptions{
			Driver:               DriverPiGlow,
			I2CBus:               1,
			BlinkHalfPeriod:      Duration(250 * time.Millisecond),
			ProbeInterval:        Duration(time.Second),
			OutcomeHold:          Duration(2500 * time.Millisecond),
			OutcomeBlinks:        6,
			GroupBlinks:          6,
			HistorySuccessBlinks: 2,
			HistoryFailureBlinks: 15,
		},
		Logging: LoggingOptions{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load builds the configuration: defaults, then the TOML file at path, then
// GLOWPING_* environment variables, then CLI overrides. A missing file is
// only an error when explicit is set. The result is validated.
func Load(path string, explicit bool, overrides CLIOverrides) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyCLIOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type envSetter func(cfg *Config, val string) error

var envSetters = map[string]envSetter{
	"TARGET_ADDRESS":    func(c *Config, v string) error { c.TargetAddress = v; return nil },
	"SAMPLE_COUNT":      intSetter(func(c *Config) *int { return &c.SampleCount }),
	"PACKETS_PER_PROBE": intSetter(func(c *Config) *int { return &c.PacketsPerProbe }),
	"BRIGHTNESS_ON":     intSetter(func(c *Config) *int { return &c.BrightnessOn }),
	"RING_SIZE":         intSetter(func(c *Config) *int { return &c.RingSize }),
	"SUCCESS_THRESHOLD": func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.SuccessThreshold = f
		return nil
	},
	"STATE_LOG":                 func(c *Config, v string) error { c.StateLog = v; return nil },
	"INTERVAL":                  durationSetter(func(c *Config) *Duration { return &c.Interval }),
	"PROBE_METHOD":              func(c *Config, v string) error { c.Probe.Method = v; return nil },
	"PROBE_TIMEOUT":             durationSetter(func(c *Config) *Duration { return &c.Probe.Timeout }),
	"PROBE_COMMAND":             func(c *Config, v string) error { c.Probe.Command = v; return nil },
	"DISPLAY_DRIVER":            func(c *Config, v string) error { c.Display.Driver = v; return nil },
	"DISPLAY_I2C_BUS":           intSetter(func(c *Config) *int { return &c.Display.I2CBus }),
	"DISPLAY_GPIO_PINS":         func(c *Config, v string) error { return parsePins(v, &c.Display.GPIOPins) },
	"DISPLAY_FAST":              boolSetter(func(c *Config) *bool { return &c.Display.Fast }),
	"DISPLAY_BLINK_HALF_PERIOD": durationSetter(func(c *Config) *Duration { return &c.Display.BlinkHalfPeriod }),
	"LOGGING_LEVEL":             func(c *Config, v string) error { c.Logging.Level = v; return nil },
	"LOGGING_FILE":              func(c *Config, v string) error { c.Logging.File = v; return nil },
	"LOGGING_JOURNAL":           boolSetter(func(c *Config) *bool { return &c.Logging.Journal }),
	"METRICS_TEXTFILE":          func(c *Config, v string) error { c.Metrics.Textfile = v; return nil },
	"METRICS_LISTEN":            func(c *Config, v string) error { c.Metrics.Listen = v; return nil },
}

func intSetter(field func(*Config) *int) envSetter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func boolSetter(field func(*Config) *bool) envSetter {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func durationSetter(field func(*Config) *Duration) envSetter {
	return func(c *Config, v string) error {
		return field(c).UnmarshalText([]byte(v))
	}
}

func parsePins(v string, dst *[]int) error {
	var pins []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid pin %q", part)
		}
		pins = append(pins, n)
	}
	*dst = pins
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for key, set := range envSetters {
		val, ok := lookup(EnvPrefix + key)
		if !ok || val == "" {
			continue
		}
		if err := set(cfg, val); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
		}
	}
	return nil
}

func applyCLIOverrides(cfg *Config, overrides CLIOverrides) {
	if overrides.TargetAddress != nil {
		cfg.TargetAddress = *overrides.TargetAddress
	}
	if overrides.Samples != nil {
		// One sample per ring slot, so the two move together.
		cfg.SampleCount = *overrides.Samples
		cfg.RingSize = *overrides.Samples
	}
	if overrides.Brightness != nil {
		cfg.BrightnessOn = *overrides.Brightness
	}
	if overrides.Driver != nil {
		cfg.Display.Driver = *overrides.Driver
	}
	if overrides.StateLog != nil {
		cfg.StateLog = *overrides.StateLog
	}
	if overrides.LogLevel != nil {
		cfg.Logging.Level = *overrides.LogLevel
	}
	if overrides.MetricsTextfile != nil {
		cfg.Metrics.Textfile = *overrides.MetricsTextfile
	}
	if overrides.Fast != nil {
		cfg.Display.Fast = *overrides.Fast
	}
	if overrides.ProbeMethod != nil {
		cfg.Probe.Method = *overrides.ProbeMethod
	}
	if overrides.Interval != nil {
		cfg.Interval = Duration(*overrides.Interval)
	}
}

// Validate reports the first setting that cannot work. Every error wraps
// ErrInvalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.TargetAddress) == "" {
		return invalid("target_address is empty")
	}
	if c.RingSize < 3 {
		return invalid("ring_size %d is below 3", c.RingSize)
	}
	if c.SampleCount != c.RingSize {
		return invalid("sample_count %d must equal ring_size %d", c.SampleCount, c.RingSize)
	}
	if c.PacketsPerProbe < 1 {
		return invalid("packets_per_probe %d is below 1", c.PacketsPerProbe)
	}
	if c.BrightnessOn < 1 || c.BrightnessOn > 255 {
		return invalid("brightness_on %d is outside 1..255", c.BrightnessOn)
	}
	if c.SuccessThreshold <= 0 || c.SuccessThreshold > 1 {
		return invalid("success_threshold %g is outside (0,1]", c.SuccessThreshold)
	}
	if c.StateLog == "" {
		return invalid("state_log is empty")
	}
	if c.Logging.File != "" && filepath.Clean(c.Logging.File) == filepath.Clean(c.StateLog) {
		return invalid("logging.file must not be the state_log %s", c.StateLog)
	}
	if err := c.Layout().Validate(); err != nil {
		return invalid("%v", err)
	}

	switch c.Probe.Method {
	case ProbeAuto, ProbeICMP, ProbeExec:
	default:
		return invalid("unknown probe.method %q", c.Probe.Method)
	}
	if c.Probe.Timeout <= 0 {
		return invalid("probe.timeout must be positive")
	}

	switch c.Display.Driver {
	case DriverPiGlow:
		if c.RingSize > 6 {
			return invalid("piglow legs hold 6 lights, ring_size is %d", c.RingSize)
		}
	case DriverGPIO:
		if len(c.Display.GPIOPins) != c.Layout().Size() {
			return invalid("display.gpio_pins lists %d pins, need %d", len(c.Display.GPIOPins), c.Layout().Size())
		}
	case DriverTerm, DriverLog:
	default:
		return invalid("unknown display.driver %q", c.Display.Driver)
	}
	if c.Display.BlinkHalfPeriod < 0 || c.Display.ProbeInterval < 0 || c.Display.OutcomeHold < 0 {
		return invalid("display durations must not be negative")
	}
	if c.Display.OutcomeBlinks < 0 || c.Display.GroupBlinks < 0 ||
		c.Display.HistorySuccessBlinks < 0 || c.Display.HistoryFailureBlinks < 0 {
		return invalid("display blink counts must not be negative")
	}
	if c.Interval <= 0 {
		return invalid("interval must be positive")
	}
	return nil
}

// Layout returns the three display legs.
func (c *Config) Layout() led.Layout {
	return led.NewLayout(c.AttemptBaseOffset, c.OutcomeBaseOffset, c.HistoryBaseOffset, c.RingSize)
}

// Ring returns the history ring.
func (c *Config) Ring() (ring.Ring, error) {
	return ring.New(c.HistoryBaseOffset, c.RingSize)
}

// Brightness returns the configured on level.
func (c *Config) Brightness() uint8 {
	return uint8(c.BrightnessOn)
}
