package config

import (
	"errors"
	"time"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Probe methods.
const (
	ProbeAuto = "auto"
	ProbeICMP = "icmp"
	ProbeExec = "exec"
)

// Display drivers.
const (
	DriverPiGlow = "piglow"
	DriverGPIO   = "gpio"
	DriverTerm   = "term"
	DriverLog    = "log"
)

// Duration is a time.Duration read from TOML strings such as "250ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration {
	return time.Duration(d)
}

// ProbeOptions selects and tunes the reachability probe.
type ProbeOptions struct {
	Method  string   `toml:"method"`
	Timeout Duration `toml:"timeout"`
	Command string   `toml:"command"`
}

// DisplayOptions selects the indicator backend and the animation pacing.
type DisplayOptions struct {
	Driver               string   `toml:"driver"`
	I2CBus               int      `toml:"i2c_bus"`
	GPIOPins             []int    `toml:"gpio_pins"`
	Fast                 bool     `toml:"fast"`
	BlinkHalfPeriod      Duration `toml:"blink_half_period"`
	ProbeInterval        Duration `toml:"probe_interval"`
	OutcomeHold          Duration `toml:"outcome_hold"`
	OutcomeBlinks        int      `toml:"outcome_blinks"`
	GroupBlinks          int      `toml:"group_blinks"`
	HistorySuccessBlinks int      `toml:"history_success_blinks"`
	HistoryFailureBlinks int      `toml:"history_failure_blinks"`
}

// LoggingOptions configures the diagnostic log.
type LoggingOptions struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	Journal    bool   `toml:"journal"`
}

// MetricsOptions configures the node_exporter textfile export and, for
// the watch loop, an optional /metrics listener.
type MetricsOptions struct {
	Textfile string `toml:"textfile"`
	Listen   string `toml:"listen"`
}

// Config is the full configuration after defaults, file, environment and
// CLI overrides have been applied.
type Config struct {
	TargetAddress     string   `toml:"target_address"`
	SampleCount       int      `toml:"sample_count"`
	PacketsPerProbe   int      `toml:"packets_per_probe"`
	BrightnessOn      int      `toml:"brightness_on"`
	RingSize          int      `toml:"ring_size"`
	HistoryBaseOffset int      `toml:"history_base_offset"`
	AttemptBaseOffset int      `toml:"attempt_base_offset"`
	OutcomeBaseOffset int      `toml:"outcome_base_offset"`
	SuccessThreshold  float64  `toml:"success_threshold"`
	StateLog          string   `toml:"state_log"`
	StateLogMaxSizeMB int      `toml:"state_log_max_size_mb"`
	Interval          Duration `toml:"interval"`

	Probe   ProbeOptions   `toml:"probe"`
	Display DisplayOptions `toml:"display"`
	Logging LoggingOptions `toml:"logging"`
	Metrics MetricsOptions `toml:"metrics"`
}

// CLIOverrides holds optional CLI values that override file and
// environment values.
type CLIOverrides struct {
	TargetAddress   *string
	Samples         *int
	Brightness      *int
	Driver          *string
	StateLog        *string
	LogLevel        *string
	MetricsTextfile *string
	Fast            *bool
	ProbeMethod     *string
	Interval        *time.Duration
}
