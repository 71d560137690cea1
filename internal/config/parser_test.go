package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "glowping.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.TargetAddress != "192.168.1.1" || cfg.SampleCount != 6 || cfg.BrightnessOn != 32 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Display.ProbeInterval.D() != time.Second || cfg.Display.OutcomeHold.D() != 2500*time.Millisecond {
		t.Fatalf("unexpected display timing: %+v", cfg.Display)
	}
	r, err := cfg.Ring()
	if err != nil {
		t.Fatalf("ring: %v", err)
	}
	if r.Base != 12 || r.Size != 6 {
		t.Fatalf("unexpected ring %+v", r)
	}
}

func TestLoadParsesTOML(t *testing.T) {
	configText := `
target_address = "10.0.0.1"
packets_per_probe = 3
brightness_on = 64
success_threshold = 0.5
state_log = "/tmp/glowping.log"
interval = "5m"

[probe]
method = "exec"
timeout = "1500ms"

[display]
driver = "log"
blink_half_period = "100ms"
history_failure_blinks = 4

[logging]
level = "debug"
journal = true

[metrics]
textfile = "/var/lib/node_exporter/glowping.prom"
`
	path := writeTempConfig(t, configText)

	cfg, err := Load(path, true, CLIOverrides{})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.TargetAddress != "10.0.0.1" || cfg.PacketsPerProbe != 3 || cfg.BrightnessOn != 64 {
		t.Fatalf("unexpected top-level values: %+v", cfg)
	}
	if cfg.SuccessThreshold != 0.5 {
		t.Fatalf("expected threshold 0.5, got %g", cfg.SuccessThreshold)
	}
	if cfg.Interval.D() != 5*time.Minute {
		t.Fatalf("expected interval 5m, got %v", cfg.Interval.D())
	}
	if cfg.Probe.Method != ProbeExec || cfg.Probe.Timeout.D() != 1500*time.Millisecond {
		t.Fatalf("unexpected probe options: %+v", cfg.Probe)
	}
	if cfg.Probe.Command != "ping" {
		t.Fatalf("expected default probe command, got %q", cfg.Probe.Command)
	}
	if cfg.Display.Driver != DriverLog || cfg.Display.BlinkHalfPeriod.D() != 100*time.Millisecond {
		t.Fatalf("unexpected display options: %+v", cfg.Display)
	}
	if cfg.Display.HistoryFailureBlinks != 4 || cfg.Display.HistorySuccessBlinks != 2 {
		t.Fatalf("unexpected blink counts: %+v", cfg.Display)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Journal {
		t.Fatalf("unexpected logging options: %+v", cfg.Logging)
	}
	if cfg.Metrics.Textfile != "/var/lib/node_exporter/glowping.prom" {
		t.Fatalf("unexpected metrics textfile %q", cfg.Metrics.Textfile)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := Load(path, false, CLIOverrides{})
	if err != nil {
		t.Fatalf("implicit missing file should fall back to defaults: %v", err)
	}
	if cfg.TargetAddress != Default().TargetAddress {
		t.Fatalf("expected default target, got %q", cfg.TargetAddress)
	}

	if _, err := Load(path, true, CLIOverrides{}); err == nil {
		t.Fatalf("expected error for explicit missing file")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeTempConfig(t, "target_address = \n")
	if _, err := Load(path, true, CLIOverrides{}); err == nil {
		t.Fatalf("expected parse error")
	}

	path = writeTempConfig(t, "[display]\nblink_half_period = \"soon\"\n")
	if _, err := Load(path, true, CLIOverrides{}); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeTempConfig(t, "target_address = \"10.0.0.1\"\n[display]\ndriver = \"log\"\n")
	t.Setenv("GLOWPING_TARGET_ADDRESS", "10.0.0.2")
	t.Setenv("GLOWPING_PROBE_TIMEOUT", "3s")
	t.Setenv("GLOWPING_LOGGING_JOURNAL", "true")

	cfg, err := Load(path, true, CLIOverrides{})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.TargetAddress != "10.0.0.2" {
		t.Fatalf("expected env target, got %q", cfg.TargetAddress)
	}
	if cfg.Probe.Timeout.D() != 3*time.Second {
		t.Fatalf("expected env timeout, got %v", cfg.Probe.Timeout.D())
	}
	if !cfg.Logging.Journal {
		t.Fatalf("expected env journal flag")
	}
}

func TestEnvInvalidValue(t *testing.T) {
	t.Setenv("GLOWPING_RING_SIZE", "six")
	_, err := Load("", false, CLIOverrides{})
	if err == nil || !strings.Contains(err.Error(), "GLOWPING_RING_SIZE") {
		t.Fatalf("expected env error naming the variable, got %v", err)
	}
}

func TestEnvGPIOPins(t *testing.T) {
	cfg := Default()
	lookup := func(key string) (string, bool) {
		if key == "GLOWPING_DISPLAY_GPIO_PINS" {
			return "4, 17,27", true
		}
		return "", false
	}
	if err := applyEnv(cfg, lookup); err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if len(cfg.Display.GPIOPins) != 3 || cfg.Display.GPIOPins[1] != 17 {
		t.Fatalf("unexpected pins %v", cfg.Display.GPIOPins)
	}
}

func TestCLIOverridesWin(t *testing.T) {
	path := writeTempConfig(t, "target_address = \"10.0.0.1\"\n[display]\ndriver = \"term\"\n")
	t.Setenv("GLOWPING_TARGET_ADDRESS", "10.0.0.2")

	target := "10.0.0.3"
	driver := DriverLog
	samples := 5
	fast := true
	interval := time.Minute
	cfg, err := Load(path, true, CLIOverrides{
		TargetAddress: &target,
		Driver:        &driver,
		Samples:       &samples,
		Fast:          &fast,
		Interval:      &interval,
	})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.TargetAddress != target || cfg.Display.Driver != driver {
		t.Fatalf("expected CLI values, got %q/%q", cfg.TargetAddress, cfg.Display.Driver)
	}
	if cfg.SampleCount != 5 || cfg.RingSize != 5 {
		t.Fatalf("expected samples to resize the ring, got %d/%d", cfg.SampleCount, cfg.RingSize)
	}
	if !cfg.Display.Fast || cfg.Interval.D() != time.Minute {
		t.Fatalf("unexpected fast/interval: %v/%v", cfg.Display.Fast, cfg.Interval.D())
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty target", func(c *Config) { c.TargetAddress = " " }, "target_address"},
		{"small ring", func(c *Config) { c.RingSize, c.SampleCount = 2, 2 }, "below 3"},
		{"sample mismatch", func(c *Config) { c.SampleCount = 5 }, "must equal ring_size"},
		{"zero packets", func(c *Config) { c.PacketsPerProbe = 0 }, "packets_per_probe"},
		{"brightness", func(c *Config) { c.BrightnessOn = 300 }, "brightness_on"},
		{"zero threshold", func(c *Config) { c.SuccessThreshold = 0 }, "success_threshold"},
		{"threshold above one", func(c *Config) { c.SuccessThreshold = 1.2 }, "success_threshold"},
		{"overlapping legs", func(c *Config) { c.OutcomeBaseOffset = 3 }, "overlap"},
		{"probe method", func(c *Config) { c.Probe.Method = "tcp" }, "probe.method"},
		{"driver", func(c *Config) { c.Display.Driver = "lcd" }, "display.driver"},
		{"gpio pins", func(c *Config) { c.Display.Driver = DriverGPIO; c.Display.GPIOPins = []int{4, 17} }, "need 18"},
		{"piglow ring", func(c *Config) {
			c.RingSize, c.SampleCount = 7, 7
			c.OutcomeBaseOffset, c.HistoryBaseOffset = 7, 14
		}, "piglow legs hold 6"},
		{"negative blinks", func(c *Config) { c.Display.GroupBlinks = -1 }, "blink counts"},
		{"interval", func(c *Config) { c.Interval = 0 }, "interval"},
		{"log file is state log", func(c *Config) {
			c.StateLog = "/var/log/glowping/state.log"
			c.Logging.File = "/var/log/glowping/../glowping/state.log"
		}, "must not be the state_log"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestLayoutFollowsOffsets(t *testing.T) {
	cfg := Default()
	l := cfg.Layout()
	if l.Attempt.Base != 0 || l.Outcome.Base != 6 || l.History.Base != 12 || l.History.Size != 6 {
		t.Fatalf("unexpected layout %+v", l)
	}
	if cfg.Brightness() != 32 {
		t.Fatalf("unexpected brightness %d", cfg.Brightness())
	}
}
