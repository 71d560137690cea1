package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type fileValues struct {
	Packets      int
	Brightness   int
	ThresholdPct int
	HalfPeriodMs int
	Blinks       int
}

func genFileValues() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(1, 5),
		gen.IntRange(1, 255),
		gen.IntRange(1, 100),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 20),
	).Map(func(values []interface{}) fileValues {
		return fileValues{
			Packets:      values[0].(int),
			Brightness:   values[1].(int),
			ThresholdPct: values[2].(int),
			HalfPeriodMs: values[3].(int),
			Blinks:       values[4].(int),
		}
	})
}

func TestPropertyTOMLValuesSurviveLoad(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	props := gopter.NewProperties(params)

	props.Property("file values are loaded as written", prop.ForAll(
		func(v fileValues) bool {
			text := fmt.Sprintf(
				"packets_per_probe = %d\nbrightness_on = %d\nsuccess_threshold = %.2f\n[display]\ndriver = \"log\"\nblink_half_period = \"%dms\"\noutcome_blinks = %d\n",
				v.Packets, v.Brightness, float64(v.ThresholdPct)/100, v.HalfPeriodMs, v.Blinks,
			)
			cfg, err := Load(writeTempConfig(t, text), true, CLIOverrides{})
			if err != nil {
				return false
			}
			return cfg.PacketsPerProbe == v.Packets &&
				cfg.BrightnessOn == v.Brightness &&
				cfg.SuccessThreshold == float64(v.ThresholdPct)/100 &&
				cfg.Display.BlinkHalfPeriod.D() == time.Duration(v.HalfPeriodMs)*time.Millisecond &&
				cfg.Display.OutcomeBlinks == v.Blinks
		},
		genFileValues(),
	))

	props.Property("CLI overrides always win over the file", prop.ForAll(
		func(fileBrightness, cliBrightness int) bool {
			text := fmt.Sprintf("brightness_on = %d\n[display]\ndriver = \"log\"\n", fileBrightness)
			cfg, err := Load(writeTempConfig(t, text), true, CLIOverrides{Brightness: &cliBrightness})
			if err != nil {
				return false
			}
			return cfg.BrightnessOn == cliBrightness
		},
		gen.IntRange(1, 255),
		gen.IntRange(1, 255),
	))

	props.TestingRun(t)
}

func TestPropertyValidateRingSize(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	props := gopter.NewProperties(params)

	props.Property("rings below 3 are rejected", prop.ForAll(
		func(size int) bool {
			cfg := Default()
			cfg.Display.Driver = DriverLog
			cfg.RingSize, cfg.SampleCount = size, size
			cfg.OutcomeBaseOffset, cfg.HistoryBaseOffset = 20, 40
			err := cfg.Validate()
			if size < 3 {
				return err != nil
			}
			return err == nil
		},
		gen.IntRange(-2, 20),
	))

	props.TestingRun(t)
}
