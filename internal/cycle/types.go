package cycle

import (
	"fmt"
	"time"

	"github.com/doridoridoriand/glowping/internal/config"
	"github.com/doridoridoriand/glowping/internal/led"
	"github.com/doridoridoriand/glowping/internal/ping"
	"github.com/doridoridoriand/glowping/internal/ring"
)

// Phase is a step of the cycle state machine.
type Phase int

const (
	PhaseLoad Phase = iota
	PhaseProbing
	PhaseRenderOutcome
	PhaseRenderHistory
	PhasePersist
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseLoad:          "load",
	PhaseProbing:       "probing",
	PhaseRenderOutcome: "render-outcome",
	PhaseRenderHistory: "render-history",
	PhasePersist:       "persist",
	PhaseDone:          "done",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Attempt is one probe of the cycle and the lights it drives.
type Attempt struct {
	Index       int
	Slot        int
	OutcomeSlot int
	Outcome     ping.Outcome
}

// Succeeded reports zero packet loss for the attempt.
func (a Attempt) Succeeded() bool {
	return a.Outcome.Succeeded()
}

// Result describes a cycle. On abort it holds whatever was reached.
type Result struct {
	Slot     int
	Attempts []Attempt
	HitRate  float64
	Success  bool
	Prev     ring.State
	State    ring.State
	Phase    Phase
}

// Options are the settings the orchestrator needs from the configuration.
type Options struct {
	Target     string
	Packets    int
	Brightness uint8
	Threshold  float64
	Layout     led.Layout
	Ring       ring.Ring
	Fast       bool

	BlinkHalfPeriod time.Duration
	ProbeInterval   time.Duration
	OutcomeHold     time.Duration

	OutcomeBlinks        int
	GroupBlinks          int
	HistorySuccessBlinks int
	HistoryFailureBlinks int
}

// OptionsFrom extracts orchestrator options from a validated configuration.
func OptionsFrom(cfg *config.Config) (Options, error) {
	r, err := cfg.Ring()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Target:               cfg.TargetAddress,
		Packets:              cfg.PacketsPerProbe,
		Brightness:           cfg.Brightness(),
		Threshold:            cfg.SuccessThreshold,
		Layout:               cfg.Layout(),
		Ring:                 r,
		Fast:                 cfg.Display.Fast,
		BlinkHalfPeriod:      cfg.Display.BlinkHalfPeriod.D(),
		ProbeInterval:        cfg.Display.ProbeInterval.D(),
		OutcomeHold:          cfg.Display.OutcomeHold.D(),
		OutcomeBlinks:        cfg.Display.OutcomeBlinks,
		GroupBlinks:          cfg.Display.GroupBlinks,
		HistorySuccessBlinks: cfg.Display.HistorySuccessBlinks,
		HistoryFailureBlinks: cfg.Display.HistoryFailureBlinks,
	}, nil
}
