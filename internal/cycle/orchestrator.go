package cycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doridoridoriand/glowping/internal/led"
	"github.com/doridoridoriand/glowping/internal/log"
	"github.com/doridoridoriand/glowping/internal/metrics"
	"github.com/doridoridoriand/glowping/internal/ping"
	"github.com/doridoridoriand/glowping/internal/ring"
	"github.com/doridoridoriand/glowping/internal/state"
)

// Clock supplies wall-clock time and pacing; clockwork.Clock satisfies it.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Orchestrator runs cycles: probe the target, animate the results and fold
// the cycle into the persisted history ring.
type Orchestrator struct {
	opts    Options
	prober  ping.Prober
	driver  led.Driver
	store   state.Store
	clock   Clock
	logger  *log.Logger
	metrics *metrics.Recorder
	player  *led.Player
	phase   Phase
}

// New returns an orchestrator. logger and recorder may be nil.
func New(opts Options, prober ping.Prober, driver led.Driver, store state.Store, clock Clock, logger *log.Logger, recorder *metrics.Recorder) *Orchestrator {
	if logger == nil {
		logger = log.Discard()
	}
	return &Orchestrator{
		opts:    opts,
		prober:  prober,
		driver:  driver,
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: recorder,
		player:  led.NewPlayer(driver, clock, opts.Fast),
	}
}

// Phase returns the phase the last cycle reached.
func (o *Orchestrator) Phase() Phase {
	return o.phase
}

// RunCycle runs one complete cycle. An error means the cycle was aborted:
// every indicator has been forced off and no state was persisted.
func (o *Orchestrator) RunCycle(ctx context.Context) (Result, error) {
	var res Result

	o.enter(PhaseLoad, &res)
	res.Prev = o.store.Load()
	if err := o.player.Play(ctx, o.restoreScript(res.Prev)); err != nil {
		return o.abort(res, fmt.Errorf("restore history: %w", err))
	}
	res.Slot = o.opts.Ring.SlotAt(o.clock.Now())

	o.enter(PhaseProbing, &res)
	if err := o.probe(ctx, &res); err != nil {
		return o.abort(res, err)
	}

	o.enter(PhaseRenderOutcome, &res)
	if err := o.player.Play(ctx, o.outcomeScript(res.Attempts)); err != nil {
		return o.abort(res, fmt.Errorf("render outcome: %w", err))
	}

	results := make([]bool, len(res.Attempts))
	for i, a := range res.Attempts {
		results[i] = a.Succeeded()
	}
	hitRate, success, err := ring.Score(results, o.opts.Threshold)
	if err != nil {
		return o.abort(res, err)
	}
	res.HitRate, res.Success = hitRate, success

	o.enter(PhaseRenderHistory, &res)
	next, err := o.opts.Ring.Advance(res.Prev, res.Slot, success)
	if err != nil {
		return o.abort(res, err)
	}
	res.State = next
	if err := o.player.Play(ctx, o.historyScript(res.Slot, success, next)); err != nil {
		return o.abort(res, fmt.Errorf("render history: %w", err))
	}

	o.enter(PhasePersist, &res)
	if err := o.store.Save(next); err != nil {
		o.logger.LogError("state", err, map[string]interface{}{"state": next.String()})
		return res, err
	}

	o.enter(PhaseDone, &res)
	o.logger.LogCycle(res.Slot, res.HitRate, res.Success, next.String())
	o.metrics.ObserveCycle(o.summarize(res))
	return res, nil
}

func (o *Orchestrator) enter(p Phase, res *Result) {
	o.phase = p
	res.Phase = p
	o.logger.Debug("cycle phase", map[string]interface{}{"phase": p.String()})
}

// probe lights each attempt slot from the outside in and probes once per
// slot. Only a probe that cannot run stops the loop.
func (o *Orchestrator) probe(ctx context.Context, res *Result) error {
	attemptSlots := o.opts.Layout.Attempt.Reversed()
	outcomeSlots := o.opts.Layout.Outcome.Reversed()

	for i, slot := range attemptSlots {
		if err := o.player.Play(ctx, led.Script{led.Set(slot, o.opts.Brightness)}); err != nil {
			return fmt.Errorf("light attempt %d: %w", i, err)
		}

		outcome, err := o.prober.Probe(ctx, o.opts.Target, o.opts.Packets)
		if err != nil {
			return fmt.Errorf("probe attempt %d: %w", i, err)
		}
		o.logger.LogProbeResult(o.opts.Target, i, outcome.Succeeded(), outcome.LossPercent(), outcome.RTT, outcome.Diagnostic)
		res.Attempts = append(res.Attempts, Attempt{
			Index:       i,
			Slot:        slot,
			OutcomeSlot: outcomeSlots[i],
			Outcome:     outcome,
		})

		if err := o.player.Play(ctx, led.Script{led.Hold(o.opts.ProbeInterval)}); err != nil {
			return err
		}
	}
	return nil
}

// restoreScript clears the attempt leg and redraws the history leg from
// the persisted state; drivers that cannot be read back start dark.
func (o *Orchestrator) restoreScript(prev ring.State) led.Script {
	script := led.Script{led.SetGroup(o.opts.Layout.Attempt, led.Off)}
	for _, slot := range o.opts.Layout.History.Slots() {
		level := led.Off
		if prev.On.Has(slot) {
			level = o.opts.Brightness
		}
		script = append(script, led.Set(slot, level))
	}
	return script
}

func (o *Orchestrator) outcomeScript(attempts []Attempt) led.Script {
	var script led.Script
	b, half := o.opts.Brightness, o.opts.BlinkHalfPeriod

	allSucceeded := len(attempts) > 0
	for _, a := range attempts {
		if a.Succeeded() {
			script = script.Then(led.Set(a.OutcomeSlot, b))
			continue
		}
		allSucceeded = false
		script = script.Append(led.Blink(a.OutcomeSlot, b, o.opts.OutcomeBlinks, half))
	}

	group := o.opts.Layout.Outcome
	if allSucceeded {
		script = script.Append(led.BlinkGroup(group, b, o.opts.GroupBlinks, half)).
			Then(led.SetGroup(group, b))
	}
	return script.Then(led.Hold(o.opts.OutcomeHold), led.SetGroup(group, led.Off))
}

// historyScript signals the cycle result on the target slot, leaves the
// slot as the new state has it and clears the slot two behind.
func (o *Orchestrator) historyScript(slot int, success bool, next ring.State) led.Script {
	b, half := o.opts.Brightness, o.opts.BlinkHalfPeriod

	var script led.Script
	if success {
		script = led.Blink(slot, b, o.opts.HistorySuccessBlinks, half)
	} else {
		script = led.Blink(slot, b, o.opts.HistoryFailureBlinks, half)
	}
	// A failed run always ends dark, even when the slot is still in On from
	// an earlier success.
	final := led.Off
	if success {
		final = b
	}
	script = script.Then(led.Set(slot, final))
	for _, cleared := range next.Off.Sorted() {
		script = script.Then(led.Set(cleared, led.Off))
	}
	return script
}

func (o *Orchestrator) abort(res Result, cause error) (Result, error) {
	if err := o.driver.Off(); err != nil {
		o.logger.LogError("led", err, nil)
	}
	if errors.Is(cause, ping.ErrUnavailable) {
		o.metrics.ObserveAbort()
	}
	o.logger.LogError("cycle", cause, map[string]interface{}{"phase": res.Phase.String()})
	return res, cause
}

func (o *Orchestrator) summarize(res Result) metrics.Cycle {
	c := metrics.Cycle{
		At:         o.clock.Now(),
		Slot:       res.Slot,
		HitRate:    res.HitRate,
		Success:    res.Success,
		Attempts:   len(res.Attempts),
		HistoryLit: len(res.State.On),
	}
	for _, a := range res.Attempts {
		c.PacketsAttempted += a.Outcome.Attempted
		c.PacketsReceived += a.Outcome.Received
		if a.Succeeded() {
			c.AttemptsSucceeded++
		}
	}
	return c
}
