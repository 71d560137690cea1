package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/doridoridoriand/glowping/internal/cycle"
	"github.com/doridoridoriand/glowping/internal/log"
	"github.com/doridoridoriand/glowping/internal/ping"
	"github.com/doridoridoriand/glowping/internal/ring"
)

// Runner runs one cycle.
type Runner interface {
	RunCycle(ctx context.Context) (cycle.Result, error)
}

// Options tunes the watch loop.
type Options struct {
	Interval time.Duration
	// Immediate runs the first cycle at start instead of at the next boundary.
	Immediate bool
	// AfterCycle, if set, is called after every cycle with its outcome.
	AfterCycle func(cycle.Result, error)
}

// Scheduler runs cycles one after another on wall-clock boundaries of the
// interval. Cycles never overlap: a cycle that overruns a boundary pushes
// the next one to the following boundary.
type Scheduler struct {
	mu     sync.Mutex
	opts   Options
	runner Runner
	clock  clockwork.Clock
	logger *log.Logger
	cancel context.CancelFunc
}

// NewScheduler constructs a scheduler instance.
func NewScheduler(opts Options, runner Runner, clock clockwork.Clock, logger *log.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Scheduler{opts: opts, runner: runner, clock: clock, logger: logger}
}

// Run blocks until ctx is cancelled, Stop is called or a cycle fails
// fatally. Non-fatal cycle errors are logged and the loop continues.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	first := s.opts.Immediate
	for {
		if !first {
			timer := s.clock.NewTimer(NextBoundary(s.clock.Now(), s.opts.Interval))
			select {
			case <-runCtx.Done():
				timer.Stop()
				return runCtx.Err()
			case <-timer.Chan():
			}
		}
		first = false

		res, err := s.runner.RunCycle(runCtx)
		if s.opts.AfterCycle != nil {
			s.opts.AfterCycle(res, err)
		}
		if err == nil {
			continue
		}
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return ctxErr
		}
		if Fatal(err) {
			return err
		}
		s.logger.LogError("scheduler", err, map[string]interface{}{"phase": res.Phase.String()})
	}
}

// Stop cancels a running loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Fatal reports errors after which further cycles cannot succeed: the probe
// mechanism is broken or the ring is misconfigured.
func Fatal(err error) bool {
	return errors.Is(err, ping.ErrUnavailable) ||
		errors.Is(err, ring.ErrSlotOutOfRange) ||
		errors.Is(err, ring.ErrNoAttempts)
}

// NextBoundary returns how long to wait from now until the next multiple of
// interval. A time exactly on a boundary waits a full interval.
func NextBoundary(now time.Time, interval time.Duration) time.Duration {
	next := now.Truncate(interval).Add(interval)
	return next.Sub(now)
}
