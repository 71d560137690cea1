package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/doridoridoriand/glowping/internal/config"
	"github.com/doridoridoriand/glowping/internal/cycle"
	"github.com/doridoridoriand/glowping/internal/led"
	"github.com/doridoridoriand/glowping/internal/log"
	"github.com/doridoridoriand/glowping/internal/metrics"
	"github.com/doridoridoriand/glowping/internal/ping"
	"github.com/doridoridoriand/glowping/internal/scheduler"
	"github.com/doridoridoriand/glowping/internal/state"
	"github.com/doridoridoriand/glowping/internal/ui"
)

// deps are the pieces that touch hardware, the network or the wall clock.
type deps struct {
	clock     clockwork.Clock
	newProber func(cfg *config.Config) (ping.Prober, error)
	newDriver func(cfg *config.Config, simulate bool, logger *log.Logger) (led.Driver, error)
}

func defaultDeps() deps {
	return deps{
		clock:     clockwork.NewRealClock(),
		newProber: newProber,
		newDriver: buildDriver,
	}
}

func newProber(cfg *config.Config) (ping.Prober, error) {
	return ping.New(cfg.Probe.Method, cfg.Probe.Command, cfg.Probe.Timeout.D())
}

func buildDriver(cfg *config.Config, simulate bool, logger *log.Logger) (led.Driver, error) {
	layout := cfg.Layout()
	switch cfg.Display.Driver {
	case config.DriverPiGlow:
		p, err := led.OpenPiGlow(layout, cfg.Display.I2CBus, simulate, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.DriverGPIO:
		g, err := led.OpenGPIO(layout, cfg.Display.GPIOPins)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.DriverTerm:
		p, err := ui.NewPanel(layout, cfg.TargetAddress)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.DriverLog:
		return led.NewMemoryDriver(layout, logger), nil
	default:
		return nil, fmt.Errorf("unknown display driver %q", cfg.Display.Driver)
	}
}

// app is one command invocation: loaded configuration plus its logger.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	deps     deps
	simulate bool
}

// withApp loads configuration, opens the logger and runs fn.
func withApp(cmd *cobra.Command, f *flags, d deps, fn func(*app) error) error {
	explicit := cmd.Flags().Changed("config")
	cfg, err := config.Load(f.configPath, explicit, buildOverrides(f))
	if err != nil {
		log.NewLogger(log.LevelInfo).LogConfigLoad(false, f.configPath, err)
		return fmt.Errorf("load config: %w", err)
	}

	logger, closer := log.Open(log.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Journal:    cfg.Logging.Journal,
	})
	defer closer.Close()
	logger.LogConfigLoad(true, f.configPath, nil)

	return fn(&app{cfg: cfg, logger: logger, deps: d, simulate: f.simulate})
}

func (a *app) openStore() (*state.LogStore, error) {
	r, err := a.cfg.Ring()
	if err != nil {
		return nil, err
	}
	return state.NewLogStore(state.Options{
		Path:      a.cfg.StateLog,
		MaxSizeMB: a.cfg.StateLogMaxSizeMB,
	}, r, a.deps.clock, a.logger), nil
}

// session is everything one or more cycles need.
type session struct {
	driver   led.Driver
	store    *state.LogStore
	recorder *metrics.Recorder
	orch     *cycle.Orchestrator
	panel    *ui.Panel
}

func (a *app) openSession() (*session, error) {
	opts, err := cycle.OptionsFrom(a.cfg)
	if err != nil {
		return nil, err
	}
	prober, err := a.deps.newProber(a.cfg)
	if err != nil {
		return nil, err
	}
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	driver, err := a.deps.newDriver(a.cfg, a.simulate, a.logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open %s display: %w", a.cfg.Display.Driver, err)
	}
	recorder := metrics.NewRecorder()
	s := &session{
		driver:   driver,
		store:    store,
		recorder: recorder,
		orch:     cycle.New(opts, prober, driver, store, a.deps.clock, a.logger, recorder),
	}
	s.panel, _ = driver.(*ui.Panel)
	return s, nil
}

// Close releases the display without changing what it shows.
func (s *session) Close() error {
	return errors.Join(s.driver.Close(), s.store.Close())
}

// attachPanel runs the terminal event loop when the display is a panel.
// Quitting the panel cancels the returned context. done is closed once the
// loop has returned.
func (s *session) attachPanel(ctx context.Context) (context.Context, <-chan struct{}, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	if s.panel == nil {
		close(done)
		return ctx, done, cancel
	}
	go func() {
		defer close(done)
		_ = s.panel.Run(ctx)
		cancel()
	}()
	return ctx, done, cancel
}

func (a *app) afterCycle(s *session, res cycle.Result, err error) {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if werr := s.recorder.WriteTextfile(path); werr != nil {
			a.logger.LogError("metrics", werr, map[string]interface{}{"path": path})
		}
	}
	if s.panel != nil {
		s.panel.Report(res, err)
	}
}

// runOnce runs a single cycle. With the terminal display the result stays
// on screen until the user quits.
func (a *app) runOnce(ctx context.Context) error {
	s, err := a.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, done, cancel := s.attachPanel(ctx)
	defer cancel()

	res, err := s.orch.RunCycle(ctx)
	a.afterCycle(s, res, err)
	if s.panel != nil {
		<-done
	}
	return err
}

// watch runs cycles until the context is cancelled or a cycle fails fatally.
func (a *app) watch(ctx context.Context, immediate bool) error {
	s, err := a.openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, _, cancel := s.attachPanel(ctx)
	defer cancel()

	if listen := a.cfg.Metrics.Listen; listen != "" {
		go func() {
			if err := metrics.Serve(ctx, listen, s.recorder); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.LogError("metrics", err, map[string]interface{}{"listen": listen})
			}
		}()
	}

	sched := scheduler.NewScheduler(scheduler.Options{
		Interval:  a.cfg.Interval.D(),
		Immediate: immediate,
		AfterCycle: func(res cycle.Result, err error) {
			a.afterCycle(s, res, err)
		},
	}, s.orch, a.deps.clock, a.logger)

	a.logger.Info("watching", map[string]interface{}{
		"target":   a.cfg.TargetAddress,
		"interval": a.cfg.Interval.D().String(),
	})
	err = sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) clear() error {
	driver, err := a.deps.newDriver(a.cfg, a.simulate, a.logger)
	if err != nil {
		return fmt.Errorf("open %s display: %w", a.cfg.Display.Driver, err)
	}
	if err := driver.Off(); err != nil {
		driver.Close()
		return err
	}
	return driver.Close()
}

func (a *app) printState(w io.Writer) error {
	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	fmt.Fprintf(w, "%s %s\n", store.Path(), store.Load().String())
	return nil
}
