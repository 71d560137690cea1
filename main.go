package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/doridoridoriand/glowping/internal/cli"
	"github.com/doridoridoriand/glowping/internal/config"
)

const version = "0.1.0"

// flags holds the persistent flags shared by every command.
type flags struct {
	configPath      string
	simulate        bool
	target          cli.OptionalString
	samples         cli.OptionalInt
	brightness      cli.OptionalInt
	stateLog        cli.OptionalString
	metricsTextfile cli.OptionalString
	fast            cli.OptionalBool
	interval        cli.OptionalDuration
	driver          *cli.OptionalChoice
	logLevel        *cli.OptionalChoice
	probeMethod     *cli.OptionalChoice
}

func newFlags() *flags {
	return &flags{
		configPath:  config.DefaultPath,
		driver:      cli.NewOptionalChoice(config.DriverPiGlow, config.DriverGPIO, config.DriverTerm, config.DriverLog),
		logLevel:    cli.NewOptionalChoice("debug", "info", "warn", "error"),
		probeMethod: cli.NewOptionalChoice(config.ProbeAuto, config.ProbeICMP, config.ProbeExec),
	}
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, stdout, stderr io.Writer, d deps) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(newFlags(), d)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "glowping: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(f *flags, d deps) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one probe cycle and update the indicators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, d, func(a *app) error { return a.runOnce(cmd.Context()) })
		},
	}

	root := &cobra.Command{
		Use:           "glowping",
		Short:         "Show router reachability on a PiGlow",
		Long:          "glowping probes a target address a fixed number of times per run and renders attempts, outcomes and a rolling history of recent runs on three legs of indicators.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCmd.RunE,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", f.configPath, "configuration file (TOML)")
	pf.BoolVar(&f.simulate, "simulate", false, "log PiGlow frames instead of writing to the I2C bus")
	pf.Var(&f.target, "target", "address to probe (override config)")
	pf.Var(&f.samples, "samples", "probes per cycle and ring size (override config)")
	pf.Var(&f.brightness, "brightness", "indicator brightness 1-255 (override config)")
	pf.Var(f.driver, "driver", "display driver (override config)")
	pf.Var(&f.stateLog, "state-log", "state log path (override config)")
	pf.Var(f.logLevel, "log-level", "log level (override config)")
	pf.Var(&f.metricsTextfile, "metrics-textfile", "node_exporter textfile to write after each cycle")
	pf.VarPF(&f.fast, "fast", "", "skip every animation hold").NoOptDefVal = "true"
	pf.Var(f.probeMethod, "probe-method", "probe method (override config)")
	pf.VarP(&f.interval, "interval", "i", "watch interval (override config)")

	root.AddCommand(runCmd, newWatchCmd(f, d), newClearCmd(f, d), newStateCmd(f, d), newVersionCmd())
	return root
}

func newWatchCmd(f *flags, d deps) *cobra.Command {
	var immediate bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run cycles on interval boundaries until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, d, func(a *app) error { return a.watch(cmd.Context(), immediate) })
		},
	}
	cmd.Flags().BoolVar(&immediate, "immediate", false, "run the first cycle right away")
	return cmd
}

func newClearCmd(f *flags, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Turn every indicator off",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, d, func(a *app) error { return a.clear() })
		},
	}
}

func newStateCmd(f *flags, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the history state recovered from the state log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, f, d, func(a *app) error { return a.printState(cmd.OutOrStdout()) })
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "glowping version %s\n", version)
		},
	}
}

func buildOverrides(f *flags) config.CLIOverrides {
	return config.CLIOverrides{
		TargetAddress:   f.target.Ptr(),
		Samples:         f.samples.Ptr(),
		Brightness:      f.brightness.Ptr(),
		Driver:          f.driver.Ptr(),
		StateLog:        f.stateLog.Ptr(),
		LogLevel:        f.logLevel.Ptr(),
		MetricsTextfile: f.metricsTextfile.Ptr(),
		Fast:            f.fast.Ptr(),
		ProbeMethod:     f.probeMethod.Ptr(),
		Interval:        f.interval.Ptr(),
	}
}
