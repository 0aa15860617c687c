package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"nozomi-tproxy/internal/interrupt"
	"nozomi-tproxy/internal/redirect"
	"nozomi-tproxy/internal/supervisor"
	"nozomi-tproxy/internal/version"
	"nozomi-tproxy/pkg/logger"
)

type options struct {
	configFile   string
	port         uint32
	useTProxy    bool
	pid          uint32
	dryRun       bool
	pollInterval time.Duration
	prefix       string
	cgroupRoot   string
	tproxyAddr   string

	exitCode int
}

type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	opts := &options{}
	rootCmd := newRootCommand(opts)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var uerr *usageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, rootCmd.UsageString())
			os.Exit(supervisor.ExitUsage)
		}
		os.Exit(supervisor.ExitFailure)
	}

	os.Exit(opts.exitCode)
}

func newRootCommand(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nozomi [flags] [--] command [args...]",
		Short: "Route the traffic of one process through a local proxy",
		Long: `nozomi classifies a single process with a net_cls cgroup and installs
iptables rules that send its TCP traffic and DNS queries to a local proxy.

Without --pid the command is spawned and the rules are removed when it
exits. With --pid an existing process is attached until interrupted.`,
		Version:       version.Short(),
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          opts.run,
	}

	flags := rootCmd.Flags()
	flags.SetInterspersed(false)
	flags.StringVarP(&opts.configFile, "config", "c", "", "Config file (yaml/json/.env)")
	flags.Uint32Var(&opts.port, "port", 1081, "Local proxy port")
	flags.BoolVar(&opts.useTProxy, "use-tproxy", false, "Use TPROXY instead of REDIRECT")
	flags.Uint32Var(&opts.pid, "pid", 0, "Attach to an existing process instead of spawning one")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Log the kernel changes without applying them")
	flags.DurationVar(&opts.pollInterval, "poll-interval", 100*time.Millisecond, "Liveness poll interval in attach mode")
	flags.StringVar(&opts.prefix, "prefix", redirect.DefaultPrefix, "Prefix for cgroup and chain names")
	flags.StringVar(&opts.cgroupRoot, "cgroup-root", "", "net_cls hierarchy mount point (overrides config)")
	flags.StringVar(&opts.tproxyAddr, "tproxy-addr", "", "Address the proxy listens on in TPROXY mode (overrides config)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	return rootCmd
}

func (o *options) run(cmd *cobra.Command, args []string) error {
	// Flag values are checked on their own so a bad flag is a usage error
	// and never reaches the container.
	if err := o.apply(cmd.Flags(), supervisor.DefaultConfig()).Validate(); err != nil {
		return &usageError{err: fmt.Errorf("invalid flag: %w", err)}
	}

	var (
		log  logger.Logger
		sup  *supervisor.Supervisor
		intr *interrupt.Handler
	)

	app := fx.New(
		fx.Supply(o.configFile),
		fx.Decorate(o.overrides(cmd.Flags())),

		logger.Module,
		interrupt.Module,
		supervisor.Module,

		fx.WithLogger(logger.NewFxLogger),

		fx.Populate(&log, &sup, &intr),
	)

	if err := app.Start(cmd.Context()); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	runErr := sup.Run(intr.Context(), args)
	o.exitCode = supervisor.ExitCode(runErr)

	var exitErr *supervisor.ExitError
	switch {
	case runErr == nil:
	case errors.Is(runErr, redirect.ErrInconsistentState):
		log.Error("teardown failed, kernel state is inconsistent; inspect iptables, ip rule and the net_cls hierarchy by hand",
			logger.Error(runErr))
	case errors.Is(runErr, supervisor.ErrNoCommand):
		log.Error("a command is required unless --pid is given")
	case errors.As(runErr, &exitErr):
		log.Info("command failed", logger.Int("status", exitErr.Code))
	default:
		log.Error("run failed", logger.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", logger.Error(err))
		if o.exitCode == supervisor.ExitOK {
			o.exitCode = supervisor.ExitFailure
		}
	}

	return nil
}

// apply copies explicitly set flags over cfg.
func (o *options) apply(flags *pflag.FlagSet, cfg *supervisor.Config) *supervisor.Config {
	if flags.Changed("port") {
		cfg.Port = o.port
	}
	if flags.Changed("use-tproxy") {
		cfg.UseTProxy = o.useTProxy
	}
	if flags.Changed("pid") {
		cfg.PID = int(o.pid)
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = o.dryRun
	}
	if flags.Changed("poll-interval") {
		cfg.PollInterval = o.pollInterval
	}
	if flags.Changed("prefix") {
		cfg.Prefix = o.prefix
	}
	if o.cgroupRoot != "" {
		cfg.CgroupRoot = o.cgroupRoot
	}
	if o.tproxyAddr != "" {
		cfg.TProxyAddr = o.tproxyAddr
	}
	return cfg
}

// overrides decorates the loaded config with the flags.
func (o *options) overrides(flags *pflag.FlagSet) func(*supervisor.Config) (*supervisor.Config, error) {
	return func(cfg *supervisor.Config) (*supervisor.Config, error) {
		cfg = o.apply(flags, cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
}
