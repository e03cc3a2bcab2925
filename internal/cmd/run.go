package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xucongyong/slotwatch/internal/daemon"
	"github.com/xucongyong/slotwatch/internal/lock"
	"github.com/xucongyong/slotwatch/internal/logging"
	"github.com/xucongyong/slotwatch/internal/probe"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: GroupSupervisor,
	Short:   "Run the supervisor in the foreground (start here)",
	Long: `Run the supervisor until interrupted.

Each cycle asks the availability probe whether a slot is open. When it is,
every config in the config directory is loaded, its profile directory is
created, and each eligible worker is started in filename order with the
stagger delay between starts. Otherwise the poll interval grows by the
backoff multiplier up to its maximum.

SIGINT or SIGTERM stops polling, terminates running workers (SIGTERM, then
SIGKILL after the shutdown grace) and exits. SIGUSR1 skips the current
backoff sleep and polls immediately.

Only one supervisor may run per state directory.

Examples:
  slotwatch run
  slotwatch run --config-dir ./configs --log-format json
  SLOTWATCH_FORCE_AVAILABLE=1 slotwatch run   # dispatch without probing`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	format, err := logging.ParseFormat(logFormatFlag)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Verbose: verboseFlag, Format: format})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	settings, warnings, err := loadSettings()
	for _, w := range warnings {
		logger.Warn(w)
	}
	if err != nil {
		logger.Error("Invalid settings", zap.Error(err))
		return NewSilentExit(1)
	}

	lk := lock.New(settings.StateDir)
	if err := lk.Acquire(settings.ConfigDir); err != nil {
		if errors.Is(err, lock.ErrLocked) {
			logger.Error("Another supervisor is already running",
				zap.String(logging.FieldPath, settings.StateDir),
				zap.String("holder", lk.Status()))
		} else {
			logger.Error("Failed to acquire supervisor lock", zap.Error(err))
		}
		return NewSilentExit(1)
	}
	defer func() {
		if err := lk.Release(); err != nil {
			logger.Warn("Failed to release supervisor lock", zap.Error(err))
		}
	}()

	p, err := probe.FromSettings(settings, logger)
	if err != nil {
		logger.Error("Invalid probe settings", zap.Error(err))
		return NewSilentExit(1)
	}

	d, err := daemon.New(daemon.NewConfig(settings), p, logger)
	if err != nil {
		logger.Error("Cannot create supervisor", zap.Error(err))
		return NewSilentExit(1)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), daemon.StopSignals()...)
	defer stop()

	if pokes := daemon.PokeSignals(); len(pokes) > 0 {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, pokes...)
		defer signal.Stop(sigCh)
		go forwardPokes(ctx, sigCh, d)
	}

	if err := d.Run(ctx); err != nil {
		return NewSilentExit(1)
	}
	return nil
}

func forwardPokes(ctx context.Context, sigCh <-chan os.Signal, d *daemon.Daemon) {
	for {
		select {
		case <-sigCh:
			d.Poke()
		case <-ctx.Done():
			return
		}
	}
}
