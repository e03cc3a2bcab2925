// Package daemon implements the slotwatch supervisor: a poll loop that asks
// an availability probe whether the opportunity exists and, when it does,
// launches one worker process per eligible config with a fixed stagger.
//
// All supervisor state (process registry, cooldown ledger, backoff) is owned
// by the goroutine running Daemon.Run. Worker exits arrive as messages on a
// channel and are applied by that goroutine while it waits.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xucongyong/slotwatch/internal/logging"
	"github.com/xucongyong/slotwatch/internal/probe"
	"github.com/xucongyong/slotwatch/internal/runlog"
	"github.com/xucongyong/slotwatch/internal/workercfg"
)

// Daemon is the supervisor.
type Daemon struct {
	config *Config
	logger *zap.Logger
	probe  probe.Probe
	runlog *runlog.Logger
	now    func() time.Time

	registry *registry
	ledger   *ledger
	backoff  *Backoff

	exits chan exitEvent
	pokes chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup

	startedAt  time.Time
	cycles     int64
	lastCheck  time.Time
	lastResult string
	lastError  string
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithClock replaces the wall clock used for cooldowns and timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// WithRunLog overrides the lifecycle log. By default one is opened in the
// state directory; nil disables it.
func WithRunLog(l *runlog.Logger) Option {
	return func(d *Daemon) { d.runlog = l }
}

// New creates a supervisor. It does not touch the filesystem.
func New(config *Config, p probe.Probe, logger *zap.Logger, opts ...Option) (*Daemon, error) {
	if len(config.WorkerCommand) == 0 {
		return nil, errors.New("worker command is empty")
	}
	if p == nil {
		return nil, errors.New("probe is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Daemon{
		config:   config,
		logger:   logger,
		probe:    p,
		now:      time.Now,
		registry: newRegistry(),
		ledger:   newLedger(),
		backoff:  NewBackoff(config.PollIntervalMin, config.PollIntervalMax, config.BackoffMultiplier),
		exits:    make(chan exitEvent),
		pokes:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	if config.StateDir != "" {
		d.runlog = runlog.NewLogger(config.StateDir)
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Poke cuts the current backoff sleep short. Safe to call from any goroutine.
func (d *Daemon) Poke() {
	select {
	case d.pokes <- struct{}{}:
	default:
	}
}

// Run executes the poll loop until ctx is cancelled. It returns an error only
// when the supervisor cannot start; per-cycle failures are logged and retried.
// On return every worker it launched has been stopped.
func (d *Daemon) Run(ctx context.Context) error {
	if err := workercfg.EnsureConfigDir(d.config.ConfigDir); err != nil {
		d.logger.Error("Cannot start supervisor", zap.Error(err))
		return err
	}
	if d.config.WorkerLogDir != "" {
		if err := os.MkdirAll(d.config.WorkerLogDir, 0755); err != nil {
			d.logger.Warn("Failed to create worker log directory",
				zap.String(logging.FieldPath, d.config.WorkerLogDir), zap.Error(err))
		}
	}

	d.startedAt = d.now()
	d.logger.Info("Supervisor starting",
		zap.String("config_dir", d.config.ConfigDir),
		zap.Strings("worker_command", d.config.WorkerCommand),
		zap.Duration("poll_interval_min", d.config.PollIntervalMin),
		zap.Duration("poll_interval_max", d.config.PollIntervalMax),
		zap.Duration("stagger", d.config.WorkerStagger))

	var watcher *ConfigWatcher
	if d.config.WatchConfigs {
		watcher = NewConfigWatcher(d.config.ConfigDir, d.logger)
		if err := watcher.Start(); err != nil {
			d.logger.Warn("Config watcher disabled", zap.Error(err))
			watcher = nil
		}
	}

	for ctx.Err() == nil {
		d.cycle(ctx)
		if !d.wait(ctx, d.backoff.Current()) {
			break
		}
	}

	d.shutdown()
	if watcher != nil {
		watcher.Stop()
	}
	d.saveState()
	d.logger.Info("Supervisor stopped")
	return nil
}

// cycle runs one Polling step. Nothing inside it can stop the loop.
func (d *Daemon) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.lastResult = ResultError
			d.lastError = fmt.Sprint(r)
			d.logger.Error("Poll loop error",
				zap.Any("panic", r),
				zap.Stack("stack"),
				zap.Duration("next_check_in", d.backoff.Next()))
			d.saveState()
		}
	}()

	d.cycles++
	d.lastCheck = d.now()
	available, err := d.checkAvailability(ctx)
	if ctx.Err() != nil {
		return
	}

	switch {
	case err != nil:
		d.lastResult, d.lastError = ResultError, err.Error()
		d.logger.Error("Availability check failed", zap.Error(err))
		d.logger.Info("No opportunity available", zap.Duration("next_check_in", d.backoff.Next()))
	case !available:
		d.lastResult, d.lastError = ResultUnavailable, ""
		d.logger.Info("No opportunity available", zap.Duration("next_check_in", d.backoff.Next()))
	default:
		d.lastResult, d.lastError = ResultAvailable, ""
		if err := d.dispatch(ctx); err != nil {
			d.lastResult, d.lastError = ResultError, err.Error()
			d.logger.Error("Poll loop error",
				zap.Error(err),
				zap.Duration("next_check_in", d.backoff.Next()))
		} else {
			d.backoff.Reset()
		}
	}
	d.saveState()
}

// checkAvailability runs the probe on its own goroutine so exits keep being
// applied while it is in flight. Probe panics become errors.
func (d *Daemon) checkAvailability(ctx context.Context) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("probe panicked: %v", r)}
			}
		}()
		ok, err := d.probe.Check(ctx)
		done <- result{ok, err}
	}()

	for {
		select {
		case r := <-done:
			if r.err != nil {
				return false, r.err
			}
			return r.ok, nil
		case ev := <-d.exits:
			d.handleExit(ev)
		case <-ctx.Done():
			// The probe goroutine sees the same ctx and finishes on its own.
			return false, ctx.Err()
		}
	}
}

// dispatch is the Available branch: discover configs, prepare profiles and
// launch every eligible worker in discovery order.
func (d *Daemon) dispatch(ctx context.Context) error {
	d.logger.Info("Opportunity available, dispatching workers")

	entries, failed, err := workercfg.Discover(d.config.ConfigDir)
	if err != nil {
		return fmt.Errorf("discovering worker configs: %w", err)
	}
	for _, le := range failed {
		d.logger.Error("Failed to load config file",
			zap.String(logging.FieldPath, le.Path),
			zap.Error(le.Err),
			zap.Strings("issues", le.Issues))
	}

	for _, entry := range d.prepareProfiles(entries) {
		if ctx.Err() != nil {
			return nil
		}
		// Start errors are logged and cooled down by Launch.
		_, _ = d.Launch(ctx, entry)
	}
	return nil
}

// prepareProfiles creates each entry's profile directory and drops entries
// whose directory cannot be created.
func (d *Daemon) prepareProfiles(entries []workercfg.Entry) []workercfg.Entry {
	ready := make([]workercfg.Entry, 0, len(entries))
	for _, entry := range entries {
		dir := entry.Config.ProfilePath
		if dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				d.logger.Error("Failed to create profile directory",
					zap.String(logging.FieldWorker, entry.Config.ID),
					zap.String(logging.FieldPath, dir),
					zap.Error(err))
				continue
			}
		}
		ready = append(ready, entry)
	}
	return ready
}

// wait sleeps for dur while applying exit events. It returns false if ctx
// was cancelled and true otherwise, including when poked.
func (d *Daemon) wait(ctx context.Context, dur time.Duration) bool {
	return d.sleep(ctx, dur, d.pokes)
}

// stagger waits the launch spacing. Pokes stay queued for the next backoff wait.
func (d *Daemon) stagger(ctx context.Context) {
	d.sleep(ctx, d.config.WorkerStagger, nil)
}

// sleep applies exit events until dur elapses, ctx is cancelled or, when
// pokes is non-nil, a poke arrives.
func (d *Daemon) sleep(ctx context.Context, dur time.Duration, pokes <-chan struct{}) bool {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	for {
		select {
		case ev := <-d.exits:
			d.handleExit(ev)
		case <-pokes:
			d.logger.Debug("Poked, polling now")
			return true
		case <-timer.C:
			return true
		case <-ctx.Done():
			return false
		}
	}
}

// drainExits applies every exit event that is ready without blocking.
func (d *Daemon) drainExits() {
	for {
		select {
		case ev := <-d.exits:
			d.handleExit(ev)
		default:
			return
		}
	}
}

// shutdown stops every live worker: SIGTERM to each process group, up to
// ShutdownGrace to exit, then SIGKILL.
func (d *Daemon) shutdown() {
	handles := d.registry.list()
	if len(handles) > 0 {
		d.logger.Info("Stopping workers",
			zap.Int("count", len(handles)),
			zap.Duration("grace", d.config.ShutdownGrace))

		var g errgroup.Group
		for _, h := range handles {
			g.Go(func() error { return d.stopWorker(h, d.config.ShutdownGrace) })
		}
		if err := g.Wait(); err != nil {
			d.logger.Warn("Worker did not stop cleanly", zap.Error(err))
		}

		// Every process is reaped now; collect the exit events.
		deadline := time.NewTimer(d.config.KillGrace + time.Second)
		defer deadline.Stop()
	collect:
		for d.registry.len() > 0 {
			select {
			case ev := <-d.exits:
				d.handleExit(ev)
			case <-deadline.C:
				d.logger.Warn("Gave up waiting for worker exits", zap.Int("remaining", d.registry.len()))
				break collect
			}
		}
	}

	close(d.done)
	d.wg.Wait()
}

// Snapshot returns the current status.
func (d *Daemon) Snapshot() *State {
	state := &State{
		Running:      true,
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		UpdatedAt:    d.now(),
		ConfigDir:    d.config.ConfigDir,
		Cycles:       d.cycles,
		LastCheck:    d.lastCheck,
		LastResult:   d.lastResult,
		LastError:    d.lastError,
		PollInterval: Millis(d.backoff.Current()),
		Workers:      []WorkerState{},
		Cooldowns:    []CooldownState{},
	}
	select {
	case <-d.done:
		state.Running = false
	default:
	}

	for _, h := range d.registry.list() {
		state.Workers = append(state.Workers, WorkerState{
			ID:        h.WorkerID,
			RunID:     h.RunID,
			PID:       h.PID,
			StartedAt: h.StartedAt,
			Config:    h.ConfigPath,
		})
	}
	for _, id := range d.ledger.ids() {
		c := d.ledger.entries[id]
		state.Cooldowns = append(state.Cooldowns, CooldownState{ID: id, Until: c.until, Outcome: c.outcome})
	}
	return state
}

func (d *Daemon) saveState() {
	if d.config.StateDir == "" {
		return
	}
	if err := SaveState(d.config.StateDir, d.Snapshot()); err != nil {
		d.logger.Warn("Failed to save state", zap.Error(err))
	}
}

func (d *Daemon) recordEvent(t runlog.EventType, worker, runID, detail string) {
	if d.runlog == nil {
		return
	}
	if err := d.runlog.Log(t, worker, runID, detail); err != nil {
		d.logger.Warn("Failed to write lifecycle log", zap.Error(err))
	}
}
