package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xucongyong/slotwatch/internal/logging"
	"github.com/xucongyong/slotwatch/internal/runlog"
	"github.com/xucongyong/slotwatch/internal/workercfg"
)

// Environment variables set on every worker process.
const (
	EnvParentRunID = "WORKER_PARENT_RUN_ID"
	EnvWorkerID    = "SLOTWATCH_WORKER_ID"
)

// exitEvent is sent by a waiter goroutine once its process has been reaped.
type exitEvent struct {
	handle *Handle
	code   int
	signal string
	err    error
}

func (e exitEvent) success() bool {
	return e.code == 0 && e.signal == ""
}

// buildArgs returns the worker argv for entry.
func (d *Daemon) buildArgs(entry workercfg.Entry, runID string) []string {
	args := make([]string, 0, len(d.config.WorkerCommand)+6)
	args = append(args, d.config.WorkerCommand...)
	args = append(args, entry.Path)

	if h := d.config.ForceHeadless; h != nil {
		if *h {
			args = append(args, "--headless")
		} else {
			args = append(args, "--no-headless")
		}
	}
	if s := d.config.ForceSlowMo; s != nil {
		args = append(args, "--slow-mo", strconv.FormatFloat(*s, 'f', -1, 64))
	}
	if dir := d.config.WorkerLogDir; dir != "" {
		args = append(args, "--log-file", d.runLogFile(entry.Config.ID, runID))
	}
	return args
}

func (d *Daemon) runLogFile(id, runID string) string {
	if d.config.WorkerLogDir == "" {
		return ""
	}
	return filepath.Join(d.config.WorkerLogDir, id+"-"+runID+".log")
}

// Launch starts a worker for entry if it is eligible. An ineligible entry
// returns (nil, nil) immediately. Every attempt that reaches process start,
// successful or not, is followed by the stagger delay before Launch returns.
//
// Launch must only be called from the control goroutine.
func (d *Daemon) Launch(ctx context.Context, entry workercfg.Entry) (*Handle, error) {
	d.drainExits()

	id := entry.Config.ID
	if !d.IsEligible(id) {
		d.logger.Debug("Worker not eligible", zap.String(logging.FieldWorker, id))
		return nil, nil
	}

	h, err := d.start(entry)
	d.stagger(ctx)
	return h, err
}

// start spawns the worker and registers its handle. It never blocks on the
// process.
func (d *Daemon) start(entry workercfg.Entry) (*Handle, error) {
	id := entry.Config.ID
	runID := uuid.NewString()
	args := d.buildArgs(entry, runID)
	logger := d.logger.With(zap.String(logging.FieldWorker, id), zap.String(logging.FieldRunID, runID))

	logger.Info("Launching worker",
		zap.String(logging.FieldPath, entry.Path),
		zap.Strings("args", args))

	stdout := newLineWriter(logger, "stdout", zapcore.InfoLevel)
	stderr := newLineWriter(logger, "stderr", zapcore.ErrorLevel)

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(),
		EnvParentRunID+"="+runID,
		EnvWorkerID+"="+id,
	)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = d.config.KillGrace
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		d.registry.remove(id, runID)
		d.ledger.set(id, d.now().Add(d.config.FailureRetry), OutcomeStartFailed)
		logger.Error("Failed to start worker process",
			zap.Error(err),
			zap.Duration("next_eligible_in", d.config.FailureRetry))
		d.recordEvent(runlog.EventStartFailed, id, runID, err.Error())
		return nil, fmt.Errorf("starting worker %s: %w", id, err)
	}

	h := &Handle{
		WorkerID:   id,
		RunID:      runID,
		PID:        cmd.Process.Pid,
		StartedAt:  d.now(),
		ConfigPath: entry.Path,
		LogFile:    d.runLogFile(id, runID),
		process:    cmd.Process,
		exited:     make(chan struct{}),
	}
	if err := d.registry.add(h); err != nil {
		// Eligibility was checked on this goroutine, so this is a bug.
		logger.Error("Worker registered twice", zap.Error(err))
	}
	d.recordEvent(runlog.EventLaunch, id, runID, fmt.Sprintf("pid %d", h.PID))

	d.wg.Add(1)
	go d.watch(h, cmd, stdout, stderr)
	return h, nil
}

// watch waits for the process and hands its exit to the control goroutine.
func (d *Daemon) watch(h *Handle, cmd *exec.Cmd, stdout, stderr *lineWriter) {
	defer d.wg.Done()

	var ceiling *time.Timer
	if d.config.WorkerTimeout > 0 {
		ceiling = time.AfterFunc(d.config.WorkerTimeout, func() {
			h.timedOut.Store(true)
			d.logger.Warn("Worker exceeded runtime ceiling, terminating",
				zap.String(logging.FieldWorker, h.WorkerID),
				zap.String(logging.FieldRunID, h.RunID),
				zap.Duration("timeout", d.config.WorkerTimeout))
			_ = d.stopWorker(h, d.config.KillGrace)
		})
	}

	err := cmd.Wait()
	if ceiling != nil {
		ceiling.Stop()
	}
	close(h.exited)
	stdout.Flush()
	stderr.Flush()

	ev := exitEvent{handle: h, code: -1}
	if state := cmd.ProcessState; state != nil {
		ev.code = state.ExitCode()
		ev.signal = exitSignal(state)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && !errors.Is(err, exec.ErrWaitDelay) {
		ev.err = err
	}

	select {
	case d.exits <- ev:
	case <-d.done:
	}
}

// handleExit applies an exit event to the registry and ledger.
func (d *Daemon) handleExit(ev exitEvent) {
	h := ev.handle
	if !d.registry.remove(h.WorkerID, h.RunID) {
		return
	}

	cooldown, outcome := d.config.FailureRetry, OutcomeFailure
	if ev.success() && ev.err == nil {
		cooldown, outcome = d.config.SuccessCooldown, OutcomeSuccess
	}
	d.ledger.set(h.WorkerID, d.now().Add(cooldown), outcome)

	fields := []zap.Field{
		zap.String(logging.FieldWorker, h.WorkerID),
		zap.String(logging.FieldRunID, h.RunID),
		zap.Int("code", ev.code),
		zap.String("signal", ev.signal),
		zap.Duration("runtime", d.now().Sub(h.StartedAt)),
		zap.Duration("next_eligible_in", cooldown),
	}
	if ev.err != nil {
		fields = append(fields, zap.Error(ev.err))
	}
	if outcome == OutcomeSuccess {
		d.logger.Info("Worker exited", fields...)
	} else {
		d.logger.Error("Worker exited", fields...)
	}

	detail := fmt.Sprintf("exit %d", ev.code)
	if ev.signal != "" {
		detail = "signal " + ev.signal
	}
	switch {
	case h.stopping.Load() && !h.timedOut.Load():
		d.recordEvent(runlog.EventStop, h.WorkerID, h.RunID, detail)
	case h.timedOut.Load():
		d.recordEvent(runlog.EventTimeout, h.WorkerID, h.RunID, detail)
	case outcome == OutcomeSuccess:
		d.recordEvent(runlog.EventDone, h.WorkerID, h.RunID, detail)
	default:
		d.recordEvent(runlog.EventFail, h.WorkerID, h.RunID, detail)
	}
	d.saveState()
}

// stopWorker sends SIGTERM to the worker's process group and SIGKILL if it
// is still alive after grace. Safe to call from any goroutine.
func (d *Daemon) stopWorker(h *Handle, grace time.Duration) error {
	if h.hasExited() {
		return nil
	}
	h.stopping.Store(true)
	if err := sendTermSignal(h.process); err != nil && !h.hasExited() {
		d.logger.Warn("Failed to signal worker",
			zap.String(logging.FieldWorker, h.WorkerID),
			zap.Int("pid", h.PID),
			zap.Error(err))
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.exited:
		return nil
	case <-timer.C:
	}

	if err := sendKillSignal(h.process); err != nil && !h.hasExited() {
		return fmt.Errorf("killing worker %s (PID %d): %w", h.WorkerID, h.PID, err)
	}
	return fmt.Errorf("worker %s ignored SIGTERM for %v and was killed", h.WorkerID, grace)
}
