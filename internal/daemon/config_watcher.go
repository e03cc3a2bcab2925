package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/xucongyong/slotwatch/internal/logging"
	"github.com/xucongyong/slotwatch/internal/workercfg"
)

// configSettle is how long a config file must be quiet before it is
// re-validated, so editors that write in several steps are reported once.
const configSettle = 250 * time.Millisecond

// ConfigWatcher reports edits to the worker config directory as they
// happen. It only logs: the poll loop re-reads the directory on every
// Available cycle regardless.
type ConfigWatcher struct {
	dir     string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewConfigWatcher creates a watcher for dir.
func NewConfigWatcher(dir string, logger *zap.Logger) *ConfigWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConfigWatcher{
		dir:    dir,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins watching.
func (w *ConfigWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.cancel()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.cancel()
		return err
	}
	w.watcher = watcher

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop stops the watcher and waits for its goroutine.
func (w *ConfigWatcher) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *ConfigWatcher) run() {
	defer w.wg.Done()
	defer func() { _ = w.watcher.Close() }()

	ticker := time.NewTicker(configSettle / 2)
	defer ticker.Stop()

	// path -> time of the last event seen for it
	pending := make(map[string]time.Time)

	for {
		select {
		case <-w.ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !workercfg.IsConfigFile(filepath.Base(ev.Name)) {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				delete(pending, ev.Name)
				w.logger.Info("Worker config removed", zap.String(logging.FieldPath, ev.Name))
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("Config watcher error", zap.Error(err))
			}

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < configSettle {
					continue
				}
				delete(pending, path)
				w.validate(path)
			}
		}
	}
}

func (w *ConfigWatcher) validate(path string) {
	cfg, loadErr := workercfg.LoadFile(path)
	if loadErr != nil {
		w.logger.Warn("Worker config is invalid and will be skipped",
			zap.String(logging.FieldPath, path),
			zap.Error(loadErr.Err),
			zap.Strings("issues", loadErr.Issues))
		return
	}
	w.logger.Info("Worker config changed",
		zap.String(logging.FieldPath, path),
		zap.String(logging.FieldWorker, cfg.ID))
}
