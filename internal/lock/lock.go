// Package lock guarantees a single supervisor per state directory.
//
// The lock itself is an advisory file lock on <state>/slotwatch.lock, held
// for the lifetime of `slotwatch run` and released by the kernel if the
// process dies. Alongside it, <state>/supervisor.json records who holds the
// lock so that `slotwatch status` can report it; that file may outlive a
// crashed holder, in which case Info.IsStale reports true.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/xucongyong/slotwatch/internal/util"
)

// Common errors
var (
	ErrLocked    = errors.New("another supervisor holds the lock")
	ErrNotLocked = errors.New("no supervisor lock recorded")
	ErrInvalid   = errors.New("invalid lock info")
)

// Info describes the supervisor holding the lock.
type Info struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Hostname   string    `json:"hostname,omitempty"`
	ConfigDir  string    `json:"config_dir,omitempty"`
}

// IsStale reports whether the recorded process is gone.
func (i *Info) IsStale() bool {
	return !processAlive(i.PID)
}

// Lock is the single-instance lock for one state directory.
type Lock struct {
	stateDir string
	lockPath string
	infoPath string
	fl       *flock.Flock
}

// New creates a Lock for stateDir. Nothing is touched until Acquire.
func New(stateDir string) *Lock {
	lockPath := filepath.Join(stateDir, "slotwatch.lock")
	return &Lock{
		stateDir: stateDir,
		lockPath: lockPath,
		infoPath: filepath.Join(stateDir, "supervisor.json"),
		fl:       flock.New(lockPath),
	}
}

// Acquire takes the lock without blocking. It returns ErrLocked, wrapped
// with the holder's details when known, if another supervisor has it.
func (l *Lock) Acquire(configDir string) error {
	if err := os.MkdirAll(l.stateDir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		if info, readErr := l.Read(); readErr == nil {
			return fmt.Errorf("%w: PID %d on %s (since %s)",
				ErrLocked, info.PID, info.Hostname, info.AcquiredAt.Format(time.RFC3339))
		}
		return ErrLocked
	}

	hostname, _ := os.Hostname()
	info := Info{
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
		Hostname:   hostname,
		ConfigDir:  configDir,
	}
	if err := util.AtomicWriteJSON(l.infoPath, info); err != nil {
		_ = l.fl.Unlock()
		return fmt.Errorf("writing lock info: %w", err)
	}
	return nil
}

// Release drops the lock and removes the holder record.
func (l *Lock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := os.Remove(l.infoPath); err != nil && !os.IsNotExist(err) {
		_ = l.fl.Unlock()
		return fmt.Errorf("removing lock info: %w", err)
	}
	if err := l.fl.Unlock(); err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// Read returns the recorded holder without touching the lock.
func (l *Lock) Read() (*Info, error) {
	data, err := os.ReadFile(l.infoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotLocked
		}
		return nil, fmt.Errorf("reading lock info: %w", err)
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &info, nil
}

// Status returns a human-readable description of the lock holder.
func (l *Lock) Status() string {
	info, err := l.Read()
	if err != nil {
		if errors.Is(err, ErrNotLocked) {
			return "not running"
		}
		return fmt.Sprintf("error: %v", err)
	}

	if info.IsStale() {
		return fmt.Sprintf("stale (dead PID %d)", info.PID)
	}
	if info.PID == os.Getpid() {
		return "running (this process)"
	}
	return fmt.Sprintf("running as PID %d since %s", info.PID, info.AcquiredAt.Format(time.RFC3339))
}
