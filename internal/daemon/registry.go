package daemon

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"time"
)

// ErrAlreadyRunning is returned when registering a second live process for
// one worker identity.
var ErrAlreadyRunning = errors.New("worker already has a live process")

// Handle is a live worker process. The registry owns it from a successful
// start until the process's exit event has been applied.
type Handle struct {
	WorkerID   string
	RunID      string
	PID        int
	StartedAt  time.Time
	ConfigPath string
	LogFile    string

	process *os.Process
	// exited is closed by the waiter goroutine once the process is reaped.
	exited   chan struct{}
	stopping atomic.Bool
	timedOut atomic.Bool
}

// Exited is closed once the process has been reaped.
func (h *Handle) Exited() <-chan struct{} { return h.exited }

func (h *Handle) hasExited() bool {
	select {
	case <-h.exited:
		return true
	default:
		return false
	}
}

// registry maps worker identity to its live handle.
type registry struct {
	handles map[string]*Handle
}

func newRegistry() *registry {
	return &registry{handles: make(map[string]*Handle)}
}

func (r *registry) has(id string) bool {
	_, ok := r.handles[id]
	return ok
}

func (r *registry) get(id string) *Handle {
	return r.handles[id]
}

func (r *registry) add(h *Handle) error {
	if existing, ok := r.handles[h.WorkerID]; ok {
		return fmt.Errorf("%w: %s (run %s, PID %d)", ErrAlreadyRunning, h.WorkerID, existing.RunID, existing.PID)
	}
	r.handles[h.WorkerID] = h
	return nil
}

// remove deletes id only if it is still registered to runID, so a stale
// exit can never evict a newer run.
func (r *registry) remove(id, runID string) bool {
	h, ok := r.handles[id]
	if !ok || h.RunID != runID {
		return false
	}
	delete(r.handles, id)
	return true
}

func (r *registry) len() int { return len(r.handles) }

// list returns live handles ordered by start time, then identity.
func (r *registry) list() []*Handle {
	out := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].WorkerID < out[j].WorkerID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
