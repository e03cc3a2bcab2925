package daemon

import (
	"sort"
	"time"
)

// Outcome labels how a worker's last run ended.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeStartFailed Outcome = "start_failed"
)

type cooldown struct {
	until   time.Time
	outcome Outcome
}

// ledger maps worker identity to the instant before which it may not be
// launched again. Entries are overwritten on every exit and never expired;
// they are only compared against the clock.
type ledger struct {
	entries map[string]cooldown
}

func newLedger() *ledger {
	return &ledger{entries: make(map[string]cooldown)}
}

func (l *ledger) set(id string, until time.Time, outcome Outcome) {
	l.entries[id] = cooldown{until: until, outcome: outcome}
}

// until returns the zero time for identities that have never exited.
func (l *ledger) until(id string) time.Time {
	return l.entries[id].until
}

func (l *ledger) ids() []string {
	ids := make([]string, 0, len(l.entries))
	for id := range l.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsEligible reports whether id may be launched now: it has no live process
// and its cooldown, if any, has elapsed. It never mutates state.
func (d *Daemon) IsEligible(id string) bool {
	if d.registry.has(id) {
		return false
	}
	return !d.now().Before(d.ledger.until(id))
}
