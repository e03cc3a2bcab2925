package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/xucongyong/slotwatch/internal/config"
	"github.com/xucongyong/slotwatch/internal/util"
)

// Config holds the supervisor tunables after settings and environment have
// been merged.
type Config struct {
	ConfigDir string
	// StateDir holds the status snapshot and lifecycle log. Empty disables both.
	StateDir      string
	WorkerCommand []string

	PollIntervalMin   time.Duration
	PollIntervalMax   time.Duration
	BackoffMultiplier float64

	WorkerStagger   time.Duration
	SuccessCooldown time.Duration
	FailureRetry    time.Duration

	WorkerTimeout time.Duration
	KillGrace     time.Duration
	ShutdownGrace time.Duration

	ForceHeadless *bool
	ForceSlowMo   *float64
	WorkerLogDir  string

	WatchConfigs bool
}

// NewConfig converts loaded settings into daemon configuration.
func NewConfig(s *config.Settings) *Config {
	cmd := make([]string, len(s.WorkerCommand))
	copy(cmd, s.WorkerCommand)
	return &Config{
		ConfigDir:         s.ConfigDir,
		StateDir:          s.StateDir,
		WorkerCommand:     cmd,
		PollIntervalMin:   s.PollIntervalMin.Duration,
		PollIntervalMax:   s.PollIntervalMax.Duration,
		BackoffMultiplier: s.BackoffMultiplier,
		WorkerStagger:     s.WorkerStagger.Duration,
		SuccessCooldown:   s.SuccessCooldown.Duration,
		FailureRetry:      s.FailureRetry.Duration,
		WorkerTimeout:     s.WorkerTimeout.Duration,
		KillGrace:         s.KillGrace.Duration,
		ShutdownGrace:     s.ShutdownGrace.Duration,
		ForceHeadless:     s.ForceHeadless,
		ForceSlowMo:       s.ForceSlowMo,
		WorkerLogDir:      s.WorkerLogDir,
		WatchConfigs:      s.WatchConfigs,
	}
}

// Probe results recorded in State.LastResult.
const (
	ResultAvailable   = "available"
	ResultUnavailable = "unavailable"
	ResultError       = "error"
)

// State is the status snapshot written after every poll cycle and exit.
// It is informational only: a restarted supervisor starts from empty state.
type State struct {
	Running      bool      `json:"running"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ConfigDir    string    `json:"config_dir,omitempty"`
	Cycles       int64     `json:"cycles"`
	LastCheck    time.Time `json:"last_check,omitempty"`
	LastResult   string    `json:"last_result,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	PollInterval Millis    `json:"poll_interval_ms"`

	Workers   []WorkerState   `json:"workers"`
	Cooldowns []CooldownState `json:"cooldowns"`
}

// WorkerState describes a live worker.
type WorkerState struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Config    string    `json:"config"`
}

// CooldownState describes a ledger entry.
type CooldownState struct {
	ID      string    `json:"id"`
	Until   time.Time `json:"until"`
	Outcome Outcome   `json:"outcome"`
}

// Millis is a duration serialized as integer milliseconds.
type Millis time.Duration

// MarshalJSON implements json.Marshaler.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(m).Milliseconds())
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*m = Millis(time.Duration(ms) * time.Millisecond)
	return nil
}

// StateFile returns the path to the status snapshot.
func StateFile(stateDir string) string {
	return filepath.Join(stateDir, "state.json")
}

// LoadState loads the status snapshot. A missing file yields an empty State.
func LoadState(stateDir string) (*State, error) {
	data, err := os.ReadFile(StateFile(stateDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveState writes the status snapshot atomically.
func SaveState(stateDir string, state *State) error {
	return util.AtomicWriteJSON(StateFile(stateDir), state)
}
