// Package config provides supervisor settings for slotwatch.
//
// Settings are resolved in three layers, later layers overriding earlier ones:
//  1. Built-in defaults (Default)
//  2. An optional TOML settings file
//  3. SLOTWATCH_* environment variables
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variable names.
const (
	EnvConfigDir       = "SLOTWATCH_CONFIG_DIR"
	EnvStateDir        = "SLOTWATCH_STATE_DIR"
	EnvSettingsFile    = "SLOTWATCH_SETTINGS"
	EnvWorkerCommand   = "SLOTWATCH_WORKER_CMD"
	EnvPollMin         = "SLOTWATCH_POLL_INTERVAL_MIN_MS"
	EnvPollMax         = "SLOTWATCH_POLL_INTERVAL_MAX_MS"
	EnvBackoff         = "SLOTWATCH_BACKOFF_MULTIPLIER"
	EnvStagger         = "SLOTWATCH_WORKER_STAGGER_MS"
	EnvSuccessCooldown = "SLOTWATCH_WORKER_SUCCESS_COOLDOWN_MS"
	EnvFailureRetry    = "SLOTWATCH_WORKER_FAILURE_RETRY_MS"
	EnvWorkerTimeout   = "SLOTWATCH_WORKER_TIMEOUT_MS"
	EnvProbeTimeout    = "SLOTWATCH_PROBE_TIMEOUT_MS"
	EnvForceHeadless   = "SLOTWATCH_FORCE_HEADLESS"
	EnvForceSlowMo     = "SLOTWATCH_FORCE_SLOW_MO"
	EnvWorkerLogDir    = "SLOTWATCH_WORKER_LOG_DIR"
	EnvForceAvailable  = "SLOTWATCH_FORCE_AVAILABLE"
	EnvProbeURL        = "SLOTWATCH_PROBE_URL"
	EnvProbeMatch      = "SLOTWATCH_PROBE_MATCH"
	EnvProbeSelector   = "SLOTWATCH_PROBE_SELECTOR"
	EnvWatchConfigs    = "SLOTWATCH_WATCH_CONFIGS"
)

// ErrInvalidSettings wraps every structural validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Duration is a wrapper for time.Duration that supports TOML marshaling.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// String returns the duration as a string.
func (d Duration) String() string {
	return d.Duration.String()
}

// ProbeSettings selects and parameterizes the availability probe.
// An empty URL selects the stub probe; a Selector selects the browser probe.
type ProbeSettings struct {
	URL      string   `toml:"url"`
	Match    string   `toml:"match"`
	Selector string   `toml:"selector"`
	Timeout  Duration `toml:"timeout"`
}

// Settings contains every supervisor tunable.
type Settings struct {
	ConfigDir     string   `toml:"config_dir"`
	StateDir      string   `toml:"state_dir"`
	WorkerCommand []string `toml:"worker_command"`

	PollIntervalMin   Duration `toml:"poll_interval_min"`
	PollIntervalMax   Duration `toml:"poll_interval_max"`
	BackoffMultiplier float64  `toml:"backoff_multiplier"`

	WorkerStagger   Duration `toml:"worker_stagger"`
	SuccessCooldown Duration `toml:"success_cooldown"`
	FailureRetry    Duration `toml:"failure_retry"`

	// WorkerTimeout is the runtime ceiling for a single worker; zero disables it.
	WorkerTimeout Duration `toml:"worker_timeout"`
	// KillGrace is the wait between SIGTERM and SIGKILL.
	KillGrace Duration `toml:"kill_grace"`
	// ShutdownGrace bounds how long Run waits for workers when stopping.
	ShutdownGrace Duration `toml:"shutdown_grace"`

	// Overrides forced onto every worker invocation. Nil means unset.
	ForceHeadless *bool    `toml:"force_headless"`
	ForceSlowMo   *float64 `toml:"force_slow_mo"`
	WorkerLogDir  string   `toml:"worker_log_dir"`

	// ForceAvailable bypasses the real probe when set.
	ForceAvailable *bool `toml:"force_available"`

	Probe        ProbeSettings `toml:"probe"`
	WatchConfigs bool          `toml:"watch_configs"`

	// Theme is the CLI color scheme: auto, dark or light.
	Theme string `toml:"theme"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		ConfigDir:         "configs",
		StateDir:          ".slotwatch",
		WorkerCommand:     []string{"node", "worker/run-booking.js"},
		PollIntervalMin:   Duration{10 * time.Second},
		PollIntervalMax:   Duration{60 * time.Second},
		BackoffMultiplier: 1.5,
		WorkerStagger:     Duration{2 * time.Second},
		SuccessCooldown:   Duration{5 * time.Minute},
		FailureRetry:      Duration{time.Minute},
		KillGrace:         Duration{10 * time.Second},
		ShutdownGrace:     Duration{30 * time.Second},
		Probe:             ProbeSettings{Timeout: Duration{30 * time.Second}},
		WatchConfigs:      true,
	}
}

// Load resolves settings from defaults, the TOML file at path (skipped when
// empty) and the environment read through getenv. Values in the environment
// that cannot be parsed keep their previous layer's value and produce a
// warning rather than an error.
func Load(path string, getenv func(string) string) (*Settings, []string, error) {
	s := Default()

	if path != "" {
		if err := s.mergeFile(path); err != nil {
			return nil, nil, err
		}
	}

	warnings := s.applyEnv(getenv)

	if err := s.Validate(); err != nil {
		return nil, warnings, err
	}
	return s, warnings, nil
}

// mergeFile decodes the TOML file over s. Keys absent from the file leave
// the defaults untouched.
func (s *Settings) mergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
	if err != nil {
		return fmt.Errorf("reading settings %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), s); err != nil {
		return fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return nil
}

func (s *Settings) applyEnv(getenv func(string) string) []string {
	var warnings []string
	warn := func(name, raw string) {
		warnings = append(warnings, fmt.Sprintf("ignoring invalid %s value %q", name, raw))
	}

	if v := getenv(EnvConfigDir); v != "" {
		s.ConfigDir = v
	}
	if v := getenv(EnvStateDir); v != "" {
		s.StateDir = v
	}
	if v := getenv(EnvWorkerCommand); v != "" {
		s.WorkerCommand = strings.Fields(v)
	}
	if v := getenv(EnvWorkerLogDir); v != "" {
		s.WorkerLogDir = v
	}

	millis := []struct {
		name string
		dst  *Duration
	}{
		{EnvPollMin, &s.PollIntervalMin},
		{EnvPollMax, &s.PollIntervalMax},
		{EnvStagger, &s.WorkerStagger},
		{EnvSuccessCooldown, &s.SuccessCooldown},
		{EnvFailureRetry, &s.FailureRetry},
		{EnvWorkerTimeout, &s.WorkerTimeout},
		{EnvProbeTimeout, &s.Probe.Timeout},
	}
	for _, m := range millis {
		raw := getenv(m.name)
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			warn(m.name, raw)
			continue
		}
		m.dst.Duration = time.Duration(n) * time.Millisecond
	}

	if raw := getenv(EnvBackoff); raw != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			s.BackoffMultiplier = f
		} else {
			warn(EnvBackoff, raw)
		}
	}

	bools := []struct {
		name string
		dst  **bool
	}{
		{EnvForceHeadless, &s.ForceHeadless},
		{EnvForceAvailable, &s.ForceAvailable},
	}
	for _, b := range bools {
		raw := getenv(b.name)
		if raw == "" {
			continue
		}
		if v, ok := ParseBool(raw); ok {
			*b.dst = &v
		} else {
			warn(b.name, raw)
		}
	}

	if raw := getenv(EnvForceSlowMo); raw != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			s.ForceSlowMo = &f
		} else {
			warn(EnvForceSlowMo, raw)
		}
	}

	if raw := getenv(EnvWatchConfigs); raw != "" {
		if v, ok := ParseBool(raw); ok {
			s.WatchConfigs = v
		} else {
			warn(EnvWatchConfigs, raw)
		}
	}

	if v := getenv(EnvProbeURL); v != "" {
		s.Probe.URL = v
	}
	if v := getenv(EnvProbeMatch); v != "" {
		s.Probe.Match = v
	}
	if v := getenv(EnvProbeSelector); v != "" {
		s.Probe.Selector = v
	}

	return warnings
}

// Validate rejects settings the supervisor cannot run with.
func (s *Settings) Validate() error {
	var problems []string

	if s.ConfigDir == "" {
		problems = append(problems, "config_dir is empty")
	}
	if len(s.WorkerCommand) == 0 {
		problems = append(problems, "worker_command is empty")
	}
	if s.PollIntervalMin.Duration <= 0 {
		problems = append(problems, "poll_interval_min must be positive")
	}
	if s.PollIntervalMax.Duration < s.PollIntervalMin.Duration {
		problems = append(problems, "poll_interval_max must not be below poll_interval_min")
	}
	if s.BackoffMultiplier < 1 {
		problems = append(problems, "backoff_multiplier must be at least 1")
	}

	nonNegative := []struct {
		name string
		d    time.Duration
	}{
		{"worker_stagger", s.WorkerStagger.Duration},
		{"success_cooldown", s.SuccessCooldown.Duration},
		{"failure_retry", s.FailureRetry.Duration},
		{"worker_timeout", s.WorkerTimeout.Duration},
		{"kill_grace", s.KillGrace.Duration},
		{"shutdown_grace", s.ShutdownGrace.Duration},
		{"probe.timeout", s.Probe.Timeout.Duration},
	}
	for _, nn := range nonNegative {
		if nn.d < 0 {
			problems = append(problems, nn.name+" must not be negative")
		}
	}

	if v := s.ForceSlowMo; v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		problems = append(problems, "force_slow_mo must be a finite number")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}

// ParseBool accepts 1/true/yes/y and 0/false/no/n, case-insensitively.
// ok is false for anything else.
func ParseBool(raw string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y":
		return true, true
	case "0", "false", "no", "n":
		return false, true
	}
	return false, false
}
