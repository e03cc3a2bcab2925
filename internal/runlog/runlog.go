// Package runlog records worker lifecycle events in a human-readable log
// under the supervisor's state directory. It complements the structured
// supervisor log: one line per launch or exit, easy to tail and to filter
// with `slotwatch log`.
package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// EventType represents the type of worker lifecycle event.
type EventType string

const (
	// EventLaunch indicates a worker process was started.
	EventLaunch EventType = "launch"
	// EventDone indicates a worker exited with code 0.
	EventDone EventType = "done"
	// EventFail indicates a worker exited non-zero or by signal.
	EventFail EventType = "fail"
	// EventStartFailed indicates the worker process could not be started.
	EventStartFailed EventType = "start_failed"
	// EventTimeout indicates a worker exceeded its runtime ceiling.
	EventTimeout EventType = "timeout"
	// EventStop indicates a worker was terminated because the supervisor stopped.
	EventStop EventType = "stop"
)

const timeLayout = "2006-01-02 15:04:05"

// noRun stands in for an empty run id so lines keep a fixed shape.
const noRun = "-"

// Event is a single lifecycle line.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Worker    string
	RunID     string
	Detail    string
}

// Logger appends events to <stateDir>/logs/workers.log.
type Logger struct {
	path string
	mu   sync.Mutex
}

// Path returns the lifecycle log location for stateDir.
func Path(stateDir string) string {
	return filepath.Join(stateDir, "logs", "workers.log")
}

// NewLogger creates a Logger rooted at stateDir.
func NewLogger(stateDir string) *Logger {
	return &Logger{path: Path(stateDir)}
}

// LogEvent appends one event.
func (l *Logger) LogEvent(e Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(e) + "\n"); err != nil {
		return fmt.Errorf("writing log line: %w", err)
	}
	return nil
}

// Log stamps an event with the current time and appends it.
func (l *Logger) Log(t EventType, worker, runID, detail string) error {
	return l.LogEvent(Event{
		Timestamp: time.Now(),
		Type:      t,
		Worker:    worker,
		RunID:     runID,
		Detail:    detail,
	})
}

// FormatLine renders e as
//
//	2026-10-19 15:30:45 [launch] alice 5f0c... pid 4242
func FormatLine(e Event) string {
	run := e.RunID
	if run == "" {
		run = noRun
	}
	line := fmt.Sprintf("%s [%s] %s %s", e.Timestamp.Format(timeLayout), e.Type, e.Worker, run)
	if detail := strings.TrimSpace(strings.ReplaceAll(e.Detail, "\n", " ")); detail != "" {
		line += " " + detail
	}
	return line
}

// ParseLine is the inverse of FormatLine.
func ParseLine(line string) (Event, error) {
	var e Event

	if len(line) < len(timeLayout)+1 {
		return e, errors.New("line too short")
	}
	ts, err := time.ParseInLocation(timeLayout, line[:len(timeLayout)], time.Local)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}
	e.Timestamp = ts

	rest := line[len(timeLayout)+1:]
	if !strings.HasPrefix(rest, "[") {
		return e, errors.New("missing event type")
	}
	typ, rest, ok := strings.Cut(rest[1:], "] ")
	if !ok || typ == "" {
		return e, errors.New("unclosed event type")
	}
	e.Type = EventType(typ)

	parts := strings.SplitN(rest, " ", 3)
	if parts[0] == "" {
		return e, errors.New("missing worker")
	}
	e.Worker = parts[0]
	if len(parts) > 1 && parts[1] != noRun {
		e.RunID = parts[1]
	}
	if len(parts) > 2 {
		e.Detail = parts[2]
	}
	return e, nil
}

// ReadEvents reads every parseable event from the lifecycle log under
// stateDir. A missing log yields no events and no error.
func ReadEvents(stateDir string) ([]Event, error) {
	content, err := os.ReadFile(Path(stateDir)) //nolint:gosec // G304: path is built from the state dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading log file: %w", err)
	}
	return ParseLines(string(content)), nil
}

// ParseLines parses content line by line, skipping malformed lines.
func ParseLines(content string) []Event {
	var events []Event
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		e, err := ParseLine(line)
		if err != nil {
			continue
		}
		events = append(events, e)
	}
	return events
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	Type   EventType
	Worker string // prefix match
	Since  time.Time
}

// FilterEvents returns events matching f, preserving order.
func FilterEvents(events []Event, f Filter) []Event {
	var result []Event
	for _, e := range events {
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.Worker != "" && !strings.HasPrefix(e.Worker, f.Worker) {
			continue
		}
		if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Tail returns the last n events, or all of them when n <= 0.
func Tail(events []Event, n int) []Event {
	if n <= 0 || len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}
