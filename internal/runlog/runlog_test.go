package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatLine(t *testing.T) {
	ts := time.Date(2026, 10, 19, 15, 30, 45, 0, time.Local)

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{
			name:  "launch",
			event: Event{Timestamp: ts, Type: EventLaunch, Worker: "alice", RunID: "r-1", Detail: "pid 4242"},
			want:  "2026-10-19 15:30:45 [launch] alice r-1 pid 4242",
		},
		{
			name:  "no run id, no detail",
			event: Event{Timestamp: ts, Type: EventStartFailed, Worker: "bob"},
			want:  "2026-10-19 15:30:45 [start_failed] bob -",
		},
		{
			name:  "multi-line detail is flattened",
			event: Event{Timestamp: ts, Type: EventFail, Worker: "carol", RunID: "r-9", Detail: "exit 2\nstack"},
			want:  "2026-10-19 15:30:45 [fail] carol r-9 exit 2 stack",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatLine(tt.event); got != tt.want {
				t.Errorf("FormatLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
		want    Event
	}{
		{
			name: "full line",
			line: "2026-10-19 15:30:45 [done] alice r-1 exit 0, next eligible in 5m0s",
			want: Event{Type: EventDone, Worker: "alice", RunID: "r-1", Detail: "exit 0, next eligible in 5m0s"},
		},
		{
			name: "dash run id",
			line: "2026-10-19 15:30:45 [start_failed] bob - exec: not found",
			want: Event{Type: EventStartFailed, Worker: "bob", Detail: "exec: not found"},
		},
		{
			name: "worker only",
			line: "2026-10-19 15:30:45 [stop] carol",
			want: Event{Type: EventStop, Worker: "carol"},
		},
		{name: "too short", line: "short", wantErr: true},
		{name: "missing bracket", line: "2026-10-19 15:30:45 launch alice", wantErr: true},
		{name: "bad timestamp", line: "2026-13-45 99:99:99 [launch] alice r", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLine() expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine() error: %v", err)
			}
			if got.Type != tt.want.Type || got.Worker != tt.want.Worker ||
				got.RunID != tt.want.RunID || got.Detail != tt.want.Detail {
				t.Errorf("ParseLine() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLogger_RoundTrip(t *testing.T) {
	stateDir := t.TempDir()
	logger := NewLogger(stateDir)

	if err := logger.Log(EventLaunch, "alice", "r-1", "pid 10"); err != nil {
		t.Fatalf("Log() error: %v", err)
	}
	if err := logger.Log(EventFail, "alice", "r-1", "exit 3"); err != nil {
		t.Fatalf("Log() error: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(stateDir, "logs", "workers.log"))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if strings.Count(string(content), "\n") != 2 {
		t.Errorf("want 2 lines, got %q", content)
	}

	events, err := ReadEvents(stateDir)
	if err != nil {
		t.Fatalf("ReadEvents() error: %v", err)
	}
	if len(events) != 2 || events[0].Type != EventLaunch || events[1].Detail != "exit 3" {
		t.Errorf("events = %+v", events)
	}
}

func TestReadEvents_Missing(t *testing.T) {
	events, err := ReadEvents(t.TempDir())
	if err != nil || events != nil {
		t.Errorf("ReadEvents(empty) = (%v, %v), want (nil, nil)", events, err)
	}
}

func TestParseLines_SkipsGarbage(t *testing.T) {
	content := "garbage\r\n2026-10-19 15:30:45 [launch] alice r-1\r\n\n[half line\n"
	events := ParseLines(content)
	if len(events) != 1 || events[0].Worker != "alice" || events[0].RunID != "r-1" {
		t.Errorf("ParseLines() = %+v", events)
	}
}

func TestFilterEvents(t *testing.T) {
	now := time.Now()
	events := []Event{
		{Timestamp: now.Add(-2 * time.Hour), Type: EventLaunch, Worker: "team-a-1"},
		{Timestamp: now.Add(-1 * time.Hour), Type: EventDone, Worker: "team-a-1"},
		{Timestamp: now.Add(-30 * time.Minute), Type: EventLaunch, Worker: "team-b-1"},
		{Timestamp: now.Add(-10 * time.Minute), Type: EventFail, Worker: "team-b-1"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"no filter", Filter{}, 4},
		{"by type", Filter{Type: EventLaunch}, 2},
		{"by worker prefix", Filter{Worker: "team-a"}, 2},
		{"by time", Filter{Since: now.Add(-45 * time.Minute)}, 2},
		{"combined", Filter{Type: EventLaunch, Worker: "team-b"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FilterEvents(events, tt.filter); len(got) != tt.want {
				t.Errorf("FilterEvents() got %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestTail(t *testing.T) {
	events := []Event{{Worker: "a"}, {Worker: "b"}, {Worker: "c"}}

	if got := Tail(events, 2); len(got) != 2 || got[0].Worker != "b" {
		t.Errorf("Tail(2) = %+v", got)
	}
	if got := Tail(events, 0); len(got) != 3 {
		t.Errorf("Tail(0) = %+v, want all", got)
	}
	if got := Tail(events, 10); len(got) != 3 {
		t.Errorf("Tail(10) = %+v, want all", got)
	}
}
