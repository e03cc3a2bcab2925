package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/xucongyong/slotwatch/internal/config"
	"github.com/xucongyong/slotwatch/internal/daemon"
	"github.com/xucongyong/slotwatch/internal/runlog"
)

// resetFlags restores the package-level flag variables after a test.
func resetFlags(t *testing.T) {
	t.Helper()
	saved := struct {
		configDir, stateDir, settings string
		tail                          int
		typ, worker, since            string
		statusJSON, configsJSON       bool
	}{configDirFlag, stateDirFlag, settingsFlag, logTail, logType, logWorker, logSince, statusJSON, configsJSON}
	t.Cleanup(func() {
		configDirFlag, stateDirFlag, settingsFlag = saved.configDir, saved.stateDir, saved.settings
		logTail, logType, logWorker, logSince = saved.tail, saved.typ, saved.worker, saved.since
		statusJSON, configsJSON = saved.statusJSON, saved.configsJSON
	})
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&buf)
	return c, &buf
}

func TestLoadSettings_FlagsOverrideEnv(t *testing.T) {
	resetFlags(t)
	t.Setenv(config.EnvConfigDir, "/from/env/configs")
	t.Setenv(config.EnvStateDir, "/from/env/state")
	t.Setenv(config.EnvSettingsFile, "")

	configDirFlag, stateDirFlag, settingsFlag = "", "", ""
	s, _, err := loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.ConfigDir != "/from/env/configs" || s.StateDir != "/from/env/state" {
		t.Errorf("env not applied: config=%q state=%q", s.ConfigDir, s.StateDir)
	}

	configDirFlag, stateDirFlag = "/flag/configs", "/flag/state"
	s, _, err = loadSettings()
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.ConfigDir != "/flag/configs" || s.StateDir != "/flag/state" {
		t.Errorf("flags not applied: config=%q state=%q", s.ConfigDir, s.StateDir)
	}
}

func TestStateDir_SurvivesBrokenSettings(t *testing.T) {
	resetFlags(t)
	configDirFlag, stateDirFlag = "", ""
	settingsFlag = filepath.Join(t.TempDir(), "missing.toml")
	t.Setenv(config.EnvStateDir, "/env/state")

	if got := stateDir(); got != "/env/state" {
		t.Errorf("stateDir() = %q, want /env/state", got)
	}

	stateDirFlag = "/flag/state"
	if got := stateDir(); got != "/flag/state" {
		t.Errorf("stateDir() = %q, want /flag/state", got)
	}
}

func TestRunLog_FiltersAndTails(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	stateDirFlag = dir

	l := runlog.NewLogger(dir)
	for _, e := range []struct {
		typ    runlog.EventType
		worker string
	}{
		{runlog.EventLaunch, "alice"},
		{runlog.EventFail, "alice"},
		{runlog.EventLaunch, "bob"},
		{runlog.EventDone, "bob"},
	} {
		if err := l.Log(e.typ, e.worker, "0f8fad5b-d9cb-469f-a165-70867728950e", "detail"); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	logTail, logType, logWorker, logSince = 20, "", "", ""
	c, buf := testCommand()
	if err := runLog(c, nil); err != nil {
		t.Fatalf("runLog: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 4 {
		t.Errorf("printed %d lines, want 4:\n%s", got, buf.String())
	}
	if !strings.Contains(buf.String(), "0f8fad5b ") {
		t.Errorf("run id not shortened:\n%s", buf.String())
	}

	logWorker = "bo"
	c, buf = testCommand()
	if err := runLog(c, nil); err != nil {
		t.Fatalf("runLog: %v", err)
	}
	if strings.Contains(buf.String(), "alice") || strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("worker filter not applied:\n%s", buf.String())
	}

	logWorker, logType, logTail = "", string(runlog.EventLaunch), 1
	c, buf = testCommand()
	if err := runLog(c, nil); err != nil {
		t.Fatalf("runLog: %v", err)
	}
	out := buf.String()
	if strings.Count(out, "\n") != 1 || !strings.Contains(out, "[launch]") || !strings.Contains(out, "bob") {
		t.Errorf("type filter + tail = %q", out)
	}
}

func TestRunLog_Empty(t *testing.T) {
	resetFlags(t)
	stateDirFlag = t.TempDir()
	logTail, logType, logWorker, logSince = 20, "", "", ""

	c, buf := testCommand()
	if err := runLog(c, nil); err != nil {
		t.Fatalf("runLog: %v", err)
	}
	if !strings.Contains(buf.String(), "No events recorded") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRunLog_BadSince(t *testing.T) {
	resetFlags(t)
	stateDirFlag = t.TempDir()
	logSince = "yesterday"

	c, _ := testCommand()
	if err := runLog(c, nil); err == nil {
		t.Error("expected error for invalid --since")
	}
}

func TestRunConfigs(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	configDirFlag = dir
	configsJSON = false

	files := map[string]string{
		"01-alice.json":  `{"id":"alice","profile":{"path":"/tmp/profiles/alice"}}`,
		"02-bob.yaml":    "id: bob\n",
		"03-broken.json": `{"profile":`,
		"notes.txt":      "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	c, buf := testCommand()
	err := runConfigs(c, nil)
	if code, ok := IsSilentExit(err); !ok || code != ExitInvalidConfigs {
		t.Fatalf("runConfigs() = %v, want silent exit %d", err, ExitInvalidConfigs)
	}
	out := buf.String()
	for _, want := range []string{"alice", "bob", "03-broken.json", "2 valid, 1 invalid"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "notes.txt") {
		t.Errorf("non-config file listed:\n%s", out)
	}
}

func TestRunConfigs_JSON(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	configDirFlag = dir
	configsJSON = true

	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"id":"a"}`), 0644); err != nil {
		t.Fatal(err)
	}

	c, buf := testCommand()
	if err := runConfigs(c, nil); err != nil {
		t.Fatalf("runConfigs: %v", err)
	}
	var got configsOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(got.Workers) != 1 || got.Workers[0].ID != "a" || len(got.Errors) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestRunStatus_NotRunning(t *testing.T) {
	resetFlags(t)
	stateDirFlag = t.TempDir()
	statusJSON = false

	c, buf := testCommand()
	err := runStatus(c, nil)
	if code, ok := IsSilentExit(err); !ok || code != ExitNotRunning {
		t.Fatalf("runStatus() = %v, want silent exit %d", err, ExitNotRunning)
	}
	out := buf.String()
	if !strings.Contains(out, "not running") || !strings.Contains(out, "No snapshot written yet") {
		t.Errorf("output = %q", out)
	}
}

func TestPrintStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := &daemon.State{
		Running:      true,
		UpdatedAt:    now,
		ConfigDir:    "/etc/slotwatch/configs",
		Cycles:       7,
		LastCheck:    now.Add(-3 * time.Second),
		LastResult:   daemon.ResultAvailable,
		PollInterval: daemon.Millis(5 * time.Second),
		Workers: []daemon.WorkerState{
			{ID: "alice", RunID: "0f8fad5b-d9cb", PID: 4242, StartedAt: now.Add(-time.Minute)},
		},
		Cooldowns: []daemon.CooldownState{
			{ID: "bob", Until: now.Add(90 * time.Second), Outcome: daemon.OutcomeFailure},
			{ID: "carol", Until: now.Add(-time.Second), Outcome: daemon.OutcomeSuccess},
		},
	}

	var buf bytes.Buffer
	printStatus(&buf, "running as PID 1", true, state, now)
	out := buf.String()
	for _, want := range []string{
		"running as PID 1",
		"available, 3s ago (cycle 7)",
		"Poll interval: 5s",
		"alice", "4242", "1m0s",
		"bob", "in 1m30s",
		"carol", "now",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionString(t *testing.T) {
	if got := versionString(""); !strings.HasPrefix(got, "slotwatch version "+Version) {
		t.Errorf("versionString() = %q", got)
	}
	got := versionString("0123456789abcdef0123")
	if !strings.Contains(got, "0123456789ab)") {
		t.Errorf("commit not shortened: %q", got)
	}
}

func TestColorizeHelpOutput_KeepsText(t *testing.T) {
	help := "Supervisor:\n  run         Run the supervisor (start here)\n"
	got := colorizeHelpOutput(help)
	for _, want := range []string{"Supervisor:", "run", "(start here)"} {
		if !strings.Contains(got, want) {
			t.Errorf("colorized help lost %q: %q", want, got)
		}
	}
}
