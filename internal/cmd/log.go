package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/xucongyong/slotwatch/internal/runlog"
	"github.com/xucongyong/slotwatch/internal/style"
)

// Log command flags
var (
	logTail   int
	logType   string
	logWorker string
	logSince  string
	logFollow bool
)

var logCmd = &cobra.Command{
	Use:     "log",
	GroupID: GroupDiag,
	Short:   "View the worker lifecycle log",
	Long: `View the lifecycle events the supervisor recorded for its workers.

Events:
  launch        - worker process started
  done          - worker exited with code 0
  fail          - worker exited non-zero or was killed by a signal
  start_failed  - worker process could not be started
  timeout       - worker exceeded its runtime ceiling and was terminated
  stop          - worker was terminated because the supervisor stopped

Examples:
  slotwatch log                     # Show last 20 events
  slotwatch log -n 50               # Show last 50 events
  slotwatch log --type fail         # Show only failures
  slotwatch log --worker alice      # Show events for workers starting with "alice"
  slotwatch log --since 1h          # Show events from last hour
  slotwatch log -f                  # Follow log (like tail -f)`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logTail, "tail", "n", 20, "Number of events to show")
	logCmd.Flags().StringVarP(&logType, "type", "t", "", "Filter by event type (launch,done,fail,start_failed,timeout,stop)")
	logCmd.Flags().StringVarP(&logWorker, "worker", "w", "", "Filter by worker id prefix")
	logCmd.Flags().StringVar(&logSince, "since", "", "Show events since duration (e.g., 1h, 30m, 24h)")
	logCmd.Flags().BoolVarP(&logFollow, "follow", "f", false, "Follow log output (like tail -f)")

	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	dir := stateDir()
	logPath := runlog.Path(dir)
	out := cmd.OutOrStdout()

	if logFollow {
		return followLog(out, logPath)
	}

	filter := runlog.Filter{
		Type:   runlog.EventType(logType),
		Worker: logWorker,
	}
	if logSince != "" {
		duration, err := time.ParseDuration(logSince)
		if err != nil {
			return fmt.Errorf("invalid --since duration: %w", err)
		}
		filter.Since = time.Now().Add(-duration)
	}

	events, err := runlog.ReadEvents(dir)
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintf(out, "%s No events recorded in %s\n", style.Dim.Render("○"), logPath)
		return nil
	}

	events = runlog.Tail(runlog.FilterEvents(events, filter), logTail)
	if len(events) == 0 {
		fmt.Fprintf(out, "%s No events match filter\n", style.Dim.Render("○"))
		return nil
	}

	for _, e := range events {
		printEvent(out, e)
	}
	return nil
}

// followLog uses tail -f to follow the log file.
func followLog(out io.Writer, logPath string) error {
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return fmt.Errorf("creating logs directory: %w", err)
		}
		f, err := os.Create(logPath)
		if err != nil {
			return fmt.Errorf("creating log file: %w", err)
		}
		_ = f.Close()
	}

	fmt.Fprintf(out, "%s Following %s (Ctrl+C to stop)\n\n", style.Dim.Render("○"), logPath)

	tailCmd := exec.Command("tail", "-f", logPath)
	tailCmd.Stdout = out
	tailCmd.Stderr = os.Stderr
	return tailCmd.Run()
}

// printEvent prints a single event with styling.
func printEvent(out io.Writer, e runlog.Event) {
	ts := e.Timestamp.Format("2006-01-02 15:04:05")

	var typeStr string
	switch e.Type {
	case runlog.EventLaunch:
		typeStr = style.Info.Render("[launch]")
	case runlog.EventDone:
		typeStr = style.Success.Render("[done]")
	case runlog.EventFail:
		typeStr = style.Error.Render("[fail]")
	case runlog.EventStartFailed:
		typeStr = style.Error.Render("[start_failed]")
	case runlog.EventTimeout:
		typeStr = style.Warning.Render("[timeout]")
	case runlog.EventStop:
		typeStr = style.Dim.Render("[stop]")
	default:
		typeStr = fmt.Sprintf("[%s]", e.Type)
	}

	run := ""
	if e.RunID != "" {
		run = style.Dim.Render(shortRunID(e.RunID))
	}
	fmt.Fprintf(out, "%s %s %s %s %s\n", style.Dim.Render(ts), typeStr, e.Worker, run, e.Detail)
}

// shortRunID keeps the first uuid group, which is enough to tell runs apart.
func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
