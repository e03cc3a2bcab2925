package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/xucongyong/slotwatch/internal/daemon"
	"github.com/xucongyong/slotwatch/internal/lock"
	"github.com/xucongyong/slotwatch/internal/style"
	tuistatus "github.com/xucongyong/slotwatch/internal/tui/status"
	"github.com/xucongyong/slotwatch/internal/ui"
)

var (
	statusJSON     bool
	statusWatch    bool
	statusInterval int
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"stat"},
	GroupID: GroupDiag,
	Short:   "Show supervisor status",
	Long: `Show whether a supervisor is running, the result of its last
availability check, live workers and per-worker cooldowns.

The data comes from the snapshot the supervisor writes after every cycle
and every worker exit. Exits with code 3 when no supervisor is running.

Use --watch for a live view that refreshes every --interval seconds.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Watch mode: refresh status continuously")
	statusCmd.Flags().IntVarP(&statusInterval, "interval", "n", 2, "Refresh interval in seconds")
	rootCmd.AddCommand(statusCmd)
}

// statusOutput is the --json shape.
type statusOutput struct {
	Supervisor string `json:"supervisor"`
	Alive      bool   `json:"alive"`
	*daemon.State
}

func runStatus(cmd *cobra.Command, args []string) error {
	dir := stateDir()

	if statusWatch {
		m := tuistatus.New(dir, time.Duration(statusInterval)*time.Second)
		_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	}

	state, err := daemon.LoadState(dir)
	if err != nil {
		return fmt.Errorf("reading state: %w", err)
	}
	lk := lock.New(dir)
	alive := false
	if info, err := lk.Read(); err == nil && !info.IsStale() {
		alive = true
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(statusOutput{Supervisor: lk.Status(), Alive: alive, State: state}); err != nil {
			return err
		}
	} else {
		printStatus(out, lk.Status(), alive, state, time.Now())
	}

	if !alive {
		return NewSilentExit(ExitNotRunning)
	}
	return nil
}

func printStatus(out io.Writer, holder string, alive bool, s *daemon.State, now time.Time) {
	icon := style.ErrorPrefix
	if alive {
		icon = style.SuccessPrefix
	}
	fmt.Fprintf(out, "%s Supervisor: %s\n", icon, holder)

	if s.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "  %s\n", style.Dim.Render("No snapshot written yet"))
		return
	}

	if !s.LastCheck.IsZero() {
		fmt.Fprintf(out, "  Last check:    %s, %s ago (cycle %d)\n",
			renderResult(s.LastResult), now.Sub(s.LastCheck).Round(time.Second), s.Cycles)
	}
	if s.LastError != "" {
		fmt.Fprintf(out, "  Last error:    %s\n", style.Error.Render(s.LastError))
	}
	fmt.Fprintf(out, "  Poll interval: %s\n", time.Duration(s.PollInterval))
	fmt.Fprintf(out, "  Config dir:    %s\n", s.ConfigDir)
	fmt.Fprintln(out)

	if len(s.Workers) > 0 {
		fmt.Fprintf(out, "%s\n", style.Bold.Render("Running workers"))
		tbl := style.NewTable(
			style.Column{Name: "ID", Width: 24},
			style.Column{Name: "PID", Width: 8, Align: style.AlignRight},
			style.Column{Name: "UPTIME", Width: 10, Align: style.AlignRight},
			style.Column{Name: "RUN", Width: 8},
		)
		for _, w := range s.Workers {
			tbl.AddRow(w.ID, fmt.Sprint(w.PID), now.Sub(w.StartedAt).Round(time.Second).String(), shortRunID(w.RunID))
		}
		fmt.Fprint(out, tbl.Render())
		fmt.Fprintln(out)
	}

	if len(s.Cooldowns) > 0 {
		fmt.Fprintf(out, "%s\n", style.Bold.Render("Cooldowns"))
		tbl := style.NewTable(
			style.Column{Name: "ID", Width: 24},
			style.Column{Name: "LAST", Width: 12},
			style.Column{Name: "ELIGIBLE", Width: 14},
		)
		for _, c := range s.Cooldowns {
			eligible := "now"
			if wait := c.Until.Sub(now); wait > 0 {
				eligible = "in " + wait.Round(time.Second).String()
			}
			tbl.AddRow(c.ID, ui.RenderOutcomeIcon(string(c.Outcome))+" "+string(c.Outcome), eligible)
		}
		fmt.Fprint(out, tbl.Render())
	}
}

func renderResult(result string) string {
	switch result {
	case daemon.ResultAvailable:
		return style.Success.Render(result)
	case daemon.ResultError:
		return style.Error.Render(result)
	case "":
		return style.Dim.Render("pending")
	default:
		return result
	}
}
