package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xucongyong/slotwatch/internal/logging"
	"github.com/xucongyong/slotwatch/internal/probe"
	"github.com/xucongyong/slotwatch/internal/style"
)

var probeCmd = &cobra.Command{
	Use:     "probe",
	GroupID: GroupDiag,
	Short:   "Run the availability probe once",
	Long: `Run the configured availability probe once and print the result.

Exits 0 when the opportunity is available and 1 otherwise, so the command
can be used in scripts. SLOTWATCH_FORCE_AVAILABLE is honored.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	s, _, err := loadSettings()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Verbose: verboseFlag, Format: logging.FormatConsole})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	p, err := probe.FromSettings(s, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	start := time.Now()
	available, err := p.Check(cmd.Context())
	elapsed := time.Since(start).Round(time.Millisecond)

	switch {
	case err != nil:
		fmt.Fprintf(out, "%s Probe failed after %s: %v\n", style.ErrorPrefix, elapsed, err)
		return NewSilentExit(ExitUnavailable)
	case !available:
		fmt.Fprintf(out, "%s Not available (%s)\n", style.WarningPrefix, elapsed)
		return NewSilentExit(ExitUnavailable)
	default:
		fmt.Fprintf(out, "%s Available (%s)\n", style.SuccessPrefix, elapsed)
		return nil
	}
}
