// Package cmd implements the slotwatch command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xucongyong/slotwatch/internal/config"
	"github.com/xucongyong/slotwatch/internal/logging"
	"github.com/xucongyong/slotwatch/internal/style"
	"github.com/xucongyong/slotwatch/internal/ui"
)

// Command groups shown in help.
const (
	GroupSupervisor = "supervisor"
	GroupDiag       = "diag"
)

// Persistent flags
var (
	configDirFlag string
	stateDirFlag  string
	settingsFlag  string
	verboseFlag   bool
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "slotwatch",
	Short: "Launch browser workers the moment an appointment slot opens",
	Long: `slotwatch polls for an opportunity (an open appointment slot) and, when
one appears, starts one worker process per configured identity.

Workers are launched with a fixed stagger, never run twice at once for the
same identity, and cool down after each run: a long cooldown after a zero
exit, a short retry delay otherwise. Poll spacing backs off while nothing
is available.

Configuration comes from built-in defaults, an optional TOML settings file
(--settings or SLOTWATCH_SETTINGS) and SLOTWATCH_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		theme := ""
		if s, _, err := loadSettings(); err == nil {
			theme = s.Theme
		}
		ui.InitTheme(theme)
		ui.ApplyThemeMode()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupSupervisor, Title: "Supervisor:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDirFlag, "config-dir", "", "Worker config directory (overrides "+config.EnvConfigDir+")")
	pf.StringVar(&stateDirFlag, "state-dir", "", "State directory for lock, snapshot and lifecycle log (overrides "+config.EnvStateDir+")")
	pf.StringVar(&settingsFlag, "settings", "", "TOML settings file (overrides "+config.EnvSettingsFile+")")
	pf.BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&logFormatFlag, "log-format", string(logging.FormatAuto), "Log encoding: auto, json or console")
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code, ok := IsSilentExit(err); ok {
			return code
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", style.ErrorPrefix, err)
		return 1
	}
	return 0
}

// loadSettings resolves settings from defaults, the settings file, the
// environment and finally the persistent flags.
func loadSettings() (*config.Settings, []string, error) {
	path := settingsFlag
	if path == "" {
		path = os.Getenv(config.EnvSettingsFile)
	}

	s, warnings, err := config.Load(path, os.Getenv)
	if err != nil {
		return nil, warnings, err
	}
	if configDirFlag != "" {
		s.ConfigDir = configDirFlag
	}
	if stateDirFlag != "" {
		s.StateDir = stateDirFlag
	}
	return s, warnings, nil
}

// stateDir returns the state directory without requiring valid settings,
// so read-only commands keep working when the settings are broken.
func stateDir() string {
	if stateDirFlag != "" {
		return stateDirFlag
	}
	if s, _, err := loadSettings(); err == nil {
		return s.StateDir
	}
	if v := os.Getenv(config.EnvStateDir); v != "" {
		return v
	}
	return config.Default().StateDir
}
