package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xucongyong/slotwatch/internal/style"
	"github.com/xucongyong/slotwatch/internal/workercfg"
)

var configsJSON bool

var configsCmd = &cobra.Command{
	Use:     "configs",
	GroupID: GroupSupervisor,
	Short:   "List and validate worker configs",
	Long: `Discover worker configs the way the supervisor does and report which
would be launched.

Files are read from the config directory in filename order. Files that fail
to parse, lack an id, or repeat an id already seen are listed as errors and
the command exits with code 2.`,
	Args: cobra.NoArgs,
	RunE: runConfigs,
}

func init() {
	configsCmd.Flags().BoolVar(&configsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(configsCmd)
}

type configsOutput struct {
	Dir     string         `json:"dir"`
	Workers []configRecord `json:"workers"`
	Errors  []string       `json:"errors"`
}

type configRecord struct {
	ID      string `json:"id"`
	Profile string `json:"profile,omitempty"`
	File    string `json:"file"`
}

func runConfigs(cmd *cobra.Command, args []string) error {
	dir := configDirFlag
	if dir == "" {
		s, _, err := loadSettings()
		if err != nil {
			return err
		}
		dir = s.ConfigDir
	}

	entries, failed, err := workercfg.Discover(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if configsJSON {
		if err := printConfigsJSON(out, dir, entries, failed); err != nil {
			return err
		}
	} else {
		printConfigs(out, dir, entries, failed)
	}

	if len(failed) > 0 {
		return NewSilentExit(ExitInvalidConfigs)
	}
	return nil
}

func printConfigsJSON(out io.Writer, dir string, entries []workercfg.Entry, failed []*workercfg.LoadError) error {
	result := configsOutput{Dir: dir, Workers: []configRecord{}, Errors: []string{}}
	for _, e := range entries {
		result.Workers = append(result.Workers, configRecord{ID: e.Config.ID, Profile: e.Config.ProfilePath, File: e.Path})
	}
	for _, le := range failed {
		result.Errors = append(result.Errors, le.Error())
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printConfigs(out io.Writer, dir string, entries []workercfg.Entry, failed []*workercfg.LoadError) {
	fmt.Fprintf(out, "%s %s\n\n", style.Bold.Render("Config directory:"), dir)

	if len(entries) == 0 {
		fmt.Fprintf(out, "  %s\n", style.Dim.Render("No valid worker configs"))
	} else {
		tbl := style.NewTable(
			style.Column{Name: "ID", Width: 24},
			style.Column{Name: "PROFILE", Width: 36},
			style.Column{Name: "FILE", Width: 24},
		)
		for _, e := range entries {
			profile := e.Config.ProfilePath
			if profile == "" {
				profile = style.Dim.Render("-")
			}
			tbl.AddRow(e.Config.ID, profile, filepath.Base(e.Path))
		}
		fmt.Fprint(out, tbl.Render())
	}

	if len(failed) > 0 {
		fmt.Fprintln(out)
		for _, le := range failed {
			fmt.Fprintf(out, "%s %s\n", style.ErrorPrefix, le.Error())
		}
	}
	fmt.Fprintf(out, "\n%d valid, %d invalid\n", len(entries), len(failed))
}
