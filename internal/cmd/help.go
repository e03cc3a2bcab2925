package cmd

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xucongyong/slotwatch/internal/ui"
)

var (
	// "Supervisor:" and other group titles on a line of their own.
	groupHeaderRE   = regexp.MustCompile(`(?m)^[A-Z][A-Za-z &]+:\s*$`)
	sectionHeaderRE = regexp.MustCompile(`(?m)^(Examples|Flags|Usage|Global Flags|Aliases|Available Commands|Events):`)
	// "  run         Run the supervisor ..."
	cmdLineRE = regexp.MustCompile(`(?m)^(  )([a-z][a-z0-9]*(?:-[a-z0-9]+)*)(\s{2,})(.*)$`)
	// "  -n, --tail int   Number of events ..."
	flagLineRE = regexp.MustCompile(`(?m)^(\s+)(-\w,\s+--[\w-]+|--[\w-]+)(\s+)(string|int|duration|bool)?(\s*.*)$`)
	defaultRE  = regexp.MustCompile(`\(default[^)]*\)`)
	entryRE    = regexp.MustCompile(`\(start here\)`)
)

func init() {
	rootCmd.SetHelpFunc(colorizedHelpFunc)
}

// colorizedHelpFunc prints the Long text and usage with group headers,
// command names and flags highlighted.
func colorizedHelpFunc(cmd *cobra.Command, args []string) {
	var b strings.Builder
	switch {
	case cmd.Long != "":
		b.WriteString(cmd.Long + "\n\n")
	case cmd.Short != "":
		b.WriteString(cmd.Short + "\n\n")
	}
	b.WriteString(cmd.UsageString())
	fmt.Fprint(cmd.OutOrStdout(), colorizeHelpOutput(b.String()))
}

func colorizeHelpOutput(help string) string {
	out := groupHeaderRE.ReplaceAllStringFunc(help, func(m string) string {
		return ui.RenderAccent(strings.TrimSpace(m))
	})
	out = sectionHeaderRE.ReplaceAllStringFunc(out, ui.RenderAccent)

	out = cmdLineRE.ReplaceAllStringFunc(out, func(m string) string {
		p := cmdLineRE.FindStringSubmatch(m)
		desc := entryRE.ReplaceAllStringFunc(p[4], ui.RenderAccent)
		return p[1] + ui.RenderCommand(p[2]) + p[3] + desc
	})

	return flagLineRE.ReplaceAllStringFunc(out, func(m string) string {
		p := flagLineRE.FindStringSubmatch(m)
		desc := defaultRE.ReplaceAllStringFunc(p[5], ui.RenderMuted)
		typ := p[4]
		if typ != "" {
			typ = ui.RenderMuted(typ)
		}
		return p[1] + ui.RenderCommand(p[2]) + p[3] + typ + desc
	})
}
