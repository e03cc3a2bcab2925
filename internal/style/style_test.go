package style

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestStyleVariables(t *testing.T) {
	tests := []struct {
		name   string
		render func(...string) string
	}{
		{"Success", Success.Render},
		{"Warning", Warning.Render},
		{"Error", Error.Render},
		{"Info", Info.Render},
		{"Dim", Dim.Render},
		{"Bold", Bold.Render},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.render("test"); !strings.Contains(result, "test") {
				t.Errorf("Style %s.Render() = %q, want it to contain the text", tt.name, result)
			}
		})
	}
}

func TestPrintWarning(t *testing.T) {
	var buf bytes.Buffer
	PrintWarning(&buf, "invalid %s", "slow-mo")
	PrintWarning(&buf, "plain")

	out := buf.String()
	if !strings.Contains(out, "Warning:") || !strings.Contains(out, "invalid slow-mo") {
		t.Errorf("output = %q", out)
	}
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("got %d lines, want 2", n)
	}
}

func TestTable_Render(t *testing.T) {
	tbl := NewTable(
		Column{Name: "ID", Width: 8},
		Column{Name: "PID", Width: 6, Align: AlignRight},
		Column{Name: "STATE", Width: 10, Align: AlignCenter},
	).SetIndent("")

	tbl.AddRow("alice", "4242", "running")
	tbl.AddRow("a-very-long-identity", "1")

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header, separator and 2 rows:\n%s", len(lines), tbl.Render())
	}
	if got := ansi.Strip(lines[2]); got != "alice      4242  running  " {
		t.Errorf("row = %q", got)
	}
	if got := ansi.Strip(lines[3]); !strings.HasPrefix(got, "a-ver...") {
		t.Errorf("long value not truncated: %q", got)
	}
	if got := ansi.Strip(lines[1]); got != strings.Repeat("─", 8+1+6+1+10) {
		t.Errorf("separator = %q", got)
	}
}

func TestTable_NoHeaderSeparator(t *testing.T) {
	tbl := NewTable(Column{Name: "ID", Width: 4}).SetHeaderSeparator(false)
	tbl.AddRow("x")
	if strings.Contains(tbl.Render(), "─") {
		t.Error("separator rendered when disabled")
	}
}

func TestPad_MeasuresCells(t *testing.T) {
	// The check mark is three bytes but one cell wide.
	if got := pad("✓ ok", 6, AlignLeft); got != "✓ ok  " {
		t.Errorf("pad = %q", got)
	}
	if got := pad(Bold.Render("ok"), 4, AlignRight); ansi.Strip(got) != "  ok" {
		t.Errorf("pad styled = %q", ansi.Strip(got))
	}
}
