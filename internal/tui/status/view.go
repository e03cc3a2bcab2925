package status

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/xucongyong/slotwatch/internal/daemon"
	"github.com/xucongyong/slotwatch/internal/ui"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ui.ColorAccent)

	selectedStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15"))

	rowStyle = lipgloss.NewStyle()

	mutedStyle = lipgloss.NewStyle().
			Foreground(ui.ColorMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(ui.ColorFail)
)

func (m Model) renderView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("slotwatch"))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render(m.lockStatus))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	if m.state != nil && !m.state.UpdatedAt.IsZero() {
		b.WriteString(m.renderSummary())
		b.WriteString("\n")
	}

	if len(m.rows) == 0 && m.err == nil {
		b.WriteString("No workers have run yet.\n")
	}

	now := m.now()
	for i, r := range m.rows {
		line := renderRow(r, now)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(rowStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(m.help.View(m.keys))
	} else {
		b.WriteString(mutedStyle.Render("j/k:navigate  r:refresh  q:quit  ?:help"))
	}
	return b.String()
}

func (m Model) renderSummary() string {
	s := m.state
	result := s.LastResult
	switch result {
	case daemon.ResultAvailable:
		result = ui.RenderPass(result)
	case daemon.ResultError:
		result = ui.RenderFail(result)
	case "":
		result = ui.RenderMuted("pending")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Last check: %s (%s ago)  cycles: %d  next poll in ≤ %s\n",
		result,
		ago(m.now(), s.LastCheck),
		s.Cycles,
		time.Duration(s.PollInterval))
	if s.LastError != "" {
		b.WriteString(errorStyle.Render(truncate(s.LastError, 100)))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRow(r Row, now time.Time) string {
	if r.Live {
		return fmt.Sprintf("%s %-24s running  pid %-7d %s",
			ui.RenderAccent(ui.IconRunning),
			truncate(r.ID, 24),
			r.PID,
			mutedStyle.Render(ago(now, r.Since)))
	}

	wait := r.Until.Sub(now)
	state := "eligible"
	if wait > 0 {
		state = "cooling " + wait.Round(time.Second).String()
	}
	return fmt.Sprintf("%s %-24s %-8s %s",
		ui.RenderOutcomeIcon(string(r.Outcome)),
		truncate(r.ID, 24),
		string(r.Outcome),
		mutedStyle.Render(state))
}

func ago(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return now.Sub(t).Round(time.Second).String()
}

// truncate shortens a string to the given rune length, preserving UTF-8.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
