package ui

import (
	"os"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// EnvTheme overrides the configured color scheme.
const EnvTheme = "SLOTWATCH_THEME"

// ThemeMode represents the CLI color scheme mode.
type ThemeMode string

const (
	ThemeModeAuto  ThemeMode = "auto"
	ThemeModeDark  ThemeMode = "dark"
	ThemeModeLight ThemeMode = "light"
)

var (
	themeMode         = ThemeModeAuto
	hasDarkBackground = true
)

// InitTheme resolves the theme from SLOTWATCH_THEME, then configTheme (the
// settings file's theme key), then auto detection. Unknown values are skipped.
func InitTheme(configTheme string) {
	themeMode = ThemeModeAuto
	for _, candidate := range []string{os.Getenv(EnvTheme), configTheme} {
		if mode, ok := parseThemeMode(candidate); ok {
			themeMode = mode
			break
		}
	}

	switch themeMode {
	case ThemeModeDark:
		hasDarkBackground = true
	case ThemeModeLight:
		hasDarkBackground = false
	default:
		hasDarkBackground = termenv.HasDarkBackground()
	}
}

func parseThemeMode(s string) (ThemeMode, bool) {
	switch mode := ThemeMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ThemeModeAuto, ThemeModeDark, ThemeModeLight:
		return mode, true
	}
	return "", false
}

// GetThemeMode returns the mode chosen by the last InitTheme call.
func GetThemeMode() ThemeMode {
	return themeMode
}

// HasDarkBackground reports whether adaptive colors should use their dark variant.
func HasDarkBackground() bool {
	return hasDarkBackground
}

// IsTerminal returns true if stdout is connected to a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColor determines if ANSI color codes should be used.
// Respects NO_COLOR (https://no-color.org/), CLICOLOR, and CLICOLOR_FORCE conventions.
func ShouldUseColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if _, exists := os.LookupEnv("CLICOLOR_FORCE"); exists {
		return true
	}
	return IsTerminal()
}
