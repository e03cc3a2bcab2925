// Package logging builds the structured logger shared by every slotwatch
// component. Records carry a timestamp, level, message and contextual fields;
// the field names below are used consistently so log queries stay stable.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Field keys used across the supervisor.
const (
	FieldWorker    = "worker"
	FieldRunID     = "run_id"
	FieldPath      = "path"
	FieldStream    = "stream"
	FieldOutput    = "output"
	FieldAvailable = "available"
)

// Format selects the record encoding.
type Format string

const (
	// FormatAuto picks console for a terminal and JSON otherwise.
	FormatAuto    Format = "auto"
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Options configures New.
type Options struct {
	Verbose bool
	Format  Format
	// OutputPaths defaults to stderr.
	OutputPaths []string
}

// New builds a zap logger from the production config.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "message"
	cfg.Sampling = nil

	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if len(opts.OutputPaths) > 0 {
		cfg.OutputPaths = opts.OutputPaths
	}

	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	if format == FormatAuto {
		format = FormatJSON
		if isTerminal(os.Stderr) && onlyStderr(cfg.OutputPaths) {
			format = FormatConsole
		}
	}
	if format == FormatConsole {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// ParseFormat normalizes a --log-format value. Empty means auto.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatConsole:
		return FormatConsole, nil
	}
	return "", fmt.Errorf("unknown log format %q (want auto, json or console)", raw)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func onlyStderr(paths []string) bool {
	return len(paths) == 1 && paths[0] == "stderr"
}
