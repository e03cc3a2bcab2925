package cmd

import (
	"errors"
	"fmt"
)

// Exit codes for scripted use. Commands return them wrapped in a
// SilentExitError after printing their own output.
const (
	// ExitUnavailable is returned by `probe` when the opportunity is absent.
	ExitUnavailable = 1
	// ExitInvalidConfigs is returned by `configs` when any file was rejected.
	ExitInvalidConfigs = 2
	// ExitNotRunning is returned by `status` when no supervisor holds the lock.
	ExitNotRunning = 3
)

// SilentExitError makes Execute exit with Code without printing anything.
type SilentExitError struct {
	Code int
}

func (e *SilentExitError) Error() string {
	return fmt.Sprintf("exit %d", e.Code)
}

// NewSilentExit creates a SilentExitError with the given exit code.
func NewSilentExit(code int) *SilentExitError {
	return &SilentExitError{Code: code}
}

// IsSilentExit reports whether err wraps a SilentExitError and returns its code.
func IsSilentExit(err error) (int, bool) {
	var se *SilentExitError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}
