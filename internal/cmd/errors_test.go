package cmd

import (
	"errors"
	"fmt"
	"testing"
)

func TestSilentExitError(t *testing.T) {
	for _, code := range []int{0, ExitUnavailable, ExitInvalidConfigs, ExitNotRunning, 127} {
		t.Run(fmt.Sprintf("code_%d", code), func(t *testing.T) {
			err := NewSilentExit(code)
			if got, want := err.Error(), fmt.Sprintf("exit %d", code); got != want {
				t.Errorf("Error() = %q, want %q", got, want)
			}
			got, ok := IsSilentExit(err)
			if !ok || got != code {
				t.Errorf("IsSilentExit() = (%d, %v), want (%d, true)", got, ok, code)
			}
		})
	}
}

func TestIsSilentExit(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOK   bool
	}{
		{"nil", nil, 0, false},
		{"plain error", errors.New("boom"), 0, false},
		{"wrapped", fmt.Errorf("probe: %w", NewSilentExit(ExitUnavailable)), ExitUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := IsSilentExit(tt.err)
			if code != tt.wantCode || ok != tt.wantOK {
				t.Errorf("IsSilentExit() = (%d, %v), want (%d, %v)", code, ok, tt.wantCode, tt.wantOK)
			}
		})
	}
}
