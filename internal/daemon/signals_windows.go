//go:build windows

package daemon

import (
	"os"
	"syscall"
)

// StopSignals end `slotwatch run`.
func StopSignals() []os.Signal {
	return []os.Signal{
		syscall.SIGINT,
		syscall.SIGTERM,
	}
}

// PokeSignals is empty: Windows has no SIGUSR1.
func PokeSignals() []os.Signal {
	return nil
}
