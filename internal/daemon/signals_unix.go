//go:build unix

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

// PokeSignals cut the current backoff sleep short and poll immediately.
func PokeSignals() []os.Signal {
	return []os.Signal{syscall.SIGUSR1}
}
