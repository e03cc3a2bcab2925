//go:build !windows

package lock

import (
	"errors"
	"os"
	"syscall"
)

// processAlive reports whether pid names a live process. EPERM means the
// process exists but belongs to another user, which still holds the lock.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
