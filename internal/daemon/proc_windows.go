//go:build windows

package daemon

import (
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op: Windows has no process groups to join here.
func setSysProcAttr(cmd *exec.Cmd) {}

// sendTermSignal kills the worker; Windows has no SIGTERM.
func sendTermSignal(p *os.Process) error {
	return p.Kill()
}

// sendKillSignal kills the worker.
func sendKillSignal(p *os.Process) error {
	return p.Kill()
}

// exitSignal is always empty on Windows; termination shows up as an exit code.
func exitSignal(state *os.ProcessState) string {
	return ""
}
