//go:build unix

package daemon

import (
	"os"
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the worker in its own process group so that signals
// reach the browser processes it spawns.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// sendTermSignal sends SIGTERM to the worker's process group.
func sendTermSignal(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGTERM)
}

// sendKillSignal sends SIGKILL to the worker's process group.
func sendKillSignal(p *os.Process) error {
	return syscall.Kill(-p.Pid, syscall.SIGKILL)
}

// exitSignal names the signal that terminated the process, or "".
func exitSignal(state *os.ProcessState) string {
	if state == nil {
		return ""
	}
	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return ""
	}
	return ws.Signal().String()
}
