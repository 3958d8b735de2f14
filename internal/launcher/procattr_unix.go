//go:build unix

package launcher

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcAttr puts a non-interactive child in its own process group so
// termination can address it together with anything it forked
// (npx -> node, npm -> vite). An interactive child stays in the
// launcher's group: it can read the terminal and receives Ctrl+C
// alongside the launcher.
func setProcAttr(cmd *exec.Cmd, ownGroup bool) {
	if !ownGroup {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// terminateProcess sends SIGTERM to the child's process group
func terminateProcess(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

// killProcess sends SIGKILL to the child's process group
func killProcess(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

// signalGroup signals the child's group only when the child leads it;
// a child sharing the launcher's group is signalled alone.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	if pgid, err := syscall.Getpgid(p.Pid); err == nil && pgid == p.Pid {
		if err := syscall.Kill(-pgid, sig); err == nil || errors.Is(err, syscall.ESRCH) {
			return nil
		}
	}
	// Fallback: signal just the process
	if err := p.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
