//go:build windows

package launcher

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// setProcAttr starts a non-interactive child in a new process group so
// the console's Ctrl+C is delivered to the launcher, which then stops the
// child itself. An interactive child shares the console group.
func setProcAttr(cmd *exec.Cmd, ownGroup bool) {
	if !ownGroup {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}

// taskkill runs taskkill.exe. npm and npx are .cmd shims, so stopping
// only the direct child would leave node running; /T takes the tree.
var taskkill = func(args ...string) error {
	return exec.Command("taskkill", args...).Run()
}

func taskkillArgs(pid int, force bool) []string {
	args := []string{"/T", "/PID", strconv.Itoa(pid)}
	if force {
		args = append([]string{"/F"}, args...)
	}
	return args
}

// terminateProcess asks the process tree to close and forces it when
// the polite request is refused, which is the norm for console programs.
func terminateProcess(p *os.Process) error {
	if err := taskkill(taskkillArgs(p.Pid, false)...); err == nil {
		return nil
	}
	return killProcess(p)
}

// killProcess force-kills the process tree, falling back to the child alone
func killProcess(p *os.Process) error {
	if err := taskkill(taskkillArgs(p.Pid, true)...); err == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
