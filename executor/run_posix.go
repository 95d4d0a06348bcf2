//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// noConsoleWindow has no POSIX equivalent; it places the child in its own
// process group instead, which the terminate/kill ladder uses to reach any
// grandchildren the script spawns.
func noConsoleWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateGracefully sends SIGTERM to the whole process group.
func terminateGracefully(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

// killForcefully sends SIGKILL to the whole process group.
func killForcefully(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
