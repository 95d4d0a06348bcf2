//go:build !windows

package service

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureDetached places the child in its own process group so the
// runtime can signal the whole tree at once, the POSIX equivalent of the
// Job Object mechanism used on Windows.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// attachToJob is a no-op on POSIX: the process group set up by
// configureDetached already provides the kill-the-tree guarantee.
func attachToJob(cmd *exec.Cmd) (any, error) {
	return nil, nil
}

func releaseJob(h *handle) {}

func terminateService(h *handle) error {
	return unix.Kill(-h.cmd.Process.Pid, unix.SIGTERM)
}

func killService(h *handle) error {
	return unix.Kill(-h.cmd.Process.Pid, unix.SIGKILL)
}
