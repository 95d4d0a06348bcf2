//go:build windows

package executor

import (
	"os/exec"
	"syscall"
)

// noConsoleWindow configures cmd to spawn without a visible console
// window, mirroring the original implementation's
// subprocess.CREATE_NO_WINDOW flag.
func noConsoleWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}

// terminateGracefully has no cheap stdlib equivalent on Windows for an
// arbitrary child console process; fall through to a forceful kill.
func terminateGracefully(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func killForcefully(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
