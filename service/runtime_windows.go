//go:build windows

package service

import (
	"fmt"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// configureDetached hides the console window and puts the child in a new
// process group so CTRL_BREAK_EVENT can reach it independently of BindKit
// itself.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}

// attachToJob creates a Job Object with JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
// and JOB_OBJECT_LIMIT_BREAKAWAY_OK and assigns the child to it, per
// spec.md §4.E. This is the mechanism that guarantees the entire process
// tree dies when the service is stopped or BindKit terminates unexpectedly.
func attachToJob(cmd *exec.Cmd) (any, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("service: CreateJobObject: %w", err)
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE | windows.JOB_OBJECT_LIMIT_BREAKAWAY_OK,
		},
	}
	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		windows.CloseHandle(job)
		return nil, fmt.Errorf("service: SetInformationJobObject: %w", err)
	}

	procHandle, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(cmd.Process.Pid))
	if err != nil {
		windows.CloseHandle(job)
		return nil, fmt.Errorf("service: OpenProcess: %w", err)
	}
	defer windows.CloseHandle(procHandle)

	if err := windows.AssignProcessToJobObject(job, procHandle); err != nil {
		windows.CloseHandle(job)
		return nil, fmt.Errorf("service: AssignProcessToJobObject: %w", err)
	}

	return windows.Handle(job), nil
}

func releaseJob(h *handle) {
	if h.job == nil {
		return
	}
	if job, ok := h.job.(windows.Handle); ok {
		windows.CloseHandle(job)
	}
}

// terminateService sends CTRL_BREAK_EVENT to the child's process group,
// the graceful-shutdown signal on Windows.
func terminateService(h *handle) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(h.cmd.Process.Pid))
}

// killService forcefully terminates the whole Job Object, guaranteeing the
// process tree dies even if the child spawned grandchildren.
func killService(h *handle) error {
	if h.job != nil {
		if job, ok := h.job.(windows.Handle); ok {
			return windows.TerminateJobObject(job, 1)
		}
	}
	return h.cmd.Process.Kill()
}
