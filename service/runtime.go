// Package service implements BindKit's Service Runtime (spec.md §4.E) and
// Service Monitor (§4.F): long-running background scripts, spawned
// detached with log capture, supervised for crash-restart.
package service

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/bindkit/bindkit/model"
)

func newID() string {
	return uuid.NewString()
}

// handle is the runtime's internal bookkeeping for one active service,
// wrapping the published model.ServiceHandle with the live *exec.Cmd and
// open log file needed to stop it.
type handle struct {
	model.ServiceHandle
	cmd     *exec.Cmd
	logFile *os.File
	job     any // platform-specific job/group token, see runtime_windows.go / runtime_posix.go
	exited  chan struct{} // closed by the reaper once cmd.Wait returns
}

// Runtime manages the lifecycle of supervised background processes.
type Runtime struct {
	logsDir    string
	pythonPath string

	mu       sync.Mutex
	services map[string]*handle
}

// New builds a Runtime that writes service logs under logsDir
// (conventionally "logs/services").
func New(logsDir, pythonPath string) *Runtime {
	if pythonPath == "" {
		pythonPath = "python"
	}
	return &Runtime{
		logsDir:    logsDir,
		pythonPath: pythonPath,
		services:   make(map[string]*handle),
	}
}

// IsRunning reports whether name has an active handle whose process has
// not yet been observed to exit.
func (r *Runtime) IsRunning(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.services[name]
	return ok && h.State == model.ServiceRunning && h.alive()
}

// StartService spawns path as a detached background process, fails if name
// is already active, per spec.md §4.E.
func (r *Runtime) StartService(name, path string, args map[string]string) (model.ServiceHandle, error) {
	r.mu.Lock()
	if existing, ok := r.services[name]; ok {
		if existing.State != model.ServiceStopped && existing.State != model.ServiceCrashed {
			r.mu.Unlock()
			return model.ServiceHandle{}, fmt.Errorf("service %q is already running", name)
		}
		// A crashed entry left for the monitor to consume: release its log
		// file and job token before the replacement handle takes the name.
		delete(r.services, name)
		r.mu.Unlock()
		existing.logFile.Close()
		releaseJob(existing)
	} else {
		r.mu.Unlock()
	}

	if err := os.MkdirAll(r.logsDir, 0o755); err != nil {
		return model.ServiceHandle{}, fmt.Errorf("service: create logs dir: %w", err)
	}
	logPath := filepath.Join(r.logsDir, name+".log")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return model.ServiceHandle{}, fmt.Errorf("service: open log: %w", err)
	}

	cmd := exec.Command(r.pythonPath, buildArgv(path, args)...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	configureDetached(cmd)

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return model.ServiceHandle{}, fmt.Errorf("service: start %q: %w", name, err)
	}

	job, jobErr := attachToJob(cmd)
	if jobErr != nil {
		log.Printf("service: job/group setup failed for %q: %v", name, jobErr)
	}

	h := &handle{
		ServiceHandle: model.ServiceHandle{
			ID:          newID(),
			ScriptName:  name,
			ScriptPath:  path,
			PID:         cmd.Process.Pid,
			StartTime:   time.Now(),
			LogFilePath: logPath,
			Arguments:   args,
			State:       model.ServiceRunning,
		},
		cmd:     cmd,
		logFile: logFile,
		exited:  make(chan struct{}),
	}
	h.job = job

	// Reap the child as soon as it exits so crash detection sees the exit
	// promptly and no zombie lingers until stop.
	go func() {
		_ = cmd.Wait()
		close(h.exited)
	}()

	r.mu.Lock()
	r.services[name] = h
	r.mu.Unlock()

	log.Printf("service: started %q (pid=%d)", name, h.PID)
	return h.ServiceHandle, nil
}

func buildArgv(path string, args map[string]string) []string {
	argv := []string{path}
	for name, v := range args {
		if v == "" {
			continue
		}
		argv = append(argv, fmt.Sprintf("--%s", name), v)
	}
	return argv
}

// StopService stops name gracefully, escalating to a forceful kill of the
// whole process tree if it hasn't exited within timeout. Cleanup (closing
// the log file and job/group token, removing the entry) always runs.
func (r *Runtime) StopService(name string, timeout time.Duration) error {
	r.mu.Lock()
	h, ok := r.services[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("service %q is not running", name)
	}
	h.State = model.ServiceStopping
	r.mu.Unlock()

	defer r.cleanup(name)

	select {
	case <-h.exited:
		return nil // already exited
	default:
	}

	_ = terminateService(h)

	select {
	case <-h.exited:
		log.Printf("service: %q stopped gracefully", name)
		return nil
	case <-time.After(timeout):
		log.Printf("service: %q did not stop gracefully, forcing termination", name)
		_ = killService(h)
		<-h.exited
		return nil
	}
}

// StopAll stops every active service, collecting (not short-circuiting on)
// individual failures into one aggregate error.
func (r *Runtime) StopAll(timeout time.Duration) error {
	r.mu.Lock()
	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	r.mu.Unlock()

	var result *multierror.Error
	for _, name := range names {
		if err := r.StopService(name, timeout); err != nil {
			result = multierror.Append(result, fmt.Errorf("stop %q: %w", name, err))
		}
	}
	return result.ErrorOrNil()
}

// Status returns the current observed state for name, reconciling a
// process that has exited since the last poll into Crashed or Stopped.
func (r *Runtime) Status(name string) model.ServiceState {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.services[name]
	if !ok {
		return model.ServiceStopped
	}
	if !h.alive() {
		if h.State == model.ServiceStopping {
			return model.ServiceStopped
		}
		return model.ServiceCrashed
	}
	return h.State
}

// Handle returns a copy of the published handle for name, if active.
func (r *Runtime) Handle(name string) (model.ServiceHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.services[name]
	if !ok {
		return model.ServiceHandle{}, false
	}
	return h.ServiceHandle, true
}

// All returns a snapshot of every active service handle, keyed by name.
func (r *Runtime) All() map[string]model.ServiceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.ServiceHandle, len(r.services))
	for name, h := range r.services {
		out[name] = h.ServiceHandle
	}
	return out
}

// SetRestartCount updates the restart counter for name in place, used by
// the Monitor to preserve restart_count across a crash-restart cycle and
// to reset it after a manual stop/start.
func (r *Runtime) SetRestartCount(name string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.services[name]; ok {
		h.RestartCount = n
	}
}

// markCrashed flags name's handle as Crashed in place, so StartService's
// already-running guard doesn't block the Monitor's subsequent restart
// attempt for the same name.
func (r *Runtime) markCrashed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.services[name]; ok {
		h.State = model.ServiceCrashed
	}
}

// SetPendingRestart marks/clears the "pending restart" guard for name.
func (r *Runtime) SetPendingRestart(name string, pending bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.services[name]; ok {
		h.PendingRestart = pending
	}
}

func (r *Runtime) cleanup(name string) {
	r.mu.Lock()
	h, ok := r.services[name]
	if ok {
		delete(r.services, name)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := h.logFile.Close(); err != nil {
		log.Printf("service: error closing log file for %q: %v", name, err)
	}
	releaseJob(h)
}

func (h *handle) alive() bool {
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}
