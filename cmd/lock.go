package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bindkit/bindkit/settings"
)

// staleLockWindow is how old bindkit.lock may be before a new instance
// treats it as left over from a crashed run and claims it.
const staleLockWindow = 10 * time.Second

// heartbeatInterval keeps the held lock's mtime fresh, well inside the
// stale window.
const heartbeatInterval = 5 * time.Second

// ErrAlreadyRunning is returned by acquireLock when a live instance holds
// the lock.
var ErrAlreadyRunning = fmt.Errorf("another bindkit instance is already running")

// instanceLock is the single-instance file lock at the user's standard
// config directory (spec.md §6). While held, a heartbeat goroutine
// refreshes the file's mtime so other instances can distinguish a live
// holder from a stale lock left by an abnormal shutdown.
type instanceLock struct {
	path string
	stop chan struct{}
}

// acquireLock claims bindkit.lock next to the settings file. A lock whose
// mtime is within the stale window belongs to a live instance and fails
// the claim with ErrAlreadyRunning, carrying the holder's pid if readable.
func acquireLock() (*instanceLock, error) {
	dir := filepath.Dir(settings.Path())
	if dir == "." || dir == "" {
		return nil, fmt.Errorf("cannot determine config directory for lock file")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}
	path := filepath.Join(dir, "bindkit.lock")

	if info, err := os.Stat(path); err == nil {
		if time.Since(info.ModTime()) < staleLockWindow {
			pid := readLockPID(path)
			if pid > 0 {
				return nil, fmt.Errorf("%w (pid=%d)", ErrAlreadyRunning, pid)
			}
			return nil, ErrAlreadyRunning
		}
		log.Printf("lock: claiming stale lock file %s (age %s)", path, time.Since(info.ModTime()).Round(time.Second))
	}

	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0600); err != nil {
		return nil, fmt.Errorf("write lock file: %w", err)
	}

	l := &instanceLock{path: path, stop: make(chan struct{})}
	go l.heartbeat()
	return l, nil
}

func readLockPID(path string) int {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0
	}
	return pid
}

func (l *instanceLock) heartbeat() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			if err := os.Chtimes(l.path, now, now); err != nil {
				log.Printf("lock: heartbeat failed: %v", err)
			}
		case <-l.stop:
			return
		}
	}
}

// release stops the heartbeat and removes the lock file.
func (l *instanceLock) release() {
	close(l.stop)
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		log.Printf("lock: remove failed: %v", err)
	}
}
