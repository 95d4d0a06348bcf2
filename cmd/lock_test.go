package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireLockRejectsLiveHolder(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	first, err := acquireLock()
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer first.release()

	if _, err := acquireLock(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second acquire = %v, want ErrAlreadyRunning", err)
	}
}

func TestAcquireLockAfterRelease(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	first, err := acquireLock()
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	first.release()

	second, err := acquireLock()
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	second.release()
}

func TestAcquireLockClaimsStaleLock(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	lockPath := filepath.Join(dir, "bindkit", "bindkit.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(lockPath, []byte("99999\n"), 0600); err != nil {
		t.Fatalf("write stale lock: %v", err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(lockPath, old, old); err != nil {
		t.Fatalf("age lock: %v", err)
	}

	l, err := acquireLock()
	if err != nil {
		t.Fatalf("expected stale lock to be claimed, got %v", err)
	}
	l.release()
}
