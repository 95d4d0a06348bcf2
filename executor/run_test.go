package executor

import (
	"context"
	"testing"
	"time"
)

// TestRunSubprocessCapturesOutputAndExitCode covers scenario S1: a simple
// run's stdout (trailing newline trimmed) and its non-zero exit code are
// both captured.
func TestRunSubprocessCapturesOutputAndExitCode(t *testing.T) {
	res, err := runSubprocess(context.Background(), []string{"/bin/sh", "-c", "echo hello; exit 3"}, nil, 5*time.Second)
	if err != nil {
		t.Fatalf("runSubprocess failed: %v", err)
	}
	if res.Stdout != "hello" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello")
	}
	if res.ReturnCode != 3 {
		t.Errorf("return code = %d, want 3", res.ReturnCode)
	}
	if res.TimedOut {
		t.Error("did not expect TimedOut")
	}
}

// TestRunSubprocessTimeoutLadder covers spec.md §8 property 5 / scenario
// S3: a process that ignores SIGTERM is force-killed after the 5s grace
// window, and the call still returns rather than blocking forever.
func TestRunSubprocessTimeoutLadder(t *testing.T) {
	script := "trap '' TERM; sleep 30"
	res, err := runSubprocess(context.Background(), []string{"/bin/sh", "-c", script}, nil, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("runSubprocess failed: %v", err)
	}
	if !res.TimedOut {
		t.Error("expected TimedOut=true")
	}
}

// TestRunSubprocessGracefulTerminate covers the first rung of the ladder: a
// process that honors SIGTERM exits before the 5s kill escalation.
func TestRunSubprocessGracefulTerminate(t *testing.T) {
	script := "trap 'exit 9' TERM; sleep 30"
	start := time.Now()
	res, err := runSubprocess(context.Background(), []string{"/bin/sh", "-c", script}, nil, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("runSubprocess failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("graceful terminate took %s, expected well under the 5s kill escalation", elapsed)
	}
	if !res.TimedOut {
		t.Error("expected TimedOut=true even though the process exited promptly after SIGTERM")
	}
}

func TestRunSubprocessEmptyCommandRejected(t *testing.T) {
	if _, err := runSubprocess(context.Background(), nil, nil, time.Second); err == nil {
		t.Error("expected error for an empty command")
	}
}

func TestRunSubprocessContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	res, err := runSubprocess(ctx, []string{"/bin/sh", "-c", "sleep 30"}, nil, 10*time.Second)
	if err != nil {
		t.Fatalf("runSubprocess failed: %v", err)
	}
	if res.TimedOut {
		t.Error("a context cancellation should not be reported as TimedOut")
	}
}
