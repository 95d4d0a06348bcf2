package collection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bindkit/bindkit/model"
	"github.com/bindkit/bindkit/settings"
)

type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	delay   time.Duration
	result  model.ExecutionResult
	lastCtx context.Context
}

func (f *fakeRunner) Execute(ctx context.Context, script model.ScriptInfo, args map[string]string) model.ExecutionResult {
	f.mu.Lock()
	f.calls++
	f.lastCtx = ctx
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}
	return f.result
}

func newTestCollection(scripts ...model.ScriptInfo) *Collection {
	c := New(settings.NewMemoryStore())
	c.Replace(scripts, nil)
	return c
}

func TestRunRejectsUnknownScript(t *testing.T) {
	c := newTestCollection()
	m := NewExecutionModel(&fakeRunner{}, c, settings.NewMemoryStore(), 2)
	defer m.Close()

	if _, err := m.Run("nope", nil); err == nil {
		t.Error("expected error for unknown script")
	}
}

// TestRunRejectsConcurrentSameName covers spec.md §4.K's one-execution-
// per-name rule.
func TestRunRejectsConcurrentSameName(t *testing.T) {
	c := newTestCollection(model.ScriptInfo{
		CanonicalIdentifier: "slow.sh",
		DisplayName:         "slow.sh",
		Strategy:            model.StrategyShell,
	})
	runner := &fakeRunner{delay: 200 * time.Millisecond, result: model.ExecutionResult{Success: true}}
	m := NewExecutionModel(runner, c, settings.NewMemoryStore(), 2)
	defer m.Close()

	go m.Run("slow.sh", nil)
	time.Sleep(20 * time.Millisecond)

	if !m.IsRunning("slow.sh") {
		t.Fatal("expected slow.sh to be reported as running")
	}
	if _, err := m.Run("slow.sh", nil); err == nil {
		t.Error("expected rejection of a concurrent run for the same name")
	}

	time.Sleep(250 * time.Millisecond)
	if m.IsRunning("slow.sh") {
		t.Error("expected slow.sh to no longer be running after completion")
	}
}

func TestInProcessStrategyRunsOnMainLoop(t *testing.T) {
	c := newTestCollection(model.ScriptInfo{
		CanonicalIdentifier: "inproc.py",
		DisplayName:         "inproc.py",
		Strategy:            model.StrategyInProcessFunction,
	})
	runner := &fakeRunner{result: model.ExecutionResult{Success: true, Message: "ran"}}
	m := NewExecutionModel(runner, c, settings.NewMemoryStore(), 2)
	defer m.Close()

	result, err := m.Run("inproc.py", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Success || result.Message != "ran" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestSubprocessStrategyBoundedByWorkerPool(t *testing.T) {
	c := newTestCollection(
		model.ScriptInfo{CanonicalIdentifier: "a.sh", DisplayName: "a.sh", Strategy: model.StrategyShell},
		model.ScriptInfo{CanonicalIdentifier: "b.sh", DisplayName: "b.sh", Strategy: model.StrategyShell},
		model.ScriptInfo{CanonicalIdentifier: "c.sh", DisplayName: "c.sh", Strategy: model.StrategyShell},
	)
	runner := &fakeRunner{delay: 100 * time.Millisecond, result: model.ExecutionResult{Success: true}}
	m := NewExecutionModel(runner, c, settings.NewMemoryStore(), 1)
	defer m.Close()

	var wg sync.WaitGroup
	for _, name := range []string{"a.sh", "b.sh", "c.sh"} {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			m.Run(n, nil)
		}(name)
	}
	wg.Wait()

	runner.mu.Lock()
	calls := runner.calls
	runner.mu.Unlock()
	if calls != 3 {
		t.Fatalf("expected all 3 runs to eventually complete, got %d calls", calls)
	}
}

func TestCancelStopsInFlightRun(t *testing.T) {
	c := newTestCollection(model.ScriptInfo{
		CanonicalIdentifier: "cancelme.sh",
		DisplayName:         "cancelme.sh",
		Strategy:            model.StrategyShell,
	})
	runner := &fakeRunner{delay: 2 * time.Second, result: model.ExecutionResult{Success: true}}
	m := NewExecutionModel(runner, c, settings.NewMemoryStore(), 2)
	defer m.Close()

	go m.Run("cancelme.sh", nil)
	time.Sleep(20 * time.Millisecond)

	if err := m.Cancel("cancelme.sh"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	runner.mu.Lock()
	ctx := runner.lastCtx
	runner.mu.Unlock()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("expected the runner's context to be cancelled")
	}
}

func TestCancelUnknownNameErrors(t *testing.T) {
	c := newTestCollection()
	m := NewExecutionModel(&fakeRunner{}, c, settings.NewMemoryStore(), 2)
	defer m.Close()

	if err := m.Cancel("nope"); err == nil {
		t.Error("expected error cancelling a script that is not running")
	}
}

func TestResolvePresetAndRunWithPreset(t *testing.T) {
	store := settings.NewMemoryStore()
	store.Set("scripts/presets/deploy.py/prod/env", "production")
	store.Set("scripts/presets/deploy.py/prod/region", "us-east-1")

	c := newTestCollection(model.ScriptInfo{
		CanonicalIdentifier: "deploy.py",
		DisplayName:         "deploy.py",
		Strategy:            model.StrategyInProcessFunction,
	})
	runner := &fakeRunner{result: model.ExecutionResult{Success: true}}
	m := NewExecutionModel(runner, c, store, 2)
	defer m.Close()

	args, err := m.ResolvePreset("deploy.py", "prod")
	if err != nil {
		t.Fatalf("ResolvePreset failed: %v", err)
	}
	if args["env"] != "production" || args["region"] != "us-east-1" {
		t.Errorf("unexpected preset values: %+v", args)
	}

	result, err := m.RunWithPreset("deploy.py", "prod")
	if err != nil {
		t.Fatalf("RunWithPreset failed: %v", err)
	}
	if !result.Success {
		t.Error("expected successful run via preset")
	}
}

func TestResolvePresetMissingReturnsError(t *testing.T) {
	c := newTestCollection()
	m := NewExecutionModel(&fakeRunner{}, c, settings.NewMemoryStore(), 2)
	defer m.Close()

	if _, err := m.ResolvePreset("deploy.py", "missing"); err == nil {
		t.Error("expected error for a missing preset")
	}
}
