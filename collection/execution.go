package collection

import (
	"context"
	"fmt"
	"sync"

	"github.com/bindkit/bindkit/model"
	"github.com/bindkit/bindkit/settings"
)

// Runner executes one script, matching executor.Executor's signature. The
// interface lets ExecutionModel avoid importing the executor package
// directly and keeps collection testable against a fake.
type Runner interface {
	Execute(ctx context.Context, script model.ScriptInfo, args map[string]string) model.ExecutionResult
}

const defaultWorkerPoolSize = 4

// ExecutionModel dispatches run requests against the Collection's catalog,
// enforcing spec.md §4.K's three concurrency rules: one execution per
// script name at a time; in-process strategies serialize onto a single
// "main loop" goroutine; subprocess-based strategies run on a bounded
// worker pool with cancellation.
type ExecutionModel struct {
	runner Runner
	col    *Collection
	store  settings.Store

	mainLoop chan func()
	workers  chan struct{}

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewExecutionModel builds an ExecutionModel. poolSize bounds the
// subprocess-strategy worker pool (0 uses a default of 4).
func NewExecutionModel(runner Runner, col *Collection, store settings.Store, poolSize int) *ExecutionModel {
	if poolSize <= 0 {
		poolSize = defaultWorkerPoolSize
	}
	m := &ExecutionModel{
		runner:   runner,
		col:      col,
		store:    store,
		mainLoop: make(chan func()),
		workers:  make(chan struct{}, poolSize),
		active:   map[string]context.CancelFunc{},
	}
	go m.mainLoopWorker()
	return m
}

func (m *ExecutionModel) mainLoopWorker() {
	for job := range m.mainLoop {
		job()
	}
}

func isInProcess(strategy model.ExecutionStrategy) bool {
	return strategy == model.StrategyInProcessFunction || strategy == model.StrategyInProcessModule
}

// Run dispatches name with args, rejecting a concurrent request for the
// same name that is already in flight.
func (m *ExecutionModel) Run(name string, args map[string]string) (model.ExecutionResult, error) {
	script, ok := m.col.Lookup(name)
	if !ok {
		return model.ExecutionResult{}, fmt.Errorf("collection: unknown script %q", name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if _, running := m.active[name]; running {
		m.mu.Unlock()
		cancel()
		return model.ExecutionResult{}, fmt.Errorf("collection: %q is already running", name)
	}
	m.active[name] = cancel
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.active, name)
		m.mu.Unlock()
		cancel()
	}()

	if isInProcess(script.Strategy) {
		resultCh := make(chan model.ExecutionResult, 1)
		m.mainLoop <- func() {
			resultCh <- m.runner.Execute(ctx, script, args)
		}
		return <-resultCh, nil
	}

	m.workers <- struct{}{}
	defer func() { <-m.workers }()
	return m.runner.Execute(ctx, script, args), nil
}

// Cancel signals the in-flight run for name, if any, to stop. The soft
// cancel flag unblocks cooperative steps immediately; a blocked subprocess
// wait is terminated (graceful, then forceful) by the executor's own
// ctx.Done() handling before the worker is rejoined, per spec.md §5.
func (m *ExecutionModel) Cancel(name string) error {
	m.mu.Lock()
	cancel, ok := m.active[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("collection: %q is not running", name)
	}
	cancel()
	return nil
}

// IsRunning reports whether name currently has an in-flight execution.
func (m *ExecutionModel) IsRunning(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[name]
	return ok
}

// ResolvePreset reads a saved argument preset for identifier, per
// SPEC_FULL.md's supplemented preset-arguments feature
// (scripts/presets/<identifier>/<preset_name>).
func (m *ExecutionModel) ResolvePreset(identifier, presetName string) (map[string]string, error) {
	prefix := fmt.Sprintf("scripts/presets/%s/%s", identifier, presetName)
	values := m.store.GetMap(prefix)
	if len(values) == 0 {
		return nil, fmt.Errorf("collection: no preset %q for %q", presetName, identifier)
	}
	return values, nil
}

// RunWithPreset resolves presetName for identifier and runs it.
func (m *ExecutionModel) RunWithPreset(identifier, presetName string) (model.ExecutionResult, error) {
	args, err := m.ResolvePreset(identifier, presetName)
	if err != nil {
		return model.ExecutionResult{}, err
	}
	return m.Run(identifier, args)
}

// Close stops the main-loop goroutine. Call once during shutdown, after
// every in-flight run has been allowed to finish or been cancelled.
func (m *ExecutionModel) Close() {
	close(m.mainLoop)
}
