// Package schedule implements BindKit's Schedule Runtime (spec.md §4.G):
// interval and CRON-driven execution with an overlap gate, missed-run
// recovery across clock jumps, and runtime reconfiguration. Modeled on the
// teacher's single-threaded timer-driven style (see service.Monitor) but
// using a stateful robfig/cron/v3 iterator per spec.md §9's "construct
// once, advance on each fire" guidance.
package schedule

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bindkit/bindkit/events"
	"github.com/bindkit/bindkit/model"
	"github.com/bindkit/bindkit/settings"
)

// Callback is invoked on each fire. It receives the script identifier and
// path the schedule was registered with.
type Callback func(name, path string) model.ExecutionResult

// handle is the runtime's internal bookkeeping for one active schedule,
// wrapping the published model.ScheduleHandle with the live timer and
// (for CRON) the stateful iterator.
type handle struct {
	model.ScheduleHandle
	timer    *time.Timer
	cronIter cron.Schedule
	callback Callback
}

// Runtime drives every active ScheduleHandle. A single mutex protects the
// active-schedule map and each handle's is_executing/is_stopping flags, per
// spec.md §5; the mutex is held only across flag check-and-set, never
// across a callback invocation.
type Runtime struct {
	store settings.Store
	sink  events.Sink

	mu        sync.Mutex
	schedules map[string]*handle
}

// New builds a Schedule Runtime backed by store for persisted last_run/
// next_run shadow writes and sink for schedule_error/execution_blocked events.
func New(store settings.Store, sink events.Sink) *Runtime {
	return &Runtime{
		store:     store,
		sink:      sink,
		schedules: make(map[string]*handle),
	}
}

// ValidateInterval checks that secs lies in the spec's [10, 2_147_483] bound.
func ValidateInterval(secs int) error {
	if secs < model.MinIntervalSeconds || secs > model.MaxIntervalSeconds {
		return fmt.Errorf("schedule: interval must be between %d and %d seconds", model.MinIntervalSeconds, model.MaxIntervalSeconds)
	}
	return nil
}

// ParseCron validates expr and returns its stateful iterator.
func ParseCron(expr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("schedule: invalid cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// StartInterval registers a fixed-interval schedule for name, rejecting if
// name is already active.
func (r *Runtime) StartInterval(name, path string, intervalSeconds int, cb Callback) error {
	if err := ValidateInterval(intervalSeconds); err != nil {
		return err
	}
	return r.start(name, path, model.ScheduleInterval, intervalSeconds, "", nil, cb)
}

// StartCron registers a CRON schedule for name, rejecting if name is
// already active or expr fails to parse.
func (r *Runtime) StartCron(name, path, expr string, cb Callback) error {
	iter, err := ParseCron(expr)
	if err != nil {
		return err
	}
	return r.start(name, path, model.ScheduleCron, 0, expr, iter, cb)
}

func (r *Runtime) start(name, path string, kind model.ScheduleKind, intervalSeconds int, expr string, iter cron.Schedule, cb Callback) error {
	r.mu.Lock()
	if _, exists := r.schedules[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("schedule: %q is already active", name)
	}
	r.mu.Unlock()

	now := time.Now()
	var next time.Time
	if kind == model.ScheduleInterval {
		next = now.Add(time.Duration(intervalSeconds) * time.Second)
	} else {
		next = iter.Next(now)
	}

	h := &handle{
		ScheduleHandle: model.ScheduleHandle{
			ScriptName:      name,
			ScriptPath:      path,
			ScheduleType:    kind,
			IntervalSeconds: intervalSeconds,
			CronExpression:  expr,
			NextRun:         &next,
			State:           model.ScheduleScheduled,
		},
		cronIter: iter,
		callback: cb,
	}

	r.mu.Lock()
	r.schedules[name] = h
	r.mu.Unlock()

	// Nothing after this point can fail the start: persist logs a write
	// failure instead of returning it, so the entry stays registered.
	h.timer = time.AfterFunc(time.Until(next), func() { r.fire(name) })

	r.persist(name, h)
	log.Printf("schedule: started %q (%v)", name, kind)
	return nil
}

// Stop deactivates name: sets is_stopping under the lock, stops the timer,
// removes the entry. A tick already in flight observes the flag and skips
// its post-state update.
func (r *Runtime) Stop(name string) error {
	r.mu.Lock()
	h, ok := r.schedules[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("schedule: %q is not active", name)
	}
	h.IsStopping = true
	if h.timer != nil {
		h.timer.Stop()
	}
	delete(r.schedules, name)
	r.mu.Unlock()

	log.Printf("schedule: stopped %q", name)
	return nil
}

// StopAll stops every active schedule, returning the count stopped.
func (r *Runtime) StopAll() int {
	r.mu.Lock()
	names := make([]string, 0, len(r.schedules))
	for name := range r.schedules {
		names = append(names, name)
	}
	r.mu.Unlock()

	stopped := 0
	for _, name := range names {
		if err := r.Stop(name); err == nil {
			stopped++
		}
	}
	return stopped
}

// Handle returns a copy of the published handle for name, if active.
func (r *Runtime) Handle(name string) (model.ScheduleHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.schedules[name]
	if !ok {
		return model.ScheduleHandle{}, false
	}
	return h.ScheduleHandle, true
}

// All returns a snapshot of every active schedule handle, keyed by name.
func (r *Runtime) All() map[string]model.ScheduleHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.ScheduleHandle, len(r.schedules))
	for name, h := range r.schedules {
		out[name] = h.ScheduleHandle
	}
	return out
}

// fire is the dispatcher invoked on every timer tick, implementing the
// ordering in spec.md §4.G step by step.
func (r *Runtime) fire(name string) {
	r.mu.Lock()
	h, ok := r.schedules[name]
	if !ok || h.IsStopping {
		r.mu.Unlock()
		return
	}
	if h.IsExecuting {
		// Blocked ticks are recorded, never queued; the next fire still
		// lands on schedule, so advance next_run from now before rearming.
		now := time.Now()
		next := r.computeNext(h, now)
		h.NextRun = &next
		r.mu.Unlock()
		r.sink.Emit(model.Event{Topic: model.TopicExecutionBlocked, Component: "schedule", Name: name})
		r.rearm(name)
		return
	}
	h.IsExecuting = true
	h.State = model.ScheduleRunning
	r.mu.Unlock()

	now := time.Now()
	r.mu.Lock()
	h.LastRun = &now
	next := r.computeNext(h, now)
	h.NextRun = &next
	r.mu.Unlock()

	r.persist(name, h)

	// Rearm before invoking the callback so a tick that lands while the
	// callback is still running reaches the overlap gate above.
	r.rearm(name)

	defer func() {
		r.mu.Lock()
		h.IsExecuting = false
		if h.State != model.ScheduleError {
			h.State = model.ScheduleScheduled
		}
		r.mu.Unlock()
	}()

	result := r.invoke(h)
	if !result.Success && result.Error != "" {
		r.mu.Lock()
		h.State = model.ScheduleError
		r.mu.Unlock()
		r.sink.Emit(model.Event{Topic: model.TopicScheduleError, Component: "schedule", Name: name, Message: result.Error})
	}
}

// invoke calls the callback, converting a panic into an Error result so a
// misbehaving script callback can never kill the scheduler loop.
func (r *Runtime) invoke(h *handle) (result model.ExecutionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			result = model.ExecutionResult{Success: false, Error: fmt.Sprintf("panic: %v", rec)}
		}
	}()
	return h.callback(h.ScriptName, h.ScriptPath)
}

// computeNext advances the schedule's next-run timestamp. For CRON, a
// bounded loop re-advances the iterator while the produced timestamp is
// ≤ now, handling DST jumps and NTP steps without double-firing the same
// tick (spec.md §4.G step 3, §8 property 9).
func (r *Runtime) computeNext(h *handle, now time.Time) time.Time {
	if h.ScheduleType == model.ScheduleInterval {
		return now.Add(time.Duration(h.IntervalSeconds) * time.Second)
	}

	iter := h.cronIter
	next := iter.Next(now)
	for i := 0; i < 1000 && !next.After(now); i++ {
		next = iter.Next(next)
	}
	if !next.After(now) {
		// Iterator faulted (can't make progress); recreate it from now.
		recreated, err := ParseCron(h.CronExpression)
		if err != nil {
			log.Printf("schedule: %q cron re-parse failed: %v", h.ScriptName, err)
			return now.Add(time.Minute)
		}
		h.cronIter = recreated
		next = recreated.Next(now)
	}
	return next
}

// rearm schedules the next timer fire at the handle's next_run, replacing
// any timer already armed, unless the entry has since been stopped.
func (r *Runtime) rearm(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.schedules[name]
	if !ok || h.IsStopping || h.NextRun == nil {
		return
	}
	d := time.Until(*h.NextRun)
	if d < 0 {
		d = 0
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(d, func() { r.fire(name) })
}

// persist best-effort writes last_run/next_run to the settings store per
// spec.md §6/§9: a write failure is logged, never aborts the caller.
func (r *Runtime) persist(name string, h *handle) {
	prefix := "scripts/schedule/" + name + "/"
	if h.LastRun != nil {
		if err := r.store.Set(prefix+"last_run", float64(h.LastRun.Unix())); err != nil {
			log.Printf("schedule: failed to persist last_run for %q: %v", name, err)
		}
	}
	if h.NextRun != nil {
		if err := r.store.Set(prefix+"next_run", float64(h.NextRun.Unix())); err != nil {
			log.Printf("schedule: failed to persist next_run for %q: %v", name, err)
		}
	}
}

// UpdateInterval stops and restarts name's underlying timer with a new
// interval, refreshing next_run. Rejects out-of-range intervals.
func (r *Runtime) UpdateInterval(name string, secs int) error {
	if err := ValidateInterval(secs); err != nil {
		return err
	}
	r.mu.Lock()
	h, ok := r.schedules[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("schedule: %q is not active", name)
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.IntervalSeconds = secs
	h.ScheduleType = model.ScheduleInterval
	next := time.Now().Add(time.Duration(secs) * time.Second)
	h.NextRun = &next
	h.timer = time.AfterFunc(time.Until(next), func() { r.fire(name) })
	r.mu.Unlock()

	r.persist(name, h)
	return nil
}

// UpdateCron stops and restarts name's underlying timer with a new CRON
// expression, recreating the stateful iterator.
func (r *Runtime) UpdateCron(name, expr string) error {
	iter, err := ParseCron(expr)
	if err != nil {
		return err
	}
	r.mu.Lock()
	h, ok := r.schedules[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("schedule: %q is not active", name)
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.CronExpression = expr
	h.ScheduleType = model.ScheduleCron
	h.cronIter = iter
	next := iter.Next(time.Now())
	h.NextRun = &next
	h.timer = time.AfterFunc(time.Until(next), func() { r.fire(name) })
	r.mu.Unlock()

	r.persist(name, h)
	return nil
}
