package service

import (
	"log"
	"sync"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v3/process"

	"github.com/bindkit/bindkit/events"
	"github.com/bindkit/bindkit/model"
	"github.com/bindkit/bindkit/settings"
)

const defaultCheckInterval = 5 * time.Second

// Monitor is BindKit's Service Monitor (spec.md §4.F): a periodic task that
// observes active services via gopsutil, detects crashes, and drives the
// auto-restart policy.
type Monitor struct {
	runtime *Runtime
	store   settings.Store
	sink    events.Sink
	restart func(name string, path string, args map[string]string) (model.ServiceHandle, error)

	interval time.Duration

	mu         sync.Mutex
	lastStates map[string]model.ServiceState
	stop       chan struct{}
	running    bool
}

// NewMonitor builds a Monitor polling runtime every interval (0 uses the
// spec default of 5s).
func NewMonitor(runtime *Runtime, store settings.Store, sink events.Sink, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Monitor{
		runtime:    runtime,
		store:      store,
		sink:       sink,
		restart:    runtime.StartService,
		interval:   interval,
		lastStates: make(map[string]model.ServiceState),
	}
}

// Start begins the periodic poll loop in a background goroutine.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	stop := m.stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.checkServices()
			case <-stop:
				return
			}
		}
	}()
	log.Printf("service: monitor started (interval=%s)", m.interval)
}

// Stop ends the poll loop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
	log.Printf("service: monitor stopped")
}

func (m *Monitor) checkServices() {
	active := m.runtime.All()
	for name, handle := range active {
		current := m.classify(name, handle)

		m.mu.Lock()
		last, seen := m.lastStates[name]
		m.lastStates[name] = current
		m.mu.Unlock()

		if seen && last == current {
			continue
		}

		if current == model.ServiceCrashed {
			m.handleCrash(name, handle)
		}
	}

	m.mu.Lock()
	for name := range m.lastStates {
		if _, ok := active[name]; !ok {
			delete(m.lastStates, name)
		}
	}
	m.mu.Unlock()
}

// classify reconciles the runtime's recorded state with gopsutil's live
// process check, so a process killed out-of-band (e.g. by the OS) is
// detected as Crashed even between runtime status reads. A lookup error
// means the PID is gone, which counts as crashed for a Running handle.
func (m *Monitor) classify(name string, h model.ServiceHandle) model.ServiceState {
	if st := m.runtime.Status(name); st != model.ServiceRunning {
		return st
	}
	running, err := processAlive(h.PID)
	if err == nil && running {
		return model.ServiceRunning
	}
	return model.ServiceCrashed
}

func processAlive(pid int) (bool, error) {
	proc, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return false, err
	}
	return proc.IsRunning()
}

func (m *Monitor) handleCrash(name string, h model.ServiceHandle) {
	m.sink.Emit(model.Event{Topic: model.TopicServiceCrashed, Component: "service", Name: name})
	log.Printf("service: %q crashed (pid=%d)", name, h.PID)

	// Reflect the crash in the runtime's bookkeeping immediately, so
	// StartService's already-running guard doesn't block the restart
	// below on a handle that's still marked Running.
	m.runtime.markCrashed(name)

	if h.PendingRestart {
		return
	}

	cfg := m.serviceConfig(name)
	if !cfg.AutoRestart {
		log.Printf("service: auto-restart disabled for %q", name)
		m.runtime.cleanup(name)
		return
	}
	if h.RestartCount >= cfg.MaxRestarts {
		log.Printf("service: %q reached max restart limit (%d)", name, h.RestartCount)
		m.sink.Emit(model.Event{Topic: model.TopicRestartLimitReached, Component: "service", Name: name})
		m.runtime.cleanup(name)
		return
	}

	m.runtime.SetPendingRestart(name, true)
	delay := time.Duration(cfg.RestartDelaySeconds) * time.Second
	log.Printf("service: scheduling restart for %q in %s", name, delay)

	// One-shot timer, not a blocking sleep, per spec.md §5: restart delays
	// never block the poll loop.
	time.AfterFunc(delay, func() { m.restartService(name, h) })
}

func (m *Monitor) restartService(name string, crashed model.ServiceHandle) {
	m.runtime.SetPendingRestart(name, false)

	newHandle, err := m.restart(name, crashed.ScriptPath, crashed.Arguments)
	if err != nil {
		log.Printf("service: failed to restart %q: %v", name, err)
		return
	}
	m.runtime.SetRestartCount(name, crashed.RestartCount+1)

	m.mu.Lock()
	m.lastStates[name] = model.ServiceRunning
	m.mu.Unlock()

	log.Printf("service: %q restarted (restart #%d, pid=%d)", name, crashed.RestartCount+1, newHandle.PID)
	m.sink.Emit(model.Event{Topic: model.TopicServiceRestarted, Component: "service", Name: name})
}

func (m *Monitor) serviceConfig(name string) model.ServiceConfig {
	def := model.DefaultServiceConfig()
	prefix := "scripts/services/" + name + "/"
	return model.ServiceConfig{
		Enabled:             m.store.GetBool(prefix+"enabled", def.Enabled),
		AutoRestart:         m.store.GetBool(prefix+"auto_restart", def.AutoRestart),
		MaxRestarts:         m.store.GetInt(prefix+"max_restarts", def.MaxRestarts),
		RestartDelaySeconds: m.store.GetInt(prefix+"restart_delay_seconds", def.RestartDelaySeconds),
	}
}

// ResetRestartCount zeroes name's restart counter, e.g. after a manual
// stop/start cycle, per spec.md §4.F.
func (m *Monitor) ResetRestartCount(name string) {
	m.runtime.SetRestartCount(name, 0)
}
