// Package cmd implements BindKit's command-line entry point: flag parsing,
// wiring the execution core (settings, loader, collection, executor,
// service runtime/monitor, schedule runtime, hotkey registry/backend), and
// the popup launcher, in the teacher's standard-library-flag, no-framework
// style (cmd/root.go in ftahirops/xtop).
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bindkit/bindkit/collection"
	"github.com/bindkit/bindkit/events"
	"github.com/bindkit/bindkit/executor"
	"github.com/bindkit/bindkit/hotkey"
	"github.com/bindkit/bindkit/hotkeybackend"
	"github.com/bindkit/bindkit/interpreter"
	"github.com/bindkit/bindkit/loader"
	"github.com/bindkit/bindkit/modcache"
	"github.com/bindkit/bindkit/model"
	"github.com/bindkit/bindkit/schedule"
	"github.com/bindkit/bindkit/service"
	"github.com/bindkit/bindkit/settings"
	"github.com/bindkit/bindkit/ui"
)

// Version is set at build time via ldflags.
var Version = "0.1.0"

// ExitCodeError signals a non-zero exit code without calling os.Exit
// directly, so main can translate it without printing "Error:" noise.
type ExitCodeError struct{ Code int }

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

// Config holds CLI configuration.
type Config struct {
	Minimized bool
	DataDir   string
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `bindkit v%s — script discovery, hotkeys, services, and schedules

Usage:
  bindkit [OPTIONS]

Options:
  -minimized   Start with the tray icon visible and no foreground window
  -datadir DIR Data directory for scripts/ and logs/ (default: ~/.bindkit)
  -version     Print version and exit

Exit codes:
  0  normal shutdown
  1  fatal startup failure
`, Version)
}

func parseFlags(args []string) (Config, bool, error) {
	fs := flag.NewFlagSet("bindkit", flag.ContinueOnError)
	fs.Usage = printUsage

	var cfg Config
	var showVersion bool
	fs.BoolVar(&cfg.Minimized, "minimized", false, "start with the tray icon visible and no foreground window")
	fs.StringVar(&cfg.DataDir, "datadir", "", "data directory for scripts/ and logs/")
	fs.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, false, err
	}
	if showVersion {
		fmt.Printf("bindkit v%s\n", Version)
		return cfg, true, nil
	}
	return cfg, false, nil
}

// Run parses CLI flags, wires the execution core, and drives either the
// foreground launcher popup or a minimized headless run until shutdown.
func Run() error {
	cfg, exitNow, err := parseFlags(os.Args[1:])
	if err != nil {
		return ExitCodeError{Code: 1}
	}
	if exitNow {
		return nil
	}

	if cfg.DataDir == "" {
		home, herr := os.UserHomeDir()
		if herr != nil {
			fmt.Fprintf(os.Stderr, "bindkit: cannot determine home directory: %v\n", herr)
			return ExitCodeError{Code: 1}
		}
		cfg.DataDir = filepath.Join(home, ".bindkit")
	}

	core, err := buildCore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bindkit: startup failed: %v\n", err)
		return ExitCodeError{Code: 1}
	}
	defer core.shutdown()

	if core.store.GetBool("behavior/single_instance", true) {
		lock, lerr := acquireLock()
		if lerr != nil {
			if errors.Is(lerr, ErrAlreadyRunning) {
				fmt.Fprintf(os.Stderr, "bindkit: %v; deferring to it\n", lerr)
				return nil
			}
			fmt.Fprintf(os.Stderr, "bindkit: startup failed: %v\n", lerr)
			return ExitCodeError{Code: 1}
		}
		defer lock.release()
	}

	core.start()

	if cfg.Minimized {
		return core.waitForSignal()
	}
	return core.runLauncher()
}

// core bundles every wired execution-core component for one run of the
// bindkit binary.
type core struct {
	store    settings.Store
	bus      *events.Bus
	resolver *interpreter.Resolver
	cache    *modcache.Cache
	exec     *executor.Executor
	services *service.Runtime
	monitor  *service.Monitor
	schedules *schedule.Runtime
	hotkeys  *hotkey.Registry
	backend  hotkeybackend.Backend
	ld       *loader.Loader
	col      *collection.Collection
	execModel *collection.ExecutionModel
	watchStop chan struct{}

	scriptsDir string
	logsDir    string
}

func buildCore(cfg Config) (*core, error) {
	scriptsDir := filepath.Join(cfg.DataDir, "scripts")
	logsDir := filepath.Join(cfg.DataDir, "logs", "services")
	if err := os.MkdirAll(scriptsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scripts dir: %w", err)
	}

	store := settings.NewFileStore(filepath.Join(cfg.DataDir, "config.json"))
	bus := events.NewBus()
	bus.OnStatus(func(component, message string) { log.Printf("%s: %s", component, message) })
	bus.OnNotify(func(title, body string) { log.Printf("notify: %s: %s", title, body) })
	bus.On("", func(evt model.Event) {
		if evt.Message != "" {
			log.Printf("event: %s component=%s name=%s: %s", evt.Topic, evt.Component, evt.Name, evt.Message)
		} else {
			log.Printf("event: %s component=%s name=%s", evt.Topic, evt.Component, evt.Name)
		}
	})

	resolver := interpreter.New(store)
	cache := modcache.New(0, 0)

	services := service.New(logsDir, "")
	exec := &executor.Executor{Store: store, Interpreter: resolver, Cache: cache, Services: services}

	monitor := service.NewMonitor(services, store, bus, 0)
	schedules := schedule.New(store, bus)
	hotkeys := hotkey.New(store, bus)
	backend := hotkeybackend.NewDefault()

	externalPaths := map[string]string{}
	for key, path := range store.Group("scripts/external") {
		display := key[len("scripts/external/"):]
		if str, ok := path.(string); ok {
			externalPaths[display] = str
		}
	}
	ld := loader.New(scriptsDir, externalPaths)
	for key, renamed := range store.Group("scripts/custom_names") {
		original := key[len("scripts/custom_names/"):]
		if str, ok := renamed.(string); ok {
			ld.CustomNames[original] = str
		}
	}

	col := collection.New(store)
	execModel := collection.NewExecutionModel(exec, col, store, 0)

	return &core{
		store: store, bus: bus, resolver: resolver, cache: cache, exec: exec,
		services: services, monitor: monitor, schedules: schedules,
		hotkeys: hotkeys, backend: backend, ld: ld, col: col, execModel: execModel,
		watchStop: make(chan struct{}),
		scriptsDir: scriptsDir, logsDir: logsDir,
	}, nil
}

// watchScripts re-discovers and republishes the catalog whenever the local
// scripts directory changes, so edits take effect without a restart. Runs
// until core.watchStop is closed.
func (c *core) watchScripts() {
	err := c.ld.Watch(c.watchStop, func() {
		result, err := c.ld.Discover()
		if err != nil {
			log.Printf("loader: re-discover failed: %v", err)
			return
		}
		c.col.Replace(result.Scripts, result.LegacyAliases)
		c.bus.RebuildMenu()
		log.Printf("loader: re-discovered %d script(s) after change", len(result.Scripts))
	})
	if err != nil {
		log.Printf("loader: watch stopped: %v", err)
	}
}

// start discovers scripts, publishes the catalog, registers persisted
// hotkeys, starts persisted services and schedules, and begins the
// service monitor, matching the control flow in spec.md §2.
func (c *core) start() {
	result, err := c.ld.Discover()
	if err != nil {
		log.Printf("loader: discover failed: %v", err)
	} else {
		c.col.Replace(result.Scripts, result.LegacyAliases)
		for path, reason := range result.Failed {
			log.Printf("loader: failed to analyze %s: %s", path, reason)
		}
	}

	deadChords := 0
	for _, binding := range c.hotkeys.Bindings() {
		target := binding.Target
		mods, key, perr := hotkeybackend.ParseChord(binding.Chord)
		if perr != nil {
			log.Printf("hotkey: cannot parse chord %q for %q: %v", binding.Chord, target, perr)
			deadChords++
			continue
		}
		name := target
		if err := c.backend.Register(target, mods, key, func() {
			res, rerr := c.execModel.Run(name, map[string]string{})
			if rerr != nil {
				log.Printf("hotkey: run %q failed: %v", name, rerr)
				return
			}
			if c.store.GetBool("behavior/show_script_notifications", true) {
				c.bus.Notify(name, res.Message)
			}
		}); err != nil {
			log.Printf("hotkeybackend: registration_failed name=%q chord=%q: %v", target, binding.Chord, err)
			c.bus.Emit(model.Event{Topic: model.TopicRegistrationFailed, Component: "hotkeybackend", Name: target, Message: binding.Chord})
			deadChords++
		}
	}
	if deadChords > 0 {
		c.bus.Notify("Hotkeys unavailable", fmt.Sprintf("%d hotkey binding(s) could not be registered", deadChords))
	}

	for identifier, raw := range groupByID(c.store, "scripts/services") {
		cfgMap, ok := raw.(map[string]any)
		if !ok || !boolField(cfgMap, "enabled", false) {
			continue
		}
		script, ok := c.col.Lookup(identifier)
		if !ok {
			continue
		}
		if _, err := c.services.StartService(identifier, script.FilePath, nil); err != nil {
			log.Printf("service: autostart %q failed: %v", identifier, err)
		}
	}
	c.monitor.Start()
	go c.watchScripts()

	for identifier, raw := range groupByID(c.store, "scripts/schedule") {
		cfgMap, ok := raw.(map[string]any)
		if !ok || !boolField(cfgMap, "enabled", false) {
			continue
		}
		script, ok := c.col.Lookup(identifier)
		if !ok {
			continue
		}
		c.startSchedule(identifier, script.FilePath, cfgMap)
	}
}

func (c *core) startSchedule(identifier, path string, cfgMap map[string]any) {
	cb := func(name, scriptPath string) model.ExecutionResult {
		script, ok := c.col.Lookup(name)
		if !ok {
			return model.ExecutionResult{Success: false, Error: "script no longer discovered"}
		}
		return c.exec.Execute(context.Background(), script, map[string]string{})
	}

	kind, _ := cfgMap["type"].(string)
	if kind == "cron" {
		expr, _ := cfgMap["cron_expression"].(string)
		if err := c.schedules.StartCron(identifier, path, expr, cb); err != nil {
			log.Printf("schedule: start cron %q failed: %v", identifier, err)
		}
		return
	}
	secs := intField(cfgMap, "interval_seconds", model.MinIntervalSeconds)
	if err := c.schedules.StartInterval(identifier, path, secs, cb); err != nil {
		log.Printf("schedule: start interval %q failed: %v", identifier, err)
	}
}

// runLauncher drives the foreground bubbletea popup until the user quits.
func (c *core) runLauncher() error {
	launcher := ui.NewLauncher(c.col, c.execModel)
	p := tea.NewProgram(launcher)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("launcher: %w", err)
	}
	return nil
}

// waitForSignal blocks until SIGINT/SIGTERM, for -minimized (headless) runs.
func (c *core) waitForSignal() error {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}

// shutdown stops every runtime component in the order spec.md §5 requires:
// schedules, then services, then hotkeys, then the module cache.
func (c *core) shutdown() {
	close(c.watchStop)

	stopped := c.schedules.StopAll()
	log.Printf("shutdown: stopped %d schedule(s)", stopped)

	c.monitor.Stop()
	if err := c.services.StopAll(10 * time.Second); err != nil {
		log.Printf("shutdown: service stop error: %v", err)
	}

	if err := c.backend.UnregisterAll(); err != nil {
		log.Printf("shutdown: hotkey unregister error: %v", err)
	}

	c.cache.Clear()
	c.execModel.Close()
}

// groupByID regroups flat "<prefix>/<id>/<field>" keys into per-id maps.
// A value stored whole at "<prefix>/<id>" (a map set in-session, before the
// store's load-time flattening has seen it) is merged as-is.
func groupByID(store settings.Store, prefix string) map[string]any {
	out := map[string]any{}
	for key, raw := range store.Group(prefix) {
		rest := key[len(prefix)+1:]
		id := rest
		field := ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			id = rest[:i]
			field = rest[i+1:]
		}
		if id == "" {
			continue
		}
		sub, ok := out[id].(map[string]any)
		if !ok {
			sub = map[string]any{}
			out[id] = sub
		}
		if field != "" {
			sub[field] = raw
			continue
		}
		if whole, ok := raw.(map[string]any); ok {
			for k, v := range whole {
				sub[k] = v
			}
		}
	}
	return out
}

func boolField(m map[string]any, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

func intField(m map[string]any, key string, def int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}
