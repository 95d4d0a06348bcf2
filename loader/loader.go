// Package loader implements BindKit's Script Loader (spec.md §4.J):
// discovery across the local scripts directory and a user-configured set
// of external script paths, identifier assignment, legacy-alias
// resolution, and deterministic ordering.
package loader

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/bindkit/bindkit/analyzer"
	"github.com/bindkit/bindkit/model"
)

// reloadDebounce is how long Watch waits after the last filesystem event
// before invoking its callback, absorbing the burst of events a single
// save (write + chmod, or a temp-file rename) typically produces.
const reloadDebounce = 1 * time.Second

// workers bounds the per-file analysis shard pool each discovery worker
// fans out across, per spec.md §4.J.
const workers = 4

// Loader holds the scripts directory plus the external-path map and
// assembles the published catalog on Discover.
type Loader struct {
	scriptsDir string

	mu       sync.Mutex
	external map[string]string // display name -> absolute path

	// CustomNames overlays a display-name rename after discovery, keyed by
	// the original display name, per SPEC_FULL.md's supplemented feature.
	CustomNames map[string]string
}

// New builds a Loader rooted at scriptsDir with the given initial external
// script map (display name -> absolute path).
func New(scriptsDir string, external map[string]string) *Loader {
	ext := map[string]string{}
	for k, v := range external {
		ext[k] = v
	}
	return &Loader{
		scriptsDir:  scriptsDir,
		external:    ext,
		CustomNames: map[string]string{},
	}
}

// Result is the outcome of a Discover or RefreshExternal call.
type Result struct {
	Scripts []model.ScriptInfo
	Failed  map[string]string // file path -> analyzer error
	// LegacyAliases maps a lowercased stem to the canonical identifier it
	// resolves to, for settings that predate canonical identifiers.
	LegacyAliases map[string]string
}

// Discover fans out to a local-scripts worker and an external-scripts
// worker, each of which shards per-file analysis across a small pool, per
// spec.md §4.J. Output is sorted by lowercased display name so repeated
// calls over the same inputs return identical order regardless of worker
// completion order (spec.md §8 property 15).
func (l *Loader) Discover() (Result, error) {
	var g errgroup.Group
	var local, ext []model.ScriptInfo
	var localFailed, extFailed map[string]string

	g.Go(func() error {
		var err error
		local, localFailed, err = l.discoverLocal()
		return err
	})
	g.Go(func() error {
		l.mu.Lock()
		snapshot := make(map[string]string, len(l.external))
		for k, v := range l.external {
			snapshot[k] = v
		}
		l.mu.Unlock()
		var err error
		ext, extFailed, err = l.discoverExternal(snapshot)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	all := append(local, ext...)
	return l.publish(all, mergeFailed(localFailed, extFailed)), nil
}

// RefreshExternal rebuilds only the external half of the catalog. Callers
// combine it with the local half they already hold, per spec.md §4.J.
func (l *Loader) RefreshExternal() (Result, error) {
	l.mu.Lock()
	snapshot := make(map[string]string, len(l.external))
	for k, v := range l.external {
		snapshot[k] = v
	}
	l.mu.Unlock()

	ext, failed, err := l.discoverExternal(snapshot)
	if err != nil {
		return Result{}, err
	}
	return l.publish(ext, failed), nil
}

// Watch observes the local scripts directory for creates, removes, and
// writes and invokes onChange (debounced) after the burst settles, so a
// caller can re-run Discover. It blocks until stop is closed or the
// watcher itself fails, so callers run it in its own goroutine.
func (l *Loader) Watch(stop <-chan struct{}, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("loader: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := os.MkdirAll(l.scriptsDir, 0o755); err != nil {
		return fmt.Errorf("loader: create scripts dir: %w", err)
	}
	if err := watcher.Add(l.scriptsDir); err != nil {
		return fmt.Errorf("loader: watch %s: %w", l.scriptsDir, err)
	}
	log.Printf("loader: watching %s for changes", l.scriptsDir)

	var debounceTimer *time.Timer
	debounceCh := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(event.Name)
			if strings.HasPrefix(name, "__") {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(reloadDebounce, func() {
				select {
				case debounceCh <- struct{}{}:
				default:
				}
			})

		case <-debounceCh:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("loader: watcher error: %v", err)

		case <-stop:
			return nil
		}
	}
}

// SetExternal replaces the external path map wholesale (e.g. after a
// settings change), for the next Discover/RefreshExternal call.
func (l *Loader) SetExternal(external map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.external = map[string]string{}
	for k, v := range external {
		l.external[k] = v
	}
}

func (l *Loader) discoverLocal() ([]model.ScriptInfo, map[string]string, error) {
	entries, err := os.ReadDir(l.scriptsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "__") {
			continue
		}
		paths = append(paths, filepath.Join(l.scriptsDir, name))
	}

	infos, failed := analyzeShard(paths, false)
	return infos, failed, nil
}

func (l *Loader) discoverExternal(external map[string]string) ([]model.ScriptInfo, map[string]string, error) {
	type item struct {
		display string
		path    string
	}
	items := make([]item, 0, len(external))
	for display, path := range external {
		items = append(items, item{display: display, path: path})
	}

	paths := make([]string, 0, len(items))
	pathToDisplay := make(map[string]string, len(items))
	for _, it := range items {
		paths = append(paths, it.path)
		pathToDisplay[it.path] = it.display
	}

	infos, failed := analyzeShard(paths, true)
	for i := range infos {
		if display, ok := pathToDisplay[infos[i].OriginPath]; ok {
			infos[i].DisplayName = display
			infos[i].CanonicalIdentifier = strings.ToLower(display)
		}
	}
	return infos, failed, nil
}

// analyzeShard runs analyzer.Analyze over paths across a bounded worker
// pool, tagging each result's OriginPath and IsExternal.
func analyzeShard(paths []string, external bool) ([]model.ScriptInfo, map[string]string) {
	n := workers
	if n > len(paths) {
		n = len(paths)
	}
	if n == 0 {
		return nil, nil
	}

	jobs := make(chan string, len(paths))
	for _, p := range paths {
		jobs <- p
	}
	close(jobs)

	results := make([]model.ScriptInfo, 0, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				info := analyzer.Analyze(path)
				info.OriginPath = path
				info.IsExternal = external
				mu.Lock()
				results = append(results, info)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	failed := map[string]string{}
	var ok []model.ScriptInfo
	for _, info := range results {
		if info.AnalyzerError != "" {
			failed[info.FilePath] = info.AnalyzerError
			continue
		}
		ok = append(ok, info)
	}
	return ok, failed
}

func mergeFailed(a, b map[string]string) map[string]string {
	out := map[string]string{}
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

// publish applies the custom-name overlay, builds the legacy-alias map
// (warning on ambiguity), and sorts by lowercased display name.
func (l *Loader) publish(infos []model.ScriptInfo, failed map[string]string) Result {
	l.mu.Lock()
	customNames := make(map[string]string, len(l.CustomNames))
	for k, v := range l.CustomNames {
		customNames[k] = v
	}
	l.mu.Unlock()

	for i, info := range infos {
		if custom, ok := customNames[info.DisplayName]; ok {
			infos[i].DisplayName = custom
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		return strings.ToLower(infos[i].DisplayName) < strings.ToLower(infos[j].DisplayName)
	})

	legacy := map[string]string{}
	claimedBy := map[string][]string{}
	for _, info := range infos {
		for _, key := range info.LegacyKeys {
			claimedBy[key] = append(claimedBy[key], info.CanonicalIdentifier)
		}
	}
	for key, identifiers := range claimedBy {
		sort.Strings(identifiers)
		legacy[key] = identifiers[0]
		if len(identifiers) > 1 {
			log.Printf("loader: ambiguous legacy key %q claimed by %v, resolving to %q", key, identifiers, identifiers[0])
		}
	}

	return Result{Scripts: infos, Failed: failed, LegacyAliases: legacy}
}
