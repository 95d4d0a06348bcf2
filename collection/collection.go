// Package collection implements BindKit's Collection & Execution Models
// (spec.md §4.K): filtering the discovered catalog by the disabled set and
// external-path liveness, and dispatching execution requests with the
// concurrency rules spec.md §5 describes.
package collection

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bindkit/bindkit/model"
	"github.com/bindkit/bindkit/settings"
)

// Collection holds the full discovered catalog and filters it for
// presentation by the user's disabled set and the liveness of external
// script paths.
type Collection struct {
	store settings.Store

	mu      sync.RWMutex
	scripts map[string]model.ScriptInfo // canonical identifier -> info
	legacy  map[string]string           // legacy key -> canonical identifier
}

// New builds an empty Collection backed by store for the disabled set
// (scripts/disabled).
func New(store settings.Store) *Collection {
	return &Collection{
		store:   store,
		scripts: map[string]model.ScriptInfo{},
		legacy:  map[string]string{},
	}
}

// Replace swaps the full catalog, as published by a Loader.Discover/
// RefreshExternal call. Per spec.md §3, ScriptInfo is replaced wholesale,
// never mutated in place.
func (c *Collection) Replace(scripts []model.ScriptInfo, legacy map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts = make(map[string]model.ScriptInfo, len(scripts))
	for _, s := range scripts {
		c.scripts[s.CanonicalIdentifier] = s
	}
	c.legacy = legacy
}

// Lookup resolves identifier directly, then via the legacy-alias map, per
// spec.md §4.J/§9.
func (c *Collection) Lookup(identifier string) (model.ScriptInfo, bool) {
	key := strings.ToLower(identifier)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if info, ok := c.scripts[key]; ok {
		return info, true
	}
	if canonical, ok := c.legacy[key]; ok {
		if info, ok := c.scripts[canonical]; ok {
			return info, true
		}
	}
	return model.ScriptInfo{}, false
}

// disabledSet returns the current disabled display-name set from settings.
func (c *Collection) disabledSet() map[string]bool {
	out := map[string]bool{}
	for _, name := range c.store.GetStringSlice("scripts/disabled") {
		out[name] = true
	}
	return out
}

// Visible returns the catalog filtered by the disabled set and, for
// external scripts, by whether the underlying path still exists, sorted
// by lowercased display name for deterministic presentation.
func (c *Collection) Visible() []model.ScriptInfo {
	disabled := c.disabledSet()

	c.mu.RLock()
	all := make([]model.ScriptInfo, 0, len(c.scripts))
	for _, s := range c.scripts {
		all = append(all, s)
	}
	c.mu.RUnlock()

	out := make([]model.ScriptInfo, 0, len(all))
	for _, s := range all {
		if disabled[s.DisplayName] {
			continue
		}
		if s.IsExternal {
			if _, err := os.Stat(s.OriginPath); err != nil {
				continue
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out
}

// All returns every discovered script, including disabled ones, keyed by
// canonical identifier.
func (c *Collection) All() map[string]model.ScriptInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]model.ScriptInfo, len(c.scripts))
	for k, v := range c.scripts {
		out[k] = v
	}
	return out
}
