// Package modcache implements BindKit's Module Cache (spec.md §4.C): an
// LRU+TTL cache of loaded in-process script modules, bounded by
// max_cache_size and swept for TTL-expired entries no more often than
// min(300s, ttl).
package modcache

import (
	"log"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/exp/maps"
)

// Module is the loaded, re-executable handle for an in-process script. The
// Executor supplies the concrete implementation (for both InProcessFunction
// and InProcessModule, a generated per-script Python driver file);
// modcache only owns its lifetime.
type Module interface {
	// Teardown performs "aggressive teardown": release what the module
	// holds (the Executor's drivers delete their generated file).
	Teardown()
}

// CachedModule is the published record of one cached module, per spec.md §4.C.
type CachedModule struct {
	Name       string
	Handle     Module
	LastAccess time.Time
}

// Cache is the module cache. The zero value is not usable; construct with New.
type Cache struct {
	maxSize int
	ttl     time.Duration

	mu        sync.Mutex
	inner     *lru.Cache[string, *CachedModule]
	lastSweep time.Time
}

const defaultMaxSize = 20
const defaultTTL = 1800 * time.Second

// New builds a module cache bounded at maxSize entries (0 uses the default
// of 20) with the given time-to-live (0 uses the default of 1800s).
func New(maxSize int, ttl time.Duration) *Cache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}

	c := &Cache{maxSize: maxSize, ttl: ttl}
	inner, err := lru.NewWithEvict[string, *CachedModule](maxSize, func(name string, mod *CachedModule) {
		log.Printf("modcache: evicting %q", name)
		mod.Handle.Teardown()
	})
	if err != nil {
		// Only returns an error for a non-positive size, which New already excludes.
		panic(err)
	}
	c.inner = inner
	return c
}

// sweepInterval is min(300s, ttl), the rate limit on sweep() per spec.md §4.C.
func (c *Cache) sweepInterval() time.Duration {
	if c.ttl < 300*time.Second {
		return c.ttl
	}
	return 300 * time.Second
}

// Put inserts or replaces the module named name. An overflow eviction (if
// any) runs the evictee's Teardown via the LRU's OnEvict callback.
func (c *Cache) Put(name string, handle Module) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.inner.Get(name); ok {
		existing.Handle.Teardown()
	}
	c.inner.Add(name, &CachedModule{Name: name, Handle: handle, LastAccess: time.Now()})
}

// Get returns the cached module for name without updating its recency;
// callers that execute the module should follow with Touch.
func (c *Cache) Get(name string) (Module, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mod, ok := c.inner.Peek(name)
	if !ok {
		return nil, false
	}
	return mod.Handle, true
}

// Touch updates name's last-access time and moves it to the MRU end.
func (c *Cache) Touch(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mod, ok := c.inner.Get(name)
	if !ok {
		return
	}
	mod.LastAccess = time.Now()
}

// Sweep removes entries whose last access exceeds the TTL, rate-limited to
// at most once per sweepInterval(). Returns the number of entries removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if !c.lastSweep.IsZero() && now.Sub(c.lastSweep) < c.sweepInterval() {
		return 0
	}
	c.lastSweep = now

	// Snapshot candidates into a plain map and take its keys via
	// golang.org/x/exp/maps so the sweep order is deterministic
	// (alphabetical) rather than the LRU's internal recency order,
	// which would otherwise make sweep logs hard to diff across runs.
	candidates := map[string]*CachedModule{}
	for _, name := range c.inner.Keys() {
		if mod, ok := c.inner.Peek(name); ok {
			candidates[name] = mod
		}
	}
	names := maps.Keys(candidates)
	sort.Strings(names)

	removed := 0
	for _, name := range names {
		mod := candidates[name]
		if now.Sub(mod.LastAccess) > c.ttl {
			// Remove triggers the cache's OnEvict callback, which tears
			// the module down; no need to call it again here.
			c.inner.Remove(name)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("modcache: swept %d expired module(s)", removed)
	}
	return removed
}

// Clear tears down and removes every cached module, e.g. on shutdown.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Purge invokes the cache's OnEvict callback for every entry, which
	// tears each module down.
	c.inner.Purge()
}

// Len returns the current number of cached modules.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Len()
}
