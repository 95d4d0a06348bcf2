// Package hotkey implements BindKit's Hotkey Registry (spec.md §4.H): a
// persisted name→chord map with forward/reverse indexes, reserved-chord and
// conflict checks, and synchronous persistence + notification on every
// mutation.
package hotkey

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bindkit/bindkit/events"
	"github.com/bindkit/bindkit/model"
)

// reserved is the fixed set of chords the registry refuses to bind, per
// spec.md §4.H, normalized the same way user-supplied chords are.
var reserved = map[string]bool{}

func init() {
	for _, c := range []string{
		"Ctrl+C", "Ctrl+V", "Ctrl+X", "Ctrl+Z", "Ctrl+Y", "Ctrl+S", "Ctrl+O",
		"Ctrl+N", "Ctrl+P", "Ctrl+F", "Ctrl+H",
		"Alt+Tab", "Alt+F4", "Alt+Escape",
		"Ctrl+Alt+Delete", "Ctrl+Shift+Escape",
		"Win+L", "Win+D", "Win+E", "Win+R", "Win+Tab", "Win+X",
	} {
		reserved[Normalize(c)] = true
	}
}

// IsReserved reports whether a normalized chord is in the reserved set.
func IsReserved(chord string) bool {
	return reserved[Normalize(chord)]
}

var modOrder = []string{"Ctrl", "Alt", "Shift", "Win"}
var modCanonical = map[string]string{
	"CTRL": "Ctrl", "CONTROL": "Ctrl",
	"ALT": "Alt",
	"SHIFT": "Shift",
	"WIN": "Win", "WINDOWS": "Win", "SUPER": "Win", "CMD": "Win", "META": "Win",
}

// Normalize canonicalizes a chord string: modifiers are reordered into
// Ctrl, Alt, Shift, Win and mapped to that canonical spelling, the
// key token is title-cased, and whitespace around "+" is trimmed, per
// spec.md §4.H and the GLOSSARY's "Chord" definition.
func Normalize(chord string) string {
	parts := strings.Split(chord, "+")
	mods := map[string]bool{}
	var key string
	for i, raw := range parts {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}
		if canon, ok := modCanonical[strings.ToUpper(p)]; ok {
			mods[canon] = true
			continue
		}
		if i == len(parts)-1 {
			key = titleCaseKey(p)
		}
	}
	var out []string
	for _, m := range modOrder {
		if mods[m] {
			out = append(out, m)
		}
	}
	if key != "" {
		out = append(out, key)
	}
	return strings.Join(out, "+")
}

func titleCaseKey(s string) string {
	if s == "" {
		return s
	}
	if len(s) == 1 {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// ConflictError reports that chord already maps to a different target.
type ConflictError struct {
	Chord    string
	Existing string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("hotkey: %q is already bound to %q", e.Chord, e.Existing)
}

// ReservedError reports that chord is a reserved system combination.
type ReservedError struct {
	Chord string
}

func (e *ReservedError) Error() string {
	return fmt.Sprintf("hotkey: %q is a reserved system combination", e.Chord)
}

const settingsPrefix = "scripts/hotkeys/"

// Store is the subset of settings.Store the registry persists through.
type Store interface {
	GetMap(prefix string) map[string]string
	Set(key string, value any) error
	Delete(key string) error
}

// Registry is the hotkey name→chord map. A single mutex guards paired
// updates of the forward and reverse indexes and the settings write, per
// spec.md §5.
type Registry struct {
	store Store
	sink  events.Sink

	mu      sync.Mutex
	forward map[string]string // name -> chord
	reverse map[string]string // chord -> name
}

// New builds a Registry, loading any persisted bindings from store.
func New(store Store, sink events.Sink) *Registry {
	r := &Registry{
		store:   store,
		sink:    sink,
		forward: map[string]string{},
		reverse: map[string]string{},
	}
	for name, chord := range store.GetMap(strings.TrimSuffix(settingsPrefix, "/")) {
		norm := Normalize(chord)
		r.forward[name] = norm
		r.reverse[norm] = name
	}
	return r
}

// Add binds chord to name, per the rules in spec.md §4.H.
func (r *Registry) Add(name, chord string) error {
	if name == "" {
		return fmt.Errorf("hotkey: name must not be empty")
	}
	if strings.TrimSpace(chord) == "" {
		return fmt.Errorf("hotkey: chord must not be empty")
	}
	norm := Normalize(chord)

	if IsReserved(norm) {
		return &ReservedError{Chord: norm}
	}

	r.mu.Lock()
	if existingName, ok := r.reverse[norm]; ok {
		if existingName != name {
			r.mu.Unlock()
			return &ConflictError{Chord: norm, Existing: existingName}
		}
		// Same chord, same name: no-op.
		r.mu.Unlock()
		return nil
	}

	// If name already has a different chord bound, drop the old reverse entry.
	_, rebound := r.forward[name]
	if rebound {
		delete(r.reverse, r.forward[name])
	}

	r.forward[name] = norm
	r.reverse[norm] = name
	err := r.store.Set(settingsPrefix+name, norm)
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("hotkey: persist %q: %w", name, err)
	}
	topic := model.TopicHotkeyAdded
	if rebound {
		topic = model.TopicHotkeyUpdated
	}
	r.sink.Emit(model.Event{Topic: topic, Component: "hotkey", Name: name, Message: norm})
	return nil
}

// Remove clears name's binding. Removing a non-existent name is a no-op.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	chord, ok := r.forward[name]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.forward, name)
	delete(r.reverse, chord)
	err := r.store.Delete(settingsPrefix + name)
	r.mu.Unlock()

	if err != nil {
		return fmt.Errorf("hotkey: delete %q: %w", name, err)
	}
	r.sink.Emit(model.Event{Topic: model.TopicHotkeyRemoved, Component: "hotkey", Name: name})
	return nil
}

// Lookup returns the target name bound to chord, if any.
func (r *Registry) Lookup(chord string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.reverse[Normalize(chord)]
	return name, ok
}

// ChordFor returns the chord bound to name, if any.
func (r *Registry) ChordFor(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chord, ok := r.forward[name]
	return chord, ok
}

// Bindings returns a snapshot of every binding, sorted by name for
// deterministic iteration.
func (r *Registry) Bindings() []model.HotkeyBinding {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.HotkeyBinding, 0, len(r.forward))
	names := make([]string, 0, len(r.forward))
	for name := range r.forward {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, model.HotkeyBinding{Chord: r.forward[name], Target: name})
	}
	return out
}

// CheckConsistency verifies the forward/reverse invariant (spec.md §8
// property 14); exported for tests exercising arbitrary add/remove sequences.
func (r *Registry) CheckConsistency() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.forward) != len(r.reverse) {
		return false
	}
	for name, chord := range r.forward {
		if r.reverse[chord] != name {
			return false
		}
	}
	return true
}
