package hotkey

import (
	"fmt"
	"testing"

	"github.com/bindkit/bindkit/events"
)

// memStore is a minimal in-memory hotkey.Store fake for tests.
type memStore struct {
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) GetMap(prefix string) map[string]string {
	out := map[string]string{}
	full := prefix + "/"
	for k, v := range m.data {
		if len(k) > len(full) && k[:len(full)] == full {
			out[k[len(full):]] = v
		}
	}
	return out
}

func (m *memStore) Set(key string, value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("hotkey test store: non-string value for %q", key)
	}
	m.data[key] = s
	return nil
}

func (m *memStore) Delete(key string) error {
	delete(m.data, key)
	return nil
}

func newRegistry() *Registry {
	return New(newMemStore(), events.NewBus())
}

func TestNormalizeChordOrdering(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ctrl+alt+t", "Ctrl+Alt+T"},
		{"Alt + Ctrl + T", "Ctrl+Alt+T"},
		{"SHIFT+win+ctrl+alt+f1", "Ctrl+Alt+Shift+Win+F1"},
		{"Ctrl+a", "Ctrl+A"},
		{"cmd+l", "Win+L"},
		{"super+d", "Win+D"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestHotkeyConflict covers spec.md §8 property 12.
func TestHotkeyConflict(t *testing.T) {
	r := newRegistry()

	if err := r.Add("scriptA", "Ctrl+Alt+T"); err != nil {
		t.Fatalf("Add for scriptA failed: %v", err)
	}

	err := r.Add("scriptB", "Ctrl+Alt+T")
	if err == nil {
		t.Fatalf("expected conflict error adding scriptB")
	}
	var conflict *ConflictError
	if ce, ok := err.(*ConflictError); !ok {
		t.Fatalf("expected *ConflictError, got %T: %v", err, err)
	} else {
		conflict = ce
	}
	if conflict.Existing != "scriptA" {
		t.Errorf("conflict error names %q, want scriptA", conflict.Existing)
	}

	if chord, ok := r.ChordFor("scriptB"); ok {
		t.Errorf("scriptB should have no binding after conflict, got %q", chord)
	}
	if name, ok := r.Lookup("Ctrl+Alt+T"); !ok || name != "scriptA" {
		t.Errorf("reverse index should still point at scriptA, got %q, %v", name, ok)
	}
}

// TestReservedHotkeys covers spec.md §8 property 13.
func TestReservedHotkeys(t *testing.T) {
	r := newRegistry()
	err := r.Add("anyScript", "Alt+F4")
	if err == nil {
		t.Fatal("expected reserved-combination error for Alt+F4")
	}
	if _, ok := err.(*ReservedError); !ok {
		t.Fatalf("expected *ReservedError, got %T", err)
	}
	if _, ok := r.ChordFor("anyScript"); ok {
		t.Error("reserved chord should never be bound")
	}
}

func TestAddSameChordSameNameIsNoop(t *testing.T) {
	r := newRegistry()
	if err := r.Add("scriptA", "Ctrl+Alt+T"); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := r.Add("scriptA", "ctrl+alt+t"); err != nil {
		t.Fatalf("re-adding the same binding should be a no-op, got error: %v", err)
	}
	if !r.CheckConsistency() {
		t.Error("registry inconsistent after no-op re-add")
	}
}

func TestRemoveNonexistentIsNoop(t *testing.T) {
	r := newRegistry()
	if err := r.Remove("never-added"); err != nil {
		t.Fatalf("removing a non-existent binding should be a no-op, got %v", err)
	}
}

func TestAddEmptyNameOrChordRejected(t *testing.T) {
	r := newRegistry()
	if err := r.Add("", "Ctrl+Alt+T"); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Add("scriptA", ""); err == nil {
		t.Error("expected error for empty chord")
	}
}

// TestRegistryConsistency covers spec.md §8 property 14: after any
// sequence of add/remove operations, |forward| == |reverse| and the two
// indexes are mutual inverses.
func TestRegistryConsistency(t *testing.T) {
	r := newRegistry()

	ops := []struct {
		add    bool
		name   string
		chord  string
	}{
		{true, "a", "Ctrl+Alt+1"},
		{true, "b", "Ctrl+Alt+2"},
		{true, "c", "Ctrl+Alt+3"},
		{false, "b", ""},
		{true, "a", "Ctrl+Alt+9"}, // rebind a to a new chord
		{true, "d", "Ctrl+Alt+2"}, // reuse the chord b vacated
		{false, "nonexistent", ""},
		{false, "c", ""},
	}

	for _, op := range ops {
		if op.add {
			_ = r.Add(op.name, op.chord) // conflicts possible by construction above are avoided
		} else {
			if err := r.Remove(op.name); err != nil {
				t.Fatalf("Remove(%q) failed: %v", op.name, err)
			}
		}
		if !r.CheckConsistency() {
			t.Fatalf("registry inconsistent after op %+v", op)
		}
	}

	bindings := r.Bindings()
	if len(bindings) != 2 { // a and d remain
		t.Fatalf("expected 2 remaining bindings, got %d: %+v", len(bindings), bindings)
	}
}
