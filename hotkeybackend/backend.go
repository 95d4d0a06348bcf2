// Package hotkeybackend implements BindKit's Hotkey Backend Adapter
// (spec.md §4.I): parsing a normalized chord into an OS modifier mask and
// virtual-key code, registering it with the OS, and validating
// that registrations are still effective.
package hotkeybackend

import (
	"fmt"
	"log"
	"sync"

	"github.com/bindkit/bindkit/model"
)

// Backend is the OS hotkey primitive the Hotkey Registry dispatches
// through, per SPEC_FULL.md's collaborator contract.
type Backend interface {
	Register(id string, modifiers model.ModMask, key model.VirtualKey, onTrigger func()) error
	Unregister(id string) error
	ValidateAll() (dead []string)
	UnregisterAll() error
}

// RegistrationError distinguishes the three failure modes spec.md §4.I
// requires the backend to tell apart.
type RegistrationError struct {
	ID     string
	Chord  string
	Reason Reason
	Err    error
}

// Reason classifies why a Register call failed.
type Reason int

const (
	ReasonInternal Reason = iota
	ReasonAlreadyRegistered
	ReasonInvalidFormat
)

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("hotkeybackend: register %q (%s): %v", e.ID, e.Chord, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// virtualKeys is the fixed key-token → VirtualKey map shared by every
// platform backend: function keys, digits, letters, the navigation
// cluster, numpad, and punctuation, per spec.md §4.I.
var virtualKeys = buildVirtualKeyMap()

func buildVirtualKeyMap() map[string]model.VirtualKey {
	m := map[string]model.VirtualKey{}
	for i := 0; i < 26; i++ {
		m[string(rune('A'+i))] = model.VirtualKey(0x41 + i)
	}
	for i := 0; i < 10; i++ {
		m[string(rune('0'+i))] = model.VirtualKey(0x30 + i)
	}
	for i := 1; i <= 24; i++ {
		m[fmt.Sprintf("F%d", i)] = model.VirtualKey(0x70 + i - 1)
	}
	nav := map[string]model.VirtualKey{
		"Left": 0x25, "Up": 0x26, "Right": 0x27, "Down": 0x28,
		"Home": 0x24, "End": 0x23, "PageUp": 0x21, "PageDown": 0x22,
		"Insert": 0x2D, "Delete": 0x2E, "Escape": 0x1B, "Tab": 0x09,
		"Space": 0x20, "Enter": 0x0D, "Backspace": 0x08,
	}
	for k, v := range nav {
		m[k] = v
	}
	for i := 0; i <= 9; i++ {
		m[fmt.Sprintf("Num%d", i)] = model.VirtualKey(0x60 + i)
	}
	punct := map[string]model.VirtualKey{
		";": 0xBA, "=": 0xBB, ",": 0xBC, "-": 0xBD, ".": 0xBE, "/": 0xBF,
		"`": 0xC0, "[": 0xDB, "\\": 0xDC, "]": 0xDD, "'": 0xDE,
	}
	for k, v := range punct {
		m[k] = v
	}
	return m
}

// ParseChord resolves a normalized chord (e.g. "Ctrl+Alt+T") into an OS
// modifier mask and virtual-key code. Returns ReasonInvalidFormat if the
// key token isn't in the fixed map.
func ParseChord(chord string) (model.ModMask, model.VirtualKey, error) {
	var mods model.ModMask
	var keyToken string
	parts := splitChord(chord)
	for i, p := range parts {
		switch p {
		case "Ctrl":
			mods |= model.ModCtrl
		case "Alt":
			mods |= model.ModAlt
		case "Shift":
			mods |= model.ModShift
		case "Win":
			mods |= model.ModWin
		default:
			if i == len(parts)-1 {
				keyToken = p
			}
		}
	}
	vk, ok := virtualKeys[keyToken]
	if !ok {
		err := fmt.Errorf("hotkeybackend: unrecognized key token %q", keyToken)
		return 0, 0, &RegistrationError{Chord: chord, Reason: ReasonInvalidFormat, Err: err}
	}
	return mods, vk, nil
}

func splitChord(chord string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(chord); i++ {
		if i == len(chord) || chord[i] == '+' {
			if i > start {
				out = append(out, chord[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// registration is the bookkeeping kept per live id, shared across platform
// implementations.
type registration struct {
	chord     string
	modifiers model.ModMask
	key       model.VirtualKey
	onTrigger func()
}

// base holds the state common to every platform backend: the id→registration
// table and the mutex guarding it. Platform files embed base and implement
// the OS-specific register/unregister primitive.
type base struct {
	mu  sync.Mutex
	regs map[string]registration
}

func newBase() base {
	return base{regs: map[string]registration{}}
}

func (b *base) snapshot() map[string]registration {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]registration, len(b.regs))
	for k, v := range b.regs {
		out[k] = v
	}
	return out
}

func logRegistrationFailure(id, chord string, reason Reason, err error) {
	log.Printf("hotkeybackend: registration_failed id=%q chord=%q reason=%d: %v", id, chord, reason, err)
}
