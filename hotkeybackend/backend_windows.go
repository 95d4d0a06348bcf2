//go:build windows

package hotkeybackend

import (
	"errors"

	"golang.org/x/sys/windows"

	"github.com/bindkit/bindkit/model"
)

// modNoRepeat is Windows' MOD_NOREPEAT, always set per spec.md §4.I so a
// held key does not re-fire its hotkey message.
const modNoRepeat = 0x4000

// sentinelIDBase and sentinelIDRange bound the ids the unregister-all
// orphan sweep probes, per spec.md §4.I.
const (
	sentinelIDBase  = 0xC000
	sentinelIDRange = 64
)

// WindowsBackend registers hotkeys via RegisterHotKey with a nil window
// handle, so WM_HOTKEY messages are posted to the registering thread's
// message queue; it creates no window of its own.
type WindowsBackend struct {
	base
	nextID int32
	ids    map[string]int32 // registry id -> win32 hotkey id
	triggers map[int32]func()
}

// NewWindowsBackend constructs a backend. The caller is responsible for
// pumping the message loop that delivers WM_HOTKEY to Dispatch.
func NewWindowsBackend() *WindowsBackend {
	return &WindowsBackend{
		base:     newBase(),
		nextID:   1,
		ids:      map[string]int32{},
		triggers: map[int32]func(){},
	}
}

func (w *WindowsBackend) Register(id string, modifiers model.ModMask, key model.VirtualKey, onTrigger func()) error {
	w.mu.Lock()
	winID := w.nextID
	w.nextID++
	w.mu.Unlock()

	mask := toWinModifiers(modifiers) | modNoRepeat
	if err := windows.RegisterHotKey(0, winID, uint32(mask), uint32(key)); err != nil {
		reason := classifyWin32Error(err)
		logRegistrationFailure(id, id, reason, err)
		return &RegistrationError{ID: id, Reason: reason, Err: err}
	}

	w.mu.Lock()
	w.ids[id] = winID
	w.triggers[winID] = onTrigger
	w.regs[id] = registration{modifiers: modifiers, key: key, onTrigger: onTrigger}
	w.mu.Unlock()
	return nil
}

func (w *WindowsBackend) Unregister(id string) error {
	w.mu.Lock()
	winID, ok := w.ids[id]
	if ok {
		delete(w.ids, id)
		delete(w.triggers, winID)
		delete(w.regs, id)
	}
	w.mu.Unlock()
	if !ok {
		return nil
	}
	return windows.UnregisterHotKey(0, winID)
}

// ValidateAll attempts a throwaway registration under a sentinel id against
// each live chord+modifiers; failure means another app has since claimed
// the chord. Per spec.md §9, the brief double-registration window this
// implies is accepted as-is.
func (w *WindowsBackend) ValidateAll() []string {
	var dead []string
	for id, reg := range w.snapshot() {
		sentinel := int32(sentinelIDBase)
		mask := toWinModifiers(reg.modifiers) | modNoRepeat
		err := windows.RegisterHotKey(0, sentinel, uint32(mask), uint32(reg.key))
		if err != nil {
			dead = append(dead, id)
			continue
		}
		windows.UnregisterHotKey(0, sentinel)
	}
	return dead
}

// UnregisterAll clears live registrations then sweeps a bounded sentinel id
// range for orphans left by a prior abnormal shutdown.
func (w *WindowsBackend) UnregisterAll() error {
	w.mu.Lock()
	ids := make([]int32, 0, len(w.ids))
	for _, winID := range w.ids {
		ids = append(ids, winID)
	}
	w.ids = map[string]int32{}
	w.triggers = map[int32]func(){}
	w.regs = map[string]registration{}
	w.mu.Unlock()

	for _, winID := range ids {
		windows.UnregisterHotKey(0, winID)
	}
	for i := 0; i < sentinelIDRange; i++ {
		windows.UnregisterHotKey(0, int32(sentinelIDBase+i))
	}
	return nil
}

// Dispatch is called by the owning message loop when WM_HOTKEY arrives for
// wParam. It posts the trigger onto the caller's goroutine (the main loop,
// per spec.md §5) by invoking it directly.
func (w *WindowsBackend) Dispatch(wParam int32) {
	w.mu.Lock()
	fn, ok := w.triggers[wParam]
	w.mu.Unlock()
	if ok && fn != nil {
		fn()
	}
}

func toWinModifiers(m model.ModMask) uint32 {
	var out uint32
	if m&model.ModCtrl != 0 {
		out |= 0x0002 // MOD_CONTROL
	}
	if m&model.ModAlt != 0 {
		out |= 0x0001 // MOD_ALT
	}
	if m&model.ModShift != 0 {
		out |= 0x0004 // MOD_SHIFT
	}
	if m&model.ModWin != 0 {
		out |= 0x0008 // MOD_WIN
	}
	return out
}

// classifyWin32Error distinguishes ERROR_HOTKEY_ALREADY_REGISTERED from
// other registration failures, per spec.md §4.I.
func classifyWin32Error(err error) Reason {
	var errno windows.Errno
	if errors.As(err, &errno) && errno == 1409 { // ERROR_HOTKEY_ALREADY_REGISTERED
		return ReasonAlreadyRegistered
	}
	return ReasonInternal
}

var _ Backend = (*WindowsBackend)(nil)

// NewDefault returns the platform-appropriate backend.
func NewDefault() Backend { return NewWindowsBackend() }
