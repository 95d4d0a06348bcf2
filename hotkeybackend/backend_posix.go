//go:build !windows

package hotkeybackend

import (
	"fmt"

	"github.com/bindkit/bindkit/model"
)

// PosixBackend is the non-Windows hotkey backend. No library in the
// retrieval pack provides an X11/Wayland global-hotkey binding, so
// registration against the OS is unimplemented here: Register records the
// id in the registration table and reports ReasonInternal for the OS step,
// so callers still get a classified RegistrationError even though the
// outcome is uniformly "not supported" on this platform. Register takes an
// already-parsed modifier mask and key; it does not parse or validate a
// chord string.
type PosixBackend struct {
	base
}

// NewPosixBackend constructs the POSIX fallback backend.
func NewPosixBackend() *PosixBackend {
	return &PosixBackend{base: newBase()}
}

func (p *PosixBackend) Register(id string, modifiers model.ModMask, key model.VirtualKey, onTrigger func()) error {
	p.mu.Lock()
	p.regs[id] = registration{modifiers: modifiers, key: key, onTrigger: onTrigger}
	p.mu.Unlock()

	err := fmt.Errorf("hotkeybackend: global hotkeys are not supported on this platform")
	logRegistrationFailure(id, id, ReasonInternal, err)
	return &RegistrationError{ID: id, Reason: ReasonInternal, Err: err}
}

func (p *PosixBackend) Unregister(id string) error {
	p.mu.Lock()
	delete(p.regs, id)
	p.mu.Unlock()
	return nil
}

func (p *PosixBackend) ValidateAll() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	dead := make([]string, 0, len(p.regs))
	for id := range p.regs {
		dead = append(dead, id)
	}
	return dead
}

func (p *PosixBackend) UnregisterAll() error {
	p.mu.Lock()
	p.regs = map[string]registration{}
	p.mu.Unlock()
	return nil
}

var _ Backend = (*PosixBackend)(nil)

// NewDefault returns the platform-appropriate backend.
func NewDefault() Backend { return NewPosixBackend() }
