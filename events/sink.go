// Package events defines the UI event sink the execution core publishes
// through — status updates, notifications, menu rebuild requests, and
// typed runtime events (schedule ticks, service crashes, hotkey failures).
package events

import (
	"sync"

	"github.com/bindkit/bindkit/model"
)

// Sink is the UI-facing notification surface. The tray icon, the popup
// launcher, and the settings dialog are adapters that implement it;
// spec.md §1 keeps their rendering out of the execution core.
type Sink interface {
	Status(component, message string)
	Notify(title, body string)
	RebuildMenu()
	Emit(evt model.Event)
}

// Bus is an in-process publish/subscribe Sink: handlers register per topic
// (or "" for all topics) and are invoked synchronously, in registration
// order, on whatever goroutine calls Emit. Per spec.md §9, handlers for
// UI-facing events are expected to run on the main loop — callers driving
// timer/worker events are responsible for hopping back onto it before
// calling Emit if their UI adapter requires it.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]func(model.Event)
	status   []func(component, message string)
	notify   []func(title, body string)
	rebuild  []func()
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: map[string][]func(model.Event){}}
}

// On registers fn to run for every Emit whose Topic equals topic, or every
// Emit if topic is "".
func (b *Bus) On(topic string, fn func(model.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], fn)
}

// OnStatus registers a handler for Status updates.
func (b *Bus) OnStatus(fn func(component, message string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = append(b.status, fn)
}

// OnNotify registers a handler for Notify calls.
func (b *Bus) OnNotify(fn func(title, body string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notify = append(b.notify, fn)
}

// OnRebuildMenu registers a handler for RebuildMenu requests.
func (b *Bus) OnRebuildMenu(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rebuild = append(b.rebuild, fn)
}

func (b *Bus) Status(component, message string) {
	b.mu.Lock()
	fns := append([]func(component, message string){}, b.status...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(component, message)
	}
}

func (b *Bus) Notify(title, body string) {
	b.mu.Lock()
	fns := append([]func(title, body string){}, b.notify...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(title, body)
	}
}

func (b *Bus) RebuildMenu() {
	b.mu.Lock()
	fns := append([]func(){}, b.rebuild...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (b *Bus) Emit(evt model.Event) {
	b.mu.Lock()
	fns := append([]func(model.Event){}, b.handlers[evt.Topic]...)
	fns = append(fns, b.handlers[""]...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

var _ Sink = (*Bus)(nil)
