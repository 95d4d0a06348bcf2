package events

import (
	"testing"

	"github.com/bindkit/bindkit/model"
)

func TestEmitDispatchesByTopicAndWildcard(t *testing.T) {
	b := NewBus()

	var scoped []model.Event
	var all []model.Event
	b.On(model.TopicExecutionBlocked, func(e model.Event) { scoped = append(scoped, e) })
	b.On("", func(e model.Event) { all = append(all, e) })

	b.Emit(model.Event{Topic: model.TopicExecutionBlocked, Name: "backup"})
	b.Emit(model.Event{Topic: model.TopicHotkeyAdded, Name: "foo"})

	if len(scoped) != 1 || scoped[0].Name != "backup" {
		t.Fatalf("scoped handler got %+v, want one ExecutionBlocked event", scoped)
	}
	if len(all) != 2 {
		t.Fatalf("wildcard handler got %d events, want 2", len(all))
	}
}

func TestStatusNotifyRebuildFanOut(t *testing.T) {
	b := NewBus()

	var statusCalls [][2]string
	var notifyCalls [][2]string
	rebuilds := 0

	b.OnStatus(func(component, message string) { statusCalls = append(statusCalls, [2]string{component, message}) })
	b.OnNotify(func(title, body string) { notifyCalls = append(notifyCalls, [2]string{title, body}) })
	b.OnRebuildMenu(func() { rebuilds++ })

	b.Status("loader", "discovering scripts")
	b.Notify("Done", "Backup finished")
	b.RebuildMenu()
	b.RebuildMenu()

	if len(statusCalls) != 1 || statusCalls[0][0] != "loader" {
		t.Fatalf("unexpected status calls: %+v", statusCalls)
	}
	if len(notifyCalls) != 1 || notifyCalls[0][0] != "Done" {
		t.Fatalf("unexpected notify calls: %+v", notifyCalls)
	}
	if rebuilds != 2 {
		t.Fatalf("rebuilds = %d, want 2", rebuilds)
	}
}

func TestEmitWithNoHandlersIsSafe(t *testing.T) {
	b := NewBus()
	b.Emit(model.Event{Topic: "anything"})
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var order []int
	b.On("x", func(model.Event) { order = append(order, 1) })
	b.On("x", func(model.Event) { order = append(order, 2) })
	b.On("x", func(model.Event) { order = append(order, 3) })

	b.Emit(model.Event{Topic: "x"})

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
