package events

import (
	"testing"
	"time"
)

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	bus := NewEventBus()
	received := make(chan Event, 1)

	bus.Subscribe(EventSignalGenerated, func(e Event) {
		received <- e
	})

	bus.PublishSignalGenerated("id-1", "BTCUSDT", "1h", "long", 107.64)

	select {
	case e := <-received:
		if e.Type != EventSignalGenerated {
			t.Errorf("expected type %s, got %s", EventSignalGenerated, e.Type)
		}
		if e.Data["pair"] != "BTCUSDT" {
			t.Errorf("expected pair BTCUSDT, got %v", e.Data["pair"])
		}
		if e.Timestamp.IsZero() {
			t.Error("expected a timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestSubscribeIgnoresOtherEvents(t *testing.T) {
	bus := NewEventBus()
	received := make(chan Event, 1)

	bus.Subscribe(EventSignalExpired, func(e Event) {
		received <- e
	})

	bus.PublishSignalGenerated("id-1", "BTCUSDT", "1h", "long", 107.64)

	select {
	case e := <-received:
		t.Errorf("subscriber received unrelated event %s", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()
	received := make(chan Event, 2)

	bus.SubscribeAll(func(e Event) {
		received <- e
	})

	bus.PublishSignalTransition(EventSignalActivated, "id-1", "BTCUSDT", "1h", "active")
	bus.PublishError("lifecycle", "something failed", nil)

	types := map[EventType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case e := <-received:
			types[e.Type] = true
		case <-time.After(time.Second):
			t.Fatal("catch-all subscriber missed an event")
		}
	}

	if !types[EventSignalActivated] || !types[EventError] {
		t.Errorf("expected both event types, got %v", types)
	}
}
