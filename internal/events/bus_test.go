package events

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeReceivesMatchingEvents(t *testing.T) {
	bus := NewEventBus()

	received := make(chan Event, 1)
	bus.Subscribe(EventLicenseVerified, func(e Event) {
		received <- e
	})

	bus.Publish(Event{Type: EventLicenseSubmitted, Data: map[string]interface{}{"license_id": "a"}})
	bus.Publish(Event{Type: EventLicenseVerified, Data: map[string]interface{}{"license_id": "b"}})

	select {
	case e := <-received:
		if e.Type != EventLicenseVerified {
			t.Errorf("got event type %q, want %q", e.Type, EventLicenseVerified)
		}
		if e.Data["license_id"] != "b" {
			t.Errorf("got license_id %v, want b", e.Data["license_id"])
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}

	select {
	case e := <-received:
		t.Fatalf("subscriber received unmatched event %q", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := NewEventBus()

	var mu sync.Mutex
	var got []EventType
	done := make(chan struct{}, 3)

	bus.SubscribeAll(func(e Event) {
		mu.Lock()
		got = append(got, e.Type)
		mu.Unlock()
		done <- struct{}{}
	})

	bus.PublishLicenseSubmitted("lic-1", "user-1", "pro", "TXN1", 149900)
	bus.PublishLicenseActivated("lic-1", "user-1", "user@example.com")
	bus.PublishLicenseDeleted("lic-1")

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("only %d of 3 events delivered", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	seen := make(map[EventType]bool, len(got))
	for _, typ := range got {
		seen[typ] = true
	}
	for _, want := range []EventType{EventLicenseSubmitted, EventLicenseActivated, EventLicenseDeleted} {
		if !seen[want] {
			t.Errorf("catch-all subscriber missed %q", want)
		}
	}
}

func TestPublishStampsTimestamp(t *testing.T) {
	bus := NewEventBus()

	received := make(chan Event, 1)
	bus.Subscribe(EventUserRegistered, func(e Event) {
		received <- e
	})

	before := time.Now()
	bus.PublishUserRegistered("user-1", "user@example.com")

	select {
	case e := <-received:
		if e.Timestamp.Before(before) {
			t.Errorf("timestamp %v predates publish time %v", e.Timestamp, before)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

func TestSubmittedEventNeverCarriesKey(t *testing.T) {
	bus := NewEventBus()

	received := make(chan Event, 1)
	bus.Subscribe(EventLicenseSubmitted, func(e Event) {
		received <- e
	})

	bus.PublishLicenseSubmitted("lic-1", "user-1", "starter", "TXN9", 49900)

	select {
	case e := <-received:
		if _, ok := e.Data["license_key"]; ok {
			t.Error("submission event payload includes the license key")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}
