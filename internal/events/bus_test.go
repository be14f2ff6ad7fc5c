package events

import (
	"errors"
	"testing"
)

func TestPublishFansOutToCollectionSubscribers(t *testing.T) {
	bus := NewBus()

	var meetingsHits, offersHits int
	bus.Subscribe(Meetings, func(Event) error { meetingsHits++; return nil })
	bus.Subscribe(Meetings, func(Event) error { meetingsHits++; return nil })
	bus.Subscribe(Offers, func(Event) error { offersHits++; return nil })

	if err := bus.Publish(Event{Collection: Meetings, Reason: "test"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if meetingsHits != 2 {
		t.Errorf("meetings handlers hit %d times, want 2", meetingsHits)
	}
	if offersHits != 0 {
		t.Errorf("offers handlers hit %d times, want 0", offersHits)
	}
}

func TestPublishJoinsHandlerErrors(t *testing.T) {
	bus := NewBus()

	boom := errors.New("boom")
	var secondRan bool
	bus.Subscribe(Offers, func(Event) error { return boom })
	bus.Subscribe(Offers, func(Event) error { secondRan = true; return nil })

	err := bus.Publish(Event{Collection: Offers})
	if !errors.Is(err, boom) {
		t.Errorf("publish error = %v, want wrapped boom", err)
	}
	if !secondRan {
		t.Error("a failing handler must not stop delivery to later handlers")
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	if err := bus.Publish(Event{Collection: Meetings}); err != nil {
		t.Errorf("publish with no subscribers: %v", err)
	}
}
