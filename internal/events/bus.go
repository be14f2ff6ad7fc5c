// Package events carries change notifications between the mutation engine and
// the resource caches. Mutations publish "collection changed" events; each
// cache subscribes for the collections whose correctness it depends on.
package events

import (
	"errors"
	"sync"
)

// Collection names a cached resource collection.
type Collection string

const (
	Meetings Collection = "meetings"
	Offers   Collection = "offers"
)

// Event is a change notification for one collection.
type Event struct {
	Collection Collection
	Reason     string
}

// Handler consumes an event. A handler error is reported to the publisher but
// does not stop delivery to other handlers.
type Handler func(Event) error

// Bus is a minimal in-process fan-out of change events.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Collection][]Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Collection][]Handler)}
}

// Subscribe registers a handler for events on the given collection.
func (b *Bus) Subscribe(c Collection, h Handler) {
	b.mu.Lock()
	b.handlers[c] = append(b.handlers[c], h)
	b.mu.Unlock()
}

// Publish delivers the event to every subscriber of its collection and
// returns the joined handler errors, if any.
func (b *Bus) Publish(ev Event) error {
	b.mu.RLock()
	handlers := b.handlers[ev.Collection]
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
