package sync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/openline/internal/events"
)

// retryDelay is how long the bridge waits before its single invalidation
// retry.
const retryDelay = 2 * time.Second

// Bridge keeps the two resource caches mutually consistent: a mutation that
// changes one collection marks the other stale through the change bus, so the
// next read re-fetches instead of serving stale local data.
//
// If the dispatch itself fails, the bridge schedules exactly one retry after a
// fixed delay. A second failure is logged and dropped; invalidation is
// best-effort and never blocks or fails the triggering mutation.
type Bridge struct {
	bus    *events.Bus
	logger *slog.Logger
	delay  time.Duration

	pending sync.WaitGroup
}

// NewBridge creates a Bridge publishing on the given bus.
func NewBridge(bus *events.Bus, logger *slog.Logger) *Bridge {
	return &Bridge{bus: bus, logger: logger, delay: retryDelay}
}

// Invalidate marks the collection stale. The first dispatch is synchronous;
// on failure a single retry fires after the fixed delay.
func (b *Bridge) Invalidate(c events.Collection, reason string) {
	ev := events.Event{Collection: c, Reason: reason}

	err := b.bus.Publish(ev)
	if err == nil {
		return
	}
	b.logger.Warn("cache invalidation failed, scheduling retry",
		"collection", c, "reason", reason, "error", err)

	b.pending.Add(1)
	time.AfterFunc(b.delay, func() {
		defer b.pending.Done()
		if err := b.bus.Publish(ev); err != nil {
			b.logger.Error("cache invalidation dropped after retry",
				"collection", c, "reason", reason, "error", err)
		}
	})
}

// Flush blocks until any scheduled retries have fired. Used on shutdown and
// in tests.
func (b *Bridge) Flush() {
	b.pending.Wait()
}
