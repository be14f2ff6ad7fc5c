// Package sync owns every state-changing call against the backend. All
// mutations follow the same optimistic discipline: patch the local cache
// first so the UI reflects the assumed outcome, confirm remotely, and on
// failure restore the cache to a state identical to the pre-mutation one.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukerupert/openline/internal/api"
	"github.com/dukerupert/openline/internal/cache"
	"github.com/dukerupert/openline/internal/events"
	"github.com/dukerupert/openline/internal/model"
)

// ClaimRejectedError reports that the broadcast claim reservation was turned
// down by the server (someone else got there first). The local cache has been
// restored; this is not a transport failure.
type ClaimRejectedError struct {
	Message string
}

func (e *ClaimRejectedError) Error() string {
	if e.Message == "" {
		return "broadcast claim rejected"
	}
	return "broadcast claim rejected: " + e.Message
}

// Engine is the optimistic mutation engine for one signed-in user. It owns
// the meetings and offers caches and the bridge that keeps them consistent.
type Engine struct {
	client   *api.Client
	userID   string
	meetings *cache.Store[model.Meeting]
	offers   *cache.Store[model.Offer]
	bridge   *Bridge
	logger   *slog.Logger
}

// NewEngine wires an Engine: both caches subscribe to the change bus so that
// invalidations published by the bridge (or by a live feed) mark them stale.
func NewEngine(client *api.Client, userID string, bus *events.Bus, logger *slog.Logger) *Engine {
	e := &Engine{
		client:   client,
		userID:   userID,
		meetings: cache.New(func(m model.Meeting) string { return m.ID }),
		offers:   cache.New(func(o model.Offer) string { return o.ID }),
		bridge:   NewBridge(bus, logger.With("component", "bridge")),
		logger:   logger,
	}

	bus.Subscribe(events.Meetings, func(events.Event) error {
		e.meetings.MarkStale()
		return nil
	})
	bus.Subscribe(events.Offers, func(events.Event) error {
		e.offers.MarkStale()
		return nil
	})

	return e
}

// UserID returns the signed-in user this engine mutates on behalf of.
func (e *Engine) UserID() string { return e.userID }

// Meetings returns the local meetings view in cache order.
func (e *Engine) Meetings() []model.Meeting { return e.meetings.Items() }

// Offers returns the local offers view in cache order.
func (e *Engine) Offers() []model.Offer { return e.offers.Items() }

// MeetingsStale reports whether the meetings cache needs a re-fetch.
func (e *Engine) MeetingsStale() bool { return e.meetings.Stale() }

// OffersStale reports whether the offers cache needs a re-fetch.
func (e *Engine) OffersStale() bool { return e.offers.Stale() }

// RefreshMeetings replaces the meetings cache with a fresh read.
func (e *Engine) RefreshMeetings(ctx context.Context) ([]model.Meeting, error) {
	meetings, err := e.client.GetMeetings(ctx, e.userID)
	if err != nil {
		return nil, fmt.Errorf("refresh meetings: %w", err)
	}
	e.meetings.Replace(meetings)
	return e.meetings.Items(), nil
}

// RefreshOffers replaces the offers cache with a fresh read.
func (e *Engine) RefreshOffers(ctx context.Context) ([]model.Offer, error) {
	offers, err := e.client.GetOffers(ctx, e.userID)
	if err != nil {
		return nil, fmt.Errorf("refresh offers: %w", err)
	}
	e.offers.Replace(offers)
	return e.offers.Items(), nil
}

// SyncMeetings returns the local meetings view, re-fetching first when the
// cache is stale.
func (e *Engine) SyncMeetings(ctx context.Context) ([]model.Meeting, error) {
	if e.meetings.Stale() {
		return e.RefreshMeetings(ctx)
	}
	return e.meetings.Items(), nil
}

// SyncOffers returns the local offers view, re-fetching first when the cache
// is stale.
func (e *Engine) SyncOffers(ctx context.Context) ([]model.Offer, error) {
	if e.offers.Stale() {
		return e.RefreshOffers(ctx)
	}
	return e.offers.Items(), nil
}

// Flush waits for any pending invalidation retries. Call on teardown.
func (e *Engine) Flush() { e.bridge.Flush() }

// mutate is the single transactional apply/compensate helper behind every
// mutation. apply patches the cache and returns the compensating action;
// remote confirms with the backend. On remote failure the compensation runs
// and the wrapped error is returned — the cache never ends up in neither the
// pre- nor the post-state.
func (e *Engine) mutate(ctx context.Context, op string, apply func() func(), remote func(context.Context) error, onSuccess func()) error {
	undo := apply()
	if err := remote(ctx); err != nil {
		if undo != nil {
			undo()
		}
		e.logger.Warn("mutation failed, cache rolled back", "op", op, "error", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	if onSuccess != nil {
		onSuccess()
	}
	return nil
}

// removeMeeting optimistically drops a meeting and returns its restorer.
func (e *Engine) removeMeeting(id string) func() {
	removed, idx, ok := e.meetings.Remove(id)
	if !ok {
		return nil
	}
	return func() { e.meetings.Insert(removed, idx) }
}

// removeOffer optimistically drops an offer and returns its restorer.
func (e *Engine) removeOffer(id string) func() {
	removed, idx, ok := e.offers.Remove(id)
	if !ok {
		return nil
	}
	return func() { e.offers.Insert(removed, idx) }
}

// CancelMeeting cancels a meeting the user owns. Offers referencing the
// meeting become invalid, so the offers cache is marked stale on success.
func (e *Engine) CancelMeeting(ctx context.Context, meetingID string) error {
	return e.mutate(ctx, "cancel meeting",
		func() func() { return e.removeMeeting(meetingID) },
		func(ctx context.Context) error { return e.client.CancelMeeting(ctx, meetingID, e.userID) },
		func() { e.bridge.Invalidate(events.Offers, "meeting canceled") },
	)
}

// EndBroadcast stops the user's own broadcast meeting.
func (e *Engine) EndBroadcast(ctx context.Context, meetingID string) error {
	return e.mutate(ctx, "end broadcast",
		func() func() { return e.removeMeeting(meetingID) },
		func(ctx context.Context) error { return e.client.BroadcastEnd(ctx, e.userID) },
		func() { e.bridge.Invalidate(events.Offers, "broadcast ended") },
	)
}

// CancelBroadcastAcceptance leaves a broadcast the user had joined.
func (e *Engine) CancelBroadcastAcceptance(ctx context.Context, meetingID string) error {
	return e.mutate(ctx, "cancel broadcast acceptance",
		func() func() { return e.removeMeeting(meetingID) },
		func(ctx context.Context) error {
			return e.client.CancelBroadcastAcceptance(ctx, meetingID, e.userID)
		},
		func() { e.bridge.Invalidate(events.Offers, "broadcast acceptance canceled") },
	)
}

// AcceptSuggestion confirms a system-suggested draft. The meeting flips to
// SEARCHING locally; the server will mint offers, so offers go stale.
func (e *Engine) AcceptSuggestion(ctx context.Context, meetingID string) error {
	return e.mutate(ctx, "accept suggestion",
		func() func() {
			current, ok := e.meetings.Get(meetingID)
			if !ok {
				return nil
			}
			updated := current
			updated.MeetingState = model.StateSearching
			previous, ok := e.meetings.Update(updated)
			if !ok {
				return nil
			}
			return func() { e.meetings.Update(previous) }
		},
		func(ctx context.Context) error { return e.client.AcceptSuggestion(ctx, meetingID, e.userID) },
		func() { e.bridge.Invalidate(events.Offers, "suggestion accepted") },
	)
}

// DismissSuggestion discards a system-suggested draft. Purely local to the
// meetings collection; nothing cross-cutting.
func (e *Engine) DismissSuggestion(ctx context.Context, meetingID string) error {
	return e.mutate(ctx, "dismiss suggestion",
		func() func() { return e.removeMeeting(meetingID) },
		func(ctx context.Context) error { return e.client.DismissSuggestion(ctx, meetingID, e.userID) },
		nil,
	)
}

// AcceptOffer accepts a plain offer. The meetings list gains a participant
// server-side, so the meetings cache is marked stale on success.
func (e *Engine) AcceptOffer(ctx context.Context, offerID string) error {
	return e.mutate(ctx, "accept offer",
		func() func() { return e.removeOffer(offerID) },
		func(ctx context.Context) error { return e.client.AcceptOffer(ctx, e.userID, offerID) },
		func() { e.bridge.Invalidate(events.Meetings, "offer accepted") },
	)
}

// RejectOffer rejects a plain offer. Only the offers collection changes.
func (e *Engine) RejectOffer(ctx context.Context, offerID string) error {
	return e.mutate(ctx, "reject offer",
		func() func() { return e.removeOffer(offerID) },
		func(ctx context.Context) error { return e.client.RejectOffer(ctx, e.userID, offerID) },
		nil,
	)
}

// ClaimBroadcast runs the two-phase broadcast claim: try-accept reserves,
// accept finalizes. A server-side rejection of the reservation restores the
// cache and returns *ClaimRejectedError. If finalizing fails the reservation
// is released best-effort before rolling back.
func (e *Engine) ClaimBroadcast(ctx context.Context, offerID string) error {
	return e.mutate(ctx, "claim broadcast",
		func() func() { return e.removeOffer(offerID) },
		func(ctx context.Context) error {
			result, err := e.client.TryAcceptBroadcast(ctx, e.userID, offerID)
			if err != nil {
				return err
			}
			if !result.Success {
				return &ClaimRejectedError{Message: result.Message}
			}
			if err := e.client.AcceptBroadcast(ctx, e.userID, offerID); err != nil {
				if relErr := e.client.RejectBroadcast(ctx, e.userID, offerID); relErr != nil {
					e.logger.Warn("failed to release broadcast claim", "offer_id", offerID, "error", relErr)
				}
				return err
			}
			return nil
		},
		func() { e.bridge.Invalidate(events.Meetings, "broadcast claimed") },
	)
}

// RejectBroadcastOffer declines a broadcast offer, releasing any reservation.
func (e *Engine) RejectBroadcastOffer(ctx context.Context, offerID string) error {
	return e.mutate(ctx, "reject broadcast offer",
		func() func() { return e.removeOffer(offerID) },
		func(ctx context.Context) error { return e.client.RejectBroadcast(ctx, e.userID, offerID) },
		nil,
	)
}
