package server

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/openline/internal/api"
	"github.com/dukerupert/openline/internal/database"
	"github.com/dukerupert/openline/internal/events"
	"github.com/dukerupert/openline/internal/model"
	openlinesync "github.com/dukerupert/openline/internal/sync"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	srv := New(db, slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func registeredClient(t *testing.T, ts *httptest.Server, userID string) *api.Client {
	t.Helper()
	c := api.NewClient(ts.URL)
	if _, err := c.RegisterDevice(context.Background(), userID, "test-device"); err != nil {
		t.Fatalf("register device for %s: %v", userID, err)
	}
	return c
}

func meetingTime(t *testing.T) time.Time {
	t.Helper()
	return time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	ts := startTestServer(t)
	c := api.NewClient(ts.URL)

	_, err := c.GetMeetings(context.Background(), "alice")
	apiErr, ok := err.(*api.Error)
	if !ok {
		t.Fatalf("err = %v, want *api.Error", err)
	}
	if apiErr.Status != 401 {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
}

// TestBroadcastClaimEndToEnd runs the whole flow through real HTTP: alice
// broadcasts, bob sees the offer and claims it through the two-phase
// protocol, and both sides converge.
func TestBroadcastClaimEndToEnd(t *testing.T) {
	ctx := context.Background()
	ts := startTestServer(t)

	alice := registeredClient(t, ts, "alice")
	bob := registeredClient(t, ts, "bob")

	// Alice goes live.
	meeting, err := alice.BroadcastNow(ctx, api.BroadcastNowRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("broadcast now: %v", err)
	}
	if meeting.SubState() != model.SubStateUnclaimed {
		t.Fatalf("sub state = %q, want UNCLAIMED", meeting.SubState())
	}

	broadcasting, err := alice.IsUserBroadcasting(ctx, "alice")
	if err != nil {
		t.Fatalf("is broadcasting: %v", err)
	}
	if !broadcasting {
		t.Fatal("alice should be broadcasting")
	}

	// Bob runs a full sync engine against the live server.
	engine := openlinesync.NewEngine(bob, "bob", events.NewBus(), slog.New(slog.DiscardHandler))
	offers, err := engine.RefreshOffers(ctx)
	if err != nil {
		t.Fatalf("refresh offers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("bob has %d offers, want 1", len(offers))
	}
	if offers[0].OfferType != model.OfferBroadcast {
		t.Errorf("offer type = %q, want BROADCAST", offers[0].OfferType)
	}
	if offers[0].Meeting == nil || offers[0].Meeting.ID != meeting.ID {
		t.Fatalf("offer meeting = %+v, want %s", offers[0].Meeting, meeting.ID)
	}

	if err := engine.ClaimBroadcast(ctx, offers[0].ID); err != nil {
		t.Fatalf("claim broadcast: %v", err)
	}

	// Alice's view of the meeting now shows bob accepted.
	meetings, err := alice.GetMeetings(ctx, "alice")
	if err != nil {
		t.Fatalf("get meetings: %v", err)
	}
	if len(meetings) != 1 {
		t.Fatalf("alice has %d meetings, want 1", len(meetings))
	}
	m := meetings[0]
	if m.MeetingState != model.StateAccepted {
		t.Errorf("meeting state = %q, want ACCEPTED", m.MeetingState)
	}
	if m.SubState() != model.SubStateClaimed {
		t.Errorf("sub state = %q, want CLAIMED", m.SubState())
	}
	if len(m.AcceptedUserIDs) != 1 || m.AcceptedUserIDs[0] != "bob" {
		t.Errorf("accepted users = %v, want [bob]", m.AcceptedUserIDs)
	}

	// Bob's pending offers are gone, and the meeting shows up in his list.
	offers, err = engine.RefreshOffers(ctx)
	if err != nil {
		t.Fatalf("refresh offers: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("bob has %d offers after claiming, want 0", len(offers))
	}
	bobMeetings, err := engine.RefreshMeetings(ctx)
	if err != nil {
		t.Fatalf("refresh meetings: %v", err)
	}
	if len(bobMeetings) != 1 {
		t.Errorf("bob has %d meetings, want 1", len(bobMeetings))
	}
}

func TestClaimRaceSingleWinner(t *testing.T) {
	ctx := context.Background()
	ts := startTestServer(t)

	alice := registeredClient(t, ts, "alice")
	bob := registeredClient(t, ts, "bob")
	carol := registeredClient(t, ts, "carol")

	if _, err := alice.BroadcastNow(ctx, api.BroadcastNowRequest{UserID: "alice"}); err != nil {
		t.Fatalf("broadcast now: %v", err)
	}

	bobOffers, err := bob.GetOffers(ctx, "bob")
	if err != nil {
		t.Fatalf("bob offers: %v", err)
	}
	carolOffers, err := carol.GetOffers(ctx, "carol")
	if err != nil {
		t.Fatalf("carol offers: %v", err)
	}
	if len(bobOffers) != 1 || len(carolOffers) != 1 {
		t.Fatalf("offers = %d/%d, want 1/1", len(bobOffers), len(carolOffers))
	}

	first, err := bob.TryAcceptBroadcast(ctx, "bob", bobOffers[0].ID)
	if err != nil {
		t.Fatalf("bob try-accept: %v", err)
	}
	if !first.Success {
		t.Fatal("bob's reservation should succeed")
	}

	second, err := carol.TryAcceptBroadcast(ctx, "carol", carolOffers[0].ID)
	if err != nil {
		t.Fatalf("carol try-accept: %v", err)
	}
	if second.Success {
		t.Fatal("carol's reservation should lose the race")
	}

	if err := bob.AcceptBroadcast(ctx, "bob", bobOffers[0].ID); err != nil {
		t.Fatalf("bob accept: %v", err)
	}

	// Carol's pending offer was rejected when bob finalized.
	carolOffers, err = carol.GetOffers(ctx, "carol")
	if err != nil {
		t.Fatalf("carol offers: %v", err)
	}
	if len(carolOffers) != 0 {
		t.Errorf("carol has %d offers, want 0", len(carolOffers))
	}
}

func TestRejectBroadcastReleasesClaim(t *testing.T) {
	ctx := context.Background()
	ts := startTestServer(t)

	alice := registeredClient(t, ts, "alice")
	bob := registeredClient(t, ts, "bob")
	carol := registeredClient(t, ts, "carol")

	if _, err := alice.BroadcastNow(ctx, api.BroadcastNowRequest{UserID: "alice"}); err != nil {
		t.Fatalf("broadcast now: %v", err)
	}

	bobOffers, err := bob.GetOffers(ctx, "bob")
	if err != nil {
		t.Fatalf("bob offers: %v", err)
	}
	res, err := bob.TryAcceptBroadcast(ctx, "bob", bobOffers[0].ID)
	if err != nil || !res.Success {
		t.Fatalf("bob try-accept: res=%+v err=%v", res, err)
	}

	// Bob backs out instead of finalizing.
	if err := bob.RejectBroadcast(ctx, "bob", bobOffers[0].ID); err != nil {
		t.Fatalf("bob reject: %v", err)
	}

	// Carol can now take it.
	carolOffers, err := carol.GetOffers(ctx, "carol")
	if err != nil {
		t.Fatalf("carol offers: %v", err)
	}
	if len(carolOffers) != 1 {
		t.Fatalf("carol has %d offers, want 1", len(carolOffers))
	}
	res, err = carol.TryAcceptBroadcast(ctx, "carol", carolOffers[0].ID)
	if err != nil {
		t.Fatalf("carol try-accept: %v", err)
	}
	if !res.Success {
		t.Error("claim should be available again after release")
	}
}

func TestSuggestionLifecycle(t *testing.T) {
	ctx := context.Background()
	ts := startTestServer(t)

	alice := registeredClient(t, ts, "alice")
	bob := registeredClient(t, ts, "bob")

	meetings, err := alice.GetMeetings(ctx, "alice")
	if err != nil {
		t.Fatalf("get meetings: %v", err)
	}
	if len(meetings) != 0 {
		t.Fatalf("meetings = %d, want 0", len(meetings))
	}

	// A system-suggested meeting enters as a draft.
	suggestion, err := alice.CreateMeeting(ctx, api.CreateMeetingRequest{
		UserFromID:   "alice",
		ScheduledFor: meetingTime(t),
		TimeType:     model.TimeFuture,
		TargetType:   model.TargetOpen,
		SourceType:   model.SourceSystemPattern,
		Title:        "coffee chat",
	})
	if err != nil {
		t.Fatalf("create suggestion: %v", err)
	}
	if suggestion.MeetingState != model.StateDraft {
		t.Fatalf("state = %q, want DRAFT", suggestion.MeetingState)
	}

	// Drafts are invisible to candidates.
	offers, err := bob.GetOffers(ctx, "bob")
	if err != nil {
		t.Fatalf("bob offers: %v", err)
	}
	if len(offers) != 0 {
		t.Fatalf("bob has %d offers for a draft, want 0", len(offers))
	}

	if err := alice.AcceptSuggestion(ctx, suggestion.ID, "alice"); err != nil {
		t.Fatalf("accept suggestion: %v", err)
	}

	offers, err = bob.GetOffers(ctx, "bob")
	if err != nil {
		t.Fatalf("bob offers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("bob has %d offers after confirmation, want 1", len(offers))
	}
	if offers[0].OfferType != model.OfferAdvance {
		t.Errorf("offer type = %q, want ADVANCE", offers[0].OfferType)
	}

	// Cancel rejects the outstanding offers.
	if err := alice.CancelMeeting(ctx, suggestion.ID, "alice"); err != nil {
		t.Fatalf("cancel meeting: %v", err)
	}
	offers, err = bob.GetOffers(ctx, "bob")
	if err != nil {
		t.Fatalf("bob offers: %v", err)
	}
	if len(offers) != 0 {
		t.Errorf("bob has %d offers after cancel, want 0", len(offers))
	}
}
