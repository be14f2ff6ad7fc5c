package display

import (
	"testing"
	"time"

	"github.com/dukerupert/openline/internal/classify"
	"github.com/dukerupert/openline/internal/model"
)

func TestExpiresIn(t *testing.T) {
	// Fixed reference point, mid-afternoon.
	now := time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		expiresAt time.Time
		want      string
	}{
		{"already past", now.Add(-time.Second), "expired"},
		{"exactly now", now, "expired"},
		{"under a minute rounds up", now.Add(30 * time.Second), "1 minute"},
		{"one minute singular", now.Add(time.Minute), "1 minute"},
		{"plural minutes", now.Add(45 * time.Minute), "45 minutes"},
		{"one hour singular", now.Add(time.Hour), "1 hour"},
		{"plural hours", now.Add(3 * time.Hour), "3 hours"},
		{"just under twelve hours", now.Add(11*time.Hour + 59*time.Minute), "11 hours"},
		{"twelve hours crosses one midnight", now.Add(12 * time.Hour), "1 day"},
		{"several days", now.Add(72 * time.Hour), "3 days"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExpiresIn(tc.expiresAt, now); got != tc.want {
				t.Errorf("ExpiresIn = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExpiresInCountsCalendarDaysNotElapsedTime(t *testing.T) {
	// 23:00 plus 13 hours is 12:00 two calendar days away by midnight
	// boundaries, even though only 13 hours elapse.
	now := time.Date(2026, 9, 1, 23, 0, 0, 0, time.UTC)
	got := ExpiresIn(now.Add(13*time.Hour), now)
	if got != "2 days" {
		t.Errorf("ExpiresIn(+13h from 23:00) = %q, want %q", got, "2 days")
	}

	// The mirror case: 01:00 plus 13 hours never crosses a midnight.
	now = time.Date(2026, 9, 1, 1, 0, 0, 0, time.UTC)
	got = ExpiresIn(now.Add(13*time.Hour), now)
	if got != "0 days" {
		t.Errorf("ExpiresIn(+13h from 01:00) = %q, want %q", got, "0 days")
	}
}

func TestExpiresInCountsMidnightsAcrossDSTChanges(t *testing.T) {
	// Local midnights are not always 24h apart: a spring-forward day runs
	// 23h and a fall-back day 25h. One crossed midnight must still read
	// "1 day" on both.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	// US DST starts Mar 8, 2026: 13:00 + 20h lands at 09:00 the next day,
	// crossing one midnight across a 23-hour day.
	now := time.Date(2026, 3, 8, 13, 0, 0, 0, loc)
	if got := ExpiresIn(now.Add(20*time.Hour), now); got != "1 day" {
		t.Errorf("ExpiresIn(+20h across spring forward) = %q, want %q", got, "1 day")
	}

	// US DST ends Nov 1, 2026: the same 20h span crosses one midnight
	// across a 25-hour day.
	now = time.Date(2026, 11, 1, 13, 0, 0, 0, loc)
	if got := ExpiresIn(now.Add(20*time.Hour), now); got != "1 day" {
		t.Errorf("ExpiresIn(+20h across fall back) = %q, want %q", got, "1 day")
	}
}

func TestSortByScheduledForIsStable(t *testing.T) {
	at := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)
	meetings := []model.Meeting{
		{ID: "late", ScheduledFor: at.Add(time.Hour)},
		{ID: "tie-a", ScheduledFor: at},
		{ID: "tie-b", ScheduledFor: at},
		{ID: "early", ScheduledFor: at.Add(-time.Hour)},
		{ID: "tie-c", ScheduledFor: at},
	}

	SortByScheduledFor(meetings)

	wantOrder := []string{"early", "tie-a", "tie-b", "tie-c", "late"}
	for i, want := range wantOrder {
		if meetings[i].ID != want {
			t.Fatalf("position %d = %q, want %q (full order %v)", i, meetings[i].ID, want, ids(meetings))
		}
	}
}

func ids(meetings []model.Meeting) []string {
	out := make([]string, len(meetings))
	for i, m := range meetings {
		out[i] = m.ID
	}
	return out
}

func TestProcessMeetingsAugmentsAndSorts(t *testing.T) {
	first := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	second := time.Date(2026, 9, 2, 17, 30, 0, 0, time.UTC)

	processed := ProcessMeetings([]model.Meeting{
		{ID: "m2", ScheduledFor: second, TimeType: model.TimeFuture, TargetType: model.TargetOpen},
		{ID: "m1", ScheduledFor: first, TimeType: model.TimeImmediate, TargetType: model.TargetOpen},
	}, time.UTC)

	if len(processed) != 2 {
		t.Fatalf("got %d processed meetings, want 2", len(processed))
	}
	if processed[0].ID != "m1" || processed[1].ID != "m2" {
		t.Errorf("order = [%s %s], want [m1 m2]", processed[0].ID, processed[1].ID)
	}
	if processed[0].Category != classify.CategoryBroadcast {
		t.Errorf("m1 category = %q, want broadcast", processed[0].Category)
	}
	if processed[1].Category != classify.CategoryAdvance {
		t.Errorf("m2 category = %q, want advance", processed[1].Category)
	}
	if processed[0].DisplayScheduledFor != "Wed, Sep 2, 9:00 AM UTC" {
		t.Errorf("displayScheduledFor = %q", processed[0].DisplayScheduledFor)
	}
}

func TestProcessOffersCarriesExpiryAndCategory(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	meeting := &model.Meeting{TimeType: model.TimeImmediate, TargetType: model.TargetOpen}

	processed := ProcessOffers([]model.Offer{
		{ID: "o1", ScheduledFor: now, ExpiresAt: now.Add(30 * time.Minute), Meeting: meeting},
		{ID: "o2", ScheduledFor: now, ExpiresAt: now.Add(-time.Minute)},
	}, now, time.UTC)

	if processed[0].DisplayExpiresAt != "30 minutes" {
		t.Errorf("o1 displayExpiresAt = %q, want %q", processed[0].DisplayExpiresAt, "30 minutes")
	}
	if processed[0].Category != classify.CategoryBroadcast {
		t.Errorf("o1 category = %q, want broadcast", processed[0].Category)
	}
	if processed[1].DisplayExpiresAt != "expired" {
		t.Errorf("o2 displayExpiresAt = %q, want %q", processed[1].DisplayExpiresAt, "expired")
	}
	if processed[1].Category != classify.CategoryFriendSpecific {
		t.Errorf("o2 (no meeting) category = %q, want friend_specific", processed[1].Category)
	}
}
