// Package display turns raw meeting and offer records into presentation-ready
// ones: localized schedule strings, "expires in" strings, and a deterministic
// ordering shared by both collections.
package display

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/dukerupert/openline/internal/classify"
	"github.com/dukerupert/openline/internal/model"
)

// scheduledForLayout renders weekday, month/day, time, and timezone
// abbreviation, e.g. "Tue, Sep 1, 3:04 PM PDT".
const scheduledForLayout = "Mon, Jan 2, 3:04 PM MST"

// ProcessedMeeting is a meeting augmented with derived display-only fields.
// These are computed at read time and never sent back to the server.
type ProcessedMeeting struct {
	model.Meeting
	Category            classify.Category `json:"category"`
	DisplayScheduledFor string            `json:"displayScheduledFor"`
}

// ProcessedOffer is an offer augmented with derived display-only fields.
type ProcessedOffer struct {
	model.Offer
	Category            classify.Category `json:"category"`
	DisplayScheduledFor string            `json:"displayScheduledFor"`
	DisplayExpiresAt    string            `json:"displayExpiresAt"`
}

// Scheduled is any record carrying a scheduled start instant.
type Scheduled interface {
	ScheduledTime() time.Time
}

// SortByScheduledFor orders records ascending by scheduled start, earliest
// first. The sort is stable: records with identical starts keep their input
// order.
func SortByScheduledFor[T Scheduled](records []T) {
	slices.SortStableFunc(records, func(a, b T) int {
		return a.ScheduledTime().Compare(b.ScheduledTime())
	})
}

// ProcessMeetings augments and sorts meetings for display. Times are rendered
// in loc; pass time.Local for the viewer's timezone.
func ProcessMeetings(meetings []model.Meeting, loc *time.Location) []ProcessedMeeting {
	processed := make([]ProcessedMeeting, 0, len(meetings))
	for _, m := range meetings {
		processed = append(processed, ProcessedMeeting{
			Meeting:             m,
			Category:            classify.Categorize(m),
			DisplayScheduledFor: m.ScheduledFor.In(loc).Format(scheduledForLayout),
		})
	}
	SortByScheduledFor(processed)
	return processed
}

// ProcessOffers augments and sorts offers for display. Expiry strings are
// relative to now.
func ProcessOffers(offers []model.Offer, now time.Time, loc *time.Location) []ProcessedOffer {
	processed := make([]ProcessedOffer, 0, len(offers))
	for _, o := range offers {
		category := classify.CategoryFriendSpecific
		if o.Meeting != nil {
			category = classify.Categorize(*o.Meeting)
		}
		processed = append(processed, ProcessedOffer{
			Offer:               o,
			Category:            category,
			DisplayScheduledFor: o.ScheduledFor.In(loc).Format(scheduledForLayout),
			DisplayExpiresAt:    ExpiresIn(o.ExpiresAt, now.In(loc)),
		})
	}
	SortByScheduledFor(processed)
	return processed
}

// ExpiresIn renders the remaining lifetime of an offer as a human string.
//
// Past expiries return "expired". Under 12 hours the string counts elapsed
// minutes or hours. At 12 hours and beyond it counts calendar days: the
// difference between the local midnight boundaries of now and of the expiry,
// not raw elapsed time, so an offer expiring shortly after the second midnight
// from now reads "2 days" even when fewer than 48 hours remain.
func ExpiresIn(expiresAt, now time.Time) string {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return "expired"
	}

	if remaining < 12*time.Hour {
		if remaining < time.Hour {
			minutes := int(remaining.Minutes())
			if minutes < 1 {
				minutes = 1
			}
			if minutes == 1 {
				return "1 minute"
			}
			return fmt.Sprintf("%d minutes", minutes)
		}
		hours := int(remaining.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}

	days := calendarDays(now, expiresAt.In(now.Location()))
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// calendarDays counts midnight boundaries crossed between from and to in
// from's location. The elapsed time between two local midnights is not always
// a multiple of 24h (DST days run 23 or 25 hours), so the quotient is rounded
// rather than truncated.
func calendarDays(from, to time.Time) int {
	fromMidnight := startOfDay(from)
	toMidnight := startOfDay(to)
	return int(math.Round(toMidnight.Sub(fromMidnight).Hours() / 24))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
