// Package classify holds the pure predicates that map a meeting's stored
// fields to its semantic category. Every function here is a total function of
// its input; nothing reads hidden state or touches the network.
package classify

import "github.com/dukerupert/openline/internal/model"

// Category is the consolidated classification of a meeting, computed once and
// carried on processed records so downstream code matches on the variant
// instead of re-deriving it from field combinations.
type Category string

const (
	CategoryBroadcast      Category = "broadcast"
	CategoryAdvance        Category = "advance"
	CategoryFriendSpecific Category = "friend_specific"
)

// Categorize maps a meeting onto its Category. A meeting with an
// unrecognized field combination lands in CategoryFriendSpecific, the same
// bucket as any non-open meeting.
func Categorize(m model.Meeting) Category {
	switch {
	case IsBroadcastMeeting(m):
		return CategoryBroadcast
	case IsAdvanceMeeting(m):
		return CategoryAdvance
	default:
		return CategoryFriendSpecific
	}
}

// IsBroadcastMeeting reports whether the meeting is a live "open for a call"
// broadcast: happening now and open to anyone.
func IsBroadcastMeeting(m model.Meeting) bool {
	return m.TimeType == model.TimeImmediate && m.TargetType == model.TargetOpen
}

// IsAdvanceMeeting reports whether the meeting is scheduled ahead of time and
// open to acceptance.
func IsAdvanceMeeting(m model.Meeting) bool {
	return m.TimeType == model.TimeFuture && m.TargetType == model.TargetOpen
}

func IsImmediateMeeting(m model.Meeting) bool {
	return m.TimeType == model.TimeImmediate
}

func IsFutureMeeting(m model.Meeting) bool {
	return m.TimeType == model.TimeFuture
}

func IsOpenTargetMeeting(m model.Meeting) bool {
	return m.TargetType == model.TargetOpen
}

func IsFriendSpecificMeeting(m model.Meeting) bool {
	return m.TargetType == model.TargetFriendSpecific
}

// IsSystemSuggested reports whether the meeting was proposed by the system
// rather than created by user intent.
func IsSystemSuggested(m model.Meeting) bool {
	return m.SourceType == model.SourceSystemPattern || m.SourceType == model.SourceSystemRealTime
}

// IsBroadcastOffer reports whether the offer points at a broadcast meeting.
// An offer without its meeting reference is never classified as broadcast.
func IsBroadcastOffer(o model.Offer) bool {
	if o.Meeting == nil {
		return false
	}
	return IsBroadcastMeeting(*o.Meeting)
}

// IsAdvanceOffer reports whether the offer points at an advance meeting.
// An offer without its meeting reference is never classified as advance.
func IsAdvanceOffer(o model.Offer) bool {
	if o.Meeting == nil {
		return false
	}
	return IsAdvanceMeeting(*o.Meeting)
}
