package model

import "time"

// TimeType says whether a meeting is happening right now or at a scheduled
// future time.
type TimeType string

const (
	TimeImmediate TimeType = "IMMEDIATE"
	TimeFuture    TimeType = "FUTURE"
)

// TargetType says who a meeting is open to.
type TargetType string

const (
	TargetOpen           TargetType = "OPEN"
	TargetFriendSpecific TargetType = "FRIEND_SPECIFIC"
)

// SourceType records where a meeting came from.
type SourceType string

const (
	SourceUserIntent     SourceType = "USER_INTENT"
	SourceSystemPattern  SourceType = "SYSTEM_PATTERN"
	SourceSystemRealTime SourceType = "SYSTEM_REAL_TIME"
)

// MeetingState is the lifecycle state of a meeting.
type MeetingState string

const (
	StateDraft          MeetingState = "DRAFT"
	StateSearching      MeetingState = "SEARCHING"
	StateAccepted       MeetingState = "ACCEPTED"
	StateRejected       MeetingState = "REJECTED"
	StatePast           MeetingState = "PAST"
	StateCanceled       MeetingState = "CANCELED"
	StateDismissedDraft MeetingState = "DISMISSED_DRAFT"
)

// BroadcastSubState tracks the claim protocol of a broadcast meeting.
// Only meaningful when the meeting is a broadcast (IMMEDIATE + OPEN).
type BroadcastSubState string

const (
	SubStateUnclaimed      BroadcastSubState = "UNCLAIMED"
	SubStatePendingClaimed BroadcastSubState = "PENDING_CLAIMED"
	SubStateClaimed        BroadcastSubState = "CLAIMED"
)

// BroadcastMetadata carries broadcast-only fields of a meeting.
type BroadcastMetadata struct {
	SubState BroadcastSubState `json:"subState"`
}

// Meeting is the central entity. Meetings are created and mutated only by the
// backend; the client never invents an id.
type Meeting struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	UserFromID      string             `json:"userFromId"`
	ScheduledFor    time.Time          `json:"scheduledFor"`
	ScheduledEnd    time.Time          `json:"scheduledEnd"`
	TimeType        TimeType           `json:"timeType"`
	TargetType      TargetType         `json:"targetType"`
	SourceType      SourceType         `json:"sourceType"`
	TargetUserIDs   []string           `json:"targetUserIds"`
	AcceptedUserIDs []string           `json:"acceptedUserIds"`
	MeetingState    MeetingState       `json:"meetingState"`
	Broadcast       *BroadcastMetadata `json:"broadcastMetadata,omitempty"`
	IntentLabel     string             `json:"intentLabel,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// ScheduledTime implements the shared sort key for meetings and offers.
func (m Meeting) ScheduledTime() time.Time {
	return m.ScheduledFor
}

// SubState returns the broadcast sub-state, or UNCLAIMED when no broadcast
// metadata is present.
func (m Meeting) SubState() BroadcastSubState {
	if m.Broadcast == nil {
		return SubStateUnclaimed
	}
	return m.Broadcast.SubState
}
