package model

import "time"

// OfferState is the lifecycle state of an offer.
type OfferState string

const (
	OfferPending  OfferState = "PENDING"
	OfferAccepted OfferState = "ACCEPTED"
	OfferRejected OfferState = "REJECTED"
)

// OfferType mirrors the classification of the meeting the offer belongs to.
type OfferType string

const (
	OfferBroadcast OfferType = "BROADCAST"
	OfferAdvance   OfferType = "ADVANCE"
)

// Offer is a per-candidate invitation to join a meeting. It is a denormalized
// display-time join against its meeting — never an independent source of truth
// for scheduling.
type Offer struct {
	ID           string     `json:"id"`
	MeetingID    string     `json:"meetingId"`
	UserID       string     `json:"userId"`
	OfferState   OfferState `json:"offerState"`
	OfferType    OfferType  `json:"offerType"`
	ScheduledFor time.Time  `json:"scheduledFor"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Meeting      *Meeting   `json:"meeting,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ScheduledTime implements the shared sort key for meetings and offers.
func (o Offer) ScheduledTime() time.Time {
	return o.ScheduledFor
}
