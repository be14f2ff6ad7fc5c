// Package card routes a meeting or offer to the presentational variant that
// should render it. Selection is pure: no I/O, and every reachable state maps
// to exactly one variant.
package card

import (
	"github.com/dukerupert/openline/internal/classify"
	"github.com/dukerupert/openline/internal/model"
)

// Variant identifies a card/tile rendering.
type Variant string

const (
	VariantNone            Variant = "none"
	VariantDraftSuggestion Variant = "draft-suggestion"
	VariantSelfBroadcast   Variant = "self-broadcast"
	VariantOtherBroadcast  Variant = "other-broadcast"
	VariantRegularMeeting  Variant = "regular-meeting"

	VariantOtherBroadcastOffer Variant = "other-broadcast-offer"
	VariantRegularOffer        Variant = "regular-offer"
)

// SelectMeetingCard picks the variant for a meeting as seen by viewerID.
func SelectMeetingCard(m model.Meeting, viewerID string) Variant {
	switch m.MeetingState {
	case model.StateDismissedDraft, model.StateCanceled:
		return VariantNone
	case model.StateDraft:
		return VariantDraftSuggestion
	}

	if classify.IsBroadcastMeeting(m) {
		if m.UserFromID == viewerID {
			if m.MeetingState == model.StatePast {
				return VariantNone
			}
			return VariantSelfBroadcast
		}
		// Viewer accepted someone else's broadcast.
		return VariantOtherBroadcast
	}

	return VariantRegularMeeting
}

// SelectOfferCard picks the variant for an offer.
func SelectOfferCard(o model.Offer) Variant {
	if classify.IsBroadcastOffer(o) {
		return VariantOtherBroadcastOffer
	}
	return VariantRegularOffer
}
