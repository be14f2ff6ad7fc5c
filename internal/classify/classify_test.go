package classify

import (
	"testing"

	"github.com/dukerupert/openline/internal/model"
)

func TestCategorizeCoversAllCombinations(t *testing.T) {
	cases := []struct {
		name   string
		time   model.TimeType
		target model.TargetType
		want   Category
	}{
		{"immediate open is broadcast", model.TimeImmediate, model.TargetOpen, CategoryBroadcast},
		{"future open is advance", model.TimeFuture, model.TargetOpen, CategoryAdvance},
		{"immediate friend-specific", model.TimeImmediate, model.TargetFriendSpecific, CategoryFriendSpecific},
		{"future friend-specific", model.TimeFuture, model.TargetFriendSpecific, CategoryFriendSpecific},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := model.Meeting{TimeType: tc.time, TargetType: tc.target}
			if got := Categorize(m); got != tc.want {
				t.Errorf("Categorize = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBroadcastAndAdvanceAreExclusive(t *testing.T) {
	for _, tt := range []model.TimeType{model.TimeImmediate, model.TimeFuture} {
		for _, tgt := range []model.TargetType{model.TargetOpen, model.TargetFriendSpecific} {
			m := model.Meeting{TimeType: tt, TargetType: tgt}
			if IsBroadcastMeeting(m) && IsAdvanceMeeting(m) {
				t.Errorf("meeting %v/%v classified as both broadcast and advance", tt, tgt)
			}
		}
	}
}

func TestUnknownEnumValuesFallThrough(t *testing.T) {
	m := model.Meeting{TimeType: "SOMEDAY", TargetType: "EVERYONE"}
	if got := Categorize(m); got != CategoryFriendSpecific {
		t.Errorf("Categorize(unknown) = %q, want %q", got, CategoryFriendSpecific)
	}
	if IsBroadcastMeeting(m) || IsAdvanceMeeting(m) {
		t.Error("unknown enum values must not classify as broadcast or advance")
	}
}

func TestAxisPredicates(t *testing.T) {
	m := model.Meeting{
		TimeType:   model.TimeImmediate,
		TargetType: model.TargetFriendSpecific,
		SourceType: model.SourceSystemPattern,
	}
	if !IsImmediateMeeting(m) || IsFutureMeeting(m) {
		t.Error("time axis predicates disagree with timeType")
	}
	if IsOpenTargetMeeting(m) || !IsFriendSpecificMeeting(m) {
		t.Error("target axis predicates disagree with targetType")
	}
	if !IsSystemSuggested(m) {
		t.Error("SYSTEM_PATTERN should be system suggested")
	}

	m.SourceType = model.SourceUserIntent
	if IsSystemSuggested(m) {
		t.Error("USER_INTENT should not be system suggested")
	}
}

func TestOfferPredicatesDelegateToMeeting(t *testing.T) {
	broadcast := &model.Meeting{TimeType: model.TimeImmediate, TargetType: model.TargetOpen}
	advance := &model.Meeting{TimeType: model.TimeFuture, TargetType: model.TargetOpen}

	if !IsBroadcastOffer(model.Offer{Meeting: broadcast}) {
		t.Error("offer on broadcast meeting should be a broadcast offer")
	}
	if !IsAdvanceOffer(model.Offer{Meeting: advance}) {
		t.Error("offer on advance meeting should be an advance offer")
	}
	if IsBroadcastOffer(model.Offer{Meeting: advance}) {
		t.Error("offer on advance meeting must not be a broadcast offer")
	}
}

func TestOfferPredicatesWithoutMeeting(t *testing.T) {
	o := model.Offer{MeetingID: "m1"}
	if IsBroadcastOffer(o) {
		t.Error("IsBroadcastOffer(no meeting) = true, want false")
	}
	if IsAdvanceOffer(o) {
		t.Error("IsAdvanceOffer(no meeting) = true, want false")
	}
}
