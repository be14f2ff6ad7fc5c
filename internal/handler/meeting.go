package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/openline/internal/middleware"
	"github.com/dukerupert/openline/internal/model"
	"github.com/dukerupert/openline/internal/store"
	"github.com/dukerupert/openline/internal/websocket"
)

const broadcastDuration = 60 * time.Minute

type MeetingHandler struct {
	meetings *store.MeetingStore
	offers   *store.OfferStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewMeetingHandler(ms *store.MeetingStore, os *store.OfferStore, hub *websocket.Hub, logger *slog.Logger) *MeetingHandler {
	return &MeetingHandler{meetings: ms, offers: os, hub: hub, logger: logger}
}

func (h *MeetingHandler) notify(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

var validTimeTypes = map[model.TimeType]bool{
	model.TimeImmediate: true,
	model.TimeFuture:    true,
}

var validTargetTypes = map[model.TargetType]bool{
	model.TargetOpen:           true,
	model.TargetFriendSpecific: true,
}

var validSourceTypes = map[model.SourceType]bool{
	model.SourceUserIntent:     true,
	model.SourceSystemPattern:  true,
	model.SourceSystemRealTime: true,
}

type getMeetingsRequest struct {
	UserFromID string `json:"userFromId"`
}

// GetMeetings handles POST /api/get-meetings.
func (h *MeetingHandler) GetMeetings(w http.ResponseWriter, r *http.Request) {
	var req getMeetingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())
	if req.UserFromID != "" && req.UserFromID != userID {
		writeError(w, http.StatusForbidden, "userFromId does not match device")
		return
	}

	meetings, err := h.meetings.ListForUser(userID)
	if err != nil {
		h.logger.Error("list meetings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list meetings")
		return
	}
	if meetings == nil {
		meetings = []model.Meeting{}
	}
	writeJSON(w, http.StatusOK, meetings)
}

type createMeetingRequest struct {
	UserFromID    string           `json:"userFromId"`
	ScheduledFor  time.Time        `json:"scheduledFor"`
	ScheduledEnd  time.Time        `json:"scheduledEnd"`
	TimeType      model.TimeType   `json:"timeType"`
	TargetType    model.TargetType `json:"targetType"`
	SourceType    model.SourceType `json:"sourceType"`
	Title         string           `json:"title"`
	TargetUserIDs []string         `json:"targetUserIds"`
	IntentLabel   string           `json:"intentLabel"`
}

// CreateMeeting handles POST /api/create-meeting.
func (h *MeetingHandler) CreateMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())

	if req.TimeType == "" {
		req.TimeType = model.TimeFuture
	}
	if req.TargetType == "" {
		req.TargetType = model.TargetOpen
	}
	if req.SourceType == "" {
		req.SourceType = model.SourceUserIntent
	}
	if !validTimeTypes[req.TimeType] || !validTargetTypes[req.TargetType] || !validSourceTypes[req.SourceType] {
		writeError(w, http.StatusBadRequest, "invalid meeting type")
		return
	}
	if req.ScheduledFor.IsZero() {
		writeError(w, http.StatusBadRequest, "scheduledFor is required")
		return
	}
	if req.ScheduledEnd.IsZero() {
		req.ScheduledEnd = req.ScheduledFor.Add(broadcastDuration)
	}

	// System-sourced meetings enter as suggestions awaiting user confirmation.
	state := model.StateSearching
	if req.SourceType != model.SourceUserIntent {
		state = model.StateDraft
	}

	m := &model.Meeting{
		Title:         req.Title,
		UserFromID:    userID,
		ScheduledFor:  req.ScheduledFor,
		ScheduledEnd:  req.ScheduledEnd,
		TimeType:      req.TimeType,
		TargetType:    req.TargetType,
		SourceType:    req.SourceType,
		TargetUserIDs: req.TargetUserIDs,
		MeetingState:  state,
		IntentLabel:   req.IntentLabel,
	}
	if req.TimeType == model.TimeImmediate && req.TargetType == model.TargetOpen {
		m.Broadcast = &model.BroadcastMetadata{SubState: model.SubStateUnclaimed}
	}

	created, err := h.meetings.Create(m)
	if err != nil {
		h.logger.Error("create meeting", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create meeting")
		return
	}

	if created.MeetingState == model.StateSearching {
		h.notify(websocket.CollectionChanged("offers", ""))
	}
	writeJSON(w, http.StatusCreated, created)
}

type meetingUserRequest struct {
	MeetingID string `json:"meetingId"`
	UserID    string `json:"userId"`
}

func (h *MeetingHandler) ownedMeeting(w http.ResponseWriter, r *http.Request, meetingID string) *model.Meeting {
	m, err := h.meetings.GetByID(meetingID)
	if err != nil {
		h.logger.Error("get meeting", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load meeting")
		return nil
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "meeting not found")
		return nil
	}
	if m.UserFromID != middleware.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "not your meeting")
		return nil
	}
	return m
}

// CancelMeeting handles POST /api/cancel-meeting.
func (h *MeetingHandler) CancelMeeting(w http.ResponseWriter, r *http.Request) {
	var req meetingUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := h.ownedMeeting(w, r, req.MeetingID)
	if m == nil {
		return
	}

	if err := h.meetings.UpdateState(m.ID, model.StateCanceled); err != nil {
		h.logger.Error("cancel meeting", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel meeting")
		return
	}
	if err := h.offers.RejectForMeeting(m.ID); err != nil {
		h.logger.Error("reject offers on cancel", "error", err)
	}

	h.notify(websocket.CollectionChanged("offers", ""))
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

type broadcastNowRequest struct {
	UserID        string           `json:"userId"`
	TargetUserIDs []string         `json:"targetUserIds"`
	TargetType    model.TargetType `json:"targetType"`
	IntentLabel   string           `json:"intentLabel"`
}

// BroadcastNow handles POST /api/broadcast-now. Starting a broadcast while one
// is already live returns the live one unchanged.
func (h *MeetingHandler) BroadcastNow(w http.ResponseWriter, r *http.Request) {
	var req broadcastNowRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())

	existing, err := h.meetings.ActiveBroadcastFor(userID)
	if err != nil {
		h.logger.Error("check active broadcast", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check broadcast")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	now := time.Now().UTC()
	m := &model.Meeting{
		Title:         "open for a call",
		UserFromID:    userID,
		ScheduledFor:  now,
		ScheduledEnd:  now.Add(broadcastDuration),
		TimeType:      model.TimeImmediate,
		TargetType:    model.TargetOpen,
		SourceType:    model.SourceUserIntent,
		TargetUserIDs: req.TargetUserIDs,
		MeetingState:  model.StateSearching,
		IntentLabel:   req.IntentLabel,
		Broadcast:     &model.BroadcastMetadata{SubState: model.SubStateUnclaimed},
	}
	created, err := h.meetings.Create(m)
	if err != nil {
		h.logger.Error("create broadcast", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start broadcast")
		return
	}

	h.notify(websocket.BroadcastStatus(userID, true))
	h.notify(websocket.CollectionChanged("offers", ""))
	writeJSON(w, http.StatusCreated, created)
}

type justUserRequest struct {
	UserID string `json:"userId"`
}

// BroadcastEnd handles POST /api/broadcast-end.
func (h *MeetingHandler) BroadcastEnd(w http.ResponseWriter, r *http.Request) {
	var req justUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())

	m, err := h.meetings.ActiveBroadcastFor(userID)
	if err != nil {
		h.logger.Error("find active broadcast", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to end broadcast")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "no active broadcast")
		return
	}

	if err := h.meetings.UpdateState(m.ID, model.StatePast); err != nil {
		h.logger.Error("end broadcast", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to end broadcast")
		return
	}
	if err := h.offers.RejectForMeeting(m.ID); err != nil {
		h.logger.Error("reject offers on end", "error", err)
	}

	h.notify(websocket.BroadcastStatus(userID, false))
	h.notify(websocket.CollectionChanged("offers", ""))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// IsUserBroadcasting handles POST /api/is-user-broadcasting.
func (h *MeetingHandler) IsUserBroadcasting(w http.ResponseWriter, r *http.Request) {
	var req justUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = middleware.UserID(r.Context())
	}

	m, err := h.meetings.ActiveBroadcastFor(userID)
	if err != nil {
		h.logger.Error("check broadcast status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check broadcast")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"broadcasting": m != nil})
}

// CancelBroadcastAcceptance handles POST /api/cancel-broadcast-acceptance:
// the accepting side backs out, releasing the claim so others can take it.
func (h *MeetingHandler) CancelBroadcastAcceptance(w http.ResponseWriter, r *http.Request) {
	var req meetingUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())

	m, err := h.meetings.GetByID(req.MeetingID)
	if err != nil {
		h.logger.Error("get meeting", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load meeting")
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "meeting not found")
		return
	}

	if err := h.meetings.RemoveAcceptedUser(m.ID, userID); err != nil {
		h.logger.Error("remove accepted user", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to cancel acceptance")
		return
	}
	if _, err := h.meetings.SetSubState(m.ID,
		[]model.BroadcastSubState{model.SubStateClaimed, model.SubStatePendingClaimed},
		model.SubStateUnclaimed); err != nil {
		h.logger.Error("release claim", "error", err)
	}
	if err := h.meetings.UpdateState(m.ID, model.StateSearching); err != nil {
		h.logger.Error("reopen meeting", "error", err)
	}
	if offer, err := h.offers.GetForMeetingUser(m.ID, userID); err == nil && offer != nil {
		if err := h.offers.SetState(offer.ID, model.OfferRejected); err != nil {
			h.logger.Error("reject own offer", "error", err)
		}
	}

	h.notify(websocket.CollectionChanged("meetings", m.UserFromID))
	h.notify(websocket.CollectionChanged("offers", ""))
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

// AcceptSuggestion handles POST /api/accept-suggestion: confirms a
// system-suggested draft, moving it to searching.
func (h *MeetingHandler) AcceptSuggestion(w http.ResponseWriter, r *http.Request) {
	h.resolveSuggestion(w, r, model.StateSearching)
}

// DismissSuggestion handles POST /api/dismiss-suggestion.
func (h *MeetingHandler) DismissSuggestion(w http.ResponseWriter, r *http.Request) {
	h.resolveSuggestion(w, r, model.StateDismissedDraft)
}

func (h *MeetingHandler) resolveSuggestion(w http.ResponseWriter, r *http.Request, to model.MeetingState) {
	var req meetingUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m := h.ownedMeeting(w, r, req.MeetingID)
	if m == nil {
		return
	}
	if m.MeetingState != model.StateDraft {
		writeError(w, http.StatusConflict, "meeting is not a draft")
		return
	}

	if err := h.meetings.UpdateState(m.ID, to); err != nil {
		h.logger.Error("resolve suggestion", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update suggestion")
		return
	}

	if to == model.StateSearching {
		// Confirming a suggestion makes it visible to candidates.
		h.notify(websocket.CollectionChanged("offers", ""))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(to)})
}
