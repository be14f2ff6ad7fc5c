package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/openline/internal/classify"
	"github.com/dukerupert/openline/internal/middleware"
	"github.com/dukerupert/openline/internal/model"
	"github.com/dukerupert/openline/internal/store"
	"github.com/dukerupert/openline/internal/websocket"
)

const advanceOfferTTL = 24 * time.Hour

type OfferHandler struct {
	meetings *store.MeetingStore
	offers   *store.OfferStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewOfferHandler(ms *store.MeetingStore, os *store.OfferStore, hub *websocket.Hub, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{meetings: ms, offers: os, hub: hub, logger: logger}
}

func (h *OfferHandler) notify(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// GetOffers handles POST /api/get-offers. Offers are materialized lazily:
// every searching meeting that should reach this user gets an offer row on
// read, so routing needs no background job.
func (h *OfferHandler) GetOffers(w http.ResponseWriter, r *http.Request) {
	var req justUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := middleware.UserID(r.Context())

	candidates, err := h.meetings.ListOfferCandidates(userID)
	if err != nil {
		h.logger.Error("list offer candidates", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load offers")
		return
	}
	for i := range candidates {
		m := &candidates[i]
		offerType := model.OfferAdvance
		expiresAt := m.ScheduledFor.Add(advanceOfferTTL)
		if classify.IsBroadcastMeeting(*m) {
			offerType = model.OfferBroadcast
			expiresAt = m.ScheduledEnd
		}
		if err := h.offers.EnsureForUser(m, userID, offerType, expiresAt); err != nil {
			h.logger.Error("materialize offer", "meeting", m.ID, "error", err)
		}
	}

	offers, err := h.offers.ListPendingForUser(userID)
	if err != nil {
		h.logger.Error("list offers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load offers")
		return
	}
	if offers == nil {
		offers = []model.Offer{}
	}
	writeJSON(w, http.StatusOK, offers)
}

type userOfferRequest struct {
	UserID  string `json:"userId"`
	OfferID string `json:"offerId"`
}

func (h *OfferHandler) ownOffer(w http.ResponseWriter, r *http.Request, offerID string) *model.Offer {
	o, err := h.offers.GetByID(offerID)
	if err != nil {
		h.logger.Error("get offer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load offer")
		return nil
	}
	if o == nil {
		writeError(w, http.StatusNotFound, "offer not found")
		return nil
	}
	if o.UserID != middleware.UserID(r.Context()) {
		writeError(w, http.StatusForbidden, "not your offer")
		return nil
	}
	return o
}

// AcceptOffer handles POST /api/accept-offer for plain (non-broadcast) offers.
func (h *OfferHandler) AcceptOffer(w http.ResponseWriter, r *http.Request) {
	var req userOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o := h.ownOffer(w, r, req.OfferID)
	if o == nil {
		return
	}
	if o.OfferState != model.OfferPending {
		writeError(w, http.StatusConflict, "offer is not pending")
		return
	}

	if err := h.offers.SetState(o.ID, model.OfferAccepted); err != nil {
		h.logger.Error("accept offer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept offer")
		return
	}
	if err := h.meetings.AddAcceptedUser(o.MeetingID, o.UserID); err != nil {
		h.logger.Error("record acceptance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept offer")
		return
	}
	if err := h.meetings.UpdateState(o.MeetingID, model.StateAccepted); err != nil {
		h.logger.Error("mark meeting accepted", "error", err)
	}

	m, err := h.meetings.GetByID(o.MeetingID)
	if err == nil && m != nil {
		h.notify(websocket.CollectionChanged("meetings", m.UserFromID))
	}
	h.notify(websocket.CollectionChanged("meetings", o.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// RejectOffer handles POST /api/reject-offer.
func (h *OfferHandler) RejectOffer(w http.ResponseWriter, r *http.Request) {
	var req userOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o := h.ownOffer(w, r, req.OfferID)
	if o == nil {
		return
	}

	if err := h.offers.SetState(o.ID, model.OfferRejected); err != nil {
		h.logger.Error("reject offer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reject offer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// TryAcceptBroadcast handles POST /api/try-accept-broadcast, phase one of the
// broadcast claim protocol. A lost race is a normal outcome, reported with
// HTTP 200 and success=false.
func (h *OfferHandler) TryAcceptBroadcast(w http.ResponseWriter, r *http.Request) {
	var req userOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o := h.ownOffer(w, r, req.OfferID)
	if o == nil {
		return
	}

	claimed, err := h.meetings.SetSubState(o.MeetingID,
		[]model.BroadcastSubState{model.SubStateUnclaimed},
		model.SubStatePendingClaimed)
	if err != nil {
		h.logger.Error("reserve claim", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reserve claim")
		return
	}
	if !claimed {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "broadcast already claimed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": ""})
}

// AcceptBroadcast handles POST /api/accept-broadcast, phase two: finalize a
// reserved claim.
func (h *OfferHandler) AcceptBroadcast(w http.ResponseWriter, r *http.Request) {
	var req userOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o := h.ownOffer(w, r, req.OfferID)
	if o == nil {
		return
	}

	finalized, err := h.meetings.SetSubState(o.MeetingID,
		[]model.BroadcastSubState{model.SubStatePendingClaimed},
		model.SubStateClaimed)
	if err != nil {
		h.logger.Error("finalize claim", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to finalize claim")
		return
	}
	if !finalized {
		writeError(w, http.StatusConflict, "no pending claim to finalize")
		return
	}

	if err := h.offers.SetState(o.ID, model.OfferAccepted); err != nil {
		h.logger.Error("accept broadcast offer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept broadcast")
		return
	}
	if err := h.meetings.AddAcceptedUser(o.MeetingID, o.UserID); err != nil {
		h.logger.Error("record broadcast acceptance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to accept broadcast")
		return
	}
	if err := h.meetings.UpdateState(o.MeetingID, model.StateAccepted); err != nil {
		h.logger.Error("mark broadcast accepted", "error", err)
	}
	// Everyone else's pending offer for this broadcast is now moot.
	if err := h.offers.RejectForMeeting(o.MeetingID); err != nil {
		h.logger.Error("reject losing offers", "error", err)
	}

	m, err := h.meetings.GetByID(o.MeetingID)
	if err == nil && m != nil {
		h.notify(websocket.CollectionChanged("meetings", m.UserFromID))
	}
	h.notify(websocket.CollectionChanged("meetings", o.UserID))
	h.notify(websocket.CollectionChanged("offers", ""))
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// RejectBroadcast handles POST /api/reject-broadcast. It both rejects the
// user's broadcast offer and releases any claim reservation they held.
func (h *OfferHandler) RejectBroadcast(w http.ResponseWriter, r *http.Request) {
	var req userOfferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	o := h.ownOffer(w, r, req.OfferID)
	if o == nil {
		return
	}

	if _, err := h.meetings.SetSubState(o.MeetingID,
		[]model.BroadcastSubState{model.SubStatePendingClaimed},
		model.SubStateUnclaimed); err != nil {
		h.logger.Error("release claim", "error", err)
	}
	if err := h.offers.SetState(o.ID, model.OfferRejected); err != nil {
		h.logger.Error("reject broadcast offer", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reject broadcast")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
