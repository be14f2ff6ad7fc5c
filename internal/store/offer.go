package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/openline/internal/model"
)

type OfferStore struct {
	db *sql.DB
}

func NewOfferStore(db *sql.DB) *OfferStore {
	return &OfferStore{db: db}
}

const offerCols = `id, meeting_id, user_id, offer_state, offer_type, scheduled_for, expires_at, created_at, updated_at`

func scanOffer(scanner interface{ Scan(...any) error }) (*model.Offer, error) {
	var o model.Offer
	err := scanner.Scan(
		&o.ID, &o.MeetingID, &o.UserID, &o.OfferState, &o.OfferType,
		&o.ScheduledFor, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// EnsureForUser materializes an offer routing the meeting to the candidate
// user. Repeated calls for the same meeting and user are no-ops, so offer
// generation at read time stays idempotent.
func (s *OfferStore) EnsureForUser(meeting *model.Meeting, userID string, offerType model.OfferType, expiresAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO offers (id, meeting_id, user_id, offer_state, offer_type, scheduled_for, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (meeting_id, user_id) DO NOTHING`,
		uuid.NewString(), meeting.ID, userID, model.OfferPending, offerType,
		meeting.ScheduledFor.UTC(), expiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("ensure offer: %w", err)
	}
	return nil
}

func (s *OfferStore) GetByID(id string) (*model.Offer, error) {
	row := s.db.QueryRow(`SELECT `+offerCols+` FROM offers WHERE id = ?`, id)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

// ListPendingForUser returns the user's pending offers with each offer's
// meeting denormalized onto it, ordered by scheduled_for ascending.
func (s *OfferStore) ListPendingForUser(userID string) ([]model.Offer, error) {
	rows, err := s.db.Query(
		`SELECT o.id, o.meeting_id, o.user_id, o.offer_state, o.offer_type, o.scheduled_for, o.expires_at, o.created_at, o.updated_at,
		        m.id, m.title, m.user_from_id, m.scheduled_for, m.scheduled_end, m.time_type, m.target_type, m.source_type,
		        m.target_user_ids, m.accepted_user_ids, m.meeting_state, m.sub_state, m.intent_label, m.created_at, m.updated_at
		 FROM offers o
		 JOIN meetings m ON m.id = o.meeting_id
		 WHERE o.user_id = ? AND o.offer_state = ?
		 ORDER BY o.scheduled_for ASC, o.id ASC`,
		userID, model.OfferPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		o, err := scanOfferWithMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func scanOfferWithMeeting(rows *sql.Rows) (*model.Offer, error) {
	var o model.Offer
	var m model.Meeting
	var targetIDs, acceptedIDs string
	var subState sql.NullString
	err := rows.Scan(
		&o.ID, &o.MeetingID, &o.UserID, &o.OfferState, &o.OfferType,
		&o.ScheduledFor, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt,
		&m.ID, &m.Title, &m.UserFromID, &m.ScheduledFor, &m.ScheduledEnd,
		&m.TimeType, &m.TargetType, &m.SourceType, &targetIDs, &acceptedIDs,
		&m.MeetingState, &subState, &m.IntentLabel, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeIDs(targetIDs, &m.TargetUserIDs); err != nil {
		return nil, err
	}
	if err := decodeIDs(acceptedIDs, &m.AcceptedUserIDs); err != nil {
		return nil, err
	}
	if subState.Valid {
		m.Broadcast = &model.BroadcastMetadata{SubState: model.BroadcastSubState(subState.String)}
	}
	o.Meeting = &m
	return &o, nil
}

// GetForMeetingUser returns the offer routing a meeting to a specific user,
// or nil when none exists.
func (s *OfferStore) GetForMeetingUser(meetingID, userID string) (*model.Offer, error) {
	row := s.db.QueryRow(
		`SELECT `+offerCols+` FROM offers WHERE meeting_id = ? AND user_id = ?`,
		meetingID, userID,
	)
	o, err := scanOffer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get offer for meeting: %w", err)
	}
	return o, nil
}

func (s *OfferStore) SetState(id string, state model.OfferState) error {
	res, err := s.db.Exec(
		`UPDATE offers SET offer_state = ?, updated_at = ? WHERE id = ?`,
		state, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set offer state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RejectForMeeting rejects every still-pending offer attached to the meeting,
// used when the meeting itself is canceled or ends.
func (s *OfferStore) RejectForMeeting(meetingID string) error {
	_, err := s.db.Exec(
		`UPDATE offers SET offer_state = ?, updated_at = ? WHERE meeting_id = ? AND offer_state = ?`,
		model.OfferRejected, time.Now().UTC(), meetingID, model.OfferPending,
	)
	if err != nil {
		return fmt.Errorf("reject offers for meeting: %w", err)
	}
	return nil
}
