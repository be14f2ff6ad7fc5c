package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/openline/internal/model"
)

type MeetingStore struct {
	db *sql.DB
}

func NewMeetingStore(db *sql.DB) *MeetingStore {
	return &MeetingStore{db: db}
}

const meetingCols = `id, title, user_from_id, scheduled_for, scheduled_end, time_type, target_type, source_type, target_user_ids, accepted_user_ids, meeting_state, sub_state, intent_label, created_at, updated_at`

func scanMeeting(scanner interface{ Scan(...any) error }) (*model.Meeting, error) {
	var m model.Meeting
	var targetIDs, acceptedIDs string
	var subState sql.NullString
	err := scanner.Scan(
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
	return &m, nil
}

func decodeIDs(raw string, dst *[]string) error {
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode user ids: %w", err)
	}
	return nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode user ids: %w", err)
	}
	return string(data), nil
}

// Create inserts a new meeting. A zero ID is replaced with a generated UUID.
func (s *MeetingStore) Create(m *model.Meeting) (*model.Meeting, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	targetIDs, err := encodeIDs(m.TargetUserIDs)
	if err != nil {
		return nil, err
	}
	acceptedIDs, err := encodeIDs(m.AcceptedUserIDs)
	if err != nil {
		return nil, err
	}
	var subState any
	if m.Broadcast != nil {
		subState = string(m.Broadcast.SubState)
	}
	_, err = s.db.Exec(
		`INSERT INTO meetings (id, title, user_from_id, scheduled_for, scheduled_end, time_type, target_type, source_type, target_user_ids, accepted_user_ids, meeting_state, sub_state, intent_label)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.UserFromID, m.ScheduledFor.UTC(), m.ScheduledEnd.UTC(),
		m.TimeType, m.TargetType, m.SourceType, targetIDs, acceptedIDs,
		m.MeetingState, subState, m.IntentLabel,
	)
	if err != nil {
		return nil, fmt.Errorf("insert meeting: %w", err)
	}
	return s.GetByID(m.ID)
}

func (s *MeetingStore) GetByID(id string) (*model.Meeting, error) {
	row := s.db.QueryRow(`SELECT `+meetingCols+` FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	return m, nil
}

// ListForUser returns meetings the user owns or was accepted into, ordered
// by scheduled_for ascending.
func (s *MeetingStore) ListForUser(userID string) ([]model.Meeting, error) {
	rows, err := s.db.Query(
		`SELECT `+meetingCols+` FROM meetings
		 WHERE user_from_id = ? OR accepted_user_ids LIKE '%"' || ? || '"%'
		 ORDER BY scheduled_for ASC, id ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	return meetings, rows.Err()
}

func (s *MeetingStore) UpdateState(id string, state model.MeetingState) error {
	res, err := s.db.Exec(
		`UPDATE meetings SET meeting_state = ?, updated_at = ? WHERE id = ?`,
		state, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update meeting state: %w", err)
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

// SetSubState transitions the broadcast claim sub-state, but only when the
// meeting is currently in one of the expected sub-states. It reports whether
// the transition was applied.
func (s *MeetingStore) SetSubState(id string, from []model.BroadcastSubState, to model.BroadcastSubState) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("set sub state: no expected states")
	}
	query := `UPDATE meetings SET sub_state = ?, updated_at = ? WHERE id = ? AND sub_state IN (?` +
		repeatPlaceholder(len(from)-1) + `)`
	args := []any{to, time.Now().UTC(), id}
	for _, f := range from {
		args = append(args, f)
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("set sub state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func repeatPlaceholder(n int) string {
	var s string
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

func (s *MeetingStore) AddAcceptedUser(id, userID string) error {
	return s.updateAcceptedUsers(id, func(ids []string) []string {
		for _, existing := range ids {
			if existing == userID {
				return ids
			}
		}
		return append(ids, userID)
	})
}

func (s *MeetingStore) RemoveAcceptedUser(id, userID string) error {
	return s.updateAcceptedUsers(id, func(ids []string) []string {
		out := ids[:0]
		for _, existing := range ids {
			if existing != userID {
				out = append(out, existing)
			}
		}
		return out
	})
}

func (s *MeetingStore) updateAcceptedUsers(id string, mutate func([]string) []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRow(`SELECT accepted_user_ids FROM meetings WHERE id = ?`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("read accepted users: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return fmt.Errorf("decode accepted users: %w", err)
	}
	encoded, err := encodeIDs(mutate(ids))
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		`UPDATE meetings SET accepted_user_ids = ?, updated_at = ? WHERE id = ?`,
		encoded, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("write accepted users: %w", err)
	}
	return tx.Commit()
}

// ListOfferCandidates returns searching meetings that should be routed to the
// user as offers: meetings the user does not own, targeting either everyone
// or the user specifically.
func (s *MeetingStore) ListOfferCandidates(userID string) ([]model.Meeting, error) {
	rows, err := s.db.Query(
		`SELECT `+meetingCols+` FROM meetings
		 WHERE meeting_state = ? AND user_from_id != ?
		   AND (target_type = ? OR target_user_ids LIKE '%"' || ? || '"%')
		 ORDER BY scheduled_for ASC, id ASC`,
		model.StateSearching, userID, model.TargetOpen, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list offer candidates: %w", err)
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	return meetings, rows.Err()
}

// ActiveBroadcastFor returns the user's live broadcast meeting, or nil when
// the user is not broadcasting.
func (s *MeetingStore) ActiveBroadcastFor(userID string) (*model.Meeting, error) {
	row := s.db.QueryRow(
		`SELECT `+meetingCols+` FROM meetings
		 WHERE user_from_id = ? AND meeting_state IN (?, ?) AND time_type = ? AND target_type = ?
		 ORDER BY created_at DESC LIMIT 1`,
		userID, model.StateSearching, model.StateAccepted, model.TimeImmediate, model.TargetOpen,
	)
	m, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active broadcast: %w", err)
	}
	return m, nil
}
