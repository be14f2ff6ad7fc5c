// Package api is the HTTP client for the Openline backend. The backend
// exposes a POST-only JSON surface; one method here per endpoint.
//
// Reads (get-meetings, get-offers, is-user-broadcasting) are idempotent and
// retried a bounded number of times on transport errors. Mutations are never
// retried: the optimistic mutation engine owns their failure handling, and a
// hidden retry would blur its rollback semantics.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/openline/internal/model"
)

const (
	readRetries    = 2
	readRetryDelay = 250 * time.Millisecond
)

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("backend: status %d", e.Status)
}

// Client talks to one Openline backend on behalf of one device.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithToken sets the device token sent as a bearer credential.
func WithToken(token string) Option {
	return func(cl *Client) {
		cl.token = token
	}
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the device token, e.g. after RegisterDevice.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return &Error{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// postRead is post with bounded retry for idempotent read endpoints.
// Backend rejections (4xx) are terminal; only transport failures and 5xx
// responses are retried.
func (c *Client) postRead(ctx context.Context, path string, payload, out any) error {
	backoff := retry.WithMaxRetries(readRetries, retry.NewConstant(readRetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.post(ctx, path, payload, out)
		if err == nil {
			return nil
		}
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			return err
		}
		return retry.RetryableError(err)
	})
}

// RegisterDevice obtains a device token for the given user and installs it on
// the client.
func (c *Client) RegisterDevice(ctx context.Context, userID, deviceName string) (string, error) {
	req := struct {
		UserID     string `json:"userId"`
		DeviceName string `json:"deviceName"`
	}{userID, deviceName}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/api/register-device", req, &resp); err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Token, nil
}

// GetMeetings reads all meetings visible to the given user.
func (c *Client) GetMeetings(ctx context.Context, userFromID string) ([]model.Meeting, error) {
	req := struct {
		UserFromID string `json:"userFromId"`
	}{userFromID}
	var meetings []model.Meeting
	if err := c.postRead(ctx, "/api/get-meetings", req, &meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

// CreateMeetingRequest holds the fields for /api/create-meeting.
type CreateMeetingRequest struct {
	UserFromID    string           `json:"userFromId"`
	ScheduledFor  time.Time        `json:"scheduledFor"`
	ScheduledEnd  time.Time        `json:"scheduledEnd"`
	TimeType      model.TimeType   `json:"timeType"`
	TargetType    model.TargetType `json:"targetType"`
	SourceType    model.SourceType `json:"sourceType"`
	Title         string           `json:"title"`
	TargetUserIDs []string         `json:"targetUserIds,omitempty"`
	IntentLabel   string           `json:"intentLabel,omitempty"`
}

// CreateMeeting creates a meeting and returns the server's record of it.
func (c *Client) CreateMeeting(ctx context.Context, req CreateMeetingRequest) (*model.Meeting, error) {
	var meeting model.Meeting
	if err := c.post(ctx, "/api/create-meeting", req, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// CancelMeeting cancels or deletes a meeting the user owns.
func (c *Client) CancelMeeting(ctx context.Context, meetingID, userID string) error {
	return c.post(ctx, "/api/cancel-meeting", meetingUser{meetingID, userID}, nil)
}

// BroadcastNowRequest holds the optional targeting of a broadcast.
type BroadcastNowRequest struct {
	UserID        string           `json:"userId"`
	TargetUserIDs []string         `json:"targetUserIds,omitempty"`
	TargetType    model.TargetType `json:"targetType,omitempty"`
	IntentLabel   string           `json:"intentLabel,omitempty"`
}

// BroadcastNow starts (or refreshes) the user's availability broadcast.
func (c *Client) BroadcastNow(ctx context.Context, req BroadcastNowRequest) (*model.Meeting, error) {
	var meeting model.Meeting
	if err := c.post(ctx, "/api/broadcast-now", req, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// BroadcastEnd stops the user's availability broadcast.
func (c *Client) BroadcastEnd(ctx context.Context, userID string) error {
	return c.post(ctx, "/api/broadcast-end", justUser{userID}, nil)
}

// IsUserBroadcasting polls the server-confirmed broadcast status.
func (c *Client) IsUserBroadcasting(ctx context.Context, userID string) (bool, error) {
	var resp struct {
		Broadcasting bool `json:"broadcasting"`
	}
	if err := c.postRead(ctx, "/api/is-user-broadcasting", justUser{userID}, &resp); err != nil {
		return false, err
	}
	return resp.Broadcasting, nil
}

// CancelBroadcastAcceptance leaves a broadcast the user had joined.
func (c *Client) CancelBroadcastAcceptance(ctx context.Context, meetingID, userID string) error {
	return c.post(ctx, "/api/cancel-broadcast-acceptance", meetingUser{meetingID, userID}, nil)
}

// AcceptSuggestion confirms a system-suggested draft meeting.
func (c *Client) AcceptSuggestion(ctx context.Context, meetingID, userID string) error {
	return c.post(ctx, "/api/accept-suggestion", meetingUser{meetingID, userID}, nil)
}

// DismissSuggestion dismisses a system-suggested draft meeting.
func (c *Client) DismissSuggestion(ctx context.Context, meetingID, userID string) error {
	return c.post(ctx, "/api/dismiss-suggestion", meetingUser{meetingID, userID}, nil)
}

// GetOffers reads the user's pending offers.
func (c *Client) GetOffers(ctx context.Context, userID string) ([]model.Offer, error) {
	var offers []model.Offer
	if err := c.postRead(ctx, "/api/get-offers", justUser{userID}, &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// AcceptOffer accepts a plain (non-broadcast) offer.
func (c *Client) AcceptOffer(ctx context.Context, userID, offerID string) error {
	return c.post(ctx, "/api/accept-offer", userOffer{userID, offerID}, nil)
}

// RejectOffer rejects a plain (non-broadcast) offer.
func (c *Client) RejectOffer(ctx context.Context, userID, offerID string) error {
	return c.post(ctx, "/api/reject-offer", userOffer{userID, offerID}, nil)
}

// ClaimResult is the backend's verdict on a broadcast claim reservation.
type ClaimResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TryAcceptBroadcast optimistically reserves a claim on a broadcast offer.
// The two-phase protocol is the server's; the client only reacts to Success.
func (c *Client) TryAcceptBroadcast(ctx context.Context, userID, offerID string) (*ClaimResult, error) {
	var result ClaimResult
	if err := c.post(ctx, "/api/try-accept-broadcast", userOffer{userID, offerID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AcceptBroadcast finalizes a reserved broadcast claim.
func (c *Client) AcceptBroadcast(ctx context.Context, userID, offerID string) error {
	return c.post(ctx, "/api/accept-broadcast", userOffer{userID, offerID}, nil)
}

// RejectBroadcast releases a reserved broadcast claim.
func (c *Client) RejectBroadcast(ctx context.Context, userID, offerID string) error {
	return c.post(ctx, "/api/reject-broadcast", userOffer{userID, offerID}, nil)
}

type justUser struct {
	UserID string `json:"userId"`
}

type meetingUser struct {
	MeetingID string `json:"meetingId"`
	UserID    string `json:"userId"`
}

type userOffer struct {
	UserID  string `json:"userId"`
	OfferID string `json:"offerId"`
}
