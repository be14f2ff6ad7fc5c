package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is a change notification pushed to connected clients. Collection
// messages tell a client one of its cached collections went stale server-side;
// status messages carry the confirmed broadcast state of a user.
type Message struct {
	Type       string `json:"type"`
	Collection string `json:"collection,omitempty"`
	UserID     string `json:"userId,omitempty"`
	Active     bool   `json:"active,omitempty"`
}

// CollectionChanged builds a message telling userID's clients that one of
// their cached collections changed server-side.
func CollectionChanged(collection, userID string) Message {
	return Message{Type: "collection_changed", Collection: collection, UserID: userID}
}

// BroadcastStatus builds a message carrying userID's confirmed broadcast
// state.
func BroadcastStatus(userID string, active bool) Message {
	return Message{Type: "broadcast_status", UserID: userID, Active: active}
}

// Hub maintains the set of active WebSocket clients and fans out messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every connected client of the message's user,
// or to all clients when the message carries no user.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if msg.UserID != "" && c.userID != msg.UserID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
