package websocket

import (
	"encoding/json"
	"log/slog"
	"testing"
)

func testClient(hub *Hub, userID string) *Client {
	return &Client{hub: hub, userID: userID, send: make(chan []byte, sendBufferSize)}
}

func TestBroadcastTargetsMessageUser(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	alice := testClient(hub, "alice")
	bob := testClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)

	hub.Broadcast(CollectionChanged("offers", "bob"))

	select {
	case data := <-bob.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "collection_changed" || msg.Collection != "offers" {
			t.Errorf("message = %+v", msg)
		}
	default:
		t.Fatal("bob should have received the message")
	}

	select {
	case <-alice.send:
		t.Fatal("alice should not receive bob's message")
	default:
	}
}

func TestBroadcastWithoutUserReachesEveryone(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	alice := testClient(hub, "alice")
	bob := testClient(hub, "bob")
	hub.Register(alice)
	hub.Register(bob)

	hub.Broadcast(Message{Type: "collection_changed", Collection: "meetings"})

	for _, c := range []*Client{alice, bob} {
		select {
		case <-c.send:
		default:
			t.Errorf("client %s should have received the broadcast", c.userID)
		}
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	hub := NewHub(slog.New(slog.DiscardHandler))

	c := testClient(hub, "alice")
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Fatalf("client count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Fatalf("client count = %d, want 0", hub.ClientCount())
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}

	// Double unregister is safe.
	hub.Unregister(c)
}
