// Package live subscribes to the backend's WebSocket change feed and turns
// its notifications into local cache invalidations, replacing polling as the
// primary way the client learns about server-side changes.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/openline/internal/events"
)

const (
	reconnectBase = time.Second
	reconnectCap  = 30 * time.Second
)

// feedMessage mirrors the server's change feed envelope.
type feedMessage struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	UserID     string `json:"userId"`
	Active     bool   `json:"active"`
}

// Listener maintains one WebSocket subscription for one signed-in user.
type Listener struct {
	url        string
	token      string
	userID     string
	bus        *events.Bus
	statusSink func(active bool)
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener creates a Listener for the feed at url (a ws:// or wss://
// endpoint). statusSink receives the user's server-confirmed broadcast state;
// it may be nil.
func NewListener(url, token, userID string, bus *events.Bus, statusSink func(bool), logger *slog.Logger) *Listener {
	return &Listener{
		url:        url,
		token:      token,
		userID:     userID,
		bus:        bus,
		statusSink: statusSink,
		logger:     logger,
	}
}

// Start connects in the background and keeps reconnecting with backoff until
// Stop is called. Calling Start on a running listener is a no-op.
func (l *Listener) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Stop disconnects and waits for the run loop to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	done := l.done
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// run keeps the subscription alive. Each retry.Do round handles dial
// failures with Fibonacci backoff; a connection that was established and
// later dropped starts a fresh round, resetting the backoff.
func (l *Listener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		backoff := retry.WithCappedDuration(reconnectCap, retry.NewFibonacci(reconnectBase))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			connected, err := l.listen(ctx)
			if err != nil && !connected {
				return retry.RetryableError(err)
			}
			if err != nil {
				l.logger.Warn("feed disconnected", "error", err)
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			l.logger.Error("feed reconnect failed", "error", err)
		}
	}
}

// listen dials the feed and consumes messages until the connection drops.
// connected reports whether the dial itself succeeded.
func (l *Listener) listen(ctx context.Context) (connected bool, err error) {
	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}
	conn, _, err := ws.Dial(ctx, l.url, &ws.DialOptions{HTTPHeader: header})
	if err != nil {
		return false, err
	}
	defer conn.CloseNow()

	l.logger.Info("feed connected", "url", l.url)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		l.handle(data)
	}
}

func (l *Listener) handle(data []byte) {
	var msg feedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		l.logger.Warn("bad feed message", "error", err)
		return
	}

	switch msg.Type {
	case "collection_changed":
		switch msg.Collection {
		case string(events.Meetings):
			l.publish(events.Meetings)
		case string(events.Offers):
			l.publish(events.Offers)
		default:
			l.logger.Debug("unknown collection", "collection", msg.Collection)
		}
	case "broadcast_status":
		if msg.UserID == l.userID && l.statusSink != nil {
			l.statusSink(msg.Active)
		}
	default:
		l.logger.Debug("unknown feed message", "type", msg.Type)
	}
}

func (l *Listener) publish(c events.Collection) {
	if err := l.bus.Publish(events.Event{Collection: c, Reason: "server notification"}); err != nil {
		l.logger.Warn("publish feed invalidation", "collection", c, "error", err)
	}
}
