package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukerupert/openline/internal/api"
)

func TestPollerFeedsSinkAndStops(t *testing.T) {
	var broadcasting atomic.Bool
	broadcasting.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"broadcasting": broadcasting.Load()})
	}))
	defer srv.Close()

	var lastSeen atomic.Bool
	var polls atomic.Int32
	sink := func(active bool) {
		lastSeen.Store(active)
		polls.Add(1)
	}

	p := NewPoller(api.NewClient(srv.URL), "alice", 10*time.Millisecond, sink, slog.New(slog.DiscardHandler))
	p.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for polls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !lastSeen.Load() {
		t.Error("sink should have seen broadcasting=true")
	}

	broadcasting.Store(false)
	deadline = time.Now().Add(time.Second)
	for lastSeen.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if lastSeen.Load() {
		t.Error("sink should have seen broadcasting=false")
	}

	p.Stop()
	settled := polls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := polls.Load(); got != settled {
		t.Errorf("poller kept polling after Stop: %d -> %d", settled, got)
	}
}

func TestPollerStartIsIdempotentAndStopSafe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"broadcasting": false})
	}))
	defer srv.Close()

	p := NewPoller(api.NewClient(srv.URL), "alice", 10*time.Millisecond, func(bool) {}, slog.New(slog.DiscardHandler))
	p.Start(context.Background())
	p.Start(context.Background()) // no-op
	p.Stop()
	p.Stop() // no-op
}
