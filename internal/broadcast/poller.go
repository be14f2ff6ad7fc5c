package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/openline/internal/api"
)

const defaultPollInterval = 15 * time.Second

// Poller periodically asks the backend whether the user is broadcasting and
// feeds the answer into a status sink (normally Toggle.SetBroadcasting).
// Polling stops when the owning component tears down, so no callback can
// fire after the UI is gone.
type Poller struct {
	client   *api.Client
	userID   string
	interval time.Duration
	sink     func(active bool)
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a Poller. interval <= 0 uses the default.
func NewPoller(client *api.Client, userID string, interval time.Duration, sink func(bool), logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		client:   client,
		userID:   userID,
		interval: interval,
		sink:     sink,
		logger:   logger,
	}
}

// Start begins polling. No-op if already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)
}

// Stop cancels polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	active, err := p.client.IsUserBroadcasting(ctx, p.userID)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Debug("broadcast status poll failed", "error", err)
		}
		return
	}
	p.sink(active)
}
