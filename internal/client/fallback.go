package client

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FallbackPoller pulls current state on a coarse interval while the
// stream is down. It is started the instant the connection state leaves
// connected (disconnected or reconnecting) and stopped the instant it
// becomes connected; the dispatcher owns that wiring. Start while
// already running is a no-op, so rapid connect/disconnect flapping
// never leaves two timers.
type FallbackPoller struct {
	pull     PullFunc
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	stop     chan struct{}
	inFlight bool
	lastErr  error
}

// NewFallbackPoller creates the poller. Its interval should be
// materially coarser than the auto-refresh interval; it is a degraded
// mode, not a replacement.
func NewFallbackPoller(pull PullFunc, interval time.Duration, logger *slog.Logger) *FallbackPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackPoller{pull: pull, interval: interval, logger: logger}
}

// Start begins interval polling. No-op while already running.
func (p *FallbackPoller) Start() {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.logger.Info("fallback polling started", "interval", p.interval)
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.runPull()
			case <-stop:
				return
			}
		}
	}()
}

// Stop cancels the timer and clears the single-flight guard.
func (p *FallbackPoller) Stop() {
	p.mu.Lock()
	if p.stop == nil {
		p.mu.Unlock()
		return
	}
	close(p.stop)
	p.stop = nil
	p.inFlight = false
	p.mu.Unlock()
	p.logger.Info("fallback polling stopped")
}

// Running reports whether the timer is active.
func (p *FallbackPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// Err returns the most recent pull error, or nil after a clean pull.
func (p *FallbackPoller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *FallbackPoller) runPull() {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	err := p.pull(context.Background())
	if err != nil {
		p.logger.Warn("fallback pull failed", "err", err)
	}

	p.mu.Lock()
	p.inFlight = false
	p.lastErr = err
	p.mu.Unlock()
}
