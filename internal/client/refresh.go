package client

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// PullFunc fetches current server-side state and applies it to the
// store. Both schedulers share one.
type PullFunc func(context.Context) error

// PullState builds the PullFunc used by both schedulers: a full pull of
// the servers overview and the active alerts.
func PullState(api *APIClient, store *Store) PullFunc {
	return func(ctx context.Context) error {
		servers, err := api.ListServers(ctx)
		if err != nil {
			return err
		}
		alerts, err := api.ListActiveAlerts(ctx)
		if err != nil {
			return err
		}
		store.ReplaceServers(servers)
		store.ReplaceAlerts(alerts)
		return nil
	}
}

// AutoRefresh pulls current state on a fixed interval for as long as the
// session is active, regardless of stream health. A pull in flight
// suppresses overlapping pulls: a tick that fires before the previous
// pull completed is skipped, not queued.
type AutoRefresh struct {
	pull     PullFunc
	interval time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	stop     chan struct{}
	inFlight bool
	lastErr  error
}

// NewAutoRefresh creates the scheduler. It does not start ticking.
func NewAutoRefresh(pull PullFunc, interval time.Duration, logger *slog.Logger) *AutoRefresh {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoRefresh{pull: pull, interval: interval, logger: logger}
}

// Start performs an immediate pull and then pulls on every interval
// tick. Calling Start while running is a no-op.
func (r *AutoRefresh) Start() {
	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	go func() {
		r.runPull()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.runPull()
			case <-stop:
				return
			}
		}
	}()
}

// Stop cancels the timer and clears the single-flight guard.
func (r *AutoRefresh) Stop() {
	r.mu.Lock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.inFlight = false
	r.mu.Unlock()
}

// RefreshNow performs one out-of-cycle pull without resetting the timer
// phase. Used on stream reconnection and by the manual-refresh key.
func (r *AutoRefresh) RefreshNow() {
	go r.runPull()
}

// Err returns the most recent pull error, or nil after a clean pull.
func (r *AutoRefresh) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Running reports whether the ticker is active.
func (r *AutoRefresh) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

func (r *AutoRefresh) runPull() {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	err := r.pull(context.Background())
	if err != nil {
		r.logger.Warn("refresh pull failed", "err", err)
	}

	r.mu.Lock()
	r.inFlight = false
	r.lastErr = err
	r.mu.Unlock()
}
