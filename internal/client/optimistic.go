package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUpdatePending is returned by Apply when an update with the same id
// has not resolved yet.
var ErrUpdatePending = errors.New("optimistic update already pending for id")

// Updates coordinates optimistic mutations: the local mutation is
// applied before the server round-trip, and the paired rollback restores
// the exact pre-mutation state if the server rejects the change.
type Updates struct {
	mu      sync.Mutex
	pending map[string]func()
}

// NewUpdates creates an empty coordinator.
func NewUpdates() *Updates {
	return &Updates{pending: make(map[string]func())}
}

// Apply runs optimistic() synchronously, registers rollback under id,
// then runs remote(ctx). On success the rollback is discarded; on
// failure it is invoked and the error is returned to the caller. Either
// way the id is no longer pending when Apply returns. A reused id that
// is still pending is rejected with ErrUpdatePending before optimistic()
// runs, so an unresolved rollback is never silently replaced.
func (u *Updates) Apply(ctx context.Context, id string, optimistic, rollback func(), remote func(context.Context) error) error {
	u.mu.Lock()
	if _, exists := u.pending[id]; exists {
		u.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUpdatePending, id)
	}
	u.pending[id] = rollback
	u.mu.Unlock()

	optimistic()

	if err := remote(ctx); err != nil {
		u.mu.Lock()
		rb := u.pending[id]
		delete(u.pending, id)
		u.mu.Unlock()
		if rb != nil {
			rb()
		}
		return fmt.Errorf("remote update %s: %w", id, err)
	}

	u.mu.Lock()
	delete(u.pending, id)
	u.mu.Unlock()
	return nil
}

// RollbackAll invokes every registered rollback and clears the map.
// Used when connectivity is lost long enough that speculative state can
// no longer be trusted.
func (u *Updates) RollbackAll() {
	u.mu.Lock()
	rollbacks := make([]func(), 0, len(u.pending))
	for _, rb := range u.pending {
		rollbacks = append(rollbacks, rb)
	}
	u.pending = make(map[string]func())
	u.mu.Unlock()
	for _, rb := range rollbacks {
		rb()
	}
}

// PendingCount reports how many updates are awaiting resolution.
func (u *Updates) PendingCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending)
}
