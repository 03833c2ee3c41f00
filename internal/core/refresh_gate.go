package core

// refresh_gate.go serializes reconciliation cycles inside one process.
//
// The gate is a one-slot semaphore. A caller that finds it occupied waits up
// to maxWait before failing with ErrRefreshInProgress. Cross-process exclusion
// is the store's job (see Store.WithRefreshTx); the gate keeps a single
// instance from queueing work against its own pool.

import (
	"context"
	"time"
)

// DefaultRefreshWait is how long a caller waits for a running cycle.
const DefaultRefreshWait = 30 * time.Second

// RefreshGate admits one refresh at a time.
type RefreshGate struct {
	slot    chan struct{}
	maxWait time.Duration
}

// NewRefreshGate creates a gate whose callers wait at most maxWait.
func NewRefreshGate(maxWait time.Duration) *RefreshGate {
	if maxWait <= 0 {
		maxWait = DefaultRefreshWait
	}
	return &RefreshGate{
		slot:    make(chan struct{}, 1),
		maxWait: maxWait,
	}
}

// Acquire takes the gate. Returns ErrRefreshInProgress if the wait expires
// and ctx.Err() if ctx ends first. The caller MUST call Release.
func (g *RefreshGate) Acquire(ctx context.Context) error {
	timer := time.NewTimer(g.maxWait)
	defer timer.Stop()

	select {
	case g.slot <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrRefreshInProgress
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes the gate without blocking.
func (g *RefreshGate) TryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the gate. Must be called exactly once per successful acquire.
func (g *RefreshGate) Release() {
	<-g.slot
}

// Busy reports whether a cycle holds the gate.
func (g *RefreshGate) Busy() bool {
	return len(g.slot) > 0
}

// WaitForIdle blocks until the gate is free or ctx ends.
// Used for graceful shutdown so an in-flight cycle can commit.
func (g *RefreshGate) WaitForIdle(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !g.Busy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
