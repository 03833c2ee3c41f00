package core

// scheduler.go runs reconciliation cycles in the background.
//
// The scheduler is long-running and context-aware for graceful shutdown. A
// failed cycle is logged and retried on the next tick; it never stops the
// process.

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// StartRefreshScheduler refreshes once immediately, then every interval,
// until ctx is cancelled. A non-positive interval disables it.
func (s *Service) StartRefreshScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		slog.Info("refresh scheduler disabled")
		return
	}

	slog.Info("refresh scheduler started", "interval", interval.String())

	s.runScheduledRefresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.runScheduledRefresh(ctx)
		}
	}
}

func (s *Service) runScheduledRefresh(ctx context.Context) {
	if !s.gate.TryAcquire() {
		slog.Debug("scheduled refresh skipped, cycle already running")
		return
	}
	// Hand the slot back and let Refresh take it through the normal path.
	s.gate.Release()

	_, err := s.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrRefreshInProgress), errors.Is(err, context.Canceled):
		slog.Debug("scheduled refresh skipped", "error", err)
	default:
		slog.Error("scheduled refresh failed", "error", err)
	}
}
