package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically purges completed sessions past their retention.
type Sweeper struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	observe   func(live int)
}

// NewSweeper creates a sweeper. A nil logger uses slog.Default().
func NewSweeper(store *Store, retention, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, retention: retention, interval: interval, logger: logger}
}

// Observe registers fn to receive the live session count after every
// sweep that removed something.
func (sw *Sweeper) Observe(fn func(live int)) *Sweeper {
	sw.observe = fn
	return sw
}

// Run sweeps on every tick until ctx is done.
func (sw *Sweeper) Run(ctx context.Context) {
	if sw.interval <= 0 {
		return
	}
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sw.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single purge and returns the number of sessions removed.
func (sw *Sweeper) SweepOnce(ctx context.Context) int {
	cutoff := sw.store.now().Add(-sw.retention)
	removed := sw.store.SweepCompleted(ctx, cutoff)
	if removed > 0 {
		sw.logger.Info("swept completed sessions",
			slog.Int("removed", removed),
			slog.Duration("retention", sw.retention))
		if sw.observe != nil {
			sw.observe(sw.store.Len())
		}
	}
	return removed
}
