package worker

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable is in-process state that accumulates expired entries.
type Sweepable interface {
	Sweep(now time.Time) int
}

// Sweeper periodically evicts expired entries from the in-process session and
// rate limit stores used when Redis is not available.
type Sweeper struct {
	log      *slog.Logger
	interval time.Duration
	targets  map[string]Sweepable
	now      func() time.Time
}

func NewSweeper(log *slog.Logger, interval time.Duration, targets map[string]Sweepable) *Sweeper {
	return &Sweeper{
		log:      log,
		interval: interval,
		targets:  targets,
		now:      time.Now,
	}
}

// Run sweeps every interval until ctx is done.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.log.InfoContext(ctx, "worker - sweeper - started", "interval", w.interval.String(), "targets", len(w.targets))
	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "worker - sweeper - stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs one pass over every target and returns the total evicted.
func (w *Sweeper) SweepOnce(ctx context.Context) int {
	now := w.now()
	total := 0
	for name, t := range w.targets {
		n := t.Sweep(now)
		if n > 0 {
			w.log.DebugContext(ctx, "worker - sweeper - evicted expired entries", "target", name, "count", n)
		}
		total += n
	}
	return total
}
