// Package scheduler drives the two periodic cycles of the bot: the
// trading-decision cycle and the state-broadcast cycle. The cycles run on
// independent tickers so a slow decision cycle never delays a broadcast.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nwestbury/tickerbot/internal/metrics"
)

// Cycle is one invocation of a periodic task. Implementations return an error
// only for context cancellation; operational failures are handled inside the
// cycle.
type Cycle func(ctx context.Context) error

// Scheduler owns the cycle cadence. Each cycle fires on a fixed interval; a
// firing whose previous invocation is still running is skipped (and logged)
// rather than stacking concurrent executions of the same cycle.
type Scheduler struct {
	decisionInterval  time.Duration
	broadcastInterval time.Duration
	decision          Cycle
	broadcast         Cycle
	logger            *slog.Logger
}

// New creates a Scheduler for the given cycles and intervals.
func New(
	decision Cycle, decisionInterval time.Duration,
	broadcast Cycle, broadcastInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		decisionInterval:  decisionInterval,
		broadcastInterval: broadcastInterval,
		decision:          decision,
		broadcast:         broadcast,
		logger:            logger.With(slog.String("component", "scheduler")),
	}
}

// Run starts both cycle loops and blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "scheduler starting",
		slog.Duration("decision_interval", s.decisionInterval),
		slog.Duration("broadcast_interval", s.broadcastInterval),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop(ctx, "decision", s.decisionInterval, s.decision)
	})
	g.Go(func() error {
		return s.loop(ctx, "broadcast", s.broadcastInterval, s.broadcast)
	})
	return g.Wait()
}

// loop fires the cycle on every tick. The invocation runs in its own
// goroutine guarded by a running flag: if the flag is still set when the next
// tick arrives, that firing is skipped.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, cycle Cycle) error {
	log := s.logger.With(slog.String("cycle", name))

	var running atomic.Bool
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.InfoContext(ctx, "cycle loop stopped")
			return ctx.Err()

		case <-ticker.C:
			if !running.CompareAndSwap(false, true) {
				log.WarnContext(ctx, "previous invocation still running, skipping firing")
				metrics.FiringsSkipped.WithLabelValues(name).Inc()
				continue
			}
			go func() {
				defer running.Store(false)

				start := time.Now()
				if err := cycle(ctx); err != nil && ctx.Err() == nil {
					log.ErrorContext(ctx, "cycle failed",
						slog.String("error", err.Error()),
					)
				}
				log.DebugContext(ctx, "cycle complete",
					slog.Duration("duration", time.Since(start)),
				)
			}()
		}
	}
}
