// Package reaper runs the periodic stale-task sweep: a ticker-driven loop
// that reclassifies tasks stuck in running as failed.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper is the slice of the Task Manager the reaper drives.
type Sweeper interface {
	// HandleStaleTasks reclaims running tasks older than the configured
	// threshold and reports how many were reclaimed.
	HandleStaleTasks(ctx context.Context) (int, error)
}

// Config holds configuration for the reaper loop.
type Config struct {
	// Interval is the sweep period. If zero, defaults to one minute.
	Interval time.Duration
}

// Reaper owns the sweep loop. Sweeps are safe to run concurrently with
// ordinary task updates: the sweep filter plus per-task independent
// updates make each reclaim idempotent and order-independent.
type Reaper struct {
	sweeper    Sweeper
	interval   time.Duration
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// New creates a new Reaper.
func New(sweeper Sweeper, cfg Config, logger *slog.Logger) *Reaper {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Reaper{
		sweeper:    sweeper,
		interval:   interval,
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     logger.With(slog.String("component", "reaper")),
	}
}

// Start launches the sweep loop. The first sweep runs after one interval.
func (r *Reaper) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() {
	r.cancelFunc()
	r.wg.Wait()
}

// loop ticks at the configured interval. Sweep failures are logged and
// suppressed so a single bad sweep cannot halt future sweeps.
func (r *Reaper) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("stale task reaper started",
		slog.Duration("interval", r.interval))

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Info("stale task reaper stopped")
			return

		case <-ticker.C:
			reclaimed, err := r.sweeper.HandleStaleTasks(r.ctx)
			if err != nil {
				r.logger.Error("stale task sweep failed",
					slog.String("error", err.Error()))
				continue
			}
			if reclaimed > 0 {
				r.logger.Info("stale task sweep reclaimed tasks",
					slog.Int("count", reclaimed))
			}
		}
	}
}
