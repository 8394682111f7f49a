package sync

import (
	"context"
	"errors"
	"time"

	"truelens/internal/logger"
)

// Scheduler triggers sync passes on a fixed interval. A tick that lands
// while a pass is still running is skipped rather than queued.
type Scheduler struct {
	orch     *Orchestrator
	interval time.Duration
}

// NewScheduler returns a scheduler driving orch every interval.
func NewScheduler(orch *Orchestrator, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 12 * time.Hour
	}
	return &Scheduler{orch: orch, interval: interval}
}

// Run triggers an immediate pass and then one per interval until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := logger.Get()
	log.Info("sync scheduler started", "interval", s.interval.String())

	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if err := s.orch.Start(ctx); err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			logger.Get().Warn("skipping scheduled sync, previous pass still running")
			return
		}
		logger.Get().Error("scheduled sync failed to start", "error", err)
	}
}
