// Package scheduler runs periodic background jobs for the intake platform.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper reclaims expired verification records. The in-memory verification
// store implements it; the redis store expires keys on its own and needs no
// sweeping.
type Sweeper interface {
	Sweep() int
}

// Scheduler handles the periodic verification store sweep
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
}

// NewScheduler creates a new scheduler instance
func NewScheduler(sweeper Sweeper) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		sweeper: sweeper,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	if s.sweeper == nil {
		zap.S().Debug("verification store manages its own expiry, sweep job not registered")
		return
	}

	// Reclaim lapsed verification records every 5 minutes
	_, err := s.cron.AddFunc("*/5 * * * *", s.sweepVerifications)
	if err != nil {
		zap.S().Errorw("failed to register verification sweep job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Verification sweep scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Verification sweep scheduler stopped")
}

func (s *Scheduler) sweepVerifications() {
	removed := s.sweeper.Sweep()
	if removed > 0 {
		zap.S().Infow("Swept verification records", "removed", removed)
	}
}
