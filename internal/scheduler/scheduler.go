package scheduler

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/relayhub/relay-gateway/internal/conversation"
	"github.com/relayhub/relay-gateway/internal/ratelimit"
)

// Scheduler runs periodic gateway maintenance
type Scheduler struct {
	cron     *cron.Cron
	limiter  *ratelimit.Limiter
	contexts *conversation.Store
	logger   *slog.Logger
}

// New creates a scheduler with the maintenance jobs registered
func New(limiter *ratelimit.Limiter, contexts *conversation.Store, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		cron:     cron.New(),
		limiter:  limiter,
		contexts: contexts,
		logger:   logger,
	}
	s.scheduleSweep()
	s.scheduleDailyStats()
	return s
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// scheduleSweep drops expired rate windows hourly
func (s *Scheduler) scheduleSweep() {
	_, err := s.cron.AddFunc("0 * * * *", func() {
		removed := s.limiter.Sweep()
		s.logger.Debug("rate window sweep", "removed", removed)
	})
	if err != nil {
		s.logger.Error("failed to schedule rate window sweep", "error", err)
	}
}

// scheduleDailyStats logs context usage at 3 AM
func (s *Scheduler) scheduleDailyStats() {
	_, err := s.cron.AddFunc("0 3 * * *", func() {
		s.logger.Info("daily gateway stats", "active_contexts", s.contexts.Users())
	})
	if err != nil {
		s.logger.Error("failed to schedule daily stats", "error", err)
	}
}
