// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the session sweep every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

// Sweeper drops expired import sessions and returns how many it removed.
type Sweeper interface {
	SweepExpired(ctx context.Context) int
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler. An empty schedule uses
// DefaultSweepSchedule.
func NewScheduler(sweeper Sweeper, schedule string, logger *slog.Logger) *Scheduler {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	// Standard 5-field format, seconds disabled.
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: schedule,
		timeout:  time.Minute,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("sweep_schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs. The returned context is done
// once running jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers the session sweep synchronously.
func (s *Scheduler) RunNow() {
	s.sweepSessions()
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	removed := s.sweeper.SweepExpired(ctx)
	if removed > 0 {
		s.logger.Info("expired import sessions swept", slog.Int("sessions", removed))
		return
	}
	s.logger.Debug("no expired import sessions")
}
