// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper removes stored uploads created before cutoff.
type Sweeper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// Config configures the retention job.
type Config struct {
	// Spec is a standard 5-field cron expression.
	Spec string
	// RetentionDays is how long uploads are kept. Zero disables the job.
	RetentionDays int
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// NewScheduler creates a new job scheduler.
func NewScheduler(sweeper Sweeper, cfg Config, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:    c,
		sweeper: sweeper,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if s.cfg.RetentionDays > 0 {
		if _, err := s.cron.AddFunc(s.cfg.Spec, func() { s.sweepExpiredUploads() }); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.Int("retention_days", s.cfg.RetentionDays),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow manually triggers the retention sweep (for testing/admin).
func (s *Scheduler) RunNow() {
	go s.sweepExpiredUploads()
}

// sweepExpiredUploads deletes uploads older than the retention window and
// returns how many were removed.
func (s *Scheduler) sweepExpiredUploads() int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	cutoff := s.now().AddDate(0, 0, -s.cfg.RetentionDays)
	s.logger.Info("starting upload retention sweep", slog.Time("cutoff", cutoff))

	removed, err := s.sweeper.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("upload retention sweep failed",
			slog.Int("files_removed", removed),
			slog.Any("error", err),
		)
		return removed
	}

	s.logger.Info("upload retention sweep completed", slog.Int("files_removed", removed))
	return removed
}
