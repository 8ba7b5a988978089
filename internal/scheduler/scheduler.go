package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"lunchbot-api/internal/config"
)

// Scheduler defines the interface for the background job scheduler
type Scheduler interface {
	Start() error
	Stop() error
	IsRunning() bool
}

// scheduler runs the daily jobs on wall-clock cron expressions evaluated in
// the configured timezone. Weekend filtering is each job's own concern, not
// the trigger's, so operators can reschedule without touching code.
type scheduler struct {
	config  config.SchedulerConfig
	jobs    *Jobs
	metrics *JobMetrics
	logger  *zap.Logger

	cron    *cron.Cron
	running atomic.Bool
}

// jobEntry binds one job to its cron expression.
type jobEntry struct {
	name string
	expr string
	run  func() (int, error)
}

// NewScheduler creates a scheduler with all job entries registered. The
// entries fire in the configured timezone.
func NewScheduler(cfg config.SchedulerConfig, jobs *Jobs, metrics *JobMetrics, logger *zap.Logger) (Scheduler, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, NewConfigurationError("timezone", cfg.Timezone, err.Error())
	}

	s := &scheduler{
		config:  cfg,
		jobs:    jobs,
		metrics: metrics,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(location)),
	}

	entries := []jobEntry{
		{"morning_prompt", cfg.MorningPrompt, jobs.RunMorningPrompt},
		{"daily_summary", cfg.DailySummary, jobs.RunDailySummary},
		{"debt_check", cfg.DebtCheck, jobs.RunDebtCheck},
		{"low_balance_check", cfg.LowBalanceCheck, jobs.RunLowBalanceCheck},
		{"nightly_cleanup", cfg.NightlyCleanup, jobs.RunNightlyCleanup},
	}
	if cfg.SheetSync != "" {
		entries = append(entries, jobEntry{"sheet_sync", cfg.SheetSync, jobs.RunSheetSync})
	}

	for _, entry := range entries {
		if _, err := s.cron.AddFunc(entry.expr, s.wrap(entry.name, entry.run)); err != nil {
			return nil, NewConfigurationError(entry.name, entry.expr, err.Error())
		}
	}

	return s, nil
}

// wrap instruments one job with panic recovery, timing, metrics and logging.
// A failed run is counted and logged, never fatal to the scheduler.
func (s *scheduler) wrap(name string, run func() (int, error)) func() {
	jobLogger := s.logger.With(zap.String("job", name))
	return func() {
		defer func() {
			if r := recover(); r != nil {
				jobLogger.Error("Job panic recovered", zap.Any("panic", r))
				s.metrics.recordFailure(name)
			}
		}()

		started := time.Now()
		jobLogger.Debug("Job starting")

		count, err := run()
		elapsed := time.Since(started)
		if err != nil {
			jobLogger.Error("Job failed",
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			s.metrics.recordFailure(name)
			return
		}

		s.metrics.recordRun(name, elapsed.Seconds())
		s.metrics.recordNotifications(name, count)
		jobLogger.Info("Job completed",
			zap.Int("affected", count),
			zap.Duration("elapsed", elapsed))
	}
}

// Start begins firing the registered cron entries.
func (s *scheduler) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return NewSchedulerError(ErrSchedulerAlreadyRunning, "scheduler is already running")
	}

	s.cron.Start()
	s.logger.Info("Job scheduler started",
		zap.String("timezone", s.config.Timezone),
		zap.String("morningPrompt", s.config.MorningPrompt),
		zap.String("dailySummary", s.config.DailySummary),
		zap.String("debtCheck", s.config.DebtCheck),
		zap.String("nightlyCleanup", s.config.NightlyCleanup))
	return nil
}

// Stop halts the trigger and waits for in-flight jobs to finish.
func (s *scheduler) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return NewSchedulerError(ErrSchedulerNotRunning, "scheduler is not running")
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Job scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is currently running
func (s *scheduler) IsRunning() bool {
	return s.running.Load()
}
