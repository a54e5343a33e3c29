// Package scheduler runs periodic housekeeping jobs against the ledger.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer declines pending requests older than a cutoff.
type Expirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Jobs holds the scheduled task implementations.
type Jobs struct {
	expirer    Expirer
	pendingTTL time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

// NewJobs constructs the job runner.
func NewJobs(expirer Expirer, pendingTTL, timeout time.Duration, logger *slog.Logger) *Jobs {
	return &Jobs{expirer: expirer, pendingTTL: pendingTTL, timeout: timeout, logger: logger}
}

// ExpirePendingRequests declines requests that stayed pending longer than the TTL.
func (j *Jobs) ExpirePendingRequests() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.expirer.ExpireStale(ctx, j.pendingTTL)
	if err != nil {
		j.logger.Error("failed to expire pending requests", "error", err, "expired", n)
		return
	}
	if n > 0 {
		j.logger.Info("expired pending requests", "expired", n, "ttl", j.pendingTTL.String())
	}
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	jobs     *Jobs
	schedule string
	logger   *slog.Logger
}

// New creates a scheduler. An empty schedule or a zero pending TTL disables the expiry job.
func New(jobs *Jobs, schedule string, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))
	return &Scheduler{cron: c, jobs: jobs, schedule: schedule, logger: logger}
}

// Enabled reports whether Start will register any job.
func (s *Scheduler) Enabled() bool {
	return s.schedule != "" && s.jobs.pendingTTL > 0
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if !s.Enabled() {
		s.logger.Info("pending request expiry disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.jobs.ExpirePendingRequests); err != nil {
		return fmt.Errorf("schedule pending request expiry %q: %w", s.schedule, err)
	}
	s.logger.Info("scheduled pending request expiry", "schedule", s.schedule, "ttl", s.jobs.pendingTTL.String())
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("scheduler jobs still running"), ctx.Err())
	}
}

// Validate checks a cron expression without registering it.
func Validate(schedule string) error {
	if schedule == "" {
		return nil
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}
