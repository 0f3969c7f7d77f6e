package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/cheers/cheers-api/internal/jobs"
)

// Config holds the cron expressions, with a leading seconds field.
type Config struct {
	QuotaReset         string
	LeaderboardRefresh string
}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron *cron.Cron
	jobs *jobs.Runner
}

// New creates a scheduler and registers every job. An invalid expression is
// a startup error.
func New(runner *jobs.Runner, cfg Config) (*Scheduler, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)

	s := &Scheduler{cron: c, jobs: runner}
	if err := s.register(jobs.JobQuotaReset, cfg.QuotaReset, runner.ResetQuotas); err != nil {
		return nil, err
	}
	if err := s.register(jobs.JobLeaderboardRefresh, cfg.LeaderboardRefresh, runner.RefreshLeaderboards); err != nil {
		return nil, err
	}

	log.Info().Int("jobs", len(c.Entries())).Msg("Cron jobs registered")
	return s, nil
}

// register adds fn under expr. An empty expr disables the job.
func (s *Scheduler) register(name, expr string, fn func() error) error {
	if expr == "" {
		log.Warn().Str("job", name).Msg("No schedule configured, job disabled")
		return nil
	}
	_, err := s.cron.AddFunc(expr, func() {
		// errors are logged and counted by the runner
		_ = fn()
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, expr, err)
	}
	return nil
}

// Start begins the cron scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Msg("Cron scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("Cron scheduler stopped")
}

// Next reports when each registered job runs next.
func (s *Scheduler) Next() []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Schedule.Next(time.Now().UTC()))
	}
	return out
}
