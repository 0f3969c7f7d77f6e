package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/metrics"
)

const (
	JobQuotaReset         = "quota_reset"
	JobLeaderboardRefresh = "leaderboard_refresh"
)

// QuotaResetter rolls every account whose quota belongs to an earlier period.
type QuotaResetter interface {
	ResetAllQuotas(ctx context.Context) (*ledger.ResetReport, error)
}

// LeaderboardRefresher recomputes every cached leaderboard window.
type LeaderboardRefresher interface {
	RefreshAll(ctx context.Context) error
}

// Runner coordinates the scheduled maintenance jobs.
type Runner struct {
	quotas      QuotaResetter
	leaderboard LeaderboardRefresher
	timeout     time.Duration

	mu      sync.Mutex
	running map[string]bool
}

func NewRunner(quotas QuotaResetter, leaderboard LeaderboardRefresher, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Runner{
		quotas:      quotas,
		leaderboard: leaderboard,
		timeout:     timeout,
		running:     make(map[string]bool),
	}
}

// acquire marks job as running. Returns false if a previous run is still going.
func (r *Runner) acquire(job string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[job] {
		return false
	}
	r.running[job] = true
	return true
}

func (r *Runner) release(job string) {
	r.mu.Lock()
	delete(r.running, job)
	r.mu.Unlock()
}

// runWithRecovery wraps job execution with panic recovery, overlap
// protection and metrics.
func (r *Runner) runWithRecovery(job string, fn func(ctx context.Context) error) (err error) {
	if !r.acquire(job) {
		log.Warn().Str("job", job).Msg("Previous run still in progress, skipping")
		return ErrAlreadyRunning
	}
	defer r.release(job)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("job", job).Interface("panic", p).Msg("Job panicked")
			err = ErrPanicked
		}
		metrics.RecordJob(job, err == nil, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	log.Info().Str("job", job).Msg("Starting job")
	if err = fn(ctx); err != nil {
		log.Error().Err(err).Str("job", job).Dur("took", time.Since(start)).Msg("Job failed")
		return err
	}
	log.Info().Str("job", job).Dur("took", time.Since(start)).Msg("Job completed")
	return nil
}

// ResetQuotas runs the monthly quota reset. Accounts that fail are counted in
// the report and retried on the next run.
func (r *Runner) ResetQuotas() error {
	return r.runWithRecovery(JobQuotaReset, func(ctx context.Context) error {
		report, err := r.quotas.ResetAllQuotas(ctx)
		if err != nil {
			return err
		}
		if report.Failed > 0 {
			log.Warn().Int("failed", report.Failed).Str("period", string(report.Period)).Msg("Some quota resets failed")
		}
		return nil
	})
}

// RefreshLeaderboards recomputes and caches every window.
func (r *Runner) RefreshLeaderboards() error {
	return r.runWithRecovery(JobLeaderboardRefresh, r.leaderboard.RefreshAll)
}

// RunAll runs every job once, for manual execution.
func (r *Runner) RunAll() error {
	return errors.Join(r.ResetQuotas(), r.RefreshLeaderboards())
}
