package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cheers/cheers-api/internal/config"
	"github.com/cheers/cheers-api/internal/domain/leaderboard"
	"github.com/cheers/cheers-api/internal/domain/ledger"
	"github.com/cheers/cheers-api/internal/pkg/database"
	"github.com/cheers/cheers-api/internal/pkg/logger"
)

// quota-reset runs the monthly quota reset once and exits. It is meant for
// external schedulers (Kubernetes CronJob, systemd timers) and for catching up
// after an outage; the API process runs the same job on its own cron.
func main() {
	os.Exit(run())
}

func run() int {
	refresh := flag.Bool("refresh-leaderboard", true, "refresh cached leaderboards after the reset")
	timeout := flag.Duration("timeout", 30*time.Minute, "abort the run after this long")
	flag.Parse()

	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env}); err != nil {
		log.Fatal().Err(err).Msg("Failed to init logger")
	}

	log.Info().Msg("Starting quota-reset")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received")
		cancel()
	}()

	runner := database.NewTxRunner(db, cfg.DBTxRetries)
	ledgerService := ledger.NewService(ledger.NewRepository(runner), int64(cfg.QuotaAllotment), time.Now)

	start := time.Now()
	report, err := ledgerService.ResetAllQuotas(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Quota reset aborted")
		return 1
	}

	log.Info().
		Str("period", string(report.Period)).
		Int("scanned", report.Scanned).
		Int("reset", report.Reset).
		Int("failed", report.Failed).
		Dur("took", time.Since(start)).
		Msg("Quota reset done")

	if *refresh {
		rdb, err := database.NewRedis(cfg.RedisURL)
		if err != nil || rdb == nil {
			log.Warn().Err(err).Msg("Redis unavailable, skipping leaderboard refresh")
		} else {
			defer database.CloseRedis(rdb)
			lb := leaderboard.NewService(ledgerService, leaderboard.NewRedisCache(rdb, cfg.LeaderboardCacheTTL), time.Now)
			if err := lb.RefreshAll(ctx); err != nil {
				log.Error().Err(err).Msg("Leaderboard refresh failed")
			}
		}
	}

	if report.Failed > 0 {
		return 2
	}
	return 0
}
