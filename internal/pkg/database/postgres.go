package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/cheers/cheers-api/internal/pkg/metrics"
)

// NewPostgres opens the pool and waits for the server to answer. Pool stats
// are exported on /metrics.
func NewPostgres(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Ledger transactions are short; keep the pool modest so lock waits
	// surface as timeouts instead of piling up connections.
	db.SetMaxOpenConns(30)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	if err := connectWithRetry("postgres", db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := metrics.Registry.Register(collectors.NewDBStatsCollector(db.DB, "cheers")); err != nil {
		log.Warn().Err(err).Msg("Postgres pool metrics not registered")
	}

	log.Info().Msg("Connected to PostgreSQL")
	return db, nil
}

func ClosePostgres(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing PostgreSQL connection")
		return
	}
	log.Info().Msg("PostgreSQL connection closed")
}
