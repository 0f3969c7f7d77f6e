package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/cheers/cheers-api/internal/pkg/metrics"
)

var (
	// ErrConcurrencyConflict is returned once a unit of work has exhausted its retries.
	ErrConcurrencyConflict = errors.New("concurrency conflict, please retry")

	// ErrStaleWrite signals an optimistic version check failed inside a transaction.
	ErrStaleWrite = errors.New("stale write")
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// TxRunner executes units of work in a READ COMMITTED transaction and
// retries those that lose a serialization race.
type TxRunner struct {
	db      *sqlx.DB
	retries int
	backoff time.Duration
}

// NewTxRunner creates a runner. retries is the number of extra attempts after the first.
func NewTxRunner(db *sqlx.DB, retries int) *TxRunner {
	if retries < 0 {
		retries = 0
	}
	return &TxRunner{db: db, retries: retries, backoff: 20 * time.Millisecond}
}

// DB exposes the underlying pool for read paths.
func (r *TxRunner) DB() *sqlx.DB {
	return r.db
}

// WithTx runs fn inside a transaction. fn must not retain tx after returning.
func (r *TxRunner) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt >= r.retries {
			log.Warn().Err(err).Int("attempts", attempt+1).Msg("Transaction retries exhausted")
			return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
		}

		metrics.TxRetries.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff * time.Duration(attempt+1)):
		}
	}
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// IsRetryable reports whether err is a transient concurrency failure.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrStaleWrite) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqSerializationFailure || pqErr.Code == pqDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// IsForeignKeyViolation reports whether err is a Postgres foreign-key violation.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
