// Package dbtest connects integration tests to a real Postgres. Tests skip
// when TEST_DATABASE_URL is unset.
package dbtest

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cheers/cheers-api/internal/pkg/database"
)

const urlEnv = "TEST_DATABASE_URL"

// Open applies the embedded migrations and returns a pool closed on cleanup.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(urlEnv)
	if dsn == "" {
		t.Skipf("%s not set", urlEnv)
	}

	if err := database.Migrate(dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("db not available: %v", err)
	}
	db.SetMaxOpenConns(20)
	t.Cleanup(func() { db.Close() })
	return db
}

// Account returns an id unique to this run. Ledger rows are append-only, so
// tests isolate by account instead of truncating.
func Account(name string) string {
	return name + "-" + uuid.NewString()[:8]
}
