// Package testutil provides shared helpers for DB-backed tests. Helpers
// skip the calling test when OFFPEAK_TEST_DSN is not set, so unit tests
// run without a database.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver for database/sql

	"offpeak/migrations"
)

// NewPool opens a pool against OFFPEAK_TEST_DSN with all migrations
// applied. The pool closes when the test and its subtests finish.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("OFFPEAK_TEST_DSN")
	if dsn == "" {
		t.Skip("OFFPEAK_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()

	// goose needs database/sql, not a pgx pool.
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("testutil.NewPool: open migration connection: %v", err)
	}
	if err := migrations.Up(ctx, sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("testutil.NewPool: apply migrations: %v", err)
	}
	sqlDB.Close()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("testutil.NewPool: connect: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("testutil.NewPool: ping: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// Truncate clears the given tables so each test starts from an empty
// ledger. CASCADE follows foreign keys, so order does not matter.
func Truncate(t *testing.T, pool *pgxpool.Pool, tables ...string) {
	t.Helper()
	_, err := pool.Exec(context.Background(), "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	if err != nil {
		t.Fatalf("testutil.Truncate: %v", err)
	}
}
