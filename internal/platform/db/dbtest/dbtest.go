// Package dbtest opens a migrated scratch database for repository tests.
// Tests are skipped unless BILLTRACK_TEST_PG_DSN points at a disposable
// PostgreSQL database.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billtrack/billtrack/internal/platform/db"
	"github.com/billtrack/billtrack/internal/shared"
)

// EnvDSN names the variable holding the scratch database DSN.
const EnvDSN = "BILLTRACK_TEST_PG_DSN"

// Open connects, migrates and empties every table.
func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, db.PoolOptions{MaxConns: 8})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.RunMigrations(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE proposals, adoption_links, role_escalations, bills, idempotency_keys, actors RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

// InsertActor stores an actor with a throwaway password hash.
func InsertActor(t testing.TB, pool *pgxpool.Pool, email string, role shared.Role, status shared.AccountStatus) shared.Actor {
	t.Helper()
	actor, err := db.ScanActor(pool.QueryRow(context.Background(), `INSERT INTO actors (email, name, password_hash, role, account_status)
VALUES ($1, $1, 'x', $2, $3)
RETURNING `+db.ActorColumns, email, string(role), string(status)))
	if err != nil {
		t.Fatalf("insert actor %s: %v", email, err)
	}
	return actor
}
