// Package dbtest opens scoped Postgres handles for tests. Each test gets its
// own pool from DATABASE_URL; there is no process-wide connection.
package dbtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-starter/pkg/config"
	"github.com/dd0wney/cluso-starter/pkg/database"
	"github.com/dd0wney/cluso-starter/pkg/logging"
	"github.com/dd0wney/cluso-starter/pkg/validation"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

// poolSize keeps test pools small so parallel packages don't exhaust the server.
const poolSize = 5

// Open returns a database handle for the current test, skipping it when
// DATABASE_URL is unset. The pool is closed when the test finishes.
func Open(t testing.TB) *database.DB {
	t.Helper()

	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping Postgres test")
	}

	cfg, err := config.LoadFromEnv()
	require.NoError(t, err, "load database config")
	cfg.PoolSize = poolSize

	db, err := database.Open(context.Background(), cfg, logging.NewNopLogger(), nil)
	require.NoError(t, err, "open test database")

	t.Cleanup(func() { db.Close() })
	return db
}

// Truncate empties tables in the order given.
func Truncate(ctx context.Context, db database.Querier, tables ...string) error {
	for _, table := range tables {
		if err := validation.ValidateIdentifier(table); err != nil {
			return fmt.Errorf("truncate %q: %w", table, err)
		}
	}
	for _, table := range tables {
		if _, err := db.Exec(ctx, "TRUNCATE TABLE "+pgx.Identifier{table}.Sanitize()+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// Rollback runs fn inside a rollback-only nested transaction so nothing it
// writes outlives the call. fn failing fails the test.
func Rollback(t testing.TB, db *database.DB, fn func(ctx context.Context, tx pgx.Tx) error) {
	t.Helper()

	err := db.Runner().Run(context.Background(), db, func(ctx context.Context, tx pgx.Tx, _ *database.Controls) error {
		return fn(ctx, tx)
	}, true)
	require.NoError(t, err)
}

// TempTable creates an unlogged scratch table named after the test and
// drops it on cleanup. Columns are given as raw DDL.
func TempTable(t testing.TB, db *database.DB, columns string) string {
	t.Helper()

	name := "t_" + strings.ToLower(strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(t.Name()))
	if len(name) > 63 {
		name = name[:63]
	}
	ident := pgx.Identifier{name}.Sanitize()

	ctx := context.Background()
	_, err := db.Exec(ctx, "DROP TABLE IF EXISTS "+ident)
	require.NoError(t, err)
	_, err = db.Exec(ctx, "CREATE UNLOGGED TABLE "+ident+" ("+columns+")")
	require.NoError(t, err)

	t.Cleanup(func() {
		dropTable(t, db, ident)
	})
	return name
}

// dropTable runs before the pool closes, since Open registered its cleanup first.
func dropTable(t testing.TB, db database.Querier, ident string) {
	if _, err := db.Exec(context.Background(), "DROP TABLE IF EXISTS "+ident); err != nil {
		t.Logf("dbtest: failed to drop scratch table %s: %v", ident, err)
	}
}
