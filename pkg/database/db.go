package database

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dd0wney/cluso-starter/pkg/config"
	"github.com/dd0wney/cluso-starter/pkg/logging"
	"github.com/dd0wney/cluso-starter/pkg/validation"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the statement surface shared by *DB, *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool   *pgxpool.Pool
	logger logging.Logger
	runner *Runner
}

var (
	_ Handle  = (*DB)(nil)
	_ Querier = (*DB)(nil)
)

// PoolConfig translates cfg into a pgxpool configuration. A zero PoolSize or
// IdleTimeout, as in a hand-built Config, falls back to the package default.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(validation.DefaultOrInt(cfg.PoolSize, config.DefaultPoolSize))
	poolConfig.MaxConnIdleTime = validation.DefaultOrDuration(cfg.IdleTimeout, config.DefaultIdleTimeout)
	if cfg.StatementTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	return poolConfig, nil
}

// Open creates a pool from cfg and verifies the database is reachable.
// observer may be nil.
func Open(ctx context.Context, cfg *config.Config, logger logging.Logger, observer Observer) (*DB, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	logger.Info("database pool opened",
		logging.Int("max_conns", int(poolConfig.MaxConns)),
		logging.Duration("idle_timeout", poolConfig.MaxConnIdleTime),
	)

	return New(pool, logger, observer), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, logger logging.Logger, observer Observer) *DB {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &DB{
		pool:   pool,
		logger: logger,
		runner: NewRunner(logger.With(logging.Component("nested_tx")), observer),
	}
}

// Runner returns the nested transaction runner bound to this pool's logger
// and observer.
func (db *DB) Runner() *Runner {
	return db.runner
}

// Pool exposes the underlying pool
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Begin starts a top-level transaction
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, sql, args...)
}

func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// Ping checks database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Stats returns a snapshot of pool usage
func (db *DB) Stats() *pgxpool.Stat {
	return db.pool.Stat()
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.pool.Close()
	db.logger.Info("database pool closed")
	return nil
}
