package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dd0wney/cluso-starter/pkg/database"
	"github.com/dd0wney/cluso-starter/pkg/logging"
	"github.com/jackc/pgx/v5"
)

const createTrackingTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
`

const trackingTableExists = `SELECT to_regclass('schema_migrations') IS NOT NULL`

// Migration is one SQL file on disk.
type Migration struct {
	Name string
	Path string
}

// Recorder receives migration counts. metrics.Registry implements it.
type Recorder interface {
	RecordMigrations(applied, pending int)
}

// DB is the database surface the migrator needs; *database.DB satisfies it.
type DB interface {
	database.Handle
	database.Querier
}

// Migrator applies SQL files from a directory.
type Migrator struct {
	db       DB
	dir      string
	runner   *database.Runner
	logger   logging.Logger
	recorder Recorder
}

// NewMigrator creates a Migrator. runner, logger and recorder may be nil.
func NewMigrator(db DB, dir string, runner *database.Runner, logger logging.Logger, recorder Recorder) *Migrator {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if runner == nil {
		runner = database.NewRunner(logger, nil)
	}
	return &Migrator{
		db:       db,
		dir:      dir,
		runner:   runner,
		logger:   logger.With(logging.Component("migrator")),
		recorder: recorder,
	}
}

// Load lists the *.sql files in dir in lexical order. A missing dir is empty.
func Load(dir string) ([]Migration, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		out = append(out, Migration{
			Name: strings.TrimSuffix(e.Name(), ".sql"),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Pending returns the migrations not yet recorded in schema_migrations. It
// only reads; a missing tracking table means every file is pending.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	return m.pending(ctx, m.db)
}

func (m *Migrator) pending(ctx context.Context, q database.Querier) ([]Migration, error) {
	all, err := Load(m.dir)
	if err != nil {
		return nil, err
	}

	var tracked bool
	if err := q.QueryRow(ctx, trackingTableExists).Scan(&tracked); err != nil {
		return nil, fmt.Errorf("check schema_migrations: %w", err)
	}
	if !tracked {
		return all, nil
	}

	rows, err := q.Query(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan applied migrations: %w", err)
	}

	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	var pending []Migration
	for _, mig := range all {
		if !done[mig.Name] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns the names applied. It stops at the first failure; earlier
// migrations stay applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if _, err := m.db.Exec(ctx, createTrackingTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for i, mig := range pending {
		timer := logging.StartTimer(m.logger, "apply migration", logging.Migration(mig.Name))
		err := m.runner.Run(ctx, m.db, func(ctx context.Context, tx pgx.Tx, _ *database.Controls) error {
			return apply(ctx, tx, mig)
		}, false)
		if err != nil {
			timer.EndError(err)
			m.record(len(applied), len(pending)-i)
			return applied, fmt.Errorf("migration %s: %w", mig.Name, err)
		}
		timer.End()
		applied = append(applied, mig.Name)
	}

	m.record(len(applied), 0)
	if len(applied) == 0 {
		m.logger.Info("no pending migrations")
	}
	return applied, nil
}

// Plan runs every pending migration inside a single rollback-only
// transaction and returns the names that would be applied. Everything,
// including creation of the tracking table, happens inside that scope, so
// the database is left unchanged.
func (m *Migrator) Plan(ctx context.Context) ([]string, error) {
	var planned []string
	var pendingCount int

	err := m.runner.Run(ctx, m.db, func(ctx context.Context, tx pgx.Tx, _ *database.Controls) error {
		if _, err := tx.Exec(ctx, createTrackingTable); err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}
		pending, err := m.pending(ctx, tx)
		if err != nil {
			return err
		}
		pendingCount = len(pending)

		for _, mig := range pending {
			err := m.runner.Run(ctx, tx, func(ctx context.Context, tx pgx.Tx, _ *database.Controls) error {
				return apply(ctx, tx, mig)
			}, false)
			if err != nil {
				return fmt.Errorf("migration %s: %w", mig.Name, err)
			}
			planned = append(planned, mig.Name)
		}
		return nil
	}, true)
	if err != nil {
		return planned, err
	}

	m.record(0, pendingCount)
	m.logger.Info("migration plan", logging.Count(len(planned)))
	return planned, nil
}

func (m *Migrator) record(applied, pending int) {
	if m.recorder != nil {
		m.recorder.RecordMigrations(applied, pending)
	}
}

func apply(ctx context.Context, tx pgx.Tx, mig Migration) error {
	body, err := os.ReadFile(mig.Path)
	if err != nil {
		return fmt.Errorf("read %s: %w", mig.Path, err)
	}
	if strings.TrimSpace(string(body)) != "" {
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			return err
		}
	}
	_, err = tx.Exec(ctx, "INSERT INTO schema_migrations (name) VALUES ($1)", mig.Name)
	return err
}
