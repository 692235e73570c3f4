package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-starter/pkg/logging"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotTransaction is returned when the savepoint body is handed something
// that is not a live transaction. It signals a programming error.
var ErrNotTransaction = errors.New("nested transaction called on a non-transaction")

// Handle is anything a transaction can be opened on: *pgxpool.Pool,
// *pgx.Conn, *DB, or an existing pgx.Tx.
type Handle interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Callback is the body of a nested transaction.
type Callback[T any] func(ctx context.Context, tx pgx.Tx, controls *Controls) (T, error)

// Outcome labels how a nested scope ended.
type Outcome string

const (
	// OutcomeReleased means the scope's work was kept for the enclosing transaction.
	OutcomeReleased Outcome = "released"
	// OutcomeDiscarded means the scope succeeded but ran rollback-only.
	OutcomeDiscarded Outcome = "discarded"
	// OutcomeFailed means the callback returned an error or panicked.
	OutcomeFailed Outcome = "failed"
)

// Observer receives nested transaction events. metrics.Registry implements it.
type Observer interface {
	NestedTransactionDone(outcome Outcome, duration time.Duration)
	SavepointRolledBack(err error)
	ForceCommitted()
}

type nopObserver struct{}

func (nopObserver) NestedTransactionDone(Outcome, time.Duration) {}
func (nopObserver) SavepointRolledBack(error)                    {}
func (nopObserver) ForceCommitted()                              {}

// Runner executes nested transactions with a fixed logger and observer.
type Runner struct {
	logger   logging.Logger
	observer Observer
}

// NewRunner creates a Runner. A nil logger or observer disables that output.
func NewRunner(logger logging.Logger, observer Observer) *Runner {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Runner{logger: logger, observer: observer}
}

// NestedTransaction runs callback inside a savepoint on handle using the
// process default logger. See Runner.Run.
func NestedTransaction[T any](ctx context.Context, handle Handle, callback Callback[T], rollbackOnly bool) (T, error) {
	r := NewRunner(logging.DefaultLogger().With(logging.Component("nested_tx")), nil)
	return Nested(ctx, r, handle, callback, rollbackOnly)
}

// Nested is NestedTransaction with an explicit Runner.
func Nested[T any](ctx context.Context, r *Runner, handle Handle, callback Callback[T], rollbackOnly bool) (T, error) {
	var result T
	err := r.Run(ctx, handle, func(ctx context.Context, tx pgx.Tx, controls *Controls) error {
		v, err := callback(ctx, tx, controls)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, rollbackOnly)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Run executes fn in a new savepoint scope.
//
// When handle is already a pgx.Tx the savepoint is taken on it directly.
// Otherwise exactly one top-level transaction is opened on handle, committed
// if Run returns nil and rolled back otherwise.
//
// If fn fails, the scope is rolled back to its savepoint and fn's error is
// returned unchanged. If rollbackOnly is set, the scope is rolled back even
// on success. Panics roll back the scope and are re-raised.
func (r *Runner) Run(ctx context.Context, handle Handle, fn func(ctx context.Context, tx pgx.Tx, controls *Controls) error, rollbackOnly bool) error {
	if isNilHandle(handle) {
		return fmt.Errorf("%w: nil %T", ErrNotTransaction, handle)
	}
	if tx, ok := handle.(pgx.Tx); ok {
		return r.withSavepoint(ctx, tx, fn, rollbackOnly)
	}
	return pgx.BeginFunc(ctx, handle, func(tx pgx.Tx) error {
		return r.Run(ctx, tx, fn, rollbackOnly)
	})
}

func (r *Runner) withSavepoint(ctx context.Context, tx pgx.Tx, fn func(ctx context.Context, tx pgx.Tx, controls *Controls) error, rollbackOnly bool) error {
	if isNilHandle(tx) {
		return fmt.Errorf("%w: nil %T", ErrNotTransaction, tx)
	}

	name := NewSavepointName()
	controls := &Controls{
		tx:           tx,
		name:         name,
		rollbackOnly: rollbackOnly,
		logger:       r.logger.With(logging.Savepoint(name)),
		observer:     r.observer,
	}

	if _, err := tx.Exec(ctx, createSavepointSQL(name)); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}

	// Cleanup must still reach the server after ctx is cancelled.
	cleanupCtx := context.WithoutCancel(ctx)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			controls.logger.Debug("panic in nested transaction, rolling back")
			controls.RollbackToSavepoint(cleanupCtx)
			r.observer.NestedTransactionDone(OutcomeFailed, time.Since(start))
			panic(p)
		}
	}()

	if err := fn(ctx, tx, controls); err != nil {
		controls.logger.Debug("error in nested transaction, rolling back", logging.Error(err))
		controls.RollbackToSavepoint(cleanupCtx)
		r.observer.NestedTransactionDone(OutcomeFailed, time.Since(start))
		return err
	}

	if rollbackOnly {
		controls.logger.Debug("rolling back to savepoint")
		controls.RollbackToSavepoint(cleanupCtx)
		r.observer.NestedTransactionDone(OutcomeDiscarded, time.Since(start))
		return nil
	}

	r.observer.NestedTransactionDone(OutcomeReleased, time.Since(start))
	return nil
}

// isNilHandle catches a nil interface and typed nil pointers of the handle
// types this package is used with. Other implementations are trusted.
func isNilHandle(h Handle) bool {
	switch v := h.(type) {
	case nil:
		return true
	case *DB:
		return v == nil || v.pool == nil
	case *pgxpool.Pool:
		return v == nil
	case *pgxpool.Tx:
		return v == nil
	case *pgx.Conn:
		return v == nil
	}
	return false
}

// Controls lets a callback steer its own savepoint scope.
type Controls struct {
	tx           pgx.Tx
	name         string
	rollbackOnly bool
	logger       logging.Logger
	observer     Observer
}

// Savepoint returns the scope's savepoint name.
func (c *Controls) Savepoint() string {
	return c.name
}

// RollbackOnly reports whether the scope discards its work on exit.
func (c *Controls) RollbackOnly() bool {
	return c.rollbackOnly
}

// RollbackToSavepoint undoes everything since the savepoint was last set and
// sets it again, leaving the enclosing transaction usable. Failures are
// logged, not returned.
func (c *Controls) RollbackToSavepoint(ctx context.Context) {
	c.logger.Debug("rollback called, rolling back to savepoint")

	err := c.rollback(ctx)
	if err != nil {
		c.logger.Error("error rolling back to savepoint", logging.Error(err))
	}
	c.observer.SavepointRolledBack(err)
}

func (c *Controls) rollback(ctx context.Context) error {
	if _, err := c.tx.Exec(ctx, rollbackToSavepointSQL(c.name)); err != nil {
		return err
	}
	_, err := c.tx.Exec(ctx, createSavepointSQL(c.name))
	return err
}

// ForceCommit commits the enclosing top-level transaction, begins a new one
// and re-establishes the savepoint, so work done so far survives a later
// failure of this scope. It does nothing in a rollback-only scope.
func (c *Controls) ForceCommit(ctx context.Context) error {
	if c.rollbackOnly {
		c.logger.Debug("commit called, but not committing in a read-only transaction")
		return nil
	}

	c.logger.Debug("commit called, committing top-level transaction")
	for _, stmt := range []string{commitSQL, beginSQL, createSavepointSQL(c.name)} {
		if _, err := c.tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("force commit: %s: %w", stmt, err)
		}
	}
	c.observer.ForceCommitted()
	return nil
}
