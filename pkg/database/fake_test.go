package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeServer models just enough Postgres transaction semantics to exercise
// savepoint handling: INSERT <value> appends a row, SAVEPOINT/ROLLBACK TO
// SAVEPOINT mark and truncate, COMMIT/BEGIN split the transaction, and any
// failed statement aborts the transaction until a rollback.
type fakeServer struct {
	mu       sync.Mutex
	durable  []string
	begins   int
	commits  int
	stmts    []string
	failures map[string]error
}

func newFakeServer() *fakeServer {
	return &fakeServer{failures: make(map[string]error)}
}

// failOn makes every statement starting with prefix return err.
func (s *fakeServer) failOn(prefix string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[prefix] = err
}

func (s *fakeServer) Begin(ctx context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begins++
	return &fakeTx{server: s}, nil
}

func (s *fakeServer) rows() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.durable...)
}

func (s *fakeServer) statements() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.stmts...)
}

type mark struct {
	name string
	at   int
}

type fakeTx struct {
	pgx.Tx // unimplemented methods panic

	server  *fakeServer
	pending []string
	marks   []mark
	aborted bool
	closed  bool
}

var errAborted = errors.New("current transaction is aborted, commands ignored until end of transaction block")

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s := tx.server
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stmts = append(s.stmts, sql)
	if tx.closed {
		return pgconn.CommandTag{}, pgx.ErrTxClosed
	}
	for prefix, err := range s.failures {
		if strings.HasPrefix(sql, prefix) {
			tx.aborted = true
			return pgconn.CommandTag{}, err
		}
	}

	switch {
	case strings.HasPrefix(sql, "ROLLBACK TO SAVEPOINT "):
		name := strings.TrimPrefix(sql, "ROLLBACK TO SAVEPOINT ")
		for i := len(tx.marks) - 1; i >= 0; i-- {
			if tx.marks[i].name == name {
				tx.pending = tx.pending[:tx.marks[i].at]
				tx.marks = tx.marks[:i+1]
				tx.aborted = false
				return pgconn.NewCommandTag("ROLLBACK"), nil
			}
		}
		tx.aborted = true
		return pgconn.CommandTag{}, fmt.Errorf("savepoint %s does not exist", name)
	case tx.aborted:
		return pgconn.CommandTag{}, errAborted
	case strings.HasPrefix(sql, "SAVEPOINT "):
		tx.marks = append(tx.marks, mark{name: strings.TrimPrefix(sql, "SAVEPOINT "), at: len(tx.pending)})
		return pgconn.NewCommandTag("SAVEPOINT"), nil
	case sql == "COMMIT":
		s.durable = append(s.durable, tx.pending...)
		s.commits++
		tx.pending = nil
		tx.marks = nil
		return pgconn.NewCommandTag("COMMIT"), nil
	case sql == "BEGIN":
		s.begins++
		return pgconn.NewCommandTag("BEGIN"), nil
	case strings.HasPrefix(sql, "INSERT "):
		tx.pending = append(tx.pending, strings.TrimPrefix(sql, "INSERT "))
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case sql == "FAIL":
		tx.aborted = true
		return pgconn.CommandTag{}, errors.New("syntax error at or near \"FAIL\"")
	}
	return pgconn.CommandTag{}, fmt.Errorf("fake server: unsupported statement %q", sql)
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	s := tx.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	if tx.aborted {
		return pgx.ErrTxCommitRollback
	}
	s.durable = append(s.durable, tx.pending...)
	s.commits++
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	s := tx.server
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	tx.pending = nil
	return nil
}

// visible returns rows the transaction itself can currently see.
func (tx *fakeTx) visible() []string {
	tx.server.mu.Lock()
	defer tx.server.mu.Unlock()
	out := append([]string(nil), tx.server.durable...)
	return append(out, tx.pending...)
}

func insert(ctx context.Context, tx pgx.Tx, value string) error {
	_, err := tx.Exec(ctx, "INSERT "+value)
	return err
}

// recordingObserver counts Observer callbacks.
type recordingObserver struct {
	mu           sync.Mutex
	outcomes     []Outcome
	rollbacks    int
	rollbackErrs int
	forceCommits int
}

func (o *recordingObserver) NestedTransactionDone(outcome Outcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) SavepointRolledBack(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rollbacks++
	if err != nil {
		o.rollbackErrs++
	}
}

func (o *recordingObserver) ForceCommitted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.forceCommits++
}
