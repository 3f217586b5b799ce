// Package postgres contains PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/and161185/reseller-portal/internal/errs"
	"github.com/and161185/reseller-portal/internal/repository"
)

// singleAdminIndex is the partial unique index allowing one admin row.
const singleAdminIndex = "principals_single_admin"

// Querier is the statement surface shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is a minimal abstraction over a Postgres connection pool,
// used by repositories. It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	Querier
	// BeginTx starts a transaction with the provided options.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	// Close shuts down the pool and frees resources.
	Close()
}

// DB wraps pgxpool.Pool to satisfy repository constructors and allow testing.
type DB struct{ Pool PgxPool }

// New creates a new connection pool for the given DSN.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// Store is the Postgres-backed repository.Store.
type Store struct{ db *DB }

var _ repository.Store = (*Store)(nil)

// NewStore constructs a Store over db.
func NewStore(db *DB) *Store { return &Store{db: db} }

// Directory returns a directory repository outside any transaction.
func (s *Store) Directory() repository.DirectoryRepository { return NewDirectoryRepo(s.db.Pool) }

// Ledger returns a ledger repository outside any transaction.
func (s *Store) Ledger() repository.LedgerRepository { return NewLedgerRepo(s.db.Pool) }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.Pool.Ping(ctx) }

// WithinTx runs fn in a READ COMMITTED transaction. Rows touched through
// LockByID/LockBalance stay locked until commit or rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errs.Internal(err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = errs.Internal(e)
		}
	}()
	return fn(ctx, txRepos{q: tx})
}

type txRepos struct{ q Querier }

func (r txRepos) Directory() repository.DirectoryRepository { return NewDirectoryRepo(r.q) }
func (r txRepos) Ledger() repository.LedgerRepository       { return NewLedgerRepo(r.q) }

// uniqueViolation reports the violated constraint name, if err is a unique constraint violation.
func uniqueViolation(err error) (string, bool) {
	var pg *pgconn.PgError
	if errors.As(err, &pg) && pg.Code == "23505" {
		return pg.ConstraintName, true
	}
	return "", false
}

// notFoundOr maps pgx.ErrNoRows to errs.ErrNotFound and marks anything else internal.
func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errs.Internal(err)
}
