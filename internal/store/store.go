// Package store persists the transaction ledger and its rollup records in
// SQLite. Writes go through a UnitOfWork so a ledger row and every rollup it
// touches commit or roll back together.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cleared-dev/tally/internal/model"
)

// ErrNotFound is returned when a transaction does not exist.
var ErrNotFound = errors.New("not found")

// RollupQuery filters rollup reads. Zero fields match everything.
type RollupQuery struct {
	UserID    string
	Year      int
	Dimension model.Dimension
	Value     string
}

// Reader is the read side shared by Store and UnitOfWork.
type Reader interface {
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	Rollup(ctx context.Context, key model.RollupKey) (*model.RollupRecord, error)
}

// UnitOfWork is one atomic set of ledger and rollup writes.
type UnitOfWork interface {
	Reader
	InsertTransaction(ctx context.Context, tx model.Transaction) error
	UpdateTransaction(ctx context.Context, tx model.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	UpdateTransactionTags(ctx context.Context, id string, tags []string) error
	PutRollup(ctx context.Context, rec model.RollupRecord) error
	DeleteRollups(ctx context.Context, userID string, year int) (int64, error)
	Commit() error
	Rollback() error
}

// Store is the ledger and rollup store.
type Store interface {
	Reader
	ListTransactions(ctx context.Context, userID string, year, offset, limit int) ([]model.Transaction, error)
	TransactionYears(ctx context.Context, userID string) ([]int, error)
	RollupYears(ctx context.Context, userID string) ([]int, error)
	Rollups(ctx context.Context, q RollupQuery) ([]model.RollupRecord, error)
	Begin(ctx context.Context) (UnitOfWork, error)
}

// DB is the SQLite Store.
type DB struct {
	queries
	db *sql.DB
}

// Open migrates the database file at path and opens it. The pool holds a
// single connection, so reads through DB block while a UnitOfWork is open.
func Open(path string) (*DB, error) {
	if err := Migrate(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return &DB{queries: queries{q: db}, db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Begin starts a unit of work. The caller must Commit or Rollback it.
func (d *DB) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &Tx{queries: queries{q: tx}, tx: tx}, nil
}

// Tx is a UnitOfWork backed by one SQLite transaction.
type Tx struct {
	queries
	tx *sql.Tx
}

// Commit commits the unit of work.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the unit of work. Rolling back a finished Tx is a no-op.
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// WithTx runs fn in a unit of work, committing if fn succeeds.
func WithTx(ctx context.Context, s Store, fn func(UnitOfWork) error) error {
	uow, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}
	return uow.Commit()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements every statement against either the pool or a tx.
type queries struct {
	q querier
}

var (
	_ Store      = (*DB)(nil)
	_ UnitOfWork = (*Tx)(nil)
)
