package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tabemono-pos/api/internal/database"
)

// DB is a connection pool that can also start transactions.
// Satisfied by *pgxpool.Pool.
type DB interface {
	database.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// NewStore creates a Store from a DBTX (pool or tx).
// This allows the services to rebind their queries to a transaction.
type NewStore func(db database.DBTX) Store

// runner executes fn inside one transaction and commits only if fn succeeds.
type runner struct {
	db       DB
	newStore NewStore
}

func (r runner) inTx(ctx context.Context, fn func(store Store) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w: %w", ErrTransactionAborted, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(r.newStore(tx)); err != nil {
		return classifyTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w: %w", ErrTransactionAborted, err)
	}
	return nil
}

// reader returns a Store bound to the pool for read-only paths.
func (r runner) reader() Store {
	return r.newStore(r.db)
}

// classifyTxError maps serialization failures and deadlocks (SQLSTATE 40001,
// 40P01) to ErrTransactionAborted so callers know to retry from scratch.
func classifyTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %w", ErrTransactionAborted, err)
		}
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
