package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// TxFunc is the body of a unit of work. Everything it does through tx commits
// or rolls back together.
type TxFunc func(tx *sqlx.Tx) error

// WithTx runs fn inside one read-write transaction.
//
// The transaction is bound to ctx: if the caller goes away before commit the
// driver rolls it back. It is also rolled back when fn returns an error or
// panics, so a unit of work is never partially applied.
func WithTx(ctx context.Context, conn *sqlx.DB, fn TxFunc) error {
	return run(ctx, conn, nil, fn)
}

// WithReadTx runs fn inside a read-only REPEATABLE READ transaction so that
// every statement in fn observes the same snapshot of the database.
func WithReadTx(ctx context.Context, conn *sqlx.DB, fn TxFunc) error {
	return run(ctx, conn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func run(ctx context.Context, conn *sqlx.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := conn.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(ctx, tx)
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		rollback(ctx, tx)
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func rollback(ctx context.Context, tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.ErrorContext(ctx, "Unable to rollback transaction", slog.Any("error", err))
	}
}
