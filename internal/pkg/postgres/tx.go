package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/news-portal/internal/domain"
	"github.com/jackc/pgx/v5"
)

// TxStarter begins transactions. Implemented by *pgxpool.Pool.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a transaction and commits when fn succeeds.
// Any failure rolls the transaction back if it is still active. Errors that
// already carry a domain kind are returned as is; everything else is reported
// as a *domain.StorageError for op that keeps the original cause.
func WithTx(ctx context.Context, db TxStarter, op string, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return &domain.StorageError{Op: op, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "op", op, "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		if domain.IsKnownKind(err) {
			return err
		}
		return &domain.StorageError{Op: op, Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &domain.StorageError{Op: op, Err: fmt.Errorf("commit transaction: %w", err)}
	}
	return nil
}
