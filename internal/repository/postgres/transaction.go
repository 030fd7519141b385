package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"canopy/internal/domain"
	"canopy/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	pool     *pgxpool.Pool
	isoLevel pgx.TxIsoLevel
	logger   *slog.Logger
}

// NewTransactionManager creates a new transaction manager.
// isolation is one of serializable, repeatable_read or read_committed.
func NewTransactionManager(pool *pgxpool.Pool, isolation string, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{
		pool:     pool,
		isoLevel: ParseIsolation(isolation),
		logger:   logger,
	}
}

// ParseIsolation maps a config value to a pgx isolation level, defaulting to serializable
func ParseIsolation(isolation string) pgx.TxIsoLevel {
	switch isolation {
	case "read_committed":
		return pgx.ReadCommitted
	case "repeatable_read":
		return pgx.RepeatableRead
	default:
		return pgx.Serializable
	}
}

// ExecTx executes a function within a transaction.
// Nested calls join the transaction already present in ctx.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if repositories.GetTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: tm.isoLevel})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Defer rollback - safe even if commit succeeds
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			// Commit might have succeeded, so only log
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	// Store transaction in context so repositories can access it
	txCtx := repositories.SetTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		return classifyTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyTxError(fmt.Errorf("commit transaction: %w", err))
	}

	return nil
}

// classifyTxError marks serialization failures and deadlocks as conflicts.
// They are not retried here; retry policy belongs to the caller.
func classifyTxError(err error) error {
	if IsConcurrencyAbort(err) {
		return fmt.Errorf("concurrent modification, try again: %w: %w", domain.ErrConflict, err)
	}
	return err
}
