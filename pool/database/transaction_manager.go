package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/vmq/pool/config"
)

// TransactionOptions configures transaction behavior
type TransactionOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	Timeout        time.Duration
}

// TransactionManager runs callbacks inside bounded bun transactions.
type TransactionManager struct {
	db *bun.DB
}

func NewTransactionManager(db *bun.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// StandardTransactionOptions is read committed, used for writes that
// lock the rows they touch.
func StandardTransactionOptions(timeout time.Duration) *TransactionOptions {
	if timeout <= 0 {
		timeout = config.DefaultQueryTimeout
	}
	return &TransactionOptions{
		IsolationLevel: sql.LevelReadCommitted,
		Timeout:        timeout,
	}
}

// SnapshotTransactionOptions gives a consistent read-only view for dumps.
func SnapshotTransactionOptions(timeout time.Duration) *TransactionOptions {
	if timeout <= 0 {
		timeout = config.BatchQueryTimeout
	}
	return &TransactionOptions{
		IsolationLevel: sql.LevelRepeatableRead,
		ReadOnly:       true,
		Timeout:        timeout,
	}
}

// WithTransaction commits when fn returns nil and rolls back otherwise,
// including when the timeout fires mid-transaction.
func (tm *TransactionManager) WithTransaction(ctx context.Context, opts *TransactionOptions, fn func(context.Context, bun.Tx) error) error {
	if opts == nil {
		opts = StandardTransactionOptions(0)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	tx, err := tm.db.BeginTx(timeoutCtx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(timeoutCtx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
