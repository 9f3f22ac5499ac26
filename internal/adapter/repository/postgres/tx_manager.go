package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/marketledger/internal/usecase"
)

type pgxPool interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// TxManager implements usecase.TransactionManager. Transactions run at
// READ COMMITTED; balance safety comes from row locks taken with
// SELECT ... FOR UPDATE in a fixed order.
type TxManager struct {
	pool        pgxPool
	opts        pgx.TxOptions
	lockTimeout time.Duration
}

// TxOption customises a TxManager.
type TxOption func(*TxManager)

// WithLockTimeout bounds how long a transaction waits for an account row
// lock. A timed-out wait fails with SQLSTATE 55P03, which the Retrier
// re-runs. Zero waits indefinitely.
func WithLockTimeout(d time.Duration) TxOption {
	return func(m *TxManager) { m.lockTimeout = d }
}

func NewTxManager(pool *pgxpool.Pool, opts ...TxOption) *TxManager {
	return newTxManagerWithPool(pool, opts...)
}

func newTxManagerWithPool(pool pgxPool, opts ...TxOption) *TxManager {
	m := &TxManager{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin starts a ledger transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	tx, err := m.pool.BeginTx(ctx, m.opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	if m.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", m.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	return &Tx{tx: tx}, nil
}

// Tx wraps a pgx transaction.
type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback is a no-op after Commit, so callers can always defer it.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// PgxTx returns the underlying pgx.Tx.
func (t *Tx) PgxTx() pgx.Tx {
	return t.tx
}
