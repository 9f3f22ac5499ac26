package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db querier
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return newLedgerRepository(pool)
}

func newLedgerRepository(db querier) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CheckConsistency returns the sum of stored balances and the signed sum of
// every non-failed log entry.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) (totalBalance, totalAmount decimal.Decimal, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(balance), 0) FROM billing_accounts),
			(SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions WHERE status <> 'FAILED')`,
	).Scan(&totalBalance, &totalAmount)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	return totalBalance, totalAmount, nil
}
