package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

const transactionColumns = `id, account_id, principal_id, type, amount, currency, description,
	status, purchase_id, sale_transaction_id, withdrawal_id, reverses_transaction_id,
	balance_before, balance_after, account_version, commission_rate, metadata,
	processed_by, created_at, updated_at`

// TransactionRepository implements usecase.TransactionRepository.
type TransactionRepository struct {
	db querier
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return newTransactionRepository(pool)
}

func newTransactionRepository(db querier) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends txn to the log.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.LedgerTransaction) error {
	q, err := txQuerier(tx)
	if err != nil {
		return err
	}

	metadata := txn.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal transaction metadata: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO ledger_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		txn.ID,
		txn.AccountID,
		txn.PrincipalID,
		string(txn.Type),
		txn.Amount,
		txn.Currency,
		txn.Description,
		string(txn.Status),
		nullIfEmpty(txn.PurchaseID),
		nullIfEmpty(txn.SaleTransactionID),
		nullIfEmpty(txn.WithdrawalID),
		nullIfEmpty(txn.ReversesTransactionID),
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.AccountVersion,
		txn.CommissionRate,
		payload,
		nullIfEmpty(txn.ProcessedBy),
		txn.CreatedAt.UTC(),
		txn.UpdatedAt.UTC(),
	)

	return mapError(err, nil)
}

// GetByID retrieves an entry by ID.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM ledger_transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// UpdateStatus moves an entry from one status to another.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, from, to domain.TransactionStatus, updatedAt time.Time) error {
	q, err := txQuerier(tx)
	if err != nil {
		return err
	}

	var (
		updated bool
		current *string
	)
	err = q.QueryRow(ctx, `
		WITH updated AS (
			UPDATE ledger_transactions SET status = $3, updated_at = $4
			WHERE id = $1 AND status = $2
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM updated),
		       (SELECT status FROM ledger_transactions WHERE id = $1)`,
		id, string(from), string(to), updatedAt.UTC(),
	).Scan(&updated, &current)
	if err != nil {
		return err
	}

	switch {
	case updated:
		return nil
	case current == nil:
		return domain.ErrTransactionNotFound
	default:
		return fmt.Errorf("%w: transaction %s is %s", domain.ErrInvalidStateTransition, id, *current)
	}
}

// ListByPurchase returns the entries of purchaseID, oldest first.
func (r *TransactionRepository) ListByPurchase(ctx context.Context, tx usecase.Transaction, purchaseID string) ([]*domain.LedgerTransaction, error) {
	q, err := txQuerier(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT `+transactionColumns+` FROM ledger_transactions
		WHERE purchase_id = $1
		ORDER BY created_at, id`, purchaseID)
	if err != nil {
		return nil, err
	}

	return collectTransactions(rows)
}

// List returns matching entries newest first and the total match count.
func (r *TransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.LedgerTransaction, int, error) {
	where, args := transactionWhere(filter)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, noLimit(filter.Limit), filter.Offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT `+transactionColumns+` FROM ledger_transactions%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}

	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

func transactionWhere(filter domain.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(column string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if filter.PrincipalID != "" {
		add("principal_id", filter.PrincipalID)
	}
	if filter.Type != "" {
		add("type", string(filter.Type))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// SumByAccount returns the signed sum of balance-affecting entries.
func (r *TransactionRepository) SumByAccount(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions
		WHERE account_id = $1 AND status <> 'FAILED'`, accountID).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}

	return sum, nil
}

// DailyTotals groups non-failed entries of txnType by UTC day since since.
func (r *TransactionRepository) DailyTotals(ctx context.Context, principalID string, txnType domain.TransactionType, since time.Time) ([]domain.EarningsBucket, error) {
	rows, err := r.db.Query(ctx, `
		SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
		       SUM(amount), COUNT(*)
		FROM ledger_transactions
		WHERE principal_id = $1 AND type = $2 AND status <> 'FAILED' AND created_at >= $3
		GROUP BY day
		ORDER BY day`, principalID, string(txnType), since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := make([]domain.EarningsBucket, 0)
	for rows.Next() {
		var (
			day    time.Time
			amount decimal.Decimal
			count  int64
		)
		if err := rows.Scan(&day, &amount, &count); err != nil {
			return nil, err
		}
		buckets = append(buckets, domain.EarningsBucket{
			Date:         time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
			Amount:       amount,
			Transactions: int(count),
		})
	}

	return buckets, rows.Err()
}

func collectTransactions(rows pgx.Rows) ([]*domain.LedgerTransaction, error) {
	defer rows.Close()

	txns := make([]*domain.LedgerTransaction, 0)
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.LedgerTransaction, error) {
	var (
		t                                      domain.LedgerTransaction
		txnType, status                        string
		purchaseID, saleID, withdrawalID, revs *string
		processedBy                            *string
		metadata                               []byte
	)

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.PrincipalID,
		&txnType,
		&t.Amount,
		&t.Currency,
		&t.Description,
		&status,
		&purchaseID,
		&saleID,
		&withdrawalID,
		&revs,
		&t.BalanceBefore,
		&t.BalanceAfter,
		&t.AccountVersion,
		&t.CommissionRate,
		&metadata,
		&processedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, domain.ErrTransactionNotFound)
	}

	t.Type = domain.TransactionType(txnType)
	t.Status = domain.TransactionStatus(status)
	t.PurchaseID = derefString(purchaseID)
	t.SaleTransactionID = derefString(saleID)
	t.WithdrawalID = derefString(withdrawalID)
	t.ReversesTransactionID = derefString(revs)
	t.ProcessedBy = derefString(processedBy)

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal transaction metadata: %w", err)
		}
	}

	return &t, nil
}
