package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

const accountColumns = `id, principal_id, account_type, currency, balance, total_earnings,
	total_withdrawals, minimum_withdrawal_amount, is_active, suspended_reason,
	suspended_at, last_withdrawal_at, version, created_at, updated_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return newAccountRepository(pool)
}

func newAccountRepository(db querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateTx inserts account unless its principal already owns one.
func (r *AccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.Account) (bool, error) {
	q, err := txQuerier(tx)
	if err != nil {
		return false, err
	}

	tag, err := q.Exec(ctx, `
		INSERT INTO billing_accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (principal_id) DO NOTHING`,
		account.ID,
		account.PrincipalID,
		string(account.AccountType),
		account.Currency,
		account.Balance,
		account.TotalEarnings,
		account.TotalWithdrawals,
		account.MinimumWithdrawalAmount,
		account.IsActive,
		account.SuspendedReason,
		utcPtr(account.SuspendedAt),
		utcPtr(account.LastWithdrawalAt),
		account.Version,
		account.CreatedAt.UTC(),
		account.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, mapError(err, nil)
	}

	return tag.RowsAffected() == 1, nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM billing_accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByPrincipal retrieves the account owned by principalID.
func (r *AccountRepository) GetByPrincipal(ctx context.Context, principalID string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM billing_accounts WHERE principal_id = $1`, principalID)
	return scanAccount(row)
}

// GetByPrincipalForUpdate retrieves an account with a FOR UPDATE lock.
func (r *AccountRepository) GetByPrincipalForUpdate(ctx context.Context, tx usecase.Transaction, principalID string) (*domain.Account, error) {
	q, err := txQuerier(tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM billing_accounts WHERE principal_id = $1 FOR UPDATE`, principalID)
	return scanAccount(row)
}

// GetByPrincipalsForUpdate locks the accounts of principalIDs in
// principal_id order. Missing principals are absent from the result.
func (r *AccountRepository) GetByPrincipalsForUpdate(ctx context.Context, tx usecase.Transaction, principalIDs []string) ([]*domain.Account, error) {
	q, err := txQuerier(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
		SELECT `+accountColumns+` FROM billing_accounts
		WHERE principal_id = ANY($1)
		ORDER BY principal_id
		FOR UPDATE`, principalIDs)
	if err != nil {
		return nil, err
	}

	return collectAccounts(rows)
}

// UpdateBalances writes the balance columns and version of account.
func (r *AccountRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	q, err := txQuerier(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE billing_accounts
		SET balance = $2, total_earnings = $3, total_withdrawals = $4,
		    last_withdrawal_at = $5, version = $6, updated_at = $7
		WHERE id = $1`,
		account.ID,
		account.Balance,
		account.TotalEarnings,
		account.TotalWithdrawals,
		utcPtr(account.LastWithdrawalAt),
		account.Version,
		account.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// UpdateStatus writes the suspension columns of account.
func (r *AccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	q, err := txQuerier(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE billing_accounts
		SET is_active = $2, suspended_reason = $3, suspended_at = $4, version = $5, updated_at = $6
		WHERE id = $1`,
		account.ID,
		account.IsActive,
		account.SuspendedReason,
		utcPtr(account.SuspendedAt),
		account.Version,
		account.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// List lists accounts ordered by principal with pagination.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+` FROM billing_accounts
		ORDER BY principal_id
		LIMIT $1 OFFSET $2`, noLimit(limit), offset)
	if err != nil {
		return nil, err
	}

	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a           domain.Account
		accountType string
	)

	err := row.Scan(
		&a.ID,
		&a.PrincipalID,
		&accountType,
		&a.Currency,
		&a.Balance,
		&a.TotalEarnings,
		&a.TotalWithdrawals,
		&a.MinimumWithdrawalAmount,
		&a.IsActive,
		&a.SuspendedReason,
		&a.SuspendedAt,
		&a.LastWithdrawalAt,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, domain.ErrAccountNotFound)
	}

	a.AccountType = domain.AccountType(accountType)
	return &a, nil
}
