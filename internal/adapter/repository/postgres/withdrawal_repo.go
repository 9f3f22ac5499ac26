package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

const withdrawalColumns = `id, account_id, principal_id, amount, currency, status,
	withdrawal_method, payout_details, transaction_id, tracking_number, transaction_hash,
	estimated_arrival_date, failure_reason, notes, processed_by, processed_at,
	completed_at, created_at, updated_at`

// WithdrawalRepository implements usecase.WithdrawalRepository.
type WithdrawalRepository struct {
	db querier
}

// NewWithdrawalRepository creates a new WithdrawalRepository.
func NewWithdrawalRepository(pool *pgxpool.Pool) *WithdrawalRepository {
	return newWithdrawalRepository(pool)
}

func newWithdrawalRepository(db querier) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create inserts a new withdrawal request.
func (r *WithdrawalRepository) Create(ctx context.Context, tx usecase.Transaction, w *domain.WithdrawalRequest) error {
	q, err := txQuerier(tx)
	if err != nil {
		return err
	}

	details, err := json.Marshal(w.Details)
	if err != nil {
		return fmt.Errorf("marshal payout details: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO withdrawal_requests (`+withdrawalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		w.ID,
		w.AccountID,
		w.PrincipalID,
		w.Amount,
		w.Currency,
		string(w.Status),
		string(w.Method),
		details,
		w.TransactionID,
		w.TrackingNumber,
		w.TransactionHash,
		utcPtr(w.EstimatedArrivalDate),
		w.FailureReason,
		w.Notes,
		w.ProcessedBy,
		utcPtr(w.ProcessedAt),
		utcPtr(w.CompletedAt),
		w.CreatedAt.UTC(),
		w.UpdatedAt.UTC(),
	)

	return mapError(err, nil)
}

// GetByID retrieves a withdrawal request by ID.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	row := r.db.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id)
	return scanWithdrawal(row)
}

// GetByIDForUpdate retrieves a withdrawal request with a FOR UPDATE lock.
func (r *WithdrawalRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.WithdrawalRequest, error) {
	q, err := txQuerier(tx)
	if err != nil {
		return nil, err
	}

	row := q.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id)
	return scanWithdrawal(row)
}

// Update writes the mutable lifecycle columns of w.
func (r *WithdrawalRepository) Update(ctx context.Context, tx usecase.Transaction, w *domain.WithdrawalRequest) error {
	q, err := txQuerier(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE withdrawal_requests
		SET status = $2, tracking_number = $3, transaction_hash = $4,
		    estimated_arrival_date = $5, failure_reason = $6, notes = $7,
		    processed_by = $8, processed_at = $9, completed_at = $10, updated_at = $11
		WHERE id = $1`,
		w.ID,
		string(w.Status),
		w.TrackingNumber,
		w.TransactionHash,
		utcPtr(w.EstimatedArrivalDate),
		w.FailureReason,
		w.Notes,
		w.ProcessedBy,
		utcPtr(w.ProcessedAt),
		utcPtr(w.CompletedAt),
		w.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWithdrawalNotFound
	}

	return nil
}

// List returns matching requests newest first and the total match count.
func (r *WithdrawalRepository) List(ctx context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.PrincipalID != "" {
		args = append(args, filter.PrincipalID)
		conds = append(conds, fmt.Sprintf("principal_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, noLimit(filter.Limit), filter.Offset)
	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT `+withdrawalColumns+` FROM withdrawal_requests%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	withdrawals := make([]*domain.WithdrawalRequest, 0)
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, 0, err
		}
		withdrawals = append(withdrawals, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return withdrawals, total, nil
}

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var (
		w              domain.WithdrawalRequest
		status, method string
		details        []byte
	)

	err := row.Scan(
		&w.ID,
		&w.AccountID,
		&w.PrincipalID,
		&w.Amount,
		&w.Currency,
		&status,
		&method,
		&details,
		&w.TransactionID,
		&w.TrackingNumber,
		&w.TransactionHash,
		&w.EstimatedArrivalDate,
		&w.FailureReason,
		&w.Notes,
		&w.ProcessedBy,
		&w.ProcessedAt,
		&w.CompletedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, domain.ErrWithdrawalNotFound)
	}

	w.Status = domain.WithdrawalStatus(status)
	w.Method = domain.WithdrawalMethod(method)
	if err := json.Unmarshal(details, &w.Details); err != nil {
		return nil, fmt.Errorf("unmarshal payout details: %w", err)
	}

	return &w, nil
}
