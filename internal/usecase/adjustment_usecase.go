package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
)

// AdjustmentUseCase applies manual balance corrections.
type AdjustmentUseCase struct {
	ledger
}

// NewAdjustmentUseCase creates a new AdjustmentUseCase.
func NewAdjustmentUseCase(deps Deps) *AdjustmentUseCase {
	return &AdjustmentUseCase{ledger: newLedger(deps)}
}

// AdjustBalanceInput is a signed correction to one account.
type AdjustBalanceInput struct {
	PrincipalID string
	Amount      decimal.Decimal
	Reason      string
	AdjustedBy  string
}

// AdjustBalance posts a COMPLETED ADJUSTMENT entry. Positive amounts count
// as earnings; a negative amount may not take the balance below zero.
func (uc *AdjustmentUseCase) AdjustBalance(ctx context.Context, input AdjustBalanceInput) (*domain.LedgerTransaction, error) {
	start := time.Now()

	entry, err := uc.adjust(ctx, input)
	uc.observe("adjust", start, err)
	if err != nil {
		return nil, err
	}

	if uc.Metrics != nil {
		direction := "credit"
		if entry.Amount.IsNegative() {
			direction = "debit"
		}
		uc.Metrics.AdjustmentsTotal.WithLabelValues(direction).Inc()
	}

	uc.Logger.Info().
		Str("transaction_id", entry.ID).
		Str("principal_id", entry.PrincipalID).
		Str("amount", entry.Amount.String()).
		Str("adjusted_by", entry.ProcessedBy).
		Msg("balance adjusted")

	return entry, nil
}

func (uc *AdjustmentUseCase) adjust(ctx context.Context, input AdjustBalanceInput) (*domain.LedgerTransaction, error) {
	if err := domain.ValidatePrincipalID(input.PrincipalID); err != nil {
		return nil, err
	}
	if err := domain.ValidateSignedAmount("amount", input.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateReason("reason", input.Reason); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.AdjustedBy) == "" {
		return nil, domain.NewValidationError("adjusted_by", nil, "acting administrator is required")
	}
	reason := strings.TrimSpace(input.Reason)

	accountType := domain.AccountTypeUser
	if uc.Resolver != nil {
		resolved, err := uc.Resolver.Resolve(ctx, input.PrincipalID)
		if err != nil {
			return nil, fmt.Errorf("resolve principal %s: %w", input.PrincipalID, err)
		}
		accountType = resolved
	}

	var entry *domain.LedgerTransaction
	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		if _, err := uc.ensureAccount(ctx, tx, input.PrincipalID, accountType, now); err != nil {
			return err
		}

		account, err := uc.Accounts.GetByPrincipalForUpdate(ctx, tx, input.PrincipalID)
		if err != nil {
			return err
		}
		before := accountState(account)

		entry = &domain.LedgerTransaction{
			Type:        domain.TransactionTypeAdjustment,
			Amount:      input.Amount,
			Description: fmt.Sprintf("Manual adjustment: %s", reason),
			Status:      domain.TransactionStatusCompleted,
			ProcessedBy: input.AdjustedBy,
			Metadata: map[string]any{
				"adjustment_reason": reason,
				"adjusted_by":       input.AdjustedBy,
			},
		}
		if err := uc.post(ctx, tx, account, entry, input.Amount.IsPositive(), now); err != nil {
			return err
		}

		if err := uc.audit(ctx, tx, input.AdjustedBy, domain.AuditActionBalanceAdjust, domain.AuditResourceAccount, account.ID, before, accountState(account), now); err != nil {
			return err
		}

		return uc.emit(ctx, tx, domain.AggregateTypeAccount, account.ID, domain.EventTypeBalanceAdjusted, map[string]any{
			"account_id":     account.ID,
			"principal_id":   account.PrincipalID,
			"transaction_id": entry.ID,
			"amount":         entry.Amount.String(),
			"balance_after":  entry.BalanceAfter.String(),
			"reason":         reason,
			"adjusted_by":    input.AdjustedBy,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func accountState(a *domain.Account) map[string]any {
	state := map[string]any{
		"principal_id":      a.PrincipalID,
		"balance":           a.Balance.String(),
		"total_earnings":    a.TotalEarnings.String(),
		"total_withdrawals": a.TotalWithdrawals.String(),
		"is_active":         a.IsActive,
		"version":           a.Version,
	}
	if a.SuspendedReason != "" {
		state["suspended_reason"] = a.SuspendedReason
	}
	return state
}
