package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/metrics"
)

// ReconciliationUseCase checks stored balances against the transaction log
type ReconciliationUseCase struct {
	accountRepo     AccountRepository
	transactionRepo TransactionRepository
	ledgerRepo      LedgerRepository
	metrics         *metrics.Metrics
	logger          zerolog.Logger
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(
	accountRepo AccountRepository,
	transactionRepo TransactionRepository,
	ledgerRepo LedgerRepository,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		ledgerRepo:      ledgerRepo,
		metrics:         m,
		logger:          logger,
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         string
	PrincipalID       string
	RecordedBalance   decimal.Decimal
	CalculatedBalance decimal.Decimal
	Difference        decimal.Decimal
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount recomputes the balance of principalID from its
// non-FAILED log entries and compares it with the stored balance.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, principalID string) (*ReconciliationResult, error) {
	account, err := uc.accountRepo.GetByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	return uc.reconcile(ctx, account)
}

func (uc *ReconciliationUseCase) reconcile(ctx context.Context, account *domain.Account) (*ReconciliationResult, error) {
	calculated, err := uc.transactionRepo.SumByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("sum transactions of account %s: %w", account.ID, err)
	}

	difference := account.Balance.Sub(calculated)
	return &ReconciliationResult{
		AccountID:         account.ID,
		PrincipalID:       account.PrincipalID,
		RecordedBalance:   account.Balance,
		CalculatedBalance: calculated,
		Difference:        difference,
		IsReconciled:      difference.IsZero(),
		LastChecked:       time.Now().UTC(),
	}, nil
}

// ReconcileAllAccounts reconciles all accounts in the system
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += reconciliationBatchSize {
		accounts, err := uc.accountRepo.List(ctx, reconciliationBatchSize, offset)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.reconcile(ctx, account)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.PrincipalID, err)
			}
			if !result.IsReconciled {
				uc.logger.Error().
					Str("principal_id", result.PrincipalID).
					Str("recorded", result.RecordedBalance.String()).
					Str("calculated", result.CalculatedBalance.String()).
					Msg("balance does not match transaction log")
			}
			results = append(results, result)
		}

		if len(accounts) < reconciliationBatchSize {
			break
		}
	}

	return results, nil
}

// CheckLedgerConsistency verifies that the stored balances add up to the log
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	totalBalance, totalAmount, err := uc.ledgerRepo.CheckConsistency(ctx)
	if err != nil {
		return err
	}

	if !totalBalance.Equal(totalAmount) {
		return fmt.Errorf(
			"ledger inconsistency detected: balances=%s transactions=%s difference=%s",
			totalBalance.String(),
			totalAmount.String(),
			totalBalance.Sub(totalAmount).String(),
		)
	}

	return nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	LedgerConsistent   bool
	LedgerError        string
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	ledgerErr := uc.CheckLedgerConsistency(ctx)

	report := &ReconciliationReport{
		TotalAccounts:    len(results),
		Discrepancies:    make([]*ReconciliationResult, 0),
		LedgerConsistent: ledgerErr == nil,
		CheckedAt:        time.Now().UTC(),
	}
	if ledgerErr != nil {
		report.LedgerError = ledgerErr.Error()
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	if uc.metrics != nil {
		uc.metrics.ReconciliationDiscrepancies.Set(float64(len(report.Discrepancies)))
	}

	uc.logger.Info().
		Int("accounts", report.TotalAccounts).
		Int("discrepancies", len(report.Discrepancies)).
		Bool("ledger_consistent", report.LedgerConsistent).
		Msg("reconciliation finished")

	return report, nil
}
