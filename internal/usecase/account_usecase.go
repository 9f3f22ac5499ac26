package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
)

// reportPeriods maps earnings report periods to their look-back window.
var reportPeriods = map[string]time.Duration{
	"week":  7 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
	"year":  365 * 24 * time.Hour,
}

func earningsReportKey(principalID, period string) string {
	return fmt.Sprintf("earnings-report:%s:%s", principalID, period)
}

// AccountUseCase handles account reads and account-level administration.
type AccountUseCase struct {
	ledger

	policy    domain.CommissionPolicy
	cache     Cache
	reportTTL time.Duration
}

// NewAccountUseCase creates a new AccountUseCase. cache may be nil.
func NewAccountUseCase(deps Deps, policy domain.CommissionPolicy, cache Cache, reportTTL time.Duration) *AccountUseCase {
	if reportTTL <= 0 {
		reportTTL = DefaultEarningsReportTTL
	}
	return &AccountUseCase{
		ledger:    newLedger(deps),
		policy:    policy,
		cache:     cache,
		reportTTL: reportTTL,
	}
}

// AccountStats is the balance summary shown to a principal.
type AccountStats struct {
	PrincipalID      string
	Balance          decimal.Decimal
	TotalEarnings    decimal.Decimal
	TotalWithdrawals decimal.Decimal
	Currency         string
	IsActive         bool
	Transactions     []*domain.LedgerTransaction
}

// EarningsReport aggregates seller earnings per day.
type EarningsReport struct {
	PrincipalID string                  `json:"principal_id"`
	Period      string                  `json:"period"`
	Since       time.Time               `json:"since"`
	Total       decimal.Decimal         `json:"total"`
	Buckets     []domain.EarningsBucket `json:"buckets"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// AdminOverview is the cross-account dashboard.
type AdminOverview struct {
	Platform           *AccountStats
	PendingWithdrawals []*domain.WithdrawalRequest
	PendingCount       int
	RecentTransactions []*domain.LedgerTransaction
}

// CommissionConfig returns the split applied to new purchases.
func (uc *AccountUseCase) CommissionConfig() domain.CommissionConfig {
	return uc.policy.Config()
}

// EnsurePlatformAccount creates the platform account when it is missing.
func (uc *AccountUseCase) EnsurePlatformAccount(ctx context.Context) (*domain.Account, error) {
	platformID := ""
	if uc.Resolver != nil {
		platformID = uc.Resolver.PlatformPrincipalID()
	}
	if platformID == "" {
		return nil, domain.ErrPlatformAccountMissing
	}

	return uc.getOrCreate(ctx, platformID, domain.AccountTypePlatform)
}

// GetOrCreateAccount returns the account of principalID, creating an empty
// one on first access.
func (uc *AccountUseCase) GetOrCreateAccount(ctx context.Context, principalID string) (*domain.Account, error) {
	if err := domain.ValidatePrincipalID(principalID); err != nil {
		return nil, err
	}

	accountType := domain.AccountTypeUser
	if uc.Resolver != nil {
		resolved, err := uc.Resolver.Resolve(ctx, principalID)
		if err != nil {
			return nil, fmt.Errorf("resolve principal %s: %w", principalID, err)
		}
		accountType = resolved
	}

	return uc.getOrCreate(ctx, principalID, accountType)
}

func (uc *AccountUseCase) getOrCreate(ctx context.Context, principalID string, accountType domain.AccountType) (*domain.Account, error) {
	var created bool
	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		var err error
		created, err = uc.ensureAccount(ctx, tx, principalID, accountType, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}

	if created {
		if uc.Metrics != nil {
			uc.Metrics.AccountsCreated.WithLabelValues(string(accountType)).Inc()
		}
		uc.Logger.Info().
			Str("principal_id", principalID).
			Str("account_type", string(accountType)).
			Msg("billing account created")
	}

	return uc.Accounts.GetByPrincipal(ctx, principalID)
}

// GetAccount returns the account of principalID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, principalID string) (*domain.Account, error) {
	if err := domain.ValidatePrincipalID(principalID); err != nil {
		return nil, err
	}
	return uc.Accounts.GetByPrincipal(ctx, principalID)
}

// GetStats returns the balance summary and most recent entries of
// principalID. A principal without an account gets zero values.
func (uc *AccountUseCase) GetStats(ctx context.Context, principalID string) (*AccountStats, error) {
	if err := domain.ValidatePrincipalID(principalID); err != nil {
		return nil, err
	}

	account, err := uc.Accounts.GetByPrincipal(ctx, principalID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return &AccountStats{
			PrincipalID:      principalID,
			Balance:          decimal.Zero,
			TotalEarnings:    decimal.Zero,
			TotalWithdrawals: decimal.Zero,
			Currency:         uc.Currency,
			IsActive:         true,
			Transactions:     []*domain.LedgerTransaction{},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	transactions, _, err := uc.Transactions.List(ctx, domain.TransactionFilter{
		PrincipalID: principalID,
		Limit:       RecentTransactionsLimit,
	})
	if err != nil {
		return nil, err
	}

	return &AccountStats{
		PrincipalID:      account.PrincipalID,
		Balance:          account.Balance,
		TotalEarnings:    account.TotalEarnings,
		TotalWithdrawals: account.TotalWithdrawals,
		Currency:         account.Currency,
		IsActive:         account.IsActive,
		Transactions:     transactions,
	}, nil
}

// ListTransactions pages through the log, newest first.
func (uc *AccountUseCase) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.LedgerTransaction, int, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, 0, domain.NewValidationError("type", nil, fmt.Sprintf("unknown transaction type %q", filter.Type))
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, domain.NewValidationError("status", nil, fmt.Sprintf("unknown status %q", filter.Status))
	}

	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)

	return uc.Transactions.List(ctx, filter)
}

// EarningsReport returns daily PURCHASE_EARNINGS totals for period, which
// is one of week, month or year. Reports are cached for the configured TTL.
func (uc *AccountUseCase) EarningsReport(ctx context.Context, principalID, period string) (*EarningsReport, error) {
	if err := domain.ValidatePrincipalID(principalID); err != nil {
		return nil, err
	}

	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		period = "month"
	}
	window, ok := reportPeriods[period]
	if !ok {
		return nil, domain.NewValidationError("period", nil, "must be one of week, month, year")
	}

	key := earningsReportKey(principalID, period)
	if report, ok := uc.cachedReport(ctx, key); ok {
		return report, nil
	}

	now := time.Now().UTC()
	since := now.Add(-window).Truncate(24 * time.Hour)

	buckets, err := uc.Transactions.DailyTotals(ctx, principalID, domain.TransactionTypePurchaseEarnings, since)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, b := range buckets {
		total = total.Add(b.Amount)
	}

	report := &EarningsReport{
		PrincipalID: principalID,
		Period:      period,
		Since:       since,
		Total:       total,
		Buckets:     buckets,
		GeneratedAt: now,
	}
	uc.storeReport(ctx, key, report)

	return report, nil
}

func (uc *AccountUseCase) cachedReport(ctx context.Context, key string) (*EarningsReport, bool) {
	if uc.cache == nil {
		return nil, false
	}

	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			uc.Logger.Warn().Err(err).Str("key", key).Msg("earnings report cache read failed")
		}
		uc.recordCacheLookup("miss")
		return nil, false
	}

	var report EarningsReport
	if err := json.Unmarshal(data, &report); err != nil {
		uc.Logger.Warn().Err(err).Str("key", key).Msg("discarding malformed cached earnings report")
		uc.recordCacheLookup("miss")
		return nil, false
	}

	uc.recordCacheLookup("hit")
	return &report, true
}

func (uc *AccountUseCase) storeReport(ctx context.Context, key string, report *EarningsReport) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		return
	}

	if err := uc.cache.Set(ctx, key, data, uc.reportTTL); err != nil {
		uc.Logger.Warn().Err(err).Str("key", key).Msg("earnings report cache write failed")
	}
}

func (uc *AccountUseCase) recordCacheLookup(result string) {
	if uc.Metrics != nil {
		uc.Metrics.ReportCacheLookups.WithLabelValues(result).Inc()
	}
}

// SuspendAccount blocks new withdrawals for principalID.
func (uc *AccountUseCase) SuspendAccount(ctx context.Context, principalID, reason, actor string) (*domain.Account, error) {
	if err := domain.ValidateReason("reason", reason); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)

	return uc.changeStatus(ctx, "suspend", principalID, actor, func(a *domain.Account, now time.Time) (domain.AuditAction, string, error) {
		if !a.IsActive {
			return "", "", fmt.Errorf("%w: account %s is already suspended", domain.ErrInvalidStateTransition, a.PrincipalID)
		}
		a.Suspend(reason, now)
		return domain.AuditActionAccountSuspend, domain.EventTypeAccountSuspended, nil
	})
}

// ReactivateAccount lifts a suspension.
func (uc *AccountUseCase) ReactivateAccount(ctx context.Context, principalID, actor string) (*domain.Account, error) {
	return uc.changeStatus(ctx, "reactivate", principalID, actor, func(a *domain.Account, now time.Time) (domain.AuditAction, string, error) {
		if a.IsActive {
			return "", "", fmt.Errorf("%w: account %s is already active", domain.ErrInvalidStateTransition, a.PrincipalID)
		}
		a.Reactivate(now)
		return domain.AuditActionAccountReactivate, domain.EventTypeAccountReactivated, nil
	})
}

func (uc *AccountUseCase) changeStatus(
	ctx context.Context,
	operation, principalID, actor string,
	apply func(a *domain.Account, now time.Time) (domain.AuditAction, string, error),
) (*domain.Account, error) {
	start := time.Now()

	if err := domain.ValidatePrincipalID(principalID); err != nil {
		return nil, err
	}
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var account *domain.Account
	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		locked, err := uc.Accounts.GetByPrincipalForUpdate(ctx, tx, principalID)
		if err != nil {
			return err
		}
		before := accountState(locked)

		action, eventType, err := apply(locked, now)
		if err != nil {
			return err
		}

		if err := uc.Accounts.UpdateStatus(ctx, tx, locked); err != nil {
			return err
		}
		if err := uc.audit(ctx, tx, actor, action, domain.AuditResourceAccount, locked.ID, before, accountState(locked), now); err != nil {
			return err
		}
		if err := uc.emit(ctx, tx, domain.AggregateTypeAccount, locked.ID, eventType, map[string]any{
			"account_id":   locked.ID,
			"principal_id": locked.PrincipalID,
			"is_active":    locked.IsActive,
			"reason":       locked.SuspendedReason,
			"actor":        actor,
		}, now); err != nil {
			return err
		}

		account = locked
		return nil
	})
	uc.observe(operation, start, err)
	if err != nil {
		return nil, err
	}

	uc.Logger.Info().
		Str("principal_id", principalID).
		Bool("is_active", account.IsActive).
		Str("actor", actor).
		Msgf("account %s", operation)

	return account, nil
}

// AdminOverview returns platform totals, the pending withdrawal queue and
// the latest entries across all accounts.
func (uc *AccountUseCase) AdminOverview(ctx context.Context) (*AdminOverview, error) {
	platformID := ""
	if uc.Resolver != nil {
		platformID = uc.Resolver.PlatformPrincipalID()
	}
	if platformID == "" {
		return nil, domain.ErrPlatformAccountMissing
	}

	platform, err := uc.GetStats(ctx, platformID)
	if err != nil {
		return nil, err
	}

	pending, pendingCount, err := uc.Withdrawals.List(ctx, domain.WithdrawalFilter{
		Status: domain.WithdrawalStatusPending,
		Limit:  RecentTransactionsLimit,
	})
	if err != nil {
		return nil, err
	}

	recent, _, err := uc.Transactions.List(ctx, domain.TransactionFilter{Limit: RecentTransactionsLimit})
	if err != nil {
		return nil, err
	}

	return &AdminOverview{
		Platform:           platform,
		PendingWithdrawals: pending,
		PendingCount:       pendingCount,
		RecentTransactions: recent,
	}, nil
}
