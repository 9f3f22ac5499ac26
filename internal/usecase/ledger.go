package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/metrics"
)

// Deps bundles the collaborators shared by the billing use cases.
type Deps struct {
	TxManager    TransactionManager
	Retrier      Retrier
	Accounts     AccountRepository
	Transactions TransactionRepository
	Withdrawals  WithdrawalRepository
	Outbox       OutboxRepository
	Audit        AuditRepository
	IDGen        IDGenerator
	Resolver     PrincipalResolver
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger

	Currency          string
	MinimumWithdrawal decimal.Decimal
}

// ledger holds the write path every balance mutation goes through.
type ledger struct {
	Deps
}

func newLedger(deps Deps) ledger {
	if deps.Currency == "" {
		deps.Currency = "USD"
	}
	if deps.MinimumWithdrawal.LessThanOrEqual(decimal.Zero) {
		deps.MinimumWithdrawal = domain.DefaultMinimumWithdrawal
	}
	return ledger{Deps: deps}
}

// inTx runs fn in a database transaction with a timeout, retrying the whole
// unit on transient conflicts. fn must be safe to run more than once.
func (l *ledger) inTx(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	attempt := func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := l.TxManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		return tx.Commit(txCtx)
	}

	if l.Retrier == nil {
		return attempt()
	}
	return l.Retrier.Retry(ctx, attempt)
}

// ensureAccount creates the account of principalID inside tx when missing.
func (l *ledger) ensureAccount(ctx context.Context, tx Transaction, principalID string, accountType domain.AccountType, now time.Time) (bool, error) {
	account := domain.NewAccount(l.IDGen.Generate(), principalID, accountType, l.Currency, l.MinimumWithdrawal, now)

	created, err := l.Accounts.CreateTx(ctx, tx, account)
	if err != nil || !created {
		return created, err
	}

	err = l.emit(ctx, tx, domain.AggregateTypeAccount, account.ID, domain.EventTypeAccountCreated, map[string]any{
		"account_id":   account.ID,
		"principal_id": principalID,
		"account_type": string(accountType),
		"currency":     account.Currency,
	}, now)

	return true, err
}

// post appends entry to the log for account and, unless the entry is
// FAILED, moves the balance by entry.Amount. The account row must be locked.
func (l *ledger) post(ctx context.Context, tx Transaction, account *domain.Account, entry *domain.LedgerTransaction, earnings bool, now time.Time) error {
	if err := domain.ValidateMetadata(entry.Metadata); err != nil {
		return domain.NewValidationError("metadata", err, "")
	}
	if entry.ID == "" {
		entry.ID = l.IDGen.Generate()
	}
	entry.AccountID = account.ID
	entry.PrincipalID = account.PrincipalID
	entry.Currency = account.Currency
	entry.BalanceBefore = account.Balance
	entry.CreatedAt = now
	entry.UpdatedAt = now

	if entry.Status.AffectsBalance() {
		if err := account.Apply(entry.Amount, earnings, now); err != nil {
			return err
		}
	}

	entry.BalanceAfter = account.Balance
	entry.AccountVersion = account.Version

	if err := l.Transactions.Create(ctx, tx, entry); err != nil {
		return err
	}

	if !entry.Status.AffectsBalance() {
		return nil
	}

	return l.Accounts.UpdateBalances(ctx, tx, account)
}

// emit writes an outbox event in tx.
func (l *ledger) emit(ctx context.Context, tx Transaction, aggregateType, aggregateID, eventType string, payload map[string]any, now time.Time) error {
	if l.Outbox == nil {
		return nil
	}

	return l.Outbox.Create(ctx, tx, &domain.OutboxEvent{
		ID:            l.IDGen.Generate(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
		Published:     false,
	})
}

// audit records an administrative action in tx.
func (l *ledger) audit(ctx context.Context, tx Transaction, actor string, action domain.AuditAction, resourceType, resourceID string, before, after any, now time.Time) error {
	if l.Audit == nil {
		return nil
	}

	meta := domain.RequestMetaFromContext(ctx)
	log := &domain.AuditLog{
		ID:           l.IDGen.Generate(),
		UserID:       actor,
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		RequestID:    meta.RequestID,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}
	if err := l.Audit.CreateTx(ctx, tx, log); err != nil {
		return err
	}

	if l.Metrics != nil {
		l.Metrics.AuditLogsCreated.WithLabelValues(string(action), log.Status).Inc()
	}

	return nil
}

// observe records the outcome of one operation.
func (l *ledger) observe(operation string, start time.Time, err error) {
	if l.Metrics == nil {
		return
	}

	l.Metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		l.Metrics.OperationErrors.WithLabelValues(operation, errorKind(err)).Inc()
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrPlatformAccountMissing):
		return "platform_account_missing"
	case errors.Is(err, domain.ErrAccountSuspended):
		return "account_suspended"
	case domain.IsNotFound(err):
		return "not_found"
	default:
		return "internal"
	}
}

func accountsByPrincipal(accounts []*domain.Account) map[string]*domain.Account {
	m := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		m[a.PrincipalID] = a
	}
	return m
}
