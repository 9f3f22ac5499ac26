package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
)

// AccountRepository defines data access for billing accounts.
type AccountRepository interface {
	// CreateTx inserts account unless its principal already has one.
	// It reports whether a row was inserted.
	CreateTx(ctx context.Context, tx Transaction, account *domain.Account) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByPrincipal(ctx context.Context, principalID string) (*domain.Account, error)
	GetByPrincipalForUpdate(ctx context.Context, tx Transaction, principalID string) (*domain.Account, error)
	// GetByPrincipalsForUpdate locks rows in principal_id order.
	GetByPrincipalsForUpdate(ctx context.Context, tx Transaction, principalIDs []string) ([]*domain.Account, error)
	UpdateBalances(ctx context.Context, tx Transaction, account *domain.Account) error
	UpdateStatus(ctx context.Context, tx Transaction, account *domain.Account) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

// TransactionRepository defines data access for the ledger transaction log.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.LedgerTransaction) error
	GetByID(ctx context.Context, id string) (*domain.LedgerTransaction, error)
	// UpdateStatus moves an entry from one status to another and fails with
	// domain.ErrInvalidStateTransition when the entry is not in from.
	UpdateStatus(ctx context.Context, tx Transaction, id string, from, to domain.TransactionStatus, updatedAt time.Time) error
	ListByPurchase(ctx context.Context, tx Transaction, purchaseID string) ([]*domain.LedgerTransaction, error)
	List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.LedgerTransaction, int, error)
	SumByAccount(ctx context.Context, accountID string) (decimal.Decimal, error)
	DailyTotals(ctx context.Context, principalID string, txnType domain.TransactionType, since time.Time) ([]domain.EarningsBucket, error)
}

// WithdrawalRepository defines data access for withdrawal requests.
type WithdrawalRepository interface {
	Create(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest) error
	GetByID(ctx context.Context, id string) (*domain.WithdrawalRequest, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.WithdrawalRequest, error)
	Update(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest) error
	List(ctx context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, int, error)
}

// LedgerRepository defines data access for ledger-wide operations.
type LedgerRepository interface {
	// CheckConsistency returns the sum of stored balances and the sum of
	// balance-affecting log entries.
	CheckConsistency(ctx context.Context) (totalBalance, totalAmount decimal.Decimal, err error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// PrincipalResolver classifies principal IDs supplied by the identity provider.
type PrincipalResolver interface {
	Resolve(ctx context.Context, principalID string) (domain.AccountType, error)
	PlatformPrincipalID() string
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs operations that failed on transient database conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// ErrCacheMiss is returned by Cache.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claim so the request can be retried with the same key.
	Release(ctx context.Context, key string) error
}
