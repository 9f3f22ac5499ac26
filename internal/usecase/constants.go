package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultEarningsReportTTL is how long an earnings report stays cached.
	DefaultEarningsReportTTL = 5 * time.Minute

	// RecentTransactionsLimit is the size of the admin overview feed.
	RecentTransactionsLimit = 20

	// reconciliationBatchSize is the page size used to walk all accounts.
	reconciliationBatchSize = 500
)
