package domain

import "time"

// Event types
const (
	EventTypeAccountCreated       = "account.created"
	EventTypeAccountSuspended     = "account.suspended"
	EventTypeAccountReactivated   = "account.reactivated"
	EventTypeEarningsDistributed  = "earnings.distributed"
	EventTypeRefundRecorded       = "refund.recorded"
	EventTypeRefundFailed         = "refund.failed"
	EventTypeWithdrawalRequested  = "withdrawal.requested"
	EventTypeWithdrawalApproved   = "withdrawal.approved"
	EventTypeWithdrawalRejected   = "withdrawal.rejected"
	EventTypeWithdrawalProcessing = "withdrawal.processing"
	EventTypeWithdrawalCompleted  = "withdrawal.completed"
	EventTypeWithdrawalCancelled  = "withdrawal.cancelled"
	EventTypeBalanceAdjusted      = "balance.adjusted"
)

// Aggregate types
const (
	AggregateTypeAccount    = "account"
	AggregateTypePurchase   = "purchase"
	AggregateTypeWithdrawal = "withdrawal"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}
