package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the kind of balance-affecting event.
type TransactionType string

const (
	TransactionTypePurchaseEarnings TransactionType = "PURCHASE_EARNINGS"
	TransactionTypeAdminCommission  TransactionType = "ADMIN_COMMISSION"
	TransactionTypeWithdrawal       TransactionType = "WITHDRAWAL"
	TransactionTypeRefund           TransactionType = "REFUND"
	TransactionTypeAdjustment       TransactionType = "ADJUSTMENT"
	TransactionTypeBonus            TransactionType = "BONUS"
)

var validTransactionTypes = map[TransactionType]bool{
	TransactionTypePurchaseEarnings: true,
	TransactionTypeAdminCommission:  true,
	TransactionTypeWithdrawal:       true,
	TransactionTypeRefund:           true,
	TransactionTypeAdjustment:       true,
	TransactionTypeBonus:            true,
}

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	return validTransactionTypes[t]
}

// TransactionStatus is the lifecycle state of a ledger transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusReversed  TransactionStatus = "REVERSED"
)

// IsValid reports whether s is a known status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusReversed:
		return true
	}
	return false
}

// AffectsBalance reports whether an entry in status s is part of the
// account balance. FAILED entries are recorded for audit only.
func (s TransactionStatus) AffectsBalance() bool {
	return s != TransactionStatusFailed
}

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:   {TransactionStatusCompleted},
	TransactionStatusCompleted: {TransactionStatusReversed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to TransactionStatus) bool {
	for _, s := range transactionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LedgerTransaction is one immutable entry of the transaction log.
type LedgerTransaction struct {
	ID                    string
	AccountID             string
	PrincipalID           string
	Type                  TransactionType
	Amount                decimal.Decimal
	Currency              string
	Description           string
	Status                TransactionStatus
	PurchaseID            string
	SaleTransactionID     string
	WithdrawalID          string
	ReversesTransactionID string
	BalanceBefore         decimal.Decimal
	BalanceAfter          decimal.Decimal
	AccountVersion        int64
	CommissionRate        decimal.NullDecimal
	Metadata              map[string]any
	ProcessedBy           string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// TransitionTo moves the entry to status next.
func (t *LedgerTransaction) TransitionTo(next TransactionStatus, now time.Time) error {
	if !CanTransition(t.Status, next) {
		return fmt.Errorf("%w: transaction %s %s -> %s", ErrInvalidStateTransition, t.ID, t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// TransactionFilter selects entries of the log. Empty fields match everything.
type TransactionFilter struct {
	PrincipalID string
	Type        TransactionType
	Status      TransactionStatus
	Limit       int
	Offset      int
}

// EarningsBucket is one day of an earnings report.
type EarningsBucket struct {
	Date         time.Time       `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Transactions int             `json:"transactions"`
}
