package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus is the lifecycle state of a withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved   WithdrawalStatus = "APPROVED"
	WithdrawalStatusProcessing WithdrawalStatus = "PROCESSING"
	WithdrawalStatusCompleted  WithdrawalStatus = "COMPLETED"
	WithdrawalStatusFailed     WithdrawalStatus = "FAILED"
	WithdrawalStatusCancelled  WithdrawalStatus = "CANCELLED"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:    {WithdrawalStatusApproved, WithdrawalStatusFailed, WithdrawalStatusCancelled},
	WithdrawalStatusApproved:   {WithdrawalStatusProcessing, WithdrawalStatusCompleted},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted},
}

// IsValid reports whether s is a known status.
func (s WithdrawalStatus) IsValid() bool {
	switch s {
	case WithdrawalStatusPending, WithdrawalStatusApproved, WithdrawalStatusProcessing,
		WithdrawalStatusCompleted, WithdrawalStatusFailed, WithdrawalStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusCompleted || s == WithdrawalStatusFailed || s == WithdrawalStatusCancelled
}

// WithdrawalMethod is the payout rail.
type WithdrawalMethod string

const (
	WithdrawalMethodBankTransfer WithdrawalMethod = "BANK_TRANSFER"
	WithdrawalMethodPaypal       WithdrawalMethod = "PAYPAL"
	WithdrawalMethodCrypto       WithdrawalMethod = "CRYPTO"
)

// IsValid reports whether m is a supported method.
func (m WithdrawalMethod) IsValid() bool {
	return m == WithdrawalMethodBankTransfer || m == WithdrawalMethodPaypal || m == WithdrawalMethodCrypto
}

// BankAccount holds bank transfer destination details.
type BankAccount struct {
	AccountHolder string `json:"account_holder"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	RoutingNumber string `json:"routing_number,omitempty"`
}

// PayoutDetails holds the destination for one withdrawal method.
type PayoutDetails struct {
	BankAccount   *BankAccount `json:"bank_account,omitempty"`
	PaypalEmail   string       `json:"paypal_email,omitempty"`
	CryptoAddress string       `json:"crypto_address,omitempty"`
	CryptoNetwork string       `json:"crypto_network,omitempty"`
}

// Validate checks that the fields required by method are present.
func (d PayoutDetails) Validate(method WithdrawalMethod) error {
	switch method {
	case WithdrawalMethodBankTransfer:
		if d.BankAccount == nil {
			return NewValidationError("bank_account", nil, "bank account details are required")
		}
		if strings.TrimSpace(d.BankAccount.AccountHolder) == "" {
			return NewValidationError("bank_account.account_holder", nil, "account holder is required")
		}
		if strings.TrimSpace(d.BankAccount.AccountNumber) == "" {
			return NewValidationError("bank_account.account_number", nil, "account number is required")
		}
		if strings.TrimSpace(d.BankAccount.BankName) == "" {
			return NewValidationError("bank_account.bank_name", nil, "bank name is required")
		}
	case WithdrawalMethodPaypal:
		if strings.TrimSpace(d.PaypalEmail) == "" {
			return NewValidationError("paypal_email", nil, "PayPal email is required")
		}
		if err := ValidateEmail(d.PaypalEmail); err != nil {
			return NewValidationError("paypal_email", err, "")
		}
	case WithdrawalMethodCrypto:
		if strings.TrimSpace(d.CryptoAddress) == "" {
			return NewValidationError("crypto_address", nil, "crypto address is required")
		}
	default:
		return NewValidationError("withdrawal_method", nil, fmt.Sprintf("unsupported method %q", method))
	}

	return nil
}

// WithdrawalRequest is a cash-out request and its reservation.
type WithdrawalRequest struct {
	ID                   string
	AccountID            string
	PrincipalID          string
	Amount               decimal.Decimal
	Currency             string
	Status               WithdrawalStatus
	Method               WithdrawalMethod
	Details              PayoutDetails
	TransactionID        string
	TrackingNumber       string
	TransactionHash      string
	EstimatedArrivalDate *time.Time
	FailureReason        string
	Notes                string
	ProcessedBy          string
	ProcessedAt          *time.Time
	CompletedAt          *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CanTransitionTo reports whether the request may move to next.
func (w *WithdrawalRequest) CanTransitionTo(next WithdrawalStatus) bool {
	for _, s := range withdrawalTransitions[w.Status] {
		if s == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the request to next or returns ErrInvalidStateTransition.
func (w *WithdrawalRequest) TransitionTo(next WithdrawalStatus, now time.Time) error {
	if !w.CanTransitionTo(next) {
		return fmt.Errorf("%w: withdrawal %s %s -> %s", ErrInvalidStateTransition, w.ID, w.Status, next)
	}
	w.Status = next
	w.UpdatedAt = now
	return nil
}

// WithdrawalFilter selects withdrawal requests. Empty fields match everything.
type WithdrawalFilter struct {
	PrincipalID string
	Status      WithdrawalStatus
	Limit       int
	Offset      int
}
