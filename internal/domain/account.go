package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies the owner of a billing account.
type AccountType string

const (
	AccountTypeUser     AccountType = "USER"
	AccountTypePlatform AccountType = "PLATFORM"
)

// IsValid reports whether t is a known account type.
func (t AccountType) IsValid() bool {
	return t == AccountTypeUser || t == AccountTypePlatform
}

// DefaultMinimumWithdrawal is applied to accounts created without an explicit minimum.
var DefaultMinimumWithdrawal = decimal.NewFromInt(10)

// Account is the balance record of one principal.
type Account struct {
	ID                      string
	PrincipalID             string
	AccountType             AccountType
	Currency                string
	Balance                 decimal.Decimal
	TotalEarnings           decimal.Decimal
	TotalWithdrawals        decimal.Decimal
	MinimumWithdrawalAmount decimal.Decimal
	IsActive                bool
	SuspendedReason         string
	SuspendedAt             *time.Time
	LastWithdrawalAt        *time.Time
	Version                 int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// NewAccount returns an active, empty account for principalID.
func NewAccount(id, principalID string, accountType AccountType, currency string, minimumWithdrawal decimal.Decimal, now time.Time) *Account {
	if minimumWithdrawal.LessThanOrEqual(decimal.Zero) {
		minimumWithdrawal = DefaultMinimumWithdrawal
	}

	return &Account{
		ID:                      id,
		PrincipalID:             principalID,
		AccountType:             accountType,
		Currency:                currency,
		Balance:                 decimal.Zero,
		TotalEarnings:           decimal.Zero,
		TotalWithdrawals:        decimal.Zero,
		MinimumWithdrawalAmount: minimumWithdrawal,
		IsActive:                true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
}

// ValidateDebit checks if account can be debited by amount.
func (a *Account) ValidateDebit(amount decimal.Decimal) error {
	if a.Balance.Sub(amount).IsNegative() {
		return ErrInsufficientBalance
	}
	return nil
}

// ValidateWithdrawal checks the account-level rules for a new withdrawal.
func (a *Account) ValidateWithdrawal(amount decimal.Decimal) error {
	if !a.IsActive {
		return ErrAccountSuspended
	}

	if amount.LessThan(a.MinimumWithdrawalAmount) {
		return NewValidationError("amount", ErrAmountTooSmall, "minimum withdrawal is "+a.MinimumWithdrawalAmount.StringFixed(2))
	}

	return a.ValidateDebit(amount)
}

// Apply moves the balance by a signed delta. Positive deltas flagged as
// earnings also raise TotalEarnings.
func (a *Account) Apply(delta decimal.Decimal, earnings bool, now time.Time) error {
	if delta.IsNegative() {
		if err := a.ValidateDebit(delta.Neg()); err != nil {
			return err
		}
	}

	a.Balance = a.Balance.Add(delta)
	if earnings && delta.IsPositive() {
		a.TotalEarnings = a.TotalEarnings.Add(delta)
	}
	a.Version++
	a.UpdatedAt = now

	return nil
}

// RecordPayout marks amount as paid out. The balance was already reserved.
func (a *Account) RecordPayout(amount decimal.Decimal, now time.Time) {
	a.TotalWithdrawals = a.TotalWithdrawals.Add(amount)
	a.LastWithdrawalAt = &now
	a.Version++
	a.UpdatedAt = now
}

// Suspend blocks new withdrawals. Accrual continues.
func (a *Account) Suspend(reason string, now time.Time) {
	a.IsActive = false
	a.SuspendedReason = reason
	a.SuspendedAt = &now
	a.UpdatedAt = now
}

// Reactivate lifts a suspension.
func (a *Account) Reactivate(now time.Time) {
	a.IsActive = true
	a.SuspendedReason = ""
	a.SuspendedAt = nil
	a.UpdatedAt = now
}
