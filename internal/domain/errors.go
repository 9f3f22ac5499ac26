package domain

import (
	"errors"
	"fmt"
)

var (
	// Account errors
	ErrAccountNotFound        = errors.New("billing account not found")
	ErrAccountSuspended       = errors.New("billing account is suspended")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrPlatformAccountMissing = errors.New("platform account is not configured")
	ErrInvalidPrincipal       = errors.New("invalid principal")

	// ErrInsufficientBalanceForRefund matches ErrInsufficientBalance as well.
	ErrInsufficientBalanceForRefund = fmt.Errorf("%w for refund", ErrInsufficientBalance)

	// Transaction errors
	ErrTransactionNotFound = errors.New("ledger transaction not found")
	ErrAlreadyRefunded     = errors.New("purchase has already been refunded")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrAlreadyExists       = errors.New("record already exists")
	ErrPurchaseConflict    = errors.New("purchase was already distributed with different details")

	// Withdrawal errors
	ErrWithdrawalNotFound     = errors.New("withdrawal request not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrNotOwner               = errors.New("resource belongs to another principal")

	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError for field. err may be nil.
func NewValidationError(field string, err error, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	switch {
	case e.Err != nil && e.Message == "":
		return fmt.Sprintf("%s: %s", e.Field, e.Err.Error())
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %s", e.Field, e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// IsNotFound reports whether err is one of the not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrWithdrawalNotFound)
}

// IsValidation reports whether err was caused by rejected input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}
