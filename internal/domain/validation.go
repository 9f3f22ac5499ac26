package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidPrincipalID = errors.New("invalid principal ID")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrAmountTooLarge     = errors.New("amount exceeds maximum allowed")
	ErrAmountTooSmall     = errors.New("amount below minimum allowed")
	ErrAmountPrecision    = errors.New("amount has too many decimal places")
	ErrMetadataTooLarge   = errors.New("metadata size exceeds limit")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrReasonRequired     = errors.New("reason is required")
)

// Validation constants
const (
	MaxPrincipalIDLength = 255
	MaxReasonLength      = 1000
	MaxMetadataSize      = 10240           // 10KB
	MaxAmount            = "1000000000000" // 1 trillion
	MinAmount            = "0.01"
	MaxPageSize          = 1000
	MaxPageOffset        = math.MaxInt32
)

var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CNY": true, "AUD": true, "CAD": true, "CHF": true,
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidatePrincipalID validates a principal identifier.
func ValidatePrincipalID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("principal_id", ErrInvalidPrincipalID, "cannot be empty")
	}

	if len(id) > MaxPrincipalIDLength {
		return NewValidationError("principal_id", ErrInvalidPrincipalID, fmt.Sprintf("exceeds %d characters", MaxPrincipalIDLength))
	}

	if strings.ContainsAny(id, " \t\r\n;") {
		return NewValidationError("principal_id", ErrInvalidPrincipalID, "contains forbidden characters")
	}

	return nil
}

// ValidateCurrency validates currency code
func ValidateCurrency(currency string) error {
	currency = strings.ToUpper(strings.TrimSpace(currency))

	if !validCurrencies[currency] {
		return fmt.Errorf("%w: %s is not a supported ISO 4217 currency code", ErrInvalidCurrency, currency)
	}

	return nil
}

// ValidateAmount validates a positive money amount for the given field.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError(field, ErrInvalidAmount, "")
	}

	if !amount.Equal(amount.Round(MoneyPlaces)) {
		return NewValidationError(field, ErrAmountPrecision, fmt.Sprintf("at most %d decimal places", MoneyPlaces))
	}

	minAmount := decimal.RequireFromString(MinAmount)
	if amount.LessThan(minAmount) {
		return NewValidationError(field, ErrAmountTooSmall, "minimum amount is "+MinAmount)
	}

	maxAmount := decimal.RequireFromString(MaxAmount)
	if amount.GreaterThan(maxAmount) {
		return NewValidationError(field, ErrAmountTooLarge, "maximum amount is "+MaxAmount)
	}

	return nil
}

// ValidateSignedAmount validates a non-zero delta such as an adjustment.
func ValidateSignedAmount(field string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return NewValidationError(field, nil, "must not be zero")
	}
	return ValidateAmount(field, amount.Abs())
}

// ValidateReason validates a free-text justification.
func ValidateReason(field, reason string) error {
	reason = strings.TrimSpace(reason)

	if reason == "" {
		return NewValidationError(field, ErrReasonRequired, "")
	}

	if len(reason) > MaxReasonLength {
		return NewValidationError(field, nil, fmt.Sprintf("exceeds %d characters", MaxReasonLength))
	}

	return nil
}

// ValidateMetadata validates metadata size
func ValidateMetadata(metadata map[string]any) error {
	if metadata == nil {
		return nil
	}

	size := 0
	for k, v := range metadata {
		size += len(k)
		size += len(fmt.Sprintf("%v", v))
	}

	if size > MaxMetadataSize {
		return fmt.Errorf("%w: metadata size %d bytes exceeds limit of %d bytes", ErrMetadataTooLarge, size, MaxMetadataSize)
	}

	return nil
}

// ValidateEmail validates email format
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	if offset > MaxPageOffset {
		offset = MaxPageOffset
	}

	return limit, offset, nil
}
