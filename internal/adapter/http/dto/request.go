package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

// DistributeRequest reports a completed purchase.
type DistributeRequest struct {
	PurchaseID        string          `json:"purchase_id"`
	SaleTransactionID string          `json:"sale_transaction_id"`
	SellerID          string          `json:"seller_id"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
}

// ToUseCaseInput converts to use case input.
func (r *DistributeRequest) ToUseCaseInput() usecase.DistributeInput {
	return usecase.DistributeInput{
		PurchaseID:        r.PurchaseID,
		SaleTransactionID: r.SaleTransactionID,
		SellerID:          r.SellerID,
		GrossAmount:       r.GrossAmount,
	}
}

// RefundRequest reports a refunded purchase.
type RefundRequest struct {
	SaleTransactionID   string          `json:"sale_transaction_id"`
	PurchaseID          string          `json:"purchase_id"`
	SellerID            string          `json:"seller_id"`
	OriginalGrossAmount decimal.Decimal `json:"original_gross_amount"`
	Reason              string          `json:"reason,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *RefundRequest) ToUseCaseInput() usecase.RefundInput {
	return usecase.RefundInput{
		SaleTransactionID:   r.SaleTransactionID,
		PurchaseID:          r.PurchaseID,
		SellerID:            r.SellerID,
		OriginalGrossAmount: r.OriginalGrossAmount,
		Reason:              r.Reason,
	}
}

// WithdrawalRequestBody asks for a payout of part of the caller's balance.
type WithdrawalRequestBody struct {
	Amount           decimal.Decimal     `json:"amount"`
	WithdrawalMethod string              `json:"withdrawal_method"`
	BankAccount      *domain.BankAccount `json:"bank_account,omitempty"`
	PaypalEmail      string              `json:"paypal_email,omitempty"`
	CryptoAddress    string              `json:"crypto_address,omitempty"`
	CryptoNetwork    string              `json:"crypto_network,omitempty"`
	Notes            string              `json:"notes,omitempty"`
}

// ToUseCaseInput converts to use case input for principalID.
func (r *WithdrawalRequestBody) ToUseCaseInput(principalID string) usecase.RequestWithdrawalInput {
	return usecase.RequestWithdrawalInput{
		PrincipalID: principalID,
		Amount:      r.Amount,
		Method:      domain.WithdrawalMethod(strings.ToUpper(strings.TrimSpace(r.WithdrawalMethod))),
		Details: domain.PayoutDetails{
			BankAccount:   r.BankAccount,
			PaypalEmail:   r.PaypalEmail,
			CryptoAddress: r.CryptoAddress,
			CryptoNetwork: r.CryptoNetwork,
		},
		Notes: r.Notes,
	}
}

// ProcessWithdrawalRequest approves or rejects a pending withdrawal.
type ProcessWithdrawalRequest struct {
	Approved             *bool      `json:"approved"`
	FailureReason        string     `json:"failure_reason,omitempty"`
	TransactionHash      string     `json:"transaction_hash,omitempty"`
	EstimatedArrivalDate *time.Time `json:"estimated_arrival_date,omitempty"`
	Notes                string     `json:"notes,omitempty"`
}

// ToUseCaseInput converts to use case input. approved is required.
func (r *ProcessWithdrawalRequest) ToUseCaseInput(withdrawalID, processedBy string) (usecase.ProcessWithdrawalInput, error) {
	if r.Approved == nil {
		return usecase.ProcessWithdrawalInput{}, domain.NewValidationError("approved", nil, "is required")
	}

	action := usecase.ProcessActionReject
	if *r.Approved {
		action = usecase.ProcessActionApprove
	}

	return usecase.ProcessWithdrawalInput{
		WithdrawalID:         withdrawalID,
		Action:               action,
		TransactionHash:      r.TransactionHash,
		EstimatedArrivalDate: r.EstimatedArrivalDate,
		FailureReason:        r.FailureReason,
		Notes:                r.Notes,
		ProcessedBy:          processedBy,
	}, nil
}

// CompleteWithdrawalRequest confirms that a payout was sent.
type CompleteWithdrawalRequest struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CompleteWithdrawalRequest) ToUseCaseInput(withdrawalID, processedBy string) usecase.CompleteWithdrawalInput {
	return usecase.CompleteWithdrawalInput{
		WithdrawalID:   withdrawalID,
		TrackingNumber: r.TrackingNumber,
		Notes:          r.Notes,
		ProcessedBy:    processedBy,
	}
}

// AdjustBalanceRequest applies a signed manual correction.
type AdjustBalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// ToUseCaseInput converts to use case input.
func (r *AdjustBalanceRequest) ToUseCaseInput(principalID, adjustedBy string) usecase.AdjustBalanceInput {
	return usecase.AdjustBalanceInput{
		PrincipalID: principalID,
		Amount:      r.Amount,
		Reason:      r.Reason,
		AdjustedBy:  adjustedBy,
	}
}

// SuspendAccountRequest carries the reason for a suspension.
type SuspendAccountRequest struct {
	Reason string `json:"reason"`
}
