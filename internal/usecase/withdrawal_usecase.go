package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
)

// WithdrawalUseCase drives withdrawal requests through their lifecycle.
// Requesting reserves the amount immediately; rejection and cancellation
// return it with a compensating ADJUSTMENT entry.
type WithdrawalUseCase struct {
	ledger
}

// NewWithdrawalUseCase creates a new WithdrawalUseCase.
func NewWithdrawalUseCase(deps Deps) *WithdrawalUseCase {
	return &WithdrawalUseCase{ledger: newLedger(deps)}
}

// RequestWithdrawalInput is a user's cash-out request.
type RequestWithdrawalInput struct {
	PrincipalID string
	Amount      decimal.Decimal
	Method      domain.WithdrawalMethod
	Details     domain.PayoutDetails
	Notes       string
}

// ProcessAction is an administrator's decision on a pending request.
type ProcessAction string

const (
	ProcessActionApprove ProcessAction = "approve"
	ProcessActionReject  ProcessAction = "reject"
)

// ProcessWithdrawalInput carries an approve or reject decision.
type ProcessWithdrawalInput struct {
	WithdrawalID         string
	Action               ProcessAction
	TransactionHash      string
	EstimatedArrivalDate *time.Time
	FailureReason        string
	Notes                string
	ProcessedBy          string
}

// CompleteWithdrawalInput confirms that funds were sent.
type CompleteWithdrawalInput struct {
	WithdrawalID   string
	TrackingNumber string
	Notes          string
	ProcessedBy    string
}

// RequestWithdrawal validates and reserves a withdrawal. The account is
// debited by a PENDING WITHDRAWAL entry in the same transaction.
func (uc *WithdrawalUseCase) RequestWithdrawal(ctx context.Context, input RequestWithdrawalInput) (*domain.WithdrawalRequest, error) {
	start := time.Now()

	w, err := uc.request(ctx, input)
	uc.observe("withdrawal_request", start, err)
	if err != nil {
		return nil, err
	}

	uc.recordTransition(w)
	if uc.Metrics != nil {
		uc.Metrics.WithdrawalAmount.Observe(w.Amount.InexactFloat64())
	}

	uc.Logger.Info().
		Str("withdrawal_id", w.ID).
		Str("principal_id", w.PrincipalID).
		Str("amount", w.Amount.String()).
		Str("method", string(w.Method)).
		Msg("withdrawal requested")

	return w, nil
}

func (uc *WithdrawalUseCase) request(ctx context.Context, input RequestWithdrawalInput) (*domain.WithdrawalRequest, error) {
	if err := domain.ValidatePrincipalID(input.PrincipalID); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount("amount", input.Amount); err != nil {
		return nil, err
	}
	if !input.Method.IsValid() {
		return nil, domain.NewValidationError("withdrawal_method", nil, fmt.Sprintf("unsupported method %q", input.Method))
	}
	if err := input.Details.Validate(input.Method); err != nil {
		return nil, err
	}
	if len(input.Notes) > domain.MaxReasonLength {
		return nil, domain.NewValidationError("notes", nil, fmt.Sprintf("exceeds %d characters", domain.MaxReasonLength))
	}

	var w *domain.WithdrawalRequest
	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		now := time.Now().UTC()

		if _, err := uc.ensureAccount(ctx, tx, input.PrincipalID, domain.AccountTypeUser, now); err != nil {
			return err
		}

		account, err := uc.Accounts.GetByPrincipalForUpdate(ctx, tx, input.PrincipalID)
		if err != nil {
			return err
		}

		if err := account.ValidateWithdrawal(input.Amount); err != nil {
			return err
		}

		w = &domain.WithdrawalRequest{
			ID:          uc.IDGen.Generate(),
			AccountID:   account.ID,
			PrincipalID: account.PrincipalID,
			Amount:      input.Amount,
			Currency:    account.Currency,
			Status:      domain.WithdrawalStatusPending,
			Method:      input.Method,
			Details:     input.Details,
			Notes:       strings.TrimSpace(input.Notes),
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		entry := &domain.LedgerTransaction{
			Type:         domain.TransactionTypeWithdrawal,
			Amount:       input.Amount.Neg(),
			Description:  fmt.Sprintf("Withdrawal request via %s", input.Method),
			Status:       domain.TransactionStatusPending,
			WithdrawalID: w.ID,
			Metadata: map[string]any{
				"withdrawal_id":     w.ID,
				"withdrawal_method": string(input.Method),
			},
		}
		if err := uc.post(ctx, tx, account, entry, false, now); err != nil {
			return err
		}
		w.TransactionID = entry.ID

		if err := uc.Withdrawals.Create(ctx, tx, w); err != nil {
			return err
		}

		return uc.emit(ctx, tx, domain.AggregateTypeWithdrawal, w.ID, domain.EventTypeWithdrawalRequested, withdrawalPayload(w), now)
	})
	if err != nil {
		return nil, err
	}

	return w, nil
}

// ProcessWithdrawal approves or rejects a pending request. Rejection
// requires a reason and returns the reserved amount to the balance.
func (uc *WithdrawalUseCase) ProcessWithdrawal(ctx context.Context, input ProcessWithdrawalInput) (*domain.WithdrawalRequest, error) {
	start := time.Now()

	var (
		w   *domain.WithdrawalRequest
		err error
	)
	switch input.Action {
	case ProcessActionApprove:
		w, err = uc.approve(ctx, input)
	case ProcessActionReject:
		w, err = uc.reject(ctx, input)
	default:
		err = domain.NewValidationError("action", nil, fmt.Sprintf("must be %q or %q", ProcessActionApprove, ProcessActionReject))
	}
	uc.observe("withdrawal_process", start, err)
	if err != nil {
		return nil, err
	}

	uc.recordTransition(w)
	uc.Logger.Info().
		Str("withdrawal_id", w.ID).
		Str("status", string(w.Status)).
		Str("processed_by", w.ProcessedBy).
		Msg("withdrawal processed")

	return w, nil
}

func (uc *WithdrawalUseCase) approve(ctx context.Context, input ProcessWithdrawalInput) (*domain.WithdrawalRequest, error) {
	if err := requireActor(input.ProcessedBy); err != nil {
		return nil, err
	}

	return uc.transition(ctx, input.WithdrawalID, func(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest, now time.Time) error {
		before := *w
		if err := w.TransitionTo(domain.WithdrawalStatusApproved, now); err != nil {
			return err
		}

		w.TransactionHash = strings.TrimSpace(input.TransactionHash)
		w.EstimatedArrivalDate = input.EstimatedArrivalDate
		w.ProcessedBy = input.ProcessedBy
		w.ProcessedAt = &now
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			w.Notes = notes
		}

		if err := uc.Withdrawals.Update(ctx, tx, w); err != nil {
			return err
		}
		if err := uc.audit(ctx, tx, input.ProcessedBy, domain.AuditActionWithdrawalApprove, domain.AuditResourceWithdrawal, w.ID, withdrawalPayload(&before), withdrawalPayload(w), now); err != nil {
			return err
		}

		return uc.emit(ctx, tx, domain.AggregateTypeWithdrawal, w.ID, domain.EventTypeWithdrawalApproved, withdrawalPayload(w), now)
	})
}

func (uc *WithdrawalUseCase) reject(ctx context.Context, input ProcessWithdrawalInput) (*domain.WithdrawalRequest, error) {
	if err := requireActor(input.ProcessedBy); err != nil {
		return nil, err
	}
	if err := domain.ValidateReason("failure_reason", input.FailureReason); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.FailureReason)

	return uc.transition(ctx, input.WithdrawalID, func(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest, now time.Time) error {
		before := *w
		if err := w.TransitionTo(domain.WithdrawalStatusFailed, now); err != nil {
			return err
		}

		w.FailureReason = reason
		w.ProcessedBy = input.ProcessedBy
		w.ProcessedAt = &now
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			w.Notes = notes
		}

		if err := uc.restore(ctx, tx, w, fmt.Sprintf("Withdrawal rejection: %s", reason), input.ProcessedBy, map[string]any{
			"withdrawal_id":    w.ID,
			"rejection_reason": reason,
		}, now); err != nil {
			return err
		}

		if err := uc.Withdrawals.Update(ctx, tx, w); err != nil {
			return err
		}
		if err := uc.audit(ctx, tx, input.ProcessedBy, domain.AuditActionWithdrawalReject, domain.AuditResourceWithdrawal, w.ID, withdrawalPayload(&before), withdrawalPayload(w), now); err != nil {
			return err
		}

		return uc.emit(ctx, tx, domain.AggregateTypeWithdrawal, w.ID, domain.EventTypeWithdrawalRejected, withdrawalPayload(w), now)
	})
}

// MarkProcessing records that the payout of an approved request has started.
func (uc *WithdrawalUseCase) MarkProcessing(ctx context.Context, withdrawalID, processedBy string) (*domain.WithdrawalRequest, error) {
	start := time.Now()

	w, err := uc.markProcessing(ctx, withdrawalID, processedBy)
	uc.observe("withdrawal_processing", start, err)
	if err != nil {
		return nil, err
	}

	uc.recordTransition(w)
	return w, nil
}

func (uc *WithdrawalUseCase) markProcessing(ctx context.Context, withdrawalID, processedBy string) (*domain.WithdrawalRequest, error) {
	if err := requireActor(processedBy); err != nil {
		return nil, err
	}

	return uc.transition(ctx, withdrawalID, func(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest, now time.Time) error {
		before := *w
		if err := w.TransitionTo(domain.WithdrawalStatusProcessing, now); err != nil {
			return err
		}
		w.ProcessedBy = processedBy

		if err := uc.Withdrawals.Update(ctx, tx, w); err != nil {
			return err
		}
		if err := uc.audit(ctx, tx, processedBy, domain.AuditActionWithdrawalProcessing, domain.AuditResourceWithdrawal, w.ID, withdrawalPayload(&before), withdrawalPayload(w), now); err != nil {
			return err
		}

		return uc.emit(ctx, tx, domain.AggregateTypeWithdrawal, w.ID, domain.EventTypeWithdrawalProcessing, withdrawalPayload(w), now)
	})
}

// CompleteWithdrawal records a successful payout. The reserved amount is
// counted in TotalWithdrawals and the WITHDRAWAL entry becomes COMPLETED.
func (uc *WithdrawalUseCase) CompleteWithdrawal(ctx context.Context, input CompleteWithdrawalInput) (*domain.WithdrawalRequest, error) {
	start := time.Now()

	w, err := uc.complete(ctx, input)
	uc.observe("withdrawal_complete", start, err)
	if err != nil {
		return nil, err
	}

	uc.recordTransition(w)
	uc.Logger.Info().
		Str("withdrawal_id", w.ID).
		Str("principal_id", w.PrincipalID).
		Str("amount", w.Amount.String()).
		Msg("withdrawal completed")

	return w, nil
}

func (uc *WithdrawalUseCase) complete(ctx context.Context, input CompleteWithdrawalInput) (*domain.WithdrawalRequest, error) {
	if err := requireActor(input.ProcessedBy); err != nil {
		return nil, err
	}

	return uc.transition(ctx, input.WithdrawalID, func(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest, now time.Time) error {
		before := *w
		if err := w.TransitionTo(domain.WithdrawalStatusCompleted, now); err != nil {
			return err
		}

		w.TrackingNumber = strings.TrimSpace(input.TrackingNumber)
		w.CompletedAt = &now
		w.ProcessedBy = input.ProcessedBy
		if w.ProcessedAt == nil {
			w.ProcessedAt = &now
		}
		if notes := strings.TrimSpace(input.Notes); notes != "" {
			w.Notes = notes
		}

		account, err := uc.Accounts.GetByPrincipalForUpdate(ctx, tx, w.PrincipalID)
		if err != nil {
			return err
		}
		account.RecordPayout(w.Amount, now)
		if err := uc.Accounts.UpdateBalances(ctx, tx, account); err != nil {
			return err
		}

		if w.TransactionID != "" {
			if err := uc.Transactions.UpdateStatus(ctx, tx, w.TransactionID, domain.TransactionStatusPending, domain.TransactionStatusCompleted, now); err != nil {
				return err
			}
		}

		if err := uc.Withdrawals.Update(ctx, tx, w); err != nil {
			return err
		}
		if err := uc.audit(ctx, tx, input.ProcessedBy, domain.AuditActionWithdrawalComplete, domain.AuditResourceWithdrawal, w.ID, withdrawalPayload(&before), withdrawalPayload(w), now); err != nil {
			return err
		}

		return uc.emit(ctx, tx, domain.AggregateTypeWithdrawal, w.ID, domain.EventTypeWithdrawalCompleted, withdrawalPayload(w), now)
	})
}

// CancelWithdrawal lets the owner withdraw a request that is still PENDING.
func (uc *WithdrawalUseCase) CancelWithdrawal(ctx context.Context, withdrawalID, principalID string) (*domain.WithdrawalRequest, error) {
	start := time.Now()

	w, err := uc.transition(ctx, withdrawalID, func(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest, now time.Time) error {
		if w.PrincipalID != principalID {
			return domain.ErrNotOwner
		}
		if err := w.TransitionTo(domain.WithdrawalStatusCancelled, now); err != nil {
			return err
		}

		if err := uc.restore(ctx, tx, w, "Withdrawal cancelled by owner", principalID, map[string]any{
			"withdrawal_id": w.ID,
		}, now); err != nil {
			return err
		}

		if err := uc.Withdrawals.Update(ctx, tx, w); err != nil {
			return err
		}

		return uc.emit(ctx, tx, domain.AggregateTypeWithdrawal, w.ID, domain.EventTypeWithdrawalCancelled, withdrawalPayload(w), now)
	})
	uc.observe("withdrawal_cancel", start, err)
	if err != nil {
		return nil, err
	}

	uc.recordTransition(w)
	return w, nil
}

// GetWithdrawal returns one request. A non-empty principalID restricts the
// lookup to requests owned by that principal.
func (uc *WithdrawalUseCase) GetWithdrawal(ctx context.Context, withdrawalID, principalID string) (*domain.WithdrawalRequest, error) {
	w, err := uc.Withdrawals.GetByID(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}

	if principalID != "" && w.PrincipalID != principalID {
		return nil, domain.ErrWithdrawalNotFound
	}

	return w, nil
}

// ListMyWithdrawals lists the requests of one principal, newest first.
func (uc *WithdrawalUseCase) ListMyWithdrawals(ctx context.Context, principalID string, status domain.WithdrawalStatus, limit, offset int) ([]*domain.WithdrawalRequest, int, error) {
	if err := domain.ValidatePrincipalID(principalID); err != nil {
		return nil, 0, err
	}

	return uc.ListWithdrawals(ctx, domain.WithdrawalFilter{
		PrincipalID: principalID,
		Status:      status,
		Limit:       limit,
		Offset:      offset,
	})
}

// ListWithdrawals lists requests across all principals, newest first.
func (uc *WithdrawalUseCase) ListWithdrawals(ctx context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, domain.NewValidationError("status", nil, fmt.Sprintf("unknown status %q", filter.Status))
	}

	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)

	return uc.Withdrawals.List(ctx, filter)
}

// transition locks a request and applies fn in one transaction.
func (uc *WithdrawalUseCase) transition(ctx context.Context, withdrawalID string, fn func(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest, now time.Time) error) (*domain.WithdrawalRequest, error) {
	if strings.TrimSpace(withdrawalID) == "" {
		return nil, domain.NewValidationError("withdrawal_id", nil, "withdrawal ID is required")
	}

	var w *domain.WithdrawalRequest
	err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		locked, err := uc.Withdrawals.GetByIDForUpdate(ctx, tx, withdrawalID)
		if err != nil {
			return err
		}

		if err := fn(ctx, tx, locked, time.Now().UTC()); err != nil {
			return err
		}

		w = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	return w, nil
}

// restore credits the reserved amount back with an ADJUSTMENT entry. The
// original WITHDRAWAL entry is left PENDING.
func (uc *WithdrawalUseCase) restore(ctx context.Context, tx Transaction, w *domain.WithdrawalRequest, description, actor string, metadata map[string]any, now time.Time) error {
	account, err := uc.Accounts.GetByPrincipalForUpdate(ctx, tx, w.PrincipalID)
	if err != nil {
		return err
	}

	return uc.post(ctx, tx, account, &domain.LedgerTransaction{
		Type:         domain.TransactionTypeAdjustment,
		Amount:       w.Amount,
		Description:  description,
		Status:       domain.TransactionStatusCompleted,
		WithdrawalID: w.ID,
		Metadata:     metadata,
		ProcessedBy:  actor,
	}, false, now)
}

func (uc *WithdrawalUseCase) recordTransition(w *domain.WithdrawalRequest) {
	if uc.Metrics != nil {
		uc.Metrics.WithdrawalTransitions.WithLabelValues(string(w.Status)).Inc()
	}
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return domain.NewValidationError("processed_by", nil, "acting administrator is required")
	}
	return nil
}

func withdrawalPayload(w *domain.WithdrawalRequest) map[string]any {
	payload := map[string]any{
		"withdrawal_id":  w.ID,
		"principal_id":   w.PrincipalID,
		"amount":         w.Amount.String(),
		"currency":       w.Currency,
		"status":         string(w.Status),
		"method":         string(w.Method),
		"transaction_id": w.TransactionID,
	}
	if w.FailureReason != "" {
		payload["failure_reason"] = w.FailureReason
	}
	if w.TrackingNumber != "" {
		payload["tracking_number"] = w.TrackingNumber
	}
	if w.TransactionHash != "" {
		payload["transaction_hash"] = w.TransactionHash
	}
	if w.ProcessedBy != "" {
		payload["processed_by"] = w.ProcessedBy
	}
	return payload
}
