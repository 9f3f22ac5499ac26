package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

func bankDetails() domain.PayoutDetails {
	return domain.PayoutDetails{BankAccount: &domain.BankAccount{
		AccountHolder: "Jane Seller",
		AccountNumber: "000123456",
		BankName:      "First Bank",
	}}
}

func requestWithdrawal(t *testing.T, h *harness, amount string) *domain.WithdrawalRequest {
	t.Helper()
	w, err := h.withdrawalUC().RequestWithdrawal(context.Background(), usecase.RequestWithdrawalInput{
		PrincipalID: sellerID,
		Amount:      dec(amount),
		Method:      domain.WithdrawalMethodBankTransfer,
		Details:     bankDetails(),
	})
	require.NoError(t, err)
	return w
}

func approve(t *testing.T, h *harness, id string) *domain.WithdrawalRequest {
	t.Helper()
	w, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{
		WithdrawalID:    id,
		Action:          usecase.ProcessActionApprove,
		TransactionHash: "0xabc",
		ProcessedBy:     adminID,
	})
	require.NoError(t, err)
	return w
}

func TestWithdrawalUseCase_RequestReservesBalance(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "200")

	w := requestWithdrawal(t, h, "50")

	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
	assert.Equal(t, "USD", w.Currency)
	requireDecimal(t, "150", h.account(t, sellerID).Balance)

	entries := h.entriesOf(sellerID, domain.TransactionTypeWithdrawal)
	require.Len(t, entries, 1)
	assert.Equal(t, w.TransactionID, entries[0].ID)
	assert.Equal(t, domain.TransactionStatusPending, entries[0].Status)
	assert.Equal(t, "Withdrawal request via BANK_TRANSFER", entries[0].Description)
	assert.Equal(t, w.ID, entries[0].WithdrawalID)
	requireDecimal(t, "-50", entries[0].Amount)

	stored, err := h.withdrawalUC().GetWithdrawal(context.Background(), w.ID, sellerID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Seller", stored.Details.BankAccount.AccountHolder)
	assert.Contains(t, h.eventTypes(), domain.EventTypeWithdrawalRequested)
	h.requireReconciled(t)
}

func TestWithdrawalUseCase_RequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   usecase.RequestWithdrawalInput
		wantErr error
		field   string
	}{
		{
			name:    "zero amount",
			input:   usecase.RequestWithdrawalInput{PrincipalID: sellerID, Amount: dec("0"), Method: domain.WithdrawalMethodBankTransfer, Details: bankDetails()},
			wantErr: domain.ErrInvalidAmount,
			field:   "amount",
		},
		{
			name:    "below minimum",
			input:   usecase.RequestWithdrawalInput{PrincipalID: sellerID, Amount: dec("5"), Method: domain.WithdrawalMethodBankTransfer, Details: bankDetails()},
			wantErr: domain.ErrAmountTooSmall,
			field:   "amount",
		},
		{
			name:    "unknown method",
			input:   usecase.RequestWithdrawalInput{PrincipalID: sellerID, Amount: dec("20"), Method: "CHEQUE"},
			wantErr: domain.ErrValidation,
			field:   "withdrawal_method",
		},
		{
			name:    "bank transfer without account",
			input:   usecase.RequestWithdrawalInput{PrincipalID: sellerID, Amount: dec("20"), Method: domain.WithdrawalMethodBankTransfer},
			wantErr: domain.ErrValidation,
			field:   "bank_account",
		},
		{
			name: "bank transfer without bank name",
			input: usecase.RequestWithdrawalInput{PrincipalID: sellerID, Amount: dec("20"), Method: domain.WithdrawalMethodBankTransfer,
				Details: domain.PayoutDetails{BankAccount: &domain.BankAccount{AccountHolder: "J", AccountNumber: "1"}}},
			wantErr: domain.ErrValidation,
			field:   "bank_account.bank_name",
		},
		{
			name:    "paypal with malformed email",
			input:   usecase.RequestWithdrawalInput{PrincipalID: sellerID, Amount: dec("20"), Method: domain.WithdrawalMethodPaypal, Details: domain.PayoutDetails{PaypalEmail: "nope"}},
			wantErr: domain.ErrInvalidEmail,
			field:   "paypal_email",
		},
		{
			name:    "crypto without address",
			input:   usecase.RequestWithdrawalInput{PrincipalID: sellerID, Amount: dec("20"), Method: domain.WithdrawalMethodCrypto},
			wantErr: domain.ErrValidation,
			field:   "crypto_address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fund(t, sellerID, "200")

			_, err := h.withdrawalUC().RequestWithdrawal(context.Background(), tt.input)

			require.ErrorIs(t, err, tt.wantErr)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, tt.field, domain.FieldOf(err))
			requireDecimal(t, "200", h.account(t, sellerID).Balance)
		})
	}
}

func TestWithdrawalUseCase_RequestExceedingBalance(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "40")

	_, err := h.withdrawalUC().RequestWithdrawal(context.Background(), usecase.RequestWithdrawalInput{
		PrincipalID: sellerID,
		Amount:      dec("50"),
		Method:      domain.WithdrawalMethodBankTransfer,
		Details:     bankDetails(),
	})

	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	requireDecimal(t, "40", h.account(t, sellerID).Balance)
	assert.Empty(t, h.entriesOf(sellerID, domain.TransactionTypeWithdrawal))

	list, total, err := h.withdrawalUC().ListMyWithdrawals(context.Background(), sellerID, "", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
}

func TestWithdrawalUseCase_RequestFromSuspendedAccount(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "200")
	_, err := h.accountUC().SuspendAccount(context.Background(), sellerID, "chargeback review", adminID)
	require.NoError(t, err)

	_, err = h.withdrawalUC().RequestWithdrawal(context.Background(), usecase.RequestWithdrawalInput{
		PrincipalID: sellerID,
		Amount:      dec("50"),
		Method:      domain.WithdrawalMethodBankTransfer,
		Details:     bankDetails(),
	})

	require.ErrorIs(t, err, domain.ErrAccountSuspended)
	requireDecimal(t, "200", h.account(t, sellerID).Balance)
}

func TestWithdrawalUseCase_RejectRestoresBalance(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "200")
	w := requestWithdrawal(t, h, "50")

	rejected, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{
		WithdrawalID:  w.ID,
		Action:        usecase.ProcessActionReject,
		FailureReason: "account closed",
		ProcessedBy:   adminID,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.WithdrawalStatusFailed, rejected.Status)
	assert.Equal(t, "account closed", rejected.FailureReason)
	assert.Equal(t, adminID, rejected.ProcessedBy)
	require.NotNil(t, rejected.ProcessedAt)

	seller := h.account(t, sellerID)
	requireDecimal(t, "200", seller.Balance)
	requireDecimal(t, "200", seller.TotalEarnings)
	requireDecimal(t, "0", seller.TotalWithdrawals)

	adjustments := h.entriesOf(sellerID, domain.TransactionTypeAdjustment)
	require.Len(t, adjustments, 2)
	restore := adjustments[1]
	requireDecimal(t, "50", restore.Amount)
	assert.Equal(t, "Withdrawal rejection: account closed", restore.Description)
	assert.Equal(t, "account closed", restore.Metadata["rejection_reason"])
	assert.Equal(t, w.ID, restore.WithdrawalID)

	reservation := h.entriesOf(sellerID, domain.TransactionTypeWithdrawal)
	assert.Equal(t, domain.TransactionStatusPending, reservation[0].Status)

	logs, err := h.audit.GetByResourceID(context.Background(), domain.AuditResourceWithdrawal, w.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, string(domain.AuditActionWithdrawalReject), logs[0].Action)
	assert.Equal(t, adminID, logs[0].UserID)

	assert.Contains(t, h.eventTypes(), domain.EventTypeWithdrawalRejected)
	h.requireReconciled(t)
}

func TestWithdrawalUseCase_RejectRequiresReason(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "200")
	w := requestWithdrawal(t, h, "50")

	_, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{
		WithdrawalID: w.ID,
		Action:       usecase.ProcessActionReject,
		ProcessedBy:  adminID,
	})

	require.ErrorIs(t, err, domain.ErrReasonRequired)
	assert.Equal(t, "failure_reason", domain.FieldOf(err))

	stored, err := h.withdrawalUC().GetWithdrawal(context.Background(), w.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusPending, stored.Status)
	requireDecimal(t, "150", h.account(t, sellerID).Balance)
}

func TestWithdrawalUseCase_ApproveAndComplete(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "200")
	w := requestWithdrawal(t, h, "50")

	eta := time.Now().Add(72 * time.Hour).UTC()
	approved, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{
		WithdrawalID:         w.ID,
		Action:               usecase.ProcessActionApprove,
		TransactionHash:      "0xabc",
		EstimatedArrivalDate: &eta,
		ProcessedBy:          adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusApproved, approved.Status)
	assert.Equal(t, "0xabc", approved.TransactionHash)
	require.NotNil(t, approved.EstimatedArrivalDate)
	requireDecimal(t, "150", h.account(t, sellerID).Balance)

	completed, err := h.withdrawalUC().CompleteWithdrawal(context.Background(), usecase.CompleteWithdrawalInput{
		WithdrawalID:   w.ID,
		TrackingNumber: "TRK-1",
		ProcessedBy:    adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, completed.Status)
	assert.Equal(t, "TRK-1", completed.TrackingNumber)
	require.NotNil(t, completed.CompletedAt)

	seller := h.account(t, sellerID)
	requireDecimal(t, "150", seller.Balance)
	requireDecimal(t, "50", seller.TotalWithdrawals)
	require.NotNil(t, seller.LastWithdrawalAt)

	reservation := h.entriesOf(sellerID, domain.TransactionTypeWithdrawal)
	assert.Equal(t, domain.TransactionStatusCompleted, reservation[0].Status)

	logs, err := h.audit.GetByResourceID(context.Background(), domain.AuditResourceWithdrawal, w.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
	assert.Contains(t, h.eventTypes(), domain.EventTypeWithdrawalCompleted)
	h.requireReconciled(t)
}

func TestWithdrawalUseCase_ProcessingThenComplete(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "200")
	w := requestWithdrawal(t, h, "50")
	approve(t, h, w.ID)

	processing, err := h.withdrawalUC().MarkProcessing(context.Background(), w.ID, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusProcessing, processing.Status)

	completed, err := h.withdrawalUC().CompleteWithdrawal(context.Background(), usecase.CompleteWithdrawalInput{
		WithdrawalID: w.ID,
		ProcessedBy:  adminID,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, completed.Status)
	requireDecimal(t, "50", h.account(t, sellerID).TotalWithdrawals)
}

func TestWithdrawalUseCase_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, h *harness, id string)
		act     func(h *harness, id string) error
	}{
		{
			name:    "complete a pending request",
			prepare: func(*testing.T, *harness, string) {},
			act: func(h *harness, id string) error {
				_, err := h.withdrawalUC().CompleteWithdrawal(context.Background(), usecase.CompleteWithdrawalInput{WithdrawalID: id, ProcessedBy: adminID})
				return err
			},
		},
		{
			name:    "mark a pending request processing",
			prepare: func(*testing.T, *harness, string) {},
			act: func(h *harness, id string) error {
				_, err := h.withdrawalUC().MarkProcessing(context.Background(), id, adminID)
				return err
			},
		},
		{
			name:    "approve twice",
			prepare: func(t *testing.T, h *harness, id string) { approve(t, h, id) },
			act: func(h *harness, id string) error {
				_, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{WithdrawalID: id, Action: usecase.ProcessActionApprove, ProcessedBy: adminID})
				return err
			},
		},
		{
			name:    "reject an approved request",
			prepare: func(t *testing.T, h *harness, id string) { approve(t, h, id) },
			act: func(h *harness, id string) error {
				_, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{WithdrawalID: id, Action: usecase.ProcessActionReject, FailureReason: "late", ProcessedBy: adminID})
				return err
			},
		},
		{
			name:    "cancel an approved request",
			prepare: func(t *testing.T, h *harness, id string) { approve(t, h, id) },
			act: func(h *harness, id string) error {
				_, err := h.withdrawalUC().CancelWithdrawal(context.Background(), id, sellerID)
				return err
			},
		},
		{
			name: "approve a rejected request",
			prepare: func(t *testing.T, h *harness, id string) {
				_, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{WithdrawalID: id, Action: usecase.ProcessActionReject, FailureReason: "fraud", ProcessedBy: adminID})
				require.NoError(t, err)
			},
			act: func(h *harness, id string) error {
				_, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{WithdrawalID: id, Action: usecase.ProcessActionApprove, ProcessedBy: adminID})
				return err
			},
		},
		{
			name: "complete a completed request",
			prepare: func(t *testing.T, h *harness, id string) {
				approve(t, h, id)
				_, err := h.withdrawalUC().CompleteWithdrawal(context.Background(), usecase.CompleteWithdrawalInput{WithdrawalID: id, ProcessedBy: adminID})
				require.NoError(t, err)
			},
			act: func(h *harness, id string) error {
				_, err := h.withdrawalUC().CompleteWithdrawal(context.Background(), usecase.CompleteWithdrawalInput{WithdrawalID: id, ProcessedBy: adminID})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fund(t, sellerID, "200")
			w := requestWithdrawal(t, h, "50")
			tt.prepare(t, h, w.ID)

			before := h.account(t, sellerID)
			entries := len(h.transactions.All())

			err := tt.act(h, w.ID)

			require.ErrorIs(t, err, domain.ErrInvalidStateTransition)
			after := h.account(t, sellerID)
			assert.True(t, before.Balance.Equal(after.Balance))
			assert.True(t, before.TotalWithdrawals.Equal(after.TotalWithdrawals))
			assert.Len(t, h.transactions.All(), entries)
		})
	}
}

func TestWithdrawalUseCase_Cancel(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "200")
	w := requestWithdrawal(t, h, "50")

	_, err := h.withdrawalUC().CancelWithdrawal(context.Background(), w.ID, "someone-else")
	require.ErrorIs(t, err, domain.ErrNotOwner)

	cancelled, err := h.withdrawalUC().CancelWithdrawal(context.Background(), w.ID, sellerID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCancelled, cancelled.Status)
	requireDecimal(t, "200", h.account(t, sellerID).Balance)
	assert.Contains(t, h.eventTypes(), domain.EventTypeWithdrawalCancelled)
	h.requireReconciled(t)
}

func TestWithdrawalUseCase_ProcessInputErrors(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "200")
	w := requestWithdrawal(t, h, "50")

	_, err := h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{
		WithdrawalID: w.ID, Action: "escalate", ProcessedBy: adminID,
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "action", domain.FieldOf(err))

	_, err = h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{
		WithdrawalID: w.ID, Action: usecase.ProcessActionApprove,
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "processed_by", domain.FieldOf(err))

	_, err = h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{
		WithdrawalID: "missing", Action: usecase.ProcessActionApprove, ProcessedBy: adminID,
	})
	require.ErrorIs(t, err, domain.ErrWithdrawalNotFound)
}

func TestWithdrawalUseCase_Listing(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "500")
	h.fund(t, "seller-2", "500")

	first := requestWithdrawal(t, h, "20")
	second := requestWithdrawal(t, h, "30")
	approve(t, h, first.ID)
	_, err := h.withdrawalUC().RequestWithdrawal(context.Background(), usecase.RequestWithdrawalInput{
		PrincipalID: "seller-2",
		Amount:      dec("40"),
		Method:      domain.WithdrawalMethodCrypto,
		Details:     domain.PayoutDetails{CryptoAddress: "bc1q", CryptoNetwork: "bitcoin"},
	})
	require.NoError(t, err)

	mine, total, err := h.withdrawalUC().ListMyWithdrawals(context.Background(), sellerID, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	pending, total, err := h.withdrawalUC().ListMyWithdrawals(context.Background(), sellerID, domain.WithdrawalStatusPending, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, second.ID, pending[0].ID)

	all, total, err := h.withdrawalUC().ListWithdrawals(context.Background(), domain.WithdrawalFilter{Status: domain.WithdrawalStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	_, _, err = h.withdrawalUC().ListWithdrawals(context.Background(), domain.WithdrawalFilter{Status: "LOST"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.withdrawalUC().GetWithdrawal(context.Background(), first.ID, "seller-2")
	require.ErrorIs(t, err, domain.ErrWithdrawalNotFound)
}
