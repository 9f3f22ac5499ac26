package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

func TestDistributionUseCase_DistributePurchaseEarnings(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)

	receipt := h.distribute(t, "purchase-1", "100.00")

	requireDecimal(t, "100", receipt.Split.Gross)
	requireDecimal(t, "10", receipt.Split.PlatformCommission)
	requireDecimal(t, "90", receipt.Split.SellerEarnings)
	assert.False(t, receipt.Replayed)

	seller := h.account(t, sellerID)
	requireDecimal(t, "90", seller.Balance)
	requireDecimal(t, "90", seller.TotalEarnings)
	assert.Equal(t, domain.AccountTypeUser, seller.AccountType)

	platform := h.account(t, platformID)
	requireDecimal(t, "10", platform.Balance)
	requireDecimal(t, "10", platform.TotalEarnings)

	earnings := h.entriesOf(sellerID, domain.TransactionTypePurchaseEarnings)
	require.Len(t, earnings, 1)
	commission := h.entriesOf(platformID, domain.TransactionTypeAdminCommission)
	require.Len(t, commission, 1)

	assert.Equal(t, receipt.SellerTransactionID, earnings[0].ID)
	assert.Equal(t, receipt.PlatformTransactionID, commission[0].ID)
	assert.Equal(t, domain.TransactionStatusCompleted, earnings[0].Status)
	assert.Equal(t, "purchase-1", earnings[0].PurchaseID)
	assert.Equal(t, "sale-purchase-1", earnings[0].SaleTransactionID)
	assert.Equal(t, commission[0].ID, earnings[0].Metadata["counterpart_transaction_id"])
	assert.Equal(t, earnings[0].ID, commission[0].Metadata["counterpart_transaction_id"])
	assert.Equal(t, "10", earnings[0].Metadata["admin_commission"])
	requireDecimal(t, "0", earnings[0].BalanceBefore)
	requireDecimal(t, "90", earnings[0].BalanceAfter)
	require.True(t, commission[0].CommissionRate.Valid)
	requireDecimal(t, "0.10", commission[0].CommissionRate.Decimal)

	assert.Contains(t, h.eventTypes(), domain.EventTypeEarningsDistributed)
	h.requireReconciled(t)
}

func TestDistributionUseCase_SplitIsZeroSum(t *testing.T) {
	tests := []struct {
		gross      string
		commission string
	}{
		{"0.01", "0"},
		{"0.05", "0.01"},
		{"0.15", "0.02"},
		{"33.33", "3.33"},
		{"99.99", "10"},
		{"1234.57", "123.46"},
	}

	for _, tt := range tests {
		t.Run(tt.gross, func(t *testing.T) {
			h := newHarness(t)
			h.ensurePlatform(t)

			receipt := h.distribute(t, "purchase-"+tt.gross, tt.gross)

			requireDecimal(t, tt.commission, receipt.Split.PlatformCommission)
			requireDecimal(t, tt.gross, receipt.Split.PlatformCommission.Add(receipt.Split.SellerEarnings))
			requireDecimal(t, tt.gross, h.account(t, sellerID).Balance.Add(h.account(t, platformID).Balance))
		})
	}
}

func TestDistributionUseCase_ReplayReturnsOriginalReceipt(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)

	first := h.distribute(t, "purchase-1", "100")
	second := h.distribute(t, "purchase-1", "100")

	assert.True(t, second.Replayed)
	assert.Equal(t, first.SellerTransactionID, second.SellerTransactionID)
	assert.Equal(t, first.PlatformTransactionID, second.PlatformTransactionID)
	requireDecimal(t, "100", second.Split.Gross)
	requireDecimal(t, "90", h.account(t, sellerID).Balance)
	requireDecimal(t, "10", h.account(t, platformID).Balance)
	assert.Len(t, h.transactions.All(), 2)
}

func TestDistributionUseCase_ReplayRejectsConflictingDetails(t *testing.T) {
	tests := []struct {
		name  string
		input usecase.DistributeInput
	}{
		{
			name:  "other seller and amount",
			input: usecase.DistributeInput{PurchaseID: "purchase-1", SaleTransactionID: "sale-purchase-1", SellerID: "seller-2", GrossAmount: dec("500")},
		},
		{
			name:  "other seller",
			input: usecase.DistributeInput{PurchaseID: "purchase-1", SaleTransactionID: "sale-purchase-1", SellerID: "seller-2", GrossAmount: dec("100")},
		},
		{
			name:  "other amount",
			input: usecase.DistributeInput{PurchaseID: "purchase-1", SaleTransactionID: "sale-purchase-1", SellerID: sellerID, GrossAmount: dec("100.01")},
		},
		{
			name:  "other sale transaction",
			input: usecase.DistributeInput{PurchaseID: "purchase-1", SaleTransactionID: "sale-other", SellerID: sellerID, GrossAmount: dec("100")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ensurePlatform(t)
			h.distribute(t, "purchase-1", "100")

			receipt, err := h.distributionUC().DistributePurchaseEarnings(context.Background(), tt.input)
			require.ErrorIs(t, err, domain.ErrPurchaseConflict)
			assert.Nil(t, receipt)

			_, err = h.accounts.GetByPrincipal(context.Background(), "seller-2")
			require.ErrorIs(t, err, domain.ErrAccountNotFound)
			requireDecimal(t, "90", h.account(t, sellerID).Balance)
			requireDecimal(t, "10", h.account(t, platformID).Balance)
			assert.Len(t, h.transactions.All(), 2)
			h.requireReconciled(t)
		})
	}
}

func TestDistributionUseCase_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input usecase.DistributeInput
		field string
	}{
		{
			name:  "zero amount",
			input: usecase.DistributeInput{PurchaseID: "p", SaleTransactionID: "s", SellerID: sellerID, GrossAmount: dec("0")},
			field: "gross_amount",
		},
		{
			name:  "negative amount",
			input: usecase.DistributeInput{PurchaseID: "p", SaleTransactionID: "s", SellerID: sellerID, GrossAmount: dec("-5")},
			field: "gross_amount",
		},
		{
			name:  "sub-cent amount",
			input: usecase.DistributeInput{PurchaseID: "p", SaleTransactionID: "s", SellerID: sellerID, GrossAmount: dec("1.001")},
			field: "gross_amount",
		},
		{
			name:  "missing purchase",
			input: usecase.DistributeInput{SaleTransactionID: "s", SellerID: sellerID, GrossAmount: dec("10")},
			field: "purchase_id",
		},
		{
			name:  "missing sale transaction",
			input: usecase.DistributeInput{PurchaseID: "p", SellerID: sellerID, GrossAmount: dec("10")},
			field: "sale_transaction_id",
		},
		{
			name:  "empty seller",
			input: usecase.DistributeInput{PurchaseID: "p", SaleTransactionID: "s", GrossAmount: dec("10")},
			field: "seller_id",
		},
		{
			name:  "seller with surrounding whitespace",
			input: usecase.DistributeInput{PurchaseID: "p", SaleTransactionID: "s", SellerID: " " + sellerID, GrossAmount: dec("10")},
			field: "seller_id",
		},
		{
			name:  "seller is the platform",
			input: usecase.DistributeInput{PurchaseID: "p", SaleTransactionID: "s", SellerID: platformID, GrossAmount: dec("10")},
			field: "seller_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ensurePlatform(t)

			_, err := h.distributionUC().DistributePurchaseEarnings(context.Background(), tt.input)

			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, tt.field, domain.FieldOf(err))
			assert.Empty(t, h.transactions.All())
		})
	}
}

func TestDistributionUseCase_PlatformMissing(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t)
		h.platform = ""

		_, err := h.distributionUC().DistributePurchaseEarnings(context.Background(), usecase.DistributeInput{
			PurchaseID: "p", SaleTransactionID: "s", SellerID: sellerID, GrossAmount: dec("10"),
		})

		require.ErrorIs(t, err, domain.ErrPlatformAccountMissing)
	})

	t.Run("account row absent", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.distributionUC().DistributePurchaseEarnings(context.Background(), usecase.DistributeInput{
			PurchaseID: "p", SaleTransactionID: "s", SellerID: sellerID, GrossAmount: dec("10"),
		})

		require.ErrorIs(t, err, domain.ErrPlatformAccountMissing)
		_, err = h.accounts.GetByPrincipal(context.Background(), sellerID)
		require.ErrorIs(t, err, domain.ErrAccountNotFound, "seller account creation must roll back")
	})
}

func TestDistributionUseCase_UnresolvableSeller(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)

	_, err := h.distributionUC().DistributePurchaseEarnings(context.Background(), usecase.DistributeInput{
		PurchaseID: "p", SaleTransactionID: "s", SellerID: "ghost", GrossAmount: dec("10"),
	})

	require.ErrorIs(t, err, domain.ErrInvalidPrincipal)
}

func TestDistributionUseCase_FailureLeavesNoPartialWrites(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)

	calls := 0
	h.transactions.CreateFunc = func(ctx context.Context, tx usecase.Transaction, txn *domain.LedgerTransaction) error {
		calls++
		if calls == 2 {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := h.distributionUC().DistributePurchaseEarnings(context.Background(), usecase.DistributeInput{
		PurchaseID: "p", SaleTransactionID: "s", SellerID: sellerID, GrossAmount: dec("100"),
	})

	require.Error(t, err)
	requireDecimal(t, "0", h.account(t, platformID).Balance)
	_, err = h.accounts.GetByPrincipal(context.Background(), sellerID)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestDistributionUseCase_RecordRefund(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)
	original := h.distribute(t, "purchase-1", "100")

	receipt, err := h.distributionUC().RecordRefund(context.Background(), usecase.RefundInput{
		SaleTransactionID:   "sale-purchase-1",
		PurchaseID:          "purchase-1",
		SellerID:            sellerID,
		OriginalGrossAmount: dec("100"),
	})
	require.NoError(t, err)
	requireDecimal(t, "10", receipt.Split.PlatformCommission)
	requireDecimal(t, "90", receipt.Split.SellerEarnings)

	seller := h.account(t, sellerID)
	requireDecimal(t, "0", seller.Balance)
	requireDecimal(t, "90", seller.TotalEarnings)
	platform := h.account(t, platformID)
	requireDecimal(t, "0", platform.Balance)
	requireDecimal(t, "10", platform.TotalEarnings)

	refunds := h.entriesOf(sellerID, domain.TransactionTypeRefund)
	require.Len(t, refunds, 1)
	assert.Equal(t, domain.TransactionStatusCompleted, refunds[0].Status)
	requireDecimal(t, "-90", refunds[0].Amount)
	assert.Equal(t, original.SellerTransactionID, refunds[0].ReversesTransactionID)
	assert.Equal(t, "Purchase refunded", refunds[0].Metadata["refund_reason"])

	reversed, err := h.transactions.GetByID(context.Background(), original.SellerTransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusReversed, reversed.Status)

	assert.Contains(t, h.eventTypes(), domain.EventTypeRefundRecorded)
	h.requireReconciled(t)
}

func TestDistributionUseCase_RecordRefundTwice(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)
	h.distribute(t, "purchase-1", "100")
	h.distribute(t, "purchase-2", "100")

	input := usecase.RefundInput{
		SaleTransactionID:   "sale-purchase-1",
		PurchaseID:          "purchase-1",
		SellerID:            sellerID,
		OriginalGrossAmount: dec("100"),
	}
	_, err := h.distributionUC().RecordRefund(context.Background(), input)
	require.NoError(t, err)

	_, err = h.distributionUC().RecordRefund(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrAlreadyRefunded)
	requireDecimal(t, "90", h.account(t, sellerID).Balance)
	requireDecimal(t, "10", h.account(t, platformID).Balance)
}

func TestDistributionUseCase_RecordRefundInsufficientBalance(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)
	h.distribute(t, "purchase-1", "100")

	w, err := h.withdrawalUC().RequestWithdrawal(context.Background(), usecase.RequestWithdrawalInput{
		PrincipalID: sellerID,
		Amount:      dec("50"),
		Method:      domain.WithdrawalMethodPaypal,
		Details:     domain.PayoutDetails{PaypalEmail: "seller@example.com"},
	})
	require.NoError(t, err)

	input := usecase.RefundInput{
		SaleTransactionID:   "sale-purchase-1",
		PurchaseID:          "purchase-1",
		SellerID:            sellerID,
		OriginalGrossAmount: dec("100"),
	}
	_, err = h.distributionUC().RecordRefund(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrInsufficientBalanceForRefund)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	requireDecimal(t, "40", h.account(t, sellerID).Balance)
	requireDecimal(t, "10", h.account(t, platformID).Balance)

	failed := h.entriesOf(sellerID, domain.TransactionTypeRefund)
	require.Len(t, failed, 1)
	assert.Equal(t, domain.TransactionStatusFailed, failed[0].Status)
	require.Len(t, h.entriesOf(platformID, domain.TransactionTypeRefund), 1)
	assert.Contains(t, h.eventTypes(), domain.EventTypeRefundFailed)

	earnings := h.entriesOf(sellerID, domain.TransactionTypePurchaseEarnings)
	assert.Equal(t, domain.TransactionStatusCompleted, earnings[0].Status)
	h.requireReconciled(t)

	// A failed attempt does not block a retry once funds are back.
	_, err = h.withdrawalUC().ProcessWithdrawal(context.Background(), usecase.ProcessWithdrawalInput{
		WithdrawalID:  w.ID,
		Action:        usecase.ProcessActionReject,
		FailureReason: "refund pending",
		ProcessedBy:   adminID,
	})
	require.NoError(t, err)

	_, err = h.distributionUC().RecordRefund(context.Background(), input)
	require.NoError(t, err)
	requireDecimal(t, "0", h.account(t, sellerID).Balance)
	h.requireReconciled(t)
}

func TestDistributionUseCase_RecordRefundUsesOriginalRate(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)
	h.distribute(t, "purchase-1", "100")

	receipt, err := h.distributionUCWithRate(dec("0.20")).RecordRefund(context.Background(), usecase.RefundInput{
		SaleTransactionID:   "sale-purchase-1",
		PurchaseID:          "purchase-1",
		SellerID:            sellerID,
		OriginalGrossAmount: dec("100"),
	})

	require.NoError(t, err)
	requireDecimal(t, "10", receipt.Split.PlatformCommission)
	requireDecimal(t, "0", h.account(t, platformID).Balance)
	requireDecimal(t, "0", h.account(t, sellerID).Balance)
}

func TestDistributionUseCase_RecordRefundWithoutDistribution(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)
	h.distribute(t, "purchase-1", "100")

	receipt, err := h.distributionUC().RecordRefund(context.Background(), usecase.RefundInput{
		SaleTransactionID:   "sale-purchase-2",
		PurchaseID:          "purchase-2",
		SellerID:            sellerID,
		OriginalGrossAmount: dec("50"),
	})

	require.NoError(t, err)
	requireDecimal(t, "45", receipt.Split.SellerEarnings)
	requireDecimal(t, "45", h.account(t, sellerID).Balance)
	requireDecimal(t, "5", h.account(t, platformID).Balance)

	refunds := h.entriesOf(sellerID, domain.TransactionTypeRefund)
	require.Len(t, refunds, 1)
	assert.Empty(t, refunds[0].ReversesTransactionID)
}

func TestDistributionUseCase_RecordRefundRejectsMismatchedAmount(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)
	h.distribute(t, "purchase-1", "100")

	_, err := h.distributionUC().RecordRefund(context.Background(), usecase.RefundInput{
		SaleTransactionID:   "sale-purchase-1",
		PurchaseID:          "purchase-1",
		SellerID:            sellerID,
		OriginalGrossAmount: dec("80"),
	})

	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "original_gross_amount", domain.FieldOf(err))
	requireDecimal(t, "90", h.account(t, sellerID).Balance)
}

func TestDistributionUseCase_RecordRefundUnknownSeller(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)

	_, err := h.distributionUC().RecordRefund(context.Background(), usecase.RefundInput{
		SaleTransactionID:   "s",
		PurchaseID:          "p",
		SellerID:            "nobody",
		OriginalGrossAmount: dec("10"),
	})

	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
