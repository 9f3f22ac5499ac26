package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
	"github.com/iho/marketledger/internal/usecase/mocks"
)

var errSerialization = errors.New("could not serialize access")

// retryOnce re-runs the operation a single time after a failure.
func retryOnce(t *testing.T) *mocks.MockRetrier {
	retrier := mocks.NewMockRetrier(gomock.NewController(t))
	retrier.EXPECT().Retry(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, op func() error) error {
			if err := op(); err != nil {
				return op()
			}
			return nil
		},
	).AnyTimes()
	return retrier
}

func TestLedger_RetriedDistributionAppliesOnce(t *testing.T) {
	h := newHarness(t)
	h.ensurePlatform(t)
	h.retrier = retryOnce(t)
	h.txManager.FailCommits(1, errSerialization)

	receipt := h.distribute(t, "purchase-1", "100")

	assert.False(t, receipt.Replayed)
	requireDecimal(t, "90", h.account(t, sellerID).Balance)
	requireDecimal(t, "10", h.account(t, platformID).Balance)
	assert.Len(t, h.entriesOf(sellerID, domain.TransactionTypePurchaseEarnings), 1)
	assert.Len(t, h.entriesOf(platformID, domain.TransactionTypeAdminCommission), 1)

	distributed := 0
	for _, e := range h.eventTypes() {
		if e == domain.EventTypeEarningsDistributed {
			distributed++
		}
	}
	assert.Equal(t, 1, distributed)
	h.requireReconciled(t)
}

func TestLedger_RetriedWithdrawalReservesOnce(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "100")
	h.retrier = retryOnce(t)
	h.txManager.FailCommits(1, errSerialization)

	w := requestWithdrawal(t, h, "40")

	requireDecimal(t, "60", h.account(t, sellerID).Balance)
	require.Len(t, h.entriesOf(sellerID, domain.TransactionTypeWithdrawal), 1)
	stored, err := h.withdrawals.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, h.entriesOf(sellerID, domain.TransactionTypeWithdrawal)[0].ID, stored.TransactionID)
	h.requireReconciled(t)
}

func TestLedger_CommitFailureSurfacesWithoutRetrier(t *testing.T) {
	h := newHarness(t)
	h.fund(t, sellerID, "100")
	h.txManager.FailCommits(1, errSerialization)

	_, err := h.adjustmentUC().AdjustBalance(context.Background(), usecase.AdjustBalanceInput{
		PrincipalID: sellerID,
		Amount:      dec("-30"),
		Reason:      "clawback",
		AdjustedBy:  adminID,
	})

	require.ErrorIs(t, err, errSerialization)
	requireDecimal(t, "100", h.account(t, sellerID).Balance)
	assert.Len(t, h.entriesOf(sellerID, domain.TransactionTypeAdjustment), 1)
}

// TestLedger_RandomOperationsKeepInvariants drives a seeded mix of every
// balance-changing operation and checks after each step that no balance is
// negative and every balance equals the sum of its log entries.
func TestLedger_RandomOperationsKeepInvariants(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 2024} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			h := newHarness(t)
			h.ensurePlatform(t)
			rng := rand.New(rand.NewSource(seed))
			ctx := context.Background()

			amount := func(maxCents int) decimal.Decimal {
				return decimal.New(int64(rng.Intn(maxCents)+1), -2)
			}

			var purchases []usecase.DistributeInput
			var pending []string

			for step := 0; step < 150; step++ {
				var err error

				switch rng.Intn(5) {
				case 0:
					in := usecase.DistributeInput{
						PurchaseID:        fmt.Sprintf("purchase-%d", step),
						SaleTransactionID: fmt.Sprintf("sale-%d", step),
						SellerID:          sellerID,
						GrossAmount:       amount(50000),
					}
					_, err = h.distributionUC().DistributePurchaseEarnings(ctx, in)
					if err == nil {
						purchases = append(purchases, in)
					}
				case 1:
					var w *domain.WithdrawalRequest
					w, err = h.withdrawalUC().RequestWithdrawal(ctx, usecase.RequestWithdrawalInput{
						PrincipalID: sellerID,
						Amount:      amount(30000),
						Method:      domain.WithdrawalMethodBankTransfer,
						Details:     bankDetails(),
					})
					if err == nil {
						pending = append(pending, w.ID)
					}
				case 2:
					if len(pending) == 0 {
						continue
					}
					i := rng.Intn(len(pending))
					id := pending[i]
					pending = append(pending[:i], pending[i+1:]...)

					switch rng.Intn(3) {
					case 0:
						_, err = h.withdrawalUC().ProcessWithdrawal(ctx, usecase.ProcessWithdrawalInput{
							WithdrawalID:  id,
							Action:        usecase.ProcessActionReject,
							FailureReason: "details rejected by bank",
							ProcessedBy:   adminID,
						})
					case 1:
						_, err = h.withdrawalUC().CancelWithdrawal(ctx, id, sellerID)
					default:
						approve(t, h, id)
						_, err = h.withdrawalUC().CompleteWithdrawal(ctx, usecase.CompleteWithdrawalInput{
							WithdrawalID: id,
							ProcessedBy:  adminID,
						})
					}
				case 3:
					if len(purchases) == 0 {
						continue
					}
					p := purchases[rng.Intn(len(purchases))]
					_, err = h.distributionUC().RecordRefund(ctx, usecase.RefundInput{
						SaleTransactionID:   p.SaleTransactionID,
						PurchaseID:          p.PurchaseID,
						SellerID:            p.SellerID,
						OriginalGrossAmount: p.GrossAmount,
					})
				case 4:
					delta := amount(20000)
					if rng.Intn(2) == 0 {
						delta = delta.Neg()
					}
					_, err = h.adjustmentUC().AdjustBalance(ctx, usecase.AdjustBalanceInput{
						PrincipalID: sellerID,
						Amount:      delta,
						Reason:      "random correction",
						AdjustedBy:  adminID,
					})
				}

				if err != nil {
					require.Truef(t,
						errors.Is(err, domain.ErrInsufficientBalance) ||
							errors.Is(err, domain.ErrAlreadyRefunded) ||
							errors.Is(err, domain.ErrValidation),
						"step %d: unexpected error %v", step, err)
				}

				accounts, err := h.accounts.List(ctx, 0, 0)
				require.NoError(t, err)
				for _, a := range accounts {
					require.Falsef(t, a.Balance.IsNegative(), "step %d: %s went negative: %s", step, a.PrincipalID, a.Balance)
				}
				h.requireReconciled(t)
			}
		})
	}
}
