package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
)

// DistributionUseCase splits purchase proceeds between seller and platform
// and reverses those splits on refund.
type DistributionUseCase struct {
	ledger

	policy domain.CommissionPolicy
	cache  Cache
}

// NewDistributionUseCase creates a new DistributionUseCase. cache may be nil.
func NewDistributionUseCase(deps Deps, policy domain.CommissionPolicy, cache Cache) *DistributionUseCase {
	return &DistributionUseCase{
		ledger: newLedger(deps),
		policy: policy,
		cache:  cache,
	}
}

// DistributeInput represents a completed purchase to be split.
type DistributeInput struct {
	PurchaseID        string
	SaleTransactionID string
	SellerID          string
	GrossAmount       decimal.Decimal
}

// DistributionReceipt identifies the two entries written for a purchase.
type DistributionReceipt struct {
	PurchaseID            string
	SellerTransactionID   string
	PlatformTransactionID string
	Split                 domain.Split
	// Replayed is set when the purchase had already been distributed.
	Replayed bool
}

// RefundInput represents a refunded purchase.
type RefundInput struct {
	SaleTransactionID   string
	PurchaseID          string
	SellerID            string
	OriginalGrossAmount decimal.Decimal
	Reason              string
}

// RefundReceipt identifies the two compensating entries of a refund.
type RefundReceipt struct {
	PurchaseID            string
	SellerTransactionID   string
	PlatformTransactionID string
	Split                 domain.Split
}

// DistributePurchaseEarnings credits the seller and the platform for one
// purchase in a single transaction. Repeated calls for the same purchase
// return the original receipt.
func (uc *DistributionUseCase) DistributePurchaseEarnings(ctx context.Context, input DistributeInput) (*DistributionReceipt, error) {
	start := time.Now()

	receipt, err := uc.distribute(ctx, input)
	uc.observe("distribute", start, err)
	if err != nil {
		return nil, err
	}

	if !receipt.Replayed {
		if uc.Metrics != nil {
			uc.Metrics.DistributionsTotal.Inc()
			uc.Metrics.DistributedAmount.Observe(receipt.Split.Gross.InexactFloat64())
		}
		uc.invalidateEarningsReports(ctx, input.SellerID)
	}

	uc.Logger.Info().
		Str("purchase_id", input.PurchaseID).
		Str("seller_id", input.SellerID).
		Str("gross", receipt.Split.Gross.String()).
		Str("commission", receipt.Split.PlatformCommission.String()).
		Bool("replayed", receipt.Replayed).
		Msg("purchase earnings distributed")

	return receipt, nil
}

func (uc *DistributionUseCase) distribute(ctx context.Context, input DistributeInput) (*DistributionReceipt, error) {
	if err := validateSaleInput(input.PurchaseID, input.SaleTransactionID, input.SellerID, "gross_amount", input.GrossAmount); err != nil {
		return nil, err
	}

	platformID, err := uc.platformPrincipal(ctx, input.SellerID)
	if err != nil {
		return nil, err
	}

	split := uc.policy.Split(input.GrossAmount)

	var receipt *DistributionReceipt
	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		receipt = nil
		now := time.Now().UTC()

		// Replays are answered before the seller account is touched.
		if replay, err := uc.previousDistribution(ctx, tx, input); err != nil || replay != nil {
			receipt = replay
			return err
		}

		if _, err := uc.ensureAccount(ctx, tx, input.SellerID, domain.AccountTypeUser, now); err != nil {
			return err
		}

		platform, seller, err := uc.lockPair(ctx, tx, platformID, input.SellerID)
		if err != nil {
			return err
		}

		// A concurrent call may have committed while we waited for the locks.
		if replay, err := uc.previousDistribution(ctx, tx, input); err != nil || replay != nil {
			receipt = replay
			return err
		}

		platformTxnID := uc.IDGen.Generate()
		sellerTxnID := uc.IDGen.Generate()
		rate := decimal.NewNullDecimal(split.Rate)
		metadata := func(counterpart string) map[string]any {
			return map[string]any{
				"purchase_id":                input.PurchaseID,
				"sale_transaction_id":        input.SaleTransactionID,
				"seller_id":                  input.SellerID,
				"original_amount":            split.Gross.String(),
				"admin_commission":           split.PlatformCommission.String(),
				"seller_earnings":            split.SellerEarnings.String(),
				"commission_rate":            split.Rate.String(),
				"counterpart_transaction_id": counterpart,
			}
		}

		commission := &domain.LedgerTransaction{
			ID:                platformTxnID,
			Type:              domain.TransactionTypeAdminCommission,
			Amount:            split.PlatformCommission,
			Description:       fmt.Sprintf("Platform commission for purchase %s", input.PurchaseID),
			Status:            domain.TransactionStatusCompleted,
			PurchaseID:        input.PurchaseID,
			SaleTransactionID: input.SaleTransactionID,
			CommissionRate:    rate,
			Metadata:          metadata(sellerTxnID),
		}
		if err := uc.post(ctx, tx, platform, commission, true, now); err != nil {
			return err
		}

		earnings := &domain.LedgerTransaction{
			ID:                sellerTxnID,
			Type:              domain.TransactionTypePurchaseEarnings,
			Amount:            split.SellerEarnings,
			Description:       fmt.Sprintf("Earnings from purchase %s", input.PurchaseID),
			Status:            domain.TransactionStatusCompleted,
			PurchaseID:        input.PurchaseID,
			SaleTransactionID: input.SaleTransactionID,
			CommissionRate:    rate,
			Metadata:          metadata(platformTxnID),
		}
		if err := uc.post(ctx, tx, seller, earnings, true, now); err != nil {
			return err
		}

		if err := uc.emit(ctx, tx, domain.AggregateTypePurchase, input.PurchaseID, domain.EventTypeEarningsDistributed, map[string]any{
			"purchase_id":             input.PurchaseID,
			"sale_transaction_id":     input.SaleTransactionID,
			"seller_id":               input.SellerID,
			"gross_amount":            split.Gross.String(),
			"seller_earnings":         split.SellerEarnings.String(),
			"platform_commission":     split.PlatformCommission.String(),
			"seller_transaction_id":   sellerTxnID,
			"platform_transaction_id": platformTxnID,
		}, now); err != nil {
			return err
		}

		receipt = &DistributionReceipt{
			PurchaseID:            input.PurchaseID,
			SellerTransactionID:   sellerTxnID,
			PlatformTransactionID: platformTxnID,
			Split:                 split,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

// RecordRefund reverses the split of a refunded purchase. When either
// account cannot cover its share the refund entries are committed as FAILED
// and domain.ErrInsufficientBalanceForRefund is returned.
func (uc *DistributionUseCase) RecordRefund(ctx context.Context, input RefundInput) (*RefundReceipt, error) {
	start := time.Now()

	receipt, err := uc.refund(ctx, input)
	uc.observe("refund", start, err)

	outcome := "completed"
	if err != nil {
		outcome = "failed"
		uc.Logger.Error().Err(err).
			Str("purchase_id", input.PurchaseID).
			Str("seller_id", input.SellerID).
			Msg("refund not applied")
	} else {
		uc.Logger.Info().
			Str("purchase_id", input.PurchaseID).
			Str("seller_id", input.SellerID).
			Str("gross", receipt.Split.Gross.String()).
			Msg("refund recorded")
	}
	if uc.Metrics != nil {
		uc.Metrics.RefundsTotal.WithLabelValues(outcome).Inc()
	}

	return receipt, err
}

func (uc *DistributionUseCase) refund(ctx context.Context, input RefundInput) (*RefundReceipt, error) {
	if err := validateSaleInput(input.PurchaseID, input.SaleTransactionID, input.SellerID, "original_gross_amount", input.OriginalGrossAmount); err != nil {
		return nil, err
	}

	platformID, err := uc.platformPrincipal(ctx, input.SellerID)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "Purchase refunded"
	}

	var (
		receipt   *RefundReceipt
		refundErr error
	)
	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		receipt, refundErr = nil, nil
		now := time.Now().UTC()

		platform, seller, err := uc.lockPair(ctx, tx, platformID, input.SellerID)
		if err != nil {
			return err
		}

		existing, err := uc.Transactions.ListByPurchase(ctx, tx, input.PurchaseID)
		if err != nil {
			return err
		}

		var originalCommission, originalEarnings *domain.LedgerTransaction
		for _, txn := range existing {
			switch {
			case txn.Type == domain.TransactionTypeRefund && txn.Status == domain.TransactionStatusCompleted:
				return domain.ErrAlreadyRefunded
			case txn.Type == domain.TransactionTypeAdminCommission && txn.Status == domain.TransactionStatusCompleted:
				originalCommission = txn
			case txn.Type == domain.TransactionTypePurchaseEarnings && txn.Status == domain.TransactionStatusCompleted:
				originalEarnings = txn
			}
		}

		policy := uc.policy
		if originalCommission != nil && originalCommission.CommissionRate.Valid {
			policy = domain.CommissionPolicy{Rate: originalCommission.CommissionRate.Decimal}
		}
		split := policy.Split(input.OriginalGrossAmount)

		if originalCommission != nil && originalEarnings != nil {
			distributed := originalCommission.Amount.Add(originalEarnings.Amount)
			if !distributed.Equal(split.Gross) {
				return domain.NewValidationError("original_gross_amount", nil,
					fmt.Sprintf("does not match distributed amount %s", distributed.StringFixed(2)))
			}
			if originalEarnings.PrincipalID != input.SellerID {
				return domain.NewValidationError("seller_id", nil, "purchase was distributed to another seller")
			}
		}

		status := domain.TransactionStatusCompleted
		if platform.ValidateDebit(split.PlatformCommission) != nil || seller.ValidateDebit(split.SellerEarnings) != nil {
			status = domain.TransactionStatusFailed
			refundErr = domain.ErrInsufficientBalanceForRefund
		}

		platformTxnID := uc.IDGen.Generate()
		sellerTxnID := uc.IDGen.Generate()
		metadata := func(counterpart string) map[string]any {
			m := map[string]any{
				"purchase_id":                input.PurchaseID,
				"sale_transaction_id":        input.SaleTransactionID,
				"seller_id":                  input.SellerID,
				"original_amount":            split.Gross.String(),
				"commission_rate":            split.Rate.String(),
				"refund_reason":              reason,
				"counterpart_transaction_id": counterpart,
			}
			if refundErr != nil {
				m["failure_reason"] = refundErr.Error()
			}
			return m
		}

		platformRefund := &domain.LedgerTransaction{
			ID:                platformTxnID,
			Type:              domain.TransactionTypeRefund,
			Amount:            split.PlatformCommission.Neg(),
			Description:       fmt.Sprintf("Commission refund for purchase %s", input.PurchaseID),
			Status:            status,
			PurchaseID:        input.PurchaseID,
			SaleTransactionID: input.SaleTransactionID,
			CommissionRate:    decimal.NewNullDecimal(split.Rate),
			Metadata:          metadata(sellerTxnID),
		}
		if originalCommission != nil {
			platformRefund.ReversesTransactionID = originalCommission.ID
		}
		if err := uc.post(ctx, tx, platform, platformRefund, false, now); err != nil {
			return err
		}

		sellerRefund := &domain.LedgerTransaction{
			ID:                sellerTxnID,
			Type:              domain.TransactionTypeRefund,
			Amount:            split.SellerEarnings.Neg(),
			Description:       fmt.Sprintf("Refund for purchase %s: %s", input.PurchaseID, reason),
			Status:            status,
			PurchaseID:        input.PurchaseID,
			SaleTransactionID: input.SaleTransactionID,
			CommissionRate:    decimal.NewNullDecimal(split.Rate),
			Metadata:          metadata(platformTxnID),
		}
		if originalEarnings != nil {
			sellerRefund.ReversesTransactionID = originalEarnings.ID
		}
		if err := uc.post(ctx, tx, seller, sellerRefund, false, now); err != nil {
			return err
		}

		eventType := domain.EventTypeRefundRecorded
		if refundErr != nil {
			eventType = domain.EventTypeRefundFailed
		} else {
			for _, original := range []*domain.LedgerTransaction{originalCommission, originalEarnings} {
				if original == nil {
					continue
				}
				if err := uc.Transactions.UpdateStatus(ctx, tx, original.ID, domain.TransactionStatusCompleted, domain.TransactionStatusReversed, now); err != nil {
					return err
				}
			}
		}

		if err := uc.emit(ctx, tx, domain.AggregateTypePurchase, input.PurchaseID, eventType, map[string]any{
			"purchase_id":             input.PurchaseID,
			"sale_transaction_id":     input.SaleTransactionID,
			"seller_id":               input.SellerID,
			"gross_amount":            split.Gross.String(),
			"status":                  string(status),
			"seller_transaction_id":   sellerTxnID,
			"platform_transaction_id": platformTxnID,
		}, now); err != nil {
			return err
		}

		receipt = &RefundReceipt{
			PurchaseID:            input.PurchaseID,
			SellerTransactionID:   sellerTxnID,
			PlatformTransactionID: platformTxnID,
			Split:                 split,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refundErr != nil {
		return nil, refundErr
	}

	return receipt, nil
}

// platformPrincipal resolves the platform account and checks that the
// seller is a distinct, resolvable principal.
func (uc *DistributionUseCase) platformPrincipal(ctx context.Context, sellerID string) (string, error) {
	platformID := ""
	if uc.Resolver != nil {
		platformID = uc.Resolver.PlatformPrincipalID()
	}
	if platformID == "" {
		uc.Logger.Error().Msg("platform principal is not configured; sale postings are blocked")
		return "", domain.ErrPlatformAccountMissing
	}

	if sellerID == platformID {
		return "", domain.NewValidationError("seller_id", nil, "seller cannot be the platform account")
	}

	if _, err := uc.Resolver.Resolve(ctx, sellerID); err != nil {
		return "", fmt.Errorf("resolve seller %s: %w", sellerID, err)
	}

	return platformID, nil
}

// lockPair locks the platform and seller rows in principal order.
func (uc *DistributionUseCase) lockPair(ctx context.Context, tx Transaction, platformID, sellerID string) (*domain.Account, *domain.Account, error) {
	ids := []string{platformID, sellerID}
	sort.Strings(ids)

	accounts, err := uc.Accounts.GetByPrincipalsForUpdate(ctx, tx, ids)
	if err != nil {
		return nil, nil, err
	}

	byPrincipal := accountsByPrincipal(accounts)
	platform, seller := byPrincipal[platformID], byPrincipal[sellerID]
	if platform == nil {
		uc.Logger.Error().Str("platform_id", platformID).Msg("platform account row is missing")
		return nil, nil, domain.ErrPlatformAccountMissing
	}
	if seller == nil {
		return nil, nil, fmt.Errorf("%w: seller %s", domain.ErrAccountNotFound, sellerID)
	}

	return platform, seller, nil
}

func (uc *DistributionUseCase) invalidateEarningsReports(ctx context.Context, principalID string) {
	if uc.cache == nil {
		return
	}

	keys := make([]string, 0, len(reportPeriods))
	for period := range reportPeriods {
		keys = append(keys, earningsReportKey(principalID, period))
	}

	if err := uc.cache.Delete(ctx, keys...); err != nil {
		uc.Logger.Warn().Err(err).Str("principal_id", principalID).Msg("failed to invalidate earnings report cache")
	}
}

// previousDistribution returns the stored receipt for input.PurchaseID, or
// nil when the purchase has not been distributed. A stored distribution
// for another seller, sale or amount is ErrPurchaseConflict.
func (uc *DistributionUseCase) previousDistribution(ctx context.Context, tx Transaction, input DistributeInput) (*DistributionReceipt, error) {
	existing, err := uc.Transactions.ListByPurchase(ctx, tx, input.PurchaseID)
	if err != nil {
		return nil, err
	}
	return replayDistribution(input, existing)
}

func replayDistribution(input DistributeInput, existing []*domain.LedgerTransaction) (*DistributionReceipt, error) {
	receipt := &DistributionReceipt{PurchaseID: input.PurchaseID, Replayed: true}
	var earnings *domain.LedgerTransaction
	found := false

	for _, txn := range existing {
		switch txn.Type {
		case domain.TransactionTypeAdminCommission:
			receipt.PlatformTransactionID = txn.ID
			receipt.Split.PlatformCommission = txn.Amount
			if txn.CommissionRate.Valid {
				receipt.Split.Rate = txn.CommissionRate.Decimal
			}
			found = true
		case domain.TransactionTypePurchaseEarnings:
			receipt.SellerTransactionID = txn.ID
			receipt.Split.SellerEarnings = txn.Amount
			earnings = txn
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	receipt.Split.Gross = receipt.Split.PlatformCommission.Add(receipt.Split.SellerEarnings)

	switch {
	case !receipt.Split.Gross.Equal(input.GrossAmount):
		return nil, fmt.Errorf("%w: gross amount %s, stored %s", domain.ErrPurchaseConflict,
			input.GrossAmount.StringFixed(2), receipt.Split.Gross.StringFixed(2))
	case earnings != nil && earnings.PrincipalID != input.SellerID:
		return nil, fmt.Errorf("%w: seller %s", domain.ErrPurchaseConflict, input.SellerID)
	case earnings != nil && earnings.SaleTransactionID != input.SaleTransactionID:
		return nil, fmt.Errorf("%w: sale transaction %s", domain.ErrPurchaseConflict, input.SaleTransactionID)
	}

	return receipt, nil
}

func validateSaleInput(purchaseID, saleTransactionID, sellerID, amountField string, amount decimal.Decimal) error {
	if strings.TrimSpace(purchaseID) == "" {
		return domain.NewValidationError("purchase_id", nil, "purchase ID is required")
	}
	if strings.TrimSpace(saleTransactionID) == "" {
		return domain.NewValidationError("sale_transaction_id", nil, "sale transaction ID is required")
	}
	if err := domain.ValidatePrincipalID(sellerID); err != nil {
		return domain.NewValidationError("seller_id", domain.ErrInvalidPrincipalID, "seller ID is invalid")
	}
	return domain.ValidateAmount(amountField, amount)
}
