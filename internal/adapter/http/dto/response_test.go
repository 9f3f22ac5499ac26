package dto

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

func TestTransactionFromDomain(t *testing.T) {
	txn := &domain.LedgerTransaction{
		ID:             "txn-1",
		Type:           domain.TransactionTypeAdminCommission,
		Amount:         decimal.NewFromInt(10),
		Status:         domain.TransactionStatusCompleted,
		PurchaseID:     "purchase-1",
		CommissionRate: decimal.NewNullDecimal(decimal.RequireFromString("0.1")),
		CreatedAt:      time.Now(),
	}

	resp := TransactionFromDomain(txn)

	if resp.CommissionRate == nil || *resp.CommissionRate != "0.1" {
		t.Fatalf("expected commission rate 0.1, got %v", resp.CommissionRate)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{`"type":"ADMIN_COMMISSION"`, `"purchase_id":"purchase-1"`, `"amount":"10"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("expected %s in %s", key, data)
		}
	}
	if strings.Contains(string(data), "withdrawal_id") {
		t.Fatalf("expected empty references to be omitted, got %s", data)
	}
}

func TestTransactionFromDomain_NoCommissionRate(t *testing.T) {
	resp := TransactionFromDomain(&domain.LedgerTransaction{ID: "txn-2", Type: domain.TransactionTypeWithdrawal})

	if resp.CommissionRate != nil {
		t.Fatalf("expected no commission rate, got %v", *resp.CommissionRate)
	}
}

func TestDistributionFromUseCase(t *testing.T) {
	policy, err := domain.NewCommissionPolicy(domain.DefaultCommissionRate)
	if err != nil {
		t.Fatalf("policy: %v", err)
	}

	resp := DistributionFromUseCase(&usecase.DistributionReceipt{
		PurchaseID:            "purchase-1",
		SellerTransactionID:   "txn-s",
		PlatformTransactionID: "txn-p",
		Split:                 policy.Split(decimal.RequireFromString("99.99")),
		Replayed:              true,
	})

	if !resp.Split.PlatformCommission.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("expected commission 10, got %s", resp.Split.PlatformCommission)
	}
	if !resp.Split.SellerEarnings.Equal(decimal.RequireFromString("89.99")) {
		t.Fatalf("expected seller earnings 89.99, got %s", resp.Split.SellerEarnings)
	}
	if !resp.Replayed {
		t.Fatal("expected replay flag to carry over")
	}
}

func TestAdminOverviewFromUseCase(t *testing.T) {
	resp := AdminOverviewFromUseCase(&usecase.AdminOverview{
		Platform: &usecase.AccountStats{PrincipalID: "platform", Balance: decimal.NewFromInt(10)},
		PendingWithdrawals: []*domain.WithdrawalRequest{
			{ID: "wd-1", Status: domain.WithdrawalStatusPending, Method: domain.WithdrawalMethodPaypal},
		},
		PendingCount: 1,
	})

	if resp.Platform.PrincipalID != "platform" || resp.PendingCount != 1 {
		t.Fatalf("unexpected overview %+v", resp)
	}
	if len(resp.PendingWithdrawals) != 1 || resp.PendingWithdrawals[0].WithdrawalMethod != "PAYPAL" {
		t.Fatalf("unexpected pending withdrawals %+v", resp.PendingWithdrawals)
	}
	if resp.RecentTransactions == nil {
		t.Fatal("expected empty slice rather than nil")
	}
}
