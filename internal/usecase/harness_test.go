package usecase_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/metrics"
	"github.com/iho/marketledger/internal/usecase"
	"github.com/iho/marketledger/internal/usecase/mocks"
)

const (
	platformID = "platform"
	sellerID   = "seller-1"
	adminID    = "admin-1"
)

type harness struct {
	store        *mocks.Store
	accounts     *mocks.MockAccountRepository
	transactions *mocks.MockTransactionRepository
	withdrawals  *mocks.MockWithdrawalRepository
	ledgerRepo   *mocks.MockLedgerRepository
	outbox       *mocks.MockOutboxRepository
	audit        *mocks.MockAuditRepository
	txManager    *mocks.MockTransactionManager
	cache        *mocks.MockCache
	idGen        *mocks.MockIDGenerator
	resolver     *mocks.MockPrincipalResolver
	metrics      *metrics.Metrics
	retrier      usecase.Retrier

	// platform is returned by the resolver; tests may clear it.
	platform string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := mocks.NewStore()
	ctrl := gomock.NewController(t)

	h := &harness{
		store:        store,
		accounts:     mocks.NewMockAccountRepository(store),
		transactions: mocks.NewMockTransactionRepository(store),
		withdrawals:  mocks.NewMockWithdrawalRepository(store),
		ledgerRepo:   mocks.NewMockLedgerRepository(store),
		outbox:       mocks.NewMockOutboxRepository(store),
		audit:        mocks.NewMockAuditRepository(store),
		txManager:    mocks.NewMockTransactionManager(store),
		cache:        mocks.NewMockCache(),
		idGen:        mocks.NewMockIDGenerator(),
		resolver:     mocks.NewMockPrincipalResolver(ctrl),
		metrics:      metrics.NewWithRegisterer(prometheus.NewRegistry()),
		platform:     platformID,
	}

	h.resolver.EXPECT().PlatformPrincipalID().DoAndReturn(func() string { return h.platform }).AnyTimes()
	h.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, id string) (domain.AccountType, error) {
			switch id {
			case h.platform:
				return domain.AccountTypePlatform, nil
			case "ghost":
				return "", domain.ErrInvalidPrincipal
			}
			return domain.AccountTypeUser, nil
		},
	).AnyTimes()

	return h
}

func (h *harness) deps() usecase.Deps {
	return usecase.Deps{
		TxManager:    h.txManager,
		Retrier:      h.retrier,
		Accounts:     h.accounts,
		Transactions: h.transactions,
		Withdrawals:  h.withdrawals,
		Outbox:       h.outbox,
		Audit:        h.audit,
		IDGen:        h.idGen,
		Resolver:     h.resolver,
		Metrics:      h.metrics,
		Logger:       zerolog.Nop(),
		Currency:     "USD",
	}
}

func (h *harness) accountUC() *usecase.AccountUseCase {
	return usecase.NewAccountUseCase(h.deps(), domain.CommissionPolicy{Rate: domain.DefaultCommissionRate}, h.cache, 0)
}

func (h *harness) distributionUC() *usecase.DistributionUseCase {
	return h.distributionUCWithRate(domain.DefaultCommissionRate)
}

func (h *harness) distributionUCWithRate(rate decimal.Decimal) *usecase.DistributionUseCase {
	return usecase.NewDistributionUseCase(h.deps(), domain.CommissionPolicy{Rate: rate}, h.cache)
}

func (h *harness) withdrawalUC() *usecase.WithdrawalUseCase {
	return usecase.NewWithdrawalUseCase(h.deps())
}

func (h *harness) adjustmentUC() *usecase.AdjustmentUseCase {
	return usecase.NewAdjustmentUseCase(h.deps())
}

func (h *harness) reconciliationUC() *usecase.ReconciliationUseCase {
	return usecase.NewReconciliationUseCase(h.accounts, h.transactions, h.ledgerRepo, h.metrics, zerolog.Nop())
}

func (h *harness) ensurePlatform(t *testing.T) {
	t.Helper()
	_, err := h.accountUC().EnsurePlatformAccount(context.Background())
	require.NoError(t, err)
}

func (h *harness) account(t *testing.T, principalID string) *domain.Account {
	t.Helper()
	account, err := h.accounts.GetByPrincipal(context.Background(), principalID)
	require.NoError(t, err)
	return account
}

// distribute credits sellerID through a purchase of gross.
func (h *harness) distribute(t *testing.T, purchaseID, gross string) *usecase.DistributionReceipt {
	t.Helper()
	receipt, err := h.distributionUC().DistributePurchaseEarnings(context.Background(), usecase.DistributeInput{
		PurchaseID:        purchaseID,
		SaleTransactionID: "sale-" + purchaseID,
		SellerID:          sellerID,
		GrossAmount:       dec(gross),
	})
	require.NoError(t, err)
	return receipt
}

// fund gives principalID amount through an administrative adjustment.
func (h *harness) fund(t *testing.T, principalID, amount string) {
	t.Helper()
	_, err := h.adjustmentUC().AdjustBalance(context.Background(), usecase.AdjustBalanceInput{
		PrincipalID: principalID,
		Amount:      dec(amount),
		Reason:      "initial funding",
		AdjustedBy:  adminID,
	})
	require.NoError(t, err)
}

// requireReconciled checks every account balance against its log entries.
func (h *harness) requireReconciled(t *testing.T) {
	t.Helper()
	report, err := h.reconciliationUC().GenerateReconciliationReport(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Discrepancies)
	require.True(t, report.LedgerConsistent, report.LedgerError)
}

func (h *harness) entriesOf(principalID string, txnType domain.TransactionType) []*domain.LedgerTransaction {
	var out []*domain.LedgerTransaction
	for _, txn := range h.transactions.All() {
		if txn.PrincipalID == principalID && txn.Type == txnType {
			out = append(out, txn)
		}
	}
	return out
}

func (h *harness) eventTypes() []string {
	var out []string
	for _, e := range h.outbox.Events() {
		out = append(out, e.EventType)
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}
