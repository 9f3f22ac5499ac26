package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/iho/marketledger/internal/adapter/http/dto"
	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

// AccountService defines the behavior needed by BillingHandler.
type AccountService interface {
	GetOrCreateAccount(ctx context.Context, principalID string) (*domain.Account, error)
	GetStats(ctx context.Context, principalID string) (*usecase.AccountStats, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.LedgerTransaction, int, error)
	EarningsReport(ctx context.Context, principalID, period string) (*usecase.EarningsReport, error)
	CommissionConfig() domain.CommissionConfig
}

// BillingHandler serves the caller's own billing data.
type BillingHandler struct {
	accountUC AccountService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(accountUC AccountService) *BillingHandler {
	return &BillingHandler{accountUC: accountUC}
}

// MyAccount returns the caller's account, creating it on first access.
func (h *BillingHandler) MyAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	account, err := h.accountUC.GetOrCreateAccount(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, r, "failed to get billing account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// MyStats returns the caller's balance summary.
func (h *BillingHandler) MyStats(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	stats, err := h.accountUC.GetStats(r.Context(), p.ID)
	if err != nil {
		writeDomainError(w, r, "failed to get billing stats", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StatsFromUseCase(stats))
}

// MyTransactions pages through the caller's ledger entries.
func (h *BillingHandler) MyTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r)
	q := r.URL.Query()
	filter := domain.TransactionFilter{
		PrincipalID: p.ID,
		Type:        domain.TransactionType(strings.ToUpper(q.Get("type"))),
		Status:      domain.TransactionStatus(strings.ToUpper(q.Get("status"))),
		Limit:       limit,
		Offset:      offset,
	}

	txns, total, err := h.accountUC.ListTransactions(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListTransactionsResponse{
		Transactions: dto.TransactionsFromDomain(txns),
		Pagination:   dto.Pagination{Total: total, Limit: limit, Offset: offset},
	})
}

// EarningsReport returns the caller's daily earnings for ?period.
func (h *BillingHandler) EarningsReport(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	report, err := h.accountUC.EarningsReport(r.Context(), p.ID, r.URL.Query().Get("period"))
	if err != nil {
		writeDomainError(w, r, "failed to build earnings report", err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// CommissionConfig returns the current revenue split. It is public.
func (h *BillingHandler) CommissionConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.CommissionConfigFromDomain(h.accountUC.CommissionConfig()))
}
