package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iho/marketledger/internal/adapter/http/dto"
	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

// WithdrawalService defines the behavior needed by WithdrawalHandler.
type WithdrawalService interface {
	RequestWithdrawal(ctx context.Context, input usecase.RequestWithdrawalInput) (*domain.WithdrawalRequest, error)
	ListMyWithdrawals(ctx context.Context, principalID string, status domain.WithdrawalStatus, limit, offset int) ([]*domain.WithdrawalRequest, int, error)
	GetWithdrawal(ctx context.Context, withdrawalID, principalID string) (*domain.WithdrawalRequest, error)
	CancelWithdrawal(ctx context.Context, withdrawalID, principalID string) (*domain.WithdrawalRequest, error)
}

// WithdrawalHandler serves the caller's withdrawal requests.
type WithdrawalHandler struct {
	withdrawalUC WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalUC WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalUC: withdrawalUC}
}

// Request reserves part of the caller's balance for a payout.
func (h *WithdrawalHandler) Request(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	var req dto.WithdrawalRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	withdrawal, err := h.withdrawalUC.RequestWithdrawal(r.Context(), req.ToUseCaseInput(p.ID))
	if err != nil {
		writeDomainError(w, r, "failed to request withdrawal", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.WithdrawalFromDomain(withdrawal))
}

// MyRequests lists the caller's withdrawal requests.
func (h *WithdrawalHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r)
	status := domain.WithdrawalStatus(strings.ToUpper(r.URL.Query().Get("status")))

	withdrawals, total, err := h.withdrawalUC.ListMyWithdrawals(r.Context(), p.ID, status, limit, offset)
	if err != nil {
		writeDomainError(w, r, "failed to list withdrawals", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListWithdrawalsResponse{
		Withdrawals: dto.WithdrawalsFromDomain(withdrawals),
		Pagination:  dto.Pagination{Total: total, Limit: limit, Offset: offset},
	})
}

// Get returns one of the caller's requests.
func (h *WithdrawalHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	withdrawal, err := h.withdrawalUC.GetWithdrawal(r.Context(), chi.URLParam(r, "id"), p.ID)
	if err != nil {
		writeDomainError(w, r, "failed to get withdrawal", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawalFromDomain(withdrawal))
}

// Cancel withdraws a request that is still pending.
func (h *WithdrawalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, ok := caller(w, r)
	if !ok {
		return
	}

	withdrawal, err := h.withdrawalUC.CancelWithdrawal(r.Context(), chi.URLParam(r, "id"), p.ID)
	if err != nil {
		writeDomainError(w, r, "failed to cancel withdrawal", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawalFromDomain(withdrawal))
}
