package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/marketledger/internal/adapter/http/dto"
	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

// AdminAccountService is the account administration used by AdminHandler.
type AdminAccountService interface {
	AdminOverview(ctx context.Context) (*usecase.AdminOverview, error)
	GetAccount(ctx context.Context, principalID string) (*domain.Account, error)
	SuspendAccount(ctx context.Context, principalID, reason, actor string) (*domain.Account, error)
	ReactivateAccount(ctx context.Context, principalID, actor string) (*domain.Account, error)
}

// AdminWithdrawalService is the withdrawal processing used by AdminHandler.
type AdminWithdrawalService interface {
	ListWithdrawals(ctx context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, int, error)
	GetWithdrawal(ctx context.Context, withdrawalID, principalID string) (*domain.WithdrawalRequest, error)
	ProcessWithdrawal(ctx context.Context, input usecase.ProcessWithdrawalInput) (*domain.WithdrawalRequest, error)
	MarkProcessing(ctx context.Context, withdrawalID, processedBy string) (*domain.WithdrawalRequest, error)
	CompleteWithdrawal(ctx context.Context, input usecase.CompleteWithdrawalInput) (*domain.WithdrawalRequest, error)
}

// AdjustmentService applies manual balance corrections.
type AdjustmentService interface {
	AdjustBalance(ctx context.Context, input usecase.AdjustBalanceInput) (*domain.LedgerTransaction, error)
}

// ReconciliationService compares stored balances with the log.
type ReconciliationService interface {
	ReconcileAccount(ctx context.Context, principalID string) (*usecase.ReconciliationResult, error)
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// AuditLogReader reads the audit trail.
type AuditLogReader interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// AdminHandler serves the administrative API. Every mutating call is
// attributed to the authenticated administrator.
type AdminHandler struct {
	accounts       AdminAccountService
	withdrawals    AdminWithdrawalService
	adjustments    AdjustmentService
	reconciliation ReconciliationService
	audit          AuditLogReader
}

// NewAdminHandler creates a new AdminHandler. reconciliation and audit may be nil.
func NewAdminHandler(
	accounts AdminAccountService,
	withdrawals AdminWithdrawalService,
	adjustments AdjustmentService,
	reconciliation ReconciliationService,
	audit AuditLogReader,
) *AdminHandler {
	return &AdminHandler{
		accounts:       accounts,
		withdrawals:    withdrawals,
		adjustments:    adjustments,
		reconciliation: reconciliation,
		audit:          audit,
	}
}

// Overview returns platform totals and the pending queue.
func (h *AdminHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.accounts.AdminOverview(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to build overview", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AdminOverviewFromUseCase(overview))
}

// GetAccount returns the account of a principal.
func (h *AdminHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "principalID"))
	if err != nil {
		writeDomainError(w, r, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// SuspendAccount blocks withdrawals for a principal.
func (h *AdminHandler) SuspendAccount(w http.ResponseWriter, r *http.Request) {
	admin, ok := caller(w, r)
	if !ok {
		return
	}

	var req dto.SuspendAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	account, err := h.accounts.SuspendAccount(r.Context(), chi.URLParam(r, "principalID"), req.Reason, admin.ID)
	if err != nil {
		writeDomainError(w, r, "failed to suspend account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// ReactivateAccount lifts a suspension.
func (h *AdminHandler) ReactivateAccount(w http.ResponseWriter, r *http.Request) {
	admin, ok := caller(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.ReactivateAccount(r.Context(), chi.URLParam(r, "principalID"), admin.ID)
	if err != nil {
		writeDomainError(w, r, "failed to reactivate account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// ListWithdrawals lists requests across all principals.
func (h *AdminHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	q := r.URL.Query()
	filter := domain.WithdrawalFilter{
		PrincipalID: q.Get("principal_id"),
		Status:      domain.WithdrawalStatus(strings.ToUpper(q.Get("status"))),
		Limit:       limit,
		Offset:      offset,
	}

	withdrawals, total, err := h.withdrawals.ListWithdrawals(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, "failed to list withdrawals", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListWithdrawalsResponse{
		Withdrawals: dto.WithdrawalsFromDomain(withdrawals),
		Pagination:  dto.Pagination{Total: total, Limit: limit, Offset: offset},
	})
}

// GetWithdrawal returns any request.
func (h *AdminHandler) GetWithdrawal(w http.ResponseWriter, r *http.Request) {
	withdrawal, err := h.withdrawals.GetWithdrawal(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeDomainError(w, r, "failed to get withdrawal", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawalFromDomain(withdrawal))
}

// ProcessWithdrawal approves or rejects a pending request.
func (h *AdminHandler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin, ok := caller(w, r)
	if !ok {
		return
	}

	var req dto.ProcessWithdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"), admin.ID)
	if err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	withdrawal, err := h.withdrawals.ProcessWithdrawal(r.Context(), input)
	if err != nil {
		writeDomainError(w, r, "failed to process withdrawal", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawalFromDomain(withdrawal))
}

// MarkProcessing records that the payout is in flight.
func (h *AdminHandler) MarkProcessing(w http.ResponseWriter, r *http.Request) {
	admin, ok := caller(w, r)
	if !ok {
		return
	}

	withdrawal, err := h.withdrawals.MarkProcessing(r.Context(), chi.URLParam(r, "id"), admin.ID)
	if err != nil {
		writeDomainError(w, r, "failed to mark withdrawal processing", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawalFromDomain(withdrawal))
}

// CompleteWithdrawal confirms the payout.
func (h *AdminHandler) CompleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	admin, ok := caller(w, r)
	if !ok {
		return
	}

	var req dto.CompleteWithdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	withdrawal, err := h.withdrawals.CompleteWithdrawal(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id"), admin.ID))
	if err != nil {
		writeDomainError(w, r, "failed to complete withdrawal", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WithdrawalFromDomain(withdrawal))
}

// AdjustBalance applies a signed correction to a principal's balance.
func (h *AdminHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	admin, ok := caller(w, r)
	if !ok {
		return
	}

	var req dto.AdjustBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	txn, err := h.adjustments.AdjustBalance(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "principalID"), admin.ID))
	if err != nil {
		writeDomainError(w, r, "failed to adjust balance", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(txn))
}

// ReconciliationReport reconciles every account.
func (h *AdminHandler) ReconciliationReport(w http.ResponseWriter, r *http.Request) {
	if h.reconciliation == nil {
		writeError(w, http.StatusNotImplemented, "reconciliation is not enabled", "")
		return
	}

	report, err := h.reconciliation.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to reconcile ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationReportFromUseCase(report))
}

// ReconcileAccount reconciles one principal's account.
func (h *AdminHandler) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	if h.reconciliation == nil {
		writeError(w, http.StatusNotImplemented, "reconciliation is not enabled", "")
		return
	}

	result, err := h.reconciliation.ReconcileAccount(r.Context(), chi.URLParam(r, "principalID"))
	if err != nil {
		writeDomainError(w, r, "failed to reconcile account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromUseCase(result))
}

// AuditLogs lists the audit trail, newest first.
func (h *AdminHandler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusNotImplemented, "audit log is not enabled", "")
		return
	}

	limit, offset := pageParams(r)
	q := r.URL.Query()
	filter := domain.AuditFilter{
		UserID:       q.Get("user_id"),
		Action:       q.Get("action"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
		Limit:        limit,
		Offset:       offset,
	}

	var err error
	if filter.StartDate, err = parseTimeQuery(r, "start_date"); err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}
	if filter.EndDate, err = parseTimeQuery(r, "end_date"); err != nil {
		writeDomainError(w, r, "invalid query", err)
		return
	}

	logs, err := h.audit.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, "failed to list audit logs", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditLogsFromDomain(logs))
}

// parseTimeQuery parses an optional RFC 3339 query parameter.
func parseTimeQuery(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, domain.NewValidationError(key, nil, "must be an RFC 3339 timestamp")
	}
	return &ts, nil
}
