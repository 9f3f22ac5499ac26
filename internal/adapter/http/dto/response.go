package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

// AccountResponse represents a billing account in API responses.
type AccountResponse struct {
	ID                      string          `json:"id"`
	PrincipalID             string          `json:"principal_id"`
	AccountType             string          `json:"account_type"`
	Currency                string          `json:"currency"`
	Balance                 decimal.Decimal `json:"balance"`
	TotalEarnings           decimal.Decimal `json:"total_earnings"`
	TotalWithdrawals        decimal.Decimal `json:"total_withdrawals"`
	MinimumWithdrawalAmount decimal.Decimal `json:"minimum_withdrawal_amount"`
	IsActive                bool            `json:"is_active"`
	SuspendedReason         string          `json:"suspended_reason,omitempty"`
	SuspendedAt             *time.Time      `json:"suspended_at,omitempty"`
	LastWithdrawalAt        *time.Time      `json:"last_withdrawal_at,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:                      a.ID,
		PrincipalID:             a.PrincipalID,
		AccountType:             string(a.AccountType),
		Currency:                a.Currency,
		Balance:                 a.Balance,
		TotalEarnings:           a.TotalEarnings,
		TotalWithdrawals:        a.TotalWithdrawals,
		MinimumWithdrawalAmount: a.MinimumWithdrawalAmount,
		IsActive:                a.IsActive,
		SuspendedReason:         a.SuspendedReason,
		SuspendedAt:             a.SuspendedAt,
		LastWithdrawalAt:        a.LastWithdrawalAt,
		CreatedAt:               a.CreatedAt,
		UpdatedAt:               a.UpdatedAt,
	}
}

// TransactionResponse represents a ledger entry in API responses.
type TransactionResponse struct {
	ID                    string          `json:"id"`
	AccountID             string          `json:"account_id"`
	PrincipalID           string          `json:"principal_id"`
	Type                  string          `json:"type"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Description           string          `json:"description"`
	Status                string          `json:"status"`
	PurchaseID            string          `json:"purchase_id,omitempty"`
	SaleTransactionID     string          `json:"sale_transaction_id,omitempty"`
	WithdrawalID          string          `json:"withdrawal_id,omitempty"`
	ReversesTransactionID string          `json:"reverses_transaction_id,omitempty"`
	BalanceBefore         decimal.Decimal `json:"balance_before"`
	BalanceAfter          decimal.Decimal `json:"balance_after"`
	CommissionRate        *string         `json:"commission_rate,omitempty"`
	Metadata              map[string]any  `json:"metadata,omitempty"`
	ProcessedBy           string          `json:"processed_by,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// TransactionFromDomain converts a domain entry to response.
func TransactionFromDomain(t *domain.LedgerTransaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:                    t.ID,
		AccountID:             t.AccountID,
		PrincipalID:           t.PrincipalID,
		Type:                  string(t.Type),
		Amount:                t.Amount,
		Currency:              t.Currency,
		Description:           t.Description,
		Status:                string(t.Status),
		PurchaseID:            t.PurchaseID,
		SaleTransactionID:     t.SaleTransactionID,
		WithdrawalID:          t.WithdrawalID,
		ReversesTransactionID: t.ReversesTransactionID,
		BalanceBefore:         t.BalanceBefore,
		BalanceAfter:          t.BalanceAfter,
		Metadata:              t.Metadata,
		ProcessedBy:           t.ProcessedBy,
		CreatedAt:             t.CreatedAt,
	}
	if t.CommissionRate.Valid {
		rate := t.CommissionRate.Decimal.String()
		resp.CommissionRate = &rate
	}
	return resp
}

// TransactionsFromDomain converts domain entries to responses.
func TransactionsFromDomain(txns []*domain.LedgerTransaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// WithdrawalResponse represents a withdrawal request in API responses.
type WithdrawalResponse struct {
	ID                   string               `json:"id"`
	AccountID            string               `json:"account_id"`
	PrincipalID          string               `json:"principal_id"`
	Amount               decimal.Decimal      `json:"amount"`
	Currency             string               `json:"currency"`
	Status               string               `json:"status"`
	WithdrawalMethod     string               `json:"withdrawal_method"`
	PayoutDetails        domain.PayoutDetails `json:"payout_details"`
	TransactionID        string               `json:"transaction_id"`
	TrackingNumber       string               `json:"tracking_number,omitempty"`
	TransactionHash      string               `json:"transaction_hash,omitempty"`
	EstimatedArrivalDate *time.Time           `json:"estimated_arrival_date,omitempty"`
	FailureReason        string               `json:"failure_reason,omitempty"`
	Notes                string               `json:"notes,omitempty"`
	ProcessedBy          string               `json:"processed_by,omitempty"`
	ProcessedAt          *time.Time           `json:"processed_at,omitempty"`
	CompletedAt          *time.Time           `json:"completed_at,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// WithdrawalFromDomain converts a domain withdrawal to response.
func WithdrawalFromDomain(w *domain.WithdrawalRequest) *WithdrawalResponse {
	return &WithdrawalResponse{
		ID:                   w.ID,
		AccountID:            w.AccountID,
		PrincipalID:          w.PrincipalID,
		Amount:               w.Amount,
		Currency:             w.Currency,
		Status:               string(w.Status),
		WithdrawalMethod:     string(w.Method),
		PayoutDetails:        w.Details,
		TransactionID:        w.TransactionID,
		TrackingNumber:       w.TrackingNumber,
		TransactionHash:      w.TransactionHash,
		EstimatedArrivalDate: w.EstimatedArrivalDate,
		FailureReason:        w.FailureReason,
		Notes:                w.Notes,
		ProcessedBy:          w.ProcessedBy,
		ProcessedAt:          w.ProcessedAt,
		CompletedAt:          w.CompletedAt,
		CreatedAt:            w.CreatedAt,
		UpdatedAt:            w.UpdatedAt,
	}
}

// WithdrawalsFromDomain converts domain withdrawals to responses.
func WithdrawalsFromDomain(ws []*domain.WithdrawalRequest) []*WithdrawalResponse {
	result := make([]*WithdrawalResponse, len(ws))
	for i, w := range ws {
		result[i] = WithdrawalFromDomain(w)
	}
	return result
}

// StatsResponse is the balance summary of one principal.
type StatsResponse struct {
	PrincipalID        string                 `json:"principal_id"`
	Balance            decimal.Decimal        `json:"balance"`
	TotalEarnings      decimal.Decimal        `json:"total_earnings"`
	TotalWithdrawals   decimal.Decimal        `json:"total_withdrawals"`
	Currency           string                 `json:"currency"`
	IsActive           bool                   `json:"is_active"`
	RecentTransactions []*TransactionResponse `json:"recent_transactions"`
}

// StatsFromUseCase converts account stats to response.
func StatsFromUseCase(s *usecase.AccountStats) *StatsResponse {
	return &StatsResponse{
		PrincipalID:        s.PrincipalID,
		Balance:            s.Balance,
		TotalEarnings:      s.TotalEarnings,
		TotalWithdrawals:   s.TotalWithdrawals,
		Currency:           s.Currency,
		IsActive:           s.IsActive,
		RecentTransactions: TransactionsFromDomain(s.Transactions),
	}
}

// Pagination echoes the page that was returned.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ListTransactionsResponse is one page of ledger entries.
type ListTransactionsResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Pagination   Pagination             `json:"pagination"`
}

// ListWithdrawalsResponse is one page of withdrawal requests.
type ListWithdrawalsResponse struct {
	Withdrawals []*WithdrawalResponse `json:"withdrawals"`
	Pagination  Pagination            `json:"pagination"`
}

// CommissionConfigResponse is the current revenue split in percent.
type CommissionConfigResponse struct {
	AdminCommissionPercent decimal.Decimal `json:"admin_commission_percent"`
	SellerPercentage       decimal.Decimal `json:"seller_percentage"`
}

// CommissionConfigFromDomain converts the split configuration to response.
func CommissionConfigFromDomain(c domain.CommissionConfig) *CommissionConfigResponse {
	return &CommissionConfigResponse{
		AdminCommissionPercent: c.AdminCommissionPercent,
		SellerPercentage:       c.SellerPercentage,
	}
}

// SplitResponse is the commission split applied to one purchase.
type SplitResponse struct {
	GrossAmount        decimal.Decimal `json:"gross_amount"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	SellerEarnings     decimal.Decimal `json:"seller_earnings"`
	CommissionRate     decimal.Decimal `json:"commission_rate"`
}

func splitFromDomain(s domain.Split) SplitResponse {
	return SplitResponse{
		GrossAmount:        s.Gross,
		PlatformCommission: s.PlatformCommission,
		SellerEarnings:     s.SellerEarnings,
		CommissionRate:     s.Rate,
	}
}

// DistributionResponse identifies the entries written for a purchase.
type DistributionResponse struct {
	PurchaseID            string        `json:"purchase_id"`
	SellerTransactionID   string        `json:"seller_transaction_id"`
	PlatformTransactionID string        `json:"platform_transaction_id"`
	Split                 SplitResponse `json:"split"`
	Replayed              bool          `json:"replayed"`
}

// DistributionFromUseCase converts a receipt to response.
func DistributionFromUseCase(r *usecase.DistributionReceipt) *DistributionResponse {
	return &DistributionResponse{
		PurchaseID:            r.PurchaseID,
		SellerTransactionID:   r.SellerTransactionID,
		PlatformTransactionID: r.PlatformTransactionID,
		Split:                 splitFromDomain(r.Split),
		Replayed:              r.Replayed,
	}
}

// RefundResponse identifies the compensating entries of a refund.
type RefundResponse struct {
	PurchaseID            string        `json:"purchase_id"`
	SellerTransactionID   string        `json:"seller_transaction_id"`
	PlatformTransactionID string        `json:"platform_transaction_id"`
	Split                 SplitResponse `json:"split"`
}

// RefundFromUseCase converts a receipt to response.
func RefundFromUseCase(r *usecase.RefundReceipt) *RefundResponse {
	return &RefundResponse{
		PurchaseID:            r.PurchaseID,
		SellerTransactionID:   r.SellerTransactionID,
		PlatformTransactionID: r.PlatformTransactionID,
		Split:                 splitFromDomain(r.Split),
	}
}

// AdminOverviewResponse is the administrator dashboard.
type AdminOverviewResponse struct {
	Platform           *StatsResponse         `json:"platform"`
	PendingWithdrawals []*WithdrawalResponse  `json:"pending_withdrawals"`
	PendingCount       int                    `json:"pending_count"`
	RecentTransactions []*TransactionResponse `json:"recent_transactions"`
}

// AdminOverviewFromUseCase converts the overview to response.
func AdminOverviewFromUseCase(o *usecase.AdminOverview) *AdminOverviewResponse {
	return &AdminOverviewResponse{
		Platform:           StatsFromUseCase(o.Platform),
		PendingWithdrawals: WithdrawalsFromDomain(o.PendingWithdrawals),
		PendingCount:       o.PendingCount,
		RecentTransactions: TransactionsFromDomain(o.RecentTransactions),
	}
}

// ReconciliationResponse compares a stored balance with the log.
type ReconciliationResponse struct {
	AccountID         string          `json:"account_id"`
	PrincipalID       string          `json:"principal_id"`
	RecordedBalance   decimal.Decimal `json:"recorded_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	IsReconciled      bool            `json:"is_reconciled"`
	LastChecked       time.Time       `json:"last_checked"`
}

// ReconciliationFromUseCase converts a result to response.
func ReconciliationFromUseCase(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:         r.AccountID,
		PrincipalID:       r.PrincipalID,
		RecordedBalance:   r.RecordedBalance,
		CalculatedBalance: r.CalculatedBalance,
		Difference:        r.Difference,
		IsReconciled:      r.IsReconciled,
		LastChecked:       r.LastChecked,
	}
}

// ReconciliationReportResponse summarises a full reconciliation run.
type ReconciliationReportResponse struct {
	TotalAccounts      int                       `json:"total_accounts"`
	ReconciledAccounts int                       `json:"reconciled_accounts"`
	Discrepancies      []*ReconciliationResponse `json:"discrepancies"`
	LedgerConsistent   bool                      `json:"ledger_consistent"`
	LedgerError        string                    `json:"ledger_error,omitempty"`
	CheckedAt          time.Time                 `json:"checked_at"`
}

// ReconciliationReportFromUseCase converts a report to response.
func ReconciliationReportFromUseCase(r *usecase.ReconciliationReport) *ReconciliationReportResponse {
	discrepancies := make([]*ReconciliationResponse, len(r.Discrepancies))
	for i, d := range r.Discrepancies {
		discrepancies[i] = ReconciliationFromUseCase(d)
	}
	return &ReconciliationReportResponse{
		TotalAccounts:      r.TotalAccounts,
		ReconciledAccounts: r.ReconciledAccounts,
		Discrepancies:      discrepancies,
		LedgerConsistent:   r.LedgerConsistent,
		LedgerError:        r.LedgerError,
		CheckedAt:          r.CheckedAt,
	}
}

// AuditLogResponse represents an audit trail entry.
type AuditLogResponse struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditLogsFromDomain converts audit logs to responses.
func AuditLogsFromDomain(logs []*domain.AuditLog) []*AuditLogResponse {
	result := make([]*AuditLogResponse, len(logs))
	for i, l := range logs {
		result[i] = &AuditLogResponse{
			ID:           l.ID,
			UserID:       l.UserID,
			Action:       l.Action,
			ResourceType: l.ResourceType,
			ResourceID:   l.ResourceID,
			IPAddress:    l.IPAddress,
			UserAgent:    l.UserAgent,
			RequestID:    l.RequestID,
			BeforeState:  l.BeforeState,
			AfterState:   l.AfterState,
			Status:       l.Status,
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		}
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}
