package domain

import (
	"context"
	"encoding/json"
	"time"
)

// AuditLog represents an audit trail entry for compliance and debugging
type AuditLog struct {
	ID           string
	UserID       string // Who performed the action
	Action       string // What action (withdrawal.approve, balance.adjust, etc.)
	ResourceType string // account, withdrawal
	ResourceID   string
	IPAddress    string
	UserAgent    string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       string // success, failure, error
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	// Account actions
	AuditActionAccountSuspend    AuditAction = "account.suspend"
	AuditActionAccountReactivate AuditAction = "account.reactivate"
	AuditActionBalanceAdjust     AuditAction = "balance.adjust"

	// Withdrawal actions
	AuditActionWithdrawalApprove    AuditAction = "withdrawal.approve"
	AuditActionWithdrawalReject     AuditAction = "withdrawal.reject"
	AuditActionWithdrawalProcessing AuditAction = "withdrawal.processing"
	AuditActionWithdrawalComplete   AuditAction = "withdrawal.complete"
)

// Audited resource types
const (
	AuditResourceAccount    = "account"
	AuditResourceWithdrawal = "withdrawal"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
	AuditStatusError   AuditStatus = "error"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter defines filters for querying audit logs
type AuditFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}

// RequestMeta describes the inbound request behind an audited action.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

type requestMetaContextKey struct{}

// WithRequestMeta returns a copy of ctx carrying m.
func WithRequestMeta(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaContextKey{}, m)
}

// RequestMetaFromContext returns the metadata stored by WithRequestMeta.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(requestMetaContextKey{}).(RequestMeta)
	return m
}
