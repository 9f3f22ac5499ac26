package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

const auditColumns = `id, user_id, action, resource_type, resource_id,
	ip_address, user_agent, request_id,
	before_state, after_state, status, error_message, created_at`

// AuditRepository implements audit log persistence
type AuditRepository struct {
	db querier
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return newAuditRepository(pool)
}

func newAuditRepository(db querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts a new audit log entry outside any transaction.
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	return r.insert(ctx, r.db, log)
}

// CreateTx inserts a new audit log entry within tx.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	q, err := txQuerier(tx)
	if err != nil {
		return err
	}
	return r.insert(ctx, q, log)
}

func (r *AuditRepository) insert(ctx context.Context, q querier, log *domain.AuditLog) error {
	if log.ID == "" {
		log.ID = ulid.Make().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	beforeState, err := marshalState(log.BeforeState)
	if err != nil {
		return err
	}
	afterState, err := marshalState(log.AfterState)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		log.ID,
		log.UserID,
		log.Action,
		log.ResourceType,
		log.ResourceID,
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		beforeState,
		afterState,
		log.Status,
		log.ErrorMessage,
		log.CreatedAt.UTC(),
	)

	return err
}

func marshalState(state domain.JSON) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshal audit state: %w", err)
	}
	return b, nil
}

// List retrieves audit logs with filtering, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}
	if filter.StartDate != nil {
		add("created_at >= $%d", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		add("created_at < $%d", filter.EndDate.UTC())
	}

	query := `SELECT ` + auditColumns + ` FROM audit_logs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	args = append(args, noLimit(filter.Limit), filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*domain.AuditLog, 0)
	for rows.Next() {
		var (
			log                     domain.AuditLog
			beforeState, afterState []byte
		)

		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Action,
			&log.ResourceType,
			&log.ResourceID,
			&log.IPAddress,
			&log.UserAgent,
			&log.RequestID,
			&beforeState,
			&afterState,
			&log.Status,
			&log.ErrorMessage,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		if beforeState != nil {
			_ = json.Unmarshal(beforeState, &log.BeforeState)
		}
		if afterState != nil {
			_ = json.Unmarshal(afterState, &log.AfterState)
		}

		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// GetByResourceID retrieves all audit logs for a specific resource
func (r *AuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	return r.List(ctx, domain.AuditFilter{
		ResourceType: resourceType,
		ResourceID:   resourceID,
	})
}
