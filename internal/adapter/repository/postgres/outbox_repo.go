package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

const outboxColumns = `id, aggregate_id, aggregate_type, event_type, payload, created_at, published_at, published`

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	db querier
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return newOutboxRepository(pool)
}

func newOutboxRepository(db querier) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create creates a new outbox event within a transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	q, err := txQuerier(tx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO outbox_events (`+outboxColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		payload,
		event.CreatedAt.UTC(),
		utcPtr(event.PublishedAt),
		event.Published,
	)

	return mapError(err, nil)
}

// GetUnpublished retrieves unpublished events, oldest first.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+outboxColumns+` FROM outbox_events
		WHERE published = FALSE
		ORDER BY created_at, id
		LIMIT $1`, noLimit(limit))
	if err != nil {
		return nil, err
	}

	return collectOutboxEvents(rows)
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events SET published = TRUE, published_at = $2
		WHERE id = $1`, id, publishedAt.UTC())
	return err
}

// GetByAggregate retrieves events for a specific aggregate, newest first.
func (r *OutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+outboxColumns+` FROM outbox_events
		WHERE aggregate_type = $1 AND aggregate_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`, aggregateType, aggregateID, noLimit(limit), offset)
	if err != nil {
		return nil, err
	}

	return collectOutboxEvents(rows)
}

// DeletePublished deletes published events older than the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	_, err := r.db.Exec(ctx, `DELETE FROM outbox_events WHERE published = TRUE AND published_at < $1`, before.UTC())
	return err
}

func collectOutboxEvents(rows pgx.Rows) ([]*domain.OutboxEvent, error) {
	defer rows.Close()

	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		var (
			e       domain.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.AggregateID,
			&e.AggregateType,
			&e.EventType,
			&payload,
			&e.CreatedAt,
			&e.PublishedAt,
			&e.Published,
		); err != nil {
			return nil, err
		}

		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal event payload: %w", err)
			}
		}

		events = append(events, &e)
	}

	return events, rows.Err()
}
