package eventpublisher

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/metrics"
	"github.com/iho/marketledger/internal/usecase"
)

// EventPublisher relays committed outbox events to an external system.
type EventPublisher struct {
	outboxRepo usecase.OutboxRepository
	publisher  Publisher
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	batchSize  int
	interval   time.Duration
	retention  time.Duration
	now        func() time.Time

	lastCleanup time.Time
}

// Publisher defines the interface for publishing events to external systems.
type Publisher interface {
	Publish(ctx context.Context, event *domain.OutboxEvent) error
}

// Config for EventPublisher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Publisher  Publisher
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	BatchSize  int           // Number of events to fetch per batch
	Interval   time.Duration // Polling interval
	// Retention is how long published events are kept. Zero keeps them forever.
	Retention time.Duration
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(cfg Config) *EventPublisher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}

	return &EventPublisher{
		outboxRepo: cfg.OutboxRepo,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger.With().Str("component", "outbox_relay").Logger(),
		metrics:    cfg.Metrics,
		batchSize:  cfg.BatchSize,
		interval:   cfg.Interval,
		retention:  cfg.Retention,
		now:        time.Now,
	}
}

// Start runs the relay until ctx is cancelled.
func (ep *EventPublisher) Start(ctx context.Context) error {
	ep.logger.Info().
		Int("batch_size", ep.batchSize).
		Dur("interval", ep.interval).
		Msg("event publisher started")

	ticker := time.NewTicker(ep.interval)
	defer ticker.Stop()

	if _, err := ep.processEvents(ctx); err != nil {
		ep.logger.Error().Err(err).Msg("error processing events on start")
	}

	for {
		select {
		case <-ctx.Done():
			ep.logger.Info().Msg("event publisher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := ep.processEvents(ctx); err != nil {
				ep.logger.Error().Err(err).Msg("error processing events")
			}
			ep.cleanup(ctx)
		}
	}
}

// Drain publishes batches until the outbox is empty or a batch makes no
// progress. It returns the number of events relayed.
func (ep *EventPublisher) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := ep.processEvents(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

// processEvents publishes one batch. Events that fail to publish stay in the
// outbox and are retried on the next poll.
func (ep *EventPublisher) processEvents(ctx context.Context) (int, error) {
	events, err := ep.outboxRepo.GetUnpublished(ctx, ep.batchSize)
	if err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	ep.logger.Debug().Int("count", len(events)).Msg("processing events")

	published := 0
	for _, event := range events {
		if err := ep.publisher.Publish(ctx, event); err != nil {
			ep.logger.Error().Err(err).
				Str("event_id", event.ID).
				Str("event_type", event.EventType).
				Msg("failed to publish event")
			ep.count("failed")
			continue
		}

		if err := ep.outboxRepo.MarkPublished(ctx, event.ID, ep.now().UTC()); err != nil {
			ep.logger.Error().Err(err).
				Str("event_id", event.ID).
				Msg("failed to mark event as published")
			ep.count("unmarked")
			continue
		}

		ep.count("published")
		published++
	}

	return published, nil
}

func (ep *EventPublisher) cleanup(ctx context.Context) {
	if ep.retention <= 0 {
		return
	}
	now := ep.now()
	if now.Sub(ep.lastCleanup) < ep.retention/24 {
		return
	}
	ep.lastCleanup = now

	if err := ep.outboxRepo.DeletePublished(ctx, now.Add(-ep.retention).UTC()); err != nil {
		ep.logger.Warn().Err(err).Msg("failed to purge published events")
	}
}

func (ep *EventPublisher) count(result string) {
	if ep.metrics != nil {
		ep.metrics.OutboxPublished.WithLabelValues(result).Inc()
	}
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event *domain.OutboxEvent) error {
	p.logger.Info().
		Str("event_id", event.ID).
		Str("event_type", event.EventType).
		Str("aggregate_type", event.AggregateType).
		Str("aggregate_id", event.AggregateID).
		Interface("payload", event.Payload).
		Msg("event published")

	return nil
}
