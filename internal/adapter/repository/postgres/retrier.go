package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/marketledger/internal/infrastructure/metrics"
)

// SQLSTATE codes that mean the whole transaction can safely run again.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
	pgErrLockNotAvailable     = "55P03"
)

// RetryPolicy bounds how long a ledger transaction is re-run.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryPolicy allows three re-runs within ten seconds.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     4,
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     time.Second,
	MaxElapsedTime:  10 * time.Second,
}

// Retrier implements usecase.Retrier. Each attempt must open its own
// transaction, so a retried operation never sees partial state.
type Retrier struct {
	policy  RetryPolicy
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// RetrierOption customises a Retrier.
type RetrierOption func(*Retrier)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) RetrierOption {
	return func(r *Retrier) { r.policy = p }
}

// WithRetryMetrics counts re-runs by reason.
func WithRetryMetrics(m *metrics.Metrics) RetrierOption {
	return func(r *Retrier) { r.metrics = m }
}

func NewRetrier(logger zerolog.Logger, opts ...RetrierOption) *Retrier {
	r := &Retrier{policy: DefaultRetryPolicy, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retry runs operation until it succeeds, fails with an error that is
// not a lock conflict, or the policy is exhausted.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	b.MaxElapsedTime = r.policy.MaxElapsedTime

	attempt := 0

	return backoff.Retry(func() error {
		attempt++

		err := operation()
		if err == nil {
			return nil
		}

		reason, ok := retryReason(err)
		if !ok || attempt >= r.policy.MaxAttempts {
			return backoff.Permanent(err)
		}

		if r.metrics != nil {
			r.metrics.TxRetries.WithLabelValues(reason).Inc()
		}
		r.logger.Warn().
			Err(err).
			Str("reason", reason).
			Int("attempt", attempt).
			Msg("ledger transaction conflicted, re-running")

		return err
	}, backoff.WithContext(b, ctx))
}

// retryReason classifies lock conflicts. Everything else, including
// connection loss mid-commit, is surfaced to the caller.
func retryReason(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}

	switch pgErr.Code {
	case pgErrDeadlock:
		return "deadlock", true
	case pgErrSerializationFailure:
		return "serialization", true
	case pgErrLockNotAvailable:
		return "lock_timeout", true
	default:
		return "", false
	}
}
