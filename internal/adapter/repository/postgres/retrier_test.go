package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/infrastructure/metrics"
)

func fastRetrier(maxAttempts int, m *metrics.Metrics) *Retrier {
	return NewRetrier(zerolog.Nop(),
		WithRetryPolicy(RetryPolicy{
			MaxAttempts:     maxAttempts,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			MaxElapsedTime:  time.Second,
		}),
		WithRetryMetrics(m),
	)
}

func TestRetrier_ReRunsConflicts(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	r := fastRetrier(3, m)

	attempts := 0
	err := r.Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			// Wrapped the way the tx manager returns commit failures.
			return fmt.Errorf("commit: %w", &pgconn.PgError{Code: pgErrDeadlock})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TxRetries.WithLabelValues("deadlock")))
}

func TestRetrier_GivesUpAfterMaxAttempts(t *testing.T) {
	r := fastRetrier(3, nil)

	attempts := 0
	err := r.Retry(context.Background(), func() error {
		attempts++
		return &pgconn.PgError{Code: pgErrSerializationFailure}
	})

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, pgErrSerializationFailure, pgErr.Code)
	assert.Equal(t, 3, attempts)
}

func TestRetrier_DomainErrorsAreFinal(t *testing.T) {
	r := NewRetrier(zerolog.Nop())

	attempts := 0
	err := r.Retry(context.Background(), func() error {
		attempts++
		return domain.ErrInsufficientBalance
	})

	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, 1, attempts)
}

func TestRetrier_StopsOnCancelledContext(t *testing.T) {
	r := NewRetrier(zerolog.Nop(), WithRetryPolicy(RetryPolicy{
		MaxAttempts:     100,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		MaxElapsedTime:  time.Minute,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := r.Retry(ctx, func() error {
		attempts++
		cancel()
		return &pgconn.PgError{Code: pgErrLockNotAvailable}
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryReason(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
		ok     bool
	}{
		{name: "deadlock", err: &pgconn.PgError{Code: pgErrDeadlock}, reason: "deadlock", ok: true},
		{name: "serialization", err: &pgconn.PgError{Code: pgErrSerializationFailure}, reason: "serialization", ok: true},
		{name: "lock timeout", err: &pgconn.PgError{Code: pgErrLockNotAvailable}, reason: "lock_timeout", ok: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgErrUniqueViolation}},
		{name: "domain error", err: domain.ErrAccountNotFound},
		{name: "generic", err: errors.New("other")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := retryReason(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.reason, reason)
		})
	}
}
