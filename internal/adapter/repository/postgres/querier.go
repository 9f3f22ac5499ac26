package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// querier is the subset of pgx shared by pools, transactions and pgxmock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txQuerier unwraps a transaction started by TxManager.
func txQuerier(tx usecase.Transaction) (querier, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, fmt.Errorf("postgres: unsupported transaction type %T", tx)
	}
	return t.PgxTx(), nil
}

// mapError translates driver errors into domain errors. notFound is
// returned for pgx.ErrNoRows.
func mapError(err, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, pgErr.ConstraintName)
	}

	return err
}

// nullIfEmpty stores empty optional references as NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// noLimit maps a zero limit to NULL, which Postgres reads as unbounded.
func noLimit(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
