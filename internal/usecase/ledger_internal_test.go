package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/marketledger/internal/domain"
)

func TestLedgerPost_RejectsOversizedMetadata(t *testing.T) {
	var l ledger
	account := &domain.Account{PrincipalID: "seller-1", Balance: decimal.NewFromInt(50)}
	entry := &domain.LedgerTransaction{
		Type:     domain.TransactionTypeAdjustment,
		Amount:   decimal.NewFromInt(10),
		Status:   domain.TransactionStatusCompleted,
		Metadata: map[string]any{"note": strings.Repeat("x", domain.MaxMetadataSize)},
	}

	err := l.post(context.Background(), nil, account, entry, false, time.Now())
	require.ErrorIs(t, err, domain.ErrMetadataTooLarge)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "metadata", domain.FieldOf(err))
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(50)), "balance must not move")
	assert.Empty(t, entry.ID)
}
