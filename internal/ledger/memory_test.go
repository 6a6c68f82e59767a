package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendbot/internal/core"
	"spendbot/internal/ledger"
	"spendbot/internal/ledger/ledgertest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &ledgertest.RepositorySuite{
		NewRepository: func(*testing.T) ledger.Repository { return ledger.NewMemoryStore() },
	})
}

func TestMemoryStore_FailWrites(t *testing.T) {
	ctx := context.Background()
	s := ledger.NewMemoryStore()
	s.FailWrites = true

	_, err := s.MergeAppend(ctx, 1, []core.ExpenseRecord{ledgertest.Record("a", 1, time.Now())})
	require.True(t, errors.Is(err, ledger.ErrPersist))
	require.Empty(t, s.History(ctx, 1))
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := ledger.NewMemoryStore()
	_, err := s.MergeAppend(ctx, 1, []core.ExpenseRecord{ledgertest.Record("a", 1, time.Now())})
	require.NoError(t, err)

	h := s.History(ctx, 1)
	h[0].Category = "changed"
	require.Equal(t, "a", s.History(ctx, 1)[0].Category)
}
