package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"spendbot/internal/core"
	"spendbot/internal/ledger"
	"spendbot/internal/ledger/ledgertest"
	"spendbot/internal/log"
)

func newTestSQLite(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "db", "spendbot.db"), log.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	suite.Run(t, &ledgertest.RepositorySuite{
		NewRepository: func(t *testing.T) ledger.Repository { return newTestSQLite(t) },
	})
}

func TestSQLiteRepository_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "spendbot.db")
	at := time.Date(2025, 5, 2, 8, 15, 0, 0, time.UTC)

	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	_, err = repo.MergeAppend(ctx, 10, []core.ExpenseRecord{ledgertest.Record("rent", 50000, at)})
	require.NoError(t, err)
	require.NoError(t, repo.SetAnchor(ctx, 10, 99))
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()

	u := repo.User(ctx, 10)
	require.Equal(t, 99, u.MenuID)
	require.Len(t, u.Spendings, 1)
	require.Equal(t, int64(50000), u.Spendings[0].Amount.Cents)
	require.Equal(t, at.UnixMilli(), u.Spendings[0].OccurredAt.UnixMilli())
}

func TestMigrateLedgerSchema_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spendbot.db")

	version, err := migrateLedgerSchema(path, log.Discard())
	require.NoError(t, err)
	require.Equal(t, uint(1), version)

	version, err = migrateLedgerSchema(path, log.Discard())
	require.NoError(t, err)
	require.Equal(t, uint(1), version)

	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	defer repo.Close()
	var tables int
	require.NoError(t, repo.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('ledger_users', 'ledger_entries')`,
	).Scan(&tables))
	require.Equal(t, 2, tables)
}

func TestSQLiteRepository_ClosedDatabase(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLite(t)
	require.NoError(t, repo.Close())

	require.Empty(t, repo.Load(ctx))
	require.Equal(t, core.NewUserLedger(), repo.User(ctx, 1))

	_, err := repo.MergeAppend(ctx, 1, []core.ExpenseRecord{ledgertest.Record("a", 1, time.Now())})
	require.True(t, errors.Is(err, ledger.ErrPersist))
	require.ErrorIs(t, repo.SetAnchor(ctx, 1, 2), ledger.ErrPersist)
}
