package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"spendbot/internal/backend"
	"spendbot/internal/core"
	"spendbot/internal/ledger"
)

func newEnv(t *testing.T) (*Env, *bytes.Buffer) {
	t.Helper()
	repo := ledger.NewMemoryStore()
	at := time.Date(2025, 3, 14, 9, 15, 0, 0, time.UTC)
	_, err := repo.MergeAppend(context.Background(), 7, []core.ExpenseRecord{
		{Category: "food", Amount: core.Money{Cents: 1050}, OccurredAt: at},
		{Category: "transport", Amount: core.Money{Cents: 2000}, OccurredAt: at.AddDate(0, -1, 0)},
	})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	return &Env{
		Ctx:      context.Background(),
		Ledger:   repo,
		Location: time.UTC,
		Currency: "RUB",
		Out:      out,
		Now:      func() time.Time { return at },
		Open: func(ctx context.Context, target backend.Config) (*backend.BackendResult, error) {
			return backend.NewFactory(nil).CreateBackend(ctx, target)
		},
		Target: func() (backend.Config, error) {
			return backend.Config{Type: backend.MemoryBackend}, nil
		},
	}, out
}

func TestMonthReportCmd(t *testing.T) {
	env, out := newEnv(t)

	require.NoError(t, (&MonthReportCmd{User: 7}).Run(env))

	assert.Contains(t, out.String(), "March 2025")
	assert.Contains(t, out.String(), "Total: 10.50 RUB")
	assert.NotContains(t, out.String(), "transport")
}

func TestCategoryReportCmd(t *testing.T) {
	env, out := newEnv(t)

	require.NoError(t, (&CategoryReportCmd{User: 7}).Run(env))
	assert.Contains(t, out.String(), "🥇 transport")

	out.Reset()
	require.NoError(t, (&CategoryReportCmd{User: 8}).Run(env))
	assert.Contains(t, out.String(), "no saved expenses")
}

func TestExportCmd(t *testing.T) {
	env, out := newEnv(t)
	path := filepath.Join(t.TempDir(), "user7.xlsx")

	require.NoError(t, (&ExportCmd{User: 7, Out: path}).Run(env))
	assert.Contains(t, out.String(), "Exported 2 entries")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Expenses")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCopyCmdIntoFile(t *testing.T) {
	env, out := newEnv(t)
	path := filepath.Join(t.TempDir(), "ledger.json")

	require.NoError(t, (&CopyCmd{To: "file", LedgerFile: path}).Run(env))
	assert.Contains(t, out.String(), "Copied 1 users (2 entries)")

	store, err := ledger.NewFileStore(path, nil)
	require.NoError(t, err)
	got := store.History(context.Background(), 7)
	require.Len(t, got, 2)
	assert.Equal(t, "food", got[0].Category)
	assert.Equal(t, int64(2000), got[1].Amount.Cents)
	assert.True(t, got[1].OccurredAt.Equal(time.Date(2025, 2, 14, 9, 15, 0, 0, time.UTC)))
}

func TestCopyCmdRejectsSameBackend(t *testing.T) {
	env, _ := newEnv(t)
	path := filepath.Join(t.TempDir(), "ledger.json")
	env.Target = func() (backend.Config, error) {
		return backend.Config{Type: backend.FileBackend, LedgerFile: path}, nil
	}

	err := (&CopyCmd{To: "file"}).Run(env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "itself")
}
