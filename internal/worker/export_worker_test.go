package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendbot/internal/amqp"
	"spendbot/internal/core"
	"spendbot/internal/sheets"
	"spendbot/internal/sheets/memory"
)

func confirmed() *amqp.ExpensesConfirmedMessage {
	at := time.Date(2025, 3, 14, 9, 15, 0, 0, time.UTC)
	return amqp.NewExpensesConfirmedMessage(42, []core.ExpenseRecord{
		{Category: "food", Amount: core.Money{Cents: 1050}, OccurredAt: at},
		{Category: "taxi", Amount: core.Money{Cents: 700}, OccurredAt: at.Add(time.Minute)},
	})
}

func TestExportWorker_HandleConfirmed(t *testing.T) {
	store := memory.New()
	w := NewExportWorker(store, time.UTC, nil)

	require.NoError(t, w.HandleConfirmed(context.Background(), confirmed()))

	assert.Equal(t, []sheets.Row{
		{Date: "14.03.2025", Time: "09:15", UserID: 42, Category: "food", Amount: core.Money{Cents: 1050}},
		{Date: "14.03.2025", Time: "09:16", UserID: 42, Category: "taxi", Amount: core.Money{Cents: 700}},
	}, store.Rows())
}

func TestExportWorker_RedeliveryIsIdempotent(t *testing.T) {
	store := memory.New()
	w := NewExportWorker(store, time.UTC, nil)
	msg := confirmed()

	require.NoError(t, w.HandleConfirmed(context.Background(), msg))
	require.NoError(t, w.HandleConfirmed(context.Background(), msg))

	assert.Len(t, store.Rows(), 2)
	require.NoError(t, w.HandleConfirmed(context.Background(), confirmed()))
	assert.Len(t, store.Rows(), 4)
}

func TestExportWorker_FailureAllowsRetry(t *testing.T) {
	store := memory.New()
	store.Err = errors.New("quota exceeded")
	w := NewExportWorker(store, time.UTC, nil)
	msg := confirmed()

	err := w.HandleConfirmed(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), msg.EventID)

	store.Err = nil
	require.NoError(t, w.HandleConfirmed(context.Background(), msg))
	assert.Len(t, store.Rows(), 2)
}
