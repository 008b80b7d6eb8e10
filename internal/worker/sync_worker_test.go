package worker

import (
	"context"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
	sheetsmem "budget/internal/sheets/memory"
	"budget/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, n int) (*memory.Store, []core.Transaction) {
	t.Helper()
	store := memory.NewWithAccounts(core.Account{Name: "Bank"})
	var out []core.Transaction
	for i := 0; i < n; i++ {
		tx, err := store.AddTransaction(context.Background(), core.Transaction{
			Amount:        decimal.NewFromInt(int64(-(i + 1))),
			Category:      "Food",
			Date:          core.NewDate(2024, 5, i+1),
			PaymentMethod: "Bank",
		})
		require.NoError(t, err)
		out = append(out, tx)
	}
	return store, out
}

func TestSyncWorker_HandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	store, txs := seed(t, 1)
	exporter := sheetsmem.New()
	w := NewSyncWorker(store, exporter, 10)

	msg := amqp.NewTransactionSyncMessage(txs[0].ID, 1)
	require.NoError(t, w.HandleSyncMessage(ctx, msg))
	require.Len(t, exporter.Rows(), 1)

	status, err := store.SyncStatus(ctx, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncSynced, status)

	// Redelivery does not export twice.
	require.NoError(t, w.HandleSyncMessage(ctx, msg))
	assert.Len(t, exporter.Rows(), 1)

	// Unknown ids are dropped rather than requeued forever.
	assert.NoError(t, w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(999, 1)))
}

func TestSyncWorker_ExportFailureMarksError(t *testing.T) {
	ctx := context.Background()
	store, txs := seed(t, 1)
	exporter := sheetsmem.New()
	exporter.FailWith(sheetsmem.ErrUnavailable)
	w := NewSyncWorker(store, exporter, 10)

	err := w.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(txs[0].ID, 1))
	require.ErrorIs(t, err, sheetsmem.ErrUnavailable)

	status, err := store.SyncStatus(ctx, txs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncError, status)

	exporter.FailWith(nil)
	synced, err := w.ProcessPendingTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced, "error rows are retried by the sweep")
}

func TestSyncWorker_ProcessPendingHonoursBatchSize(t *testing.T) {
	ctx := context.Background()
	store, _ := seed(t, 5)
	exporter := sheetsmem.New()
	w := NewSyncWorker(store, exporter, 2)

	synced, err := w.ProcessPendingTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, synced)

	require.NoError(t, w.StartupSyncCheck(ctx))
	assert.Len(t, exporter.Rows(), 5)
}

type fakeConsumer struct {
	ids []int64
}

func (f fakeConsumer) ConsumeTransactionSync(ctx context.Context, handler func(context.Context, *amqp.TransactionSyncMessage) error) error {
	for _, id := range f.ids {
		if err := handler(ctx, amqp.NewTransactionSyncMessage(id, 1)); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestSyncWorker_Run(t *testing.T) {
	store, txs := seed(t, 3)
	exporter := sheetsmem.New()
	w := NewSyncWorker(store, exporter, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := w.Run(ctx, fakeConsumer{ids: []int64{txs[0].ID}}, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, exporter.Rows(), 3)
}
