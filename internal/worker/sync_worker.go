package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/sheets"
	"budget/internal/storage"

	"golang.org/x/sync/errgroup"
)

// Store is what the worker needs from storage.
type Store interface {
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	storage.SyncStore
}

// Consumer delivers sync messages until its context is done.
type Consumer interface {
	ConsumeTransactionSync(ctx context.Context, handler func(context.Context, *amqp.TransactionSyncMessage) error) error
}

// SyncWorker exports stored transactions to a spreadsheet.
type SyncWorker struct {
	storage   Store
	sheets    sheets.TransactionExporter
	batchSize int
}

func NewSyncWorker(storage Store, exporter sheets.TransactionExporter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{storage: storage, sheets: exporter, batchSize: batchSize}
}

// HandleSyncMessage exports the transaction named by msg. Already synced
// transactions are acknowledged without exporting them twice.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message", "id", msg.ID, "version", msg.Version)

	status, err := w.storage.SyncStatus(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Sync message for unknown transaction, dropping", "id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync status: %w", err)
	}
	if status == storage.SyncSynced {
		slog.InfoContext(ctx, "Transaction already synced, skipping", "id", msg.ID)
		return nil
	}

	t, err := w.storage.GetTransaction(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	return w.export(ctx, t)
}

// ProcessPendingTransactions exports one batch of rows still waiting for
// sync. It backs up AMQP delivery when messages are lost.
func (w *SyncWorker) ProcessPendingTransactions(ctx context.Context) (synced int, err error) {
	return w.processPending(ctx, w.batchSize)
}

// StartupSyncCheck runs a larger sweep once at startup to recover from
// worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, err := w.processPending(ctx, w.batchSize*5)
	slog.InfoContext(ctx, "Startup sync completed", "synced", synced, "error", err)
	return err
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (int, error) {
	pending, err := w.storage.GetPendingSyncTransactions(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("get pending transactions: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	synced := 0
	var errs []error
	for _, p := range pending {
		t, err := w.storage.GetTransaction(ctx, p.ID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to get transaction", "id", p.ID, "error", err)
			if err := w.storage.MarkSyncError(ctx, p.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", p.ID, "error", err)
			}
			errs = append(errs, err)
			continue
		}
		if err := w.export(ctx, t); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction", "id", p.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		synced++
	}
	return synced, errors.Join(errs...)
}

func (w *SyncWorker) export(ctx context.Context, t core.Transaction) error {
	ref, err := w.sheets.Append(ctx, t)
	if err != nil {
		if markErr := w.storage.MarkSyncError(ctx, t.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", t.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheets: %w", err)
	}

	// The row is written; a failed status update only means a later duplicate.
	if err := w.storage.MarkSynced(ctx, t.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as synced", "id", t.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced transaction",
		"id", t.ID,
		"sheets_ref", ref,
		"category", t.Category,
		"amount", t.Amount.String())
	return nil
}

// Run consumes messages and sweeps pending rows every interval until ctx is
// done. consumer may be nil, in which case only the sweep runs.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer, interval time.Duration) error {
	if err := w.StartupSyncCheck(ctx); err != nil {
		slog.WarnContext(ctx, "Startup sync check had failures", "error", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeTransactionSync(ctx, w.HandleSyncMessage)
			if ctx.Err() != nil {
				// Shutdown, not a consumer failure.
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if _, err := w.ProcessPendingTransactions(ctx); err != nil {
					slog.WarnContext(ctx, "Pending sweep had failures", "error", err)
				}
			}
		}
	})

	return g.Wait()
}
