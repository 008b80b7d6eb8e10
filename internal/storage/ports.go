package storage

import (
	"context"
	"errors"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrAccountInUse     = errors.New("account is referenced by transactions or subscriptions")
	ErrAlreadyProcessed = errors.New("subscription already processed for this month")
)

// Ports implemented by the SQLite repository and the in-memory store.
type (
	AccountStore interface {
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		GetAccount(ctx context.Context, name string) (core.Account, error)
		ListAccounts(ctx context.Context) ([]core.Account, error)
		// DeleteAccount fails with ErrAccountInUse while anything references the account.
		DeleteAccount(ctx context.Context, name string) error
	}

	TransactionStore interface {
		// AddTransaction stores t and applies its amount to the account named by
		// t.PaymentMethod in one step. Unknown accounts fail with core.ErrUnknownAccount.
		AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
		GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
		// LastTransactionID returns the highest stored transaction id, 0 when
		// empty. Ids only grow, so it changes whenever any process books.
		LastTransactionID(ctx context.Context) (int64, error)
		// ListTransactions returns transactions dated within [from, to]. Zero
		// bounds are open.
		ListTransactions(ctx context.Context, from, to core.Date) ([]core.Transaction, error)
	}

	SubscriptionStore interface {
		CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error)
		ListSubscriptions(ctx context.Context) ([]core.Subscription, error)
		IsSubscriptionProcessed(ctx context.Context, id int64, year, month int) (bool, error)
		// AddSubscriptionTransaction books t like AddTransaction and records the
		// (subscription, year, month) run. A second run for the same period
		// fails with ErrAlreadyProcessed and books nothing.
		AddSubscriptionTransaction(ctx context.Context, subscriptionID int64, year, month int, t core.Transaction) (core.Transaction, error)
	}

	LedgerReader interface {
		// LoadLedger returns a consistent snapshot of everything stored.
		LoadLedger(ctx context.Context) (ledger.Ledger, error)
	}

	SyncStore interface {
		GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error)
		MarkSynced(ctx context.Context, id int64) error
		MarkSyncError(ctx context.Context, id int64) error
		SyncStatus(ctx context.Context, id int64) (string, error)
	}

	Store interface {
		AccountStore
		TransactionStore
		SubscriptionStore
		LedgerReader
		SyncStore
		Close() error
	}
)

// PendingSyncTransaction is the minimal data needed to queue a sync message.
type PendingSyncTransaction struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}
