package memory

import (
	"context"
	"sync"
	"testing"

	"budget/internal/core"
	"budget/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStore_AccountLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.CreateAccount(ctx, core.Account{Name: "Bank", Balance: dec("10")})
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, core.Account{Name: "Bank"})
	assert.ErrorIs(t, err, storage.ErrDuplicateAccount)

	_, err = s.AddTransaction(ctx, core.Transaction{
		Amount: dec("-4"), Category: "Food", Date: core.NewDate(2024, 1, 1), PaymentMethod: "Bank",
	})
	require.NoError(t, err)

	a, err := s.GetAccount(ctx, "Bank")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(dec("6")))

	assert.ErrorIs(t, s.DeleteAccount(ctx, "Bank"), storage.ErrAccountInUse)
	assert.ErrorIs(t, s.DeleteAccount(ctx, "Nope"), storage.ErrNotFound)

	_, err = s.CreateAccount(ctx, core.Account{Name: "Spare"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteAccount(ctx, "Spare"))

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestStore_UnknownAccount(t *testing.T) {
	ctx := context.Background()
	s := NewWithAccounts(core.Account{Name: "Bank"})

	_, err := s.AddTransaction(ctx, core.Transaction{
		Amount: dec("-4"), Category: "Food", Date: core.NewDate(2024, 1, 1), PaymentMethod: "Ghost",
	})
	assert.ErrorIs(t, err, core.ErrUnknownAccount)

	_, err = s.CreateSubscription(ctx, core.Subscription{
		Name: "Music", Amount: dec("5"), PaymentDay: 3, PaymentMethod: "Ghost",
	})
	assert.ErrorIs(t, err, core.ErrUnknownAccount)

	l, err := s.LoadLedger(ctx)
	require.NoError(t, err)
	assert.Empty(t, l.Transactions)
	assert.Empty(t, l.Subscriptions)
}

func TestStore_SubscriptionRunsOncePerMonth(t *testing.T) {
	ctx := context.Background()
	s := NewWithAccounts(core.Account{Name: "Card", Balance: dec("50")})

	sub, err := s.CreateSubscription(ctx, core.Subscription{
		Name: "Music", Amount: dec("10"), PaymentDay: 3, PaymentMethod: "Card",
	})
	require.NoError(t, err)

	payment := core.Transaction{
		Amount: dec("-10"), Category: core.SubscriptionCategory, Date: core.NewDate(2024, 2, 3), PaymentMethod: "Card",
	}
	_, err = s.AddSubscriptionTransaction(ctx, sub.ID, 2024, 2, payment)
	require.NoError(t, err)
	_, err = s.AddSubscriptionTransaction(ctx, sub.ID, 2024, 2, payment)
	assert.ErrorIs(t, err, storage.ErrAlreadyProcessed)

	done, err := s.IsSubscriptionProcessed(ctx, sub.ID, 2024, 2)
	require.NoError(t, err)
	assert.True(t, done)

	a, err := s.GetAccount(ctx, "Card")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(dec("40")))
}

func TestStore_SyncBookkeeping(t *testing.T) {
	ctx := context.Background()
	s := NewWithAccounts(core.Account{Name: "Bank"})

	t1, err := s.AddTransaction(ctx, core.Transaction{
		Amount: dec("1"), Category: "Gift", Date: core.NewDate(2024, 1, 1), PaymentMethod: "Bank",
	})
	require.NoError(t, err)
	_, err = s.AddTransaction(ctx, core.Transaction{
		Amount: dec("2"), Category: "Gift", Date: core.NewDate(2024, 1, 2), PaymentMethod: "Bank",
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkSynced(ctx, t1.ID))
	pending, err := s.GetPendingSyncTransactions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.NotEqual(t, t1.ID, pending[0].ID)

	assert.ErrorIs(t, s.MarkSyncError(ctx, 999), storage.ErrNotFound)
}

func TestStore_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewWithAccounts(core.Account{Name: "Bank"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddTransaction(ctx, core.Transaction{
				Amount: dec("1"), Category: "Tip", Date: core.NewDate(2024, 1, 1), PaymentMethod: "Bank",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, err := s.GetAccount(ctx, "Bank")
	require.NoError(t, err)
	assert.True(t, a.Balance.Equal(dec("50")), "balance = %s", a.Balance)
}

func TestStore_LastTransactionID(t *testing.T) {
	ctx := context.Background()
	s := NewWithAccounts(core.Account{Name: "Bank"})

	last, err := s.LastTransactionID(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)

	saved, err := s.AddTransaction(ctx, core.Transaction{
		Amount: dec("5"), Category: "Gift", Date: core.NewDate(2024, 1, 1), PaymentMethod: "Bank",
	})
	require.NoError(t, err)
	last, err = s.LastTransactionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, last)
}
