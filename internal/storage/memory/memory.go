// Package memory is an in-process implementation of the storage ports, used
// by tests and by DATA_BACKEND=memory for local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/storage"
)

type runKey struct {
	id          int64
	year, month int
}

type syncState struct {
	status  string
	version int64
	created time.Time
}

type Store struct {
	mu            sync.Mutex
	nextID        int64
	accounts      []core.Account
	transactions  []core.Transaction
	subscriptions []core.Subscription
	runs          map[runKey]int64
	sync          map[int64]*syncState
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		runs: make(map[runKey]int64),
		sync: make(map[int64]*syncState),
	}
}

// NewWithAccounts returns a store seeded with accounts, ignoring invalid or duplicate names.
func NewWithAccounts(accounts ...core.Account) *Store {
	s := New()
	for _, a := range accounts {
		_, _ = s.CreateAccount(context.Background(), a)
	}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) indexOfAccount(name string) int {
	for i, a := range s.accounts {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// CreateAccount implements storage.AccountStore
func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfAccount(a.Name) >= 0 {
		return core.Account{}, fmt.Errorf("%w: %q", storage.ErrDuplicateAccount, a.Name)
	}
	a.ID = s.id()
	a.CreatedAt = time.Now().UTC()
	s.accounts = append(s.accounts, a)
	return a, nil
}

// GetAccount implements storage.AccountStore
func (s *Store) GetAccount(_ context.Context, name string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfAccount(name)
	if i < 0 {
		return core.Account{}, fmt.Errorf("account %q: %w", name, storage.ErrNotFound)
	}
	return s.accounts[i], nil
}

// ListAccounts implements storage.AccountStore
func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedAccounts(), nil
}

func (s *Store) sortedAccounts() []core.Account {
	out := append([]core.Account{}, s.accounts...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DeleteAccount implements storage.AccountStore
func (s *Store) DeleteAccount(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOfAccount(name)
	if i < 0 {
		return fmt.Errorf("account %q: %w", name, storage.ErrNotFound)
	}
	refs := 0
	for _, t := range s.transactions {
		if t.PaymentMethod == name {
			refs++
		}
	}
	for _, sub := range s.subscriptions {
		if sub.PaymentMethod == name {
			refs++
		}
	}
	if refs > 0 {
		return fmt.Errorf("%w: %q has %d references", storage.ErrAccountInUse, name, refs)
	}
	s.accounts = append(s.accounts[:i:i], s.accounts[i+1:]...)
	return nil
}

// AddTransaction implements storage.TransactionStore
func (s *Store) AddTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book(t)
}

// book applies t with the ledger write path. Callers hold s.mu.
func (s *Store) book(t core.Transaction) (core.Transaction, error) {
	accounts, err := ledger.ApplyTransaction(s.accounts, t)
	if err != nil {
		return core.Transaction{}, err
	}
	t.ID = s.id()
	s.accounts = accounts
	s.transactions = append(s.transactions, t)
	s.sync[t.ID] = &syncState{status: storage.SyncPending, version: 1, created: time.Now().UTC()}
	return t, nil
}

// GetTransaction implements storage.TransactionStore
func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.transactions {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
}

// LastTransactionID implements storage.TransactionStore
func (s *Store) LastTransactionID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last int64
	for _, t := range s.transactions {
		last = max(last, t.ID)
	}
	return last, nil
}

// ListTransactions implements storage.TransactionStore
func (s *Store) ListTransactions(_ context.Context, from, to core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.Transaction{}
	for _, t := range s.transactions {
		if !from.IsZero() && t.Date.Before(from) {
			continue
		}
		if !to.IsZero() && t.Date.After(to) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// CreateSubscription implements storage.SubscriptionStore
func (s *Store) CreateSubscription(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOfAccount(sub.PaymentMethod) < 0 {
		return core.Subscription{}, fmt.Errorf("%w: %q", core.ErrUnknownAccount, sub.PaymentMethod)
	}
	sub.ID = s.id()
	s.subscriptions = append(s.subscriptions, sub)
	return sub, nil
}

// ListSubscriptions implements storage.SubscriptionStore
func (s *Store) ListSubscriptions(_ context.Context) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Subscription{}, s.subscriptions...), nil
}

// IsSubscriptionProcessed implements storage.SubscriptionStore
func (s *Store) IsSubscriptionProcessed(_ context.Context, id int64, year, month int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.runs[runKey{id, year, month}]
	return ok, nil
}

// AddSubscriptionTransaction implements storage.SubscriptionStore
func (s *Store) AddSubscriptionTransaction(_ context.Context, subscriptionID int64, year, month int, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := runKey{subscriptionID, year, month}
	if _, ok := s.runs[key]; ok {
		return core.Transaction{}, fmt.Errorf("subscription %d %04d-%02d: %w", subscriptionID, year, month, storage.ErrAlreadyProcessed)
	}
	booked, err := s.book(t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.runs[key] = booked.ID
	return booked, nil
}

// LoadLedger implements storage.LedgerReader
func (s *Store) LoadLedger(_ context.Context) (ledger.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Ledger{
		Accounts:      s.sortedAccounts(),
		Transactions:  append([]core.Transaction{}, s.transactions...),
		Subscriptions: append([]core.Subscription{}, s.subscriptions...),
	}, nil
}

// GetPendingSyncTransactions implements storage.SyncStore
func (s *Store) GetPendingSyncTransactions(_ context.Context, limit int) ([]storage.PendingSyncTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []storage.PendingSyncTransaction
	for _, t := range s.transactions {
		if len(out) >= limit {
			break
		}
		st := s.sync[t.ID]
		if st.status == storage.SyncSynced {
			continue
		}
		out = append(out, storage.PendingSyncTransaction{ID: t.ID, Version: st.version, CreatedAt: st.created})
	}
	return out, nil
}

// MarkSynced implements storage.SyncStore
func (s *Store) MarkSynced(_ context.Context, id int64) error {
	return s.setSyncStatus(id, storage.SyncSynced)
}

// MarkSyncError implements storage.SyncStore
func (s *Store) MarkSyncError(_ context.Context, id int64) error {
	return s.setSyncStatus(id, storage.SyncError)
}

func (s *Store) setSyncStatus(id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sync[id]
	if !ok {
		return fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	st.status = status
	return nil
}

// SyncStatus returns the sync state of a transaction.
func (s *Store) SyncStatus(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sync[id]
	if !ok {
		return "", fmt.Errorf("transaction %d: %w", id, storage.ErrNotFound)
	}
	return st.status, nil
}

func (s *Store) Close() error { return nil }
