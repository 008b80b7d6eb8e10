package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Sync states of a transaction row.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// The server and both workers open the same file. Write transactions take
	// the write lock at BEGIN so busy_timeout applies; a deferred transaction
	// that reads first fails at once with SQLITE_BUSY when upgrading.
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection per process keeps writers queued here.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection, used by readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(timeLayout)
}

// withTx runs fn inside a database transaction, rolling back on error.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func accountExists(ctx context.Context, q queryer, name string) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("check account %q: %w", name, err)
	}
	return n > 0, nil
}

// CreateAccount implements AccountStore
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}

	createdAt := r.now().UTC()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := accountExists(ctx, tx, a.Name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %q", ErrDuplicateAccount, a.Name)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (name, balance, created_at) VALUES (?, ?, ?)`,
			a.Name, a.Balance.String(), createdAt.Format(timeLayout))
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		a.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = createdAt

	slog.InfoContext(ctx, "Account created", "id", a.ID, "name", a.Name, "balance", a.Balance.String())
	return a, nil
}

// GetAccount implements AccountStore
func (r *SQLiteRepository) GetAccount(ctx context.Context, name string) (core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, balance, created_at FROM accounts WHERE name = ?`, name)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, fmt.Errorf("account %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

// ListAccounts implements AccountStore
func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return listAccounts(ctx, r.db)
}

type rowsQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listAccounts(ctx context.Context, q rowsQueryer) ([]core.Account, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, balance, created_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// DeleteAccount implements AccountStore
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, name string) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := accountExists(ctx, tx, name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("account %q: %w", name, ErrNotFound)
		}

		var refs int
		err = tx.QueryRowContext(ctx, `
			SELECT (SELECT COUNT(*) FROM transactions WHERE payment_method = ?)
			     + (SELECT COUNT(*) FROM subscriptions WHERE payment_method = ?)`,
			name, name).Scan(&refs)
		if err != nil {
			return fmt.Errorf("count account references: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("%w: %q has %d references", ErrAccountInUse, name, refs)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, name); err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Account deleted", "name", name)
	return nil
}

// AddTransaction implements TransactionStore
func (r *SQLiteRepository) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		id, err := r.insertTransaction(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		"amount", t.Amount.String(),
		"category", t.Category,
		"date", t.Date.String(),
		"account", t.PaymentMethod)
	return t, nil
}

// insertTransaction books t against its account inside tx.
func (r *SQLiteRepository) insertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) (int64, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE name = ?`, t.PaymentMethod).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", core.ErrUnknownAccount, t.PaymentMethod)
	}
	if err != nil {
		return 0, fmt.Errorf("load account balance: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (amount, category, date, payment_method, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.Amount.String(), t.Category, t.Date.String(), t.PaymentMethod, r.timestamp())
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = ? WHERE name = ?`,
		balance.Add(t.Amount).String(), t.PaymentMethod); err != nil {
		return 0, fmt.Errorf("update account balance: %w", err)
	}
	return id, nil
}

// LastTransactionID implements TransactionStore
func (r *SQLiteRepository) LastTransactionID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM transactions`).Scan(&id); err != nil {
		return 0, fmt.Errorf("last transaction id: %w", err)
	}
	return id, nil
}

// GetTransaction implements TransactionStore
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, amount, category, date, payment_method
		FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions implements TransactionStore
func (r *SQLiteRepository) ListTransactions(ctx context.Context, from, to core.Date) ([]core.Transaction, error) {
	return listTransactions(ctx, r.db, from, to)
}

func listTransactions(ctx context.Context, q rowsQueryer, from, to core.Date) ([]core.Transaction, error) {
	query := `SELECT id, amount, category, date, payment_method FROM transactions WHERE 1 = 1`
	var args []any
	// Dates are stored as YYYY-MM-DD so string comparison is chronological.
	if !from.IsZero() {
		query += ` AND date >= ?`
		args = append(args, from.String())
	}
	if !to.IsZero() {
		query += ` AND date <= ?`
		args = append(args, to.String())
	}
	query += ` ORDER BY date, id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// CreateSubscription implements SubscriptionStore
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error) {
	if err := s.Validate(); err != nil {
		return core.Subscription{}, err
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := accountExists(ctx, tx, s.PaymentMethod)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %q", core.ErrUnknownAccount, s.PaymentMethod)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions (name, amount, payment_day, payment_method, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			s.Name, s.Amount.String(), s.PaymentDay, s.PaymentMethod, r.timestamp())
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}
		s.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return core.Subscription{}, err
	}

	slog.InfoContext(ctx, "Subscription created",
		"id", s.ID,
		"name", s.Name,
		"amount", s.Amount.String(),
		"payment_day", s.PaymentDay)
	return s, nil
}

// ListSubscriptions implements SubscriptionStore
func (r *SQLiteRepository) ListSubscriptions(ctx context.Context) ([]core.Subscription, error) {
	return listSubscriptions(ctx, r.db)
}

func listSubscriptions(ctx context.Context, q rowsQueryer) ([]core.Subscription, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, amount, payment_day, payment_method
		FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []core.Subscription{}
	for rows.Next() {
		var s core.Subscription
		if err := rows.Scan(&s.ID, &s.Name, &s.Amount, &s.PaymentDay, &s.PaymentMethod); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// IsSubscriptionProcessed implements SubscriptionStore
func (r *SQLiteRepository) IsSubscriptionProcessed(ctx context.Context, id int64, year, month int) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscription_runs
		WHERE subscription_id = ? AND year = ? AND month = ?`, id, year, month).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check subscription run: %w", err)
	}
	return n > 0, nil
}

// AddSubscriptionTransaction implements SubscriptionStore
func (r *SQLiteRepository) AddSubscriptionTransaction(ctx context.Context, subscriptionID int64, year, month int, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM subscription_runs
			WHERE subscription_id = ? AND year = ? AND month = ?`,
			subscriptionID, year, month).Scan(&n)
		if err != nil {
			return fmt.Errorf("check subscription run: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("subscription %d %04d-%02d: %w", subscriptionID, year, month, ErrAlreadyProcessed)
		}

		id, err := r.insertTransaction(ctx, tx, t)
		if err != nil {
			return err
		}
		t.ID = id

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO subscription_runs (subscription_id, year, month, transaction_id, processed_at)
			VALUES (?, ?, ?, ?, ?)`,
			subscriptionID, year, month, id, r.timestamp()); err != nil {
			return fmt.Errorf("record subscription run: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Subscription payment booked",
		"subscription_id", subscriptionID,
		"transaction_id", t.ID,
		"period", fmt.Sprintf("%04d-%02d", year, month))
	return t, nil
}

// LoadLedger implements LedgerReader. All three reads share one database
// transaction so the snapshot is consistent.
func (r *SQLiteRepository) LoadLedger(ctx context.Context) (ledger.Ledger, error) {
	var l ledger.Ledger
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if l.Accounts, err = listAccounts(ctx, tx); err != nil {
			return err
		}
		if l.Transactions, err = listTransactions(ctx, tx, core.Date{}, core.Date{}); err != nil {
			return err
		}
		l.Subscriptions, err = listSubscriptions(ctx, tx)
		return err
	})
	if err != nil {
		return ledger.Ledger{}, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

// GetPendingSyncTransactions returns transactions that still need to be
// exported, oldest first. Rows in error state are retried.
func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at FROM transactions
		WHERE sync_status IN (?, ?)
		ORDER BY id LIMIT ?`, SyncPending, SyncError, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var pending []PendingSyncTransaction
	for rows.Next() {
		var (
			p         PendingSyncTransaction
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending transaction: %w", err)
		}
		p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced marks a transaction as successfully exported
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncSynced); err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction as having failed to export
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.setSyncStatus(ctx, id, SyncError); err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id int64, status string) error {
	var syncedAt any
	if status == SyncSynced {
		syncedAt = r.timestamp()
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ?, synced_at = ? WHERE id = ?`,
		status, syncedAt, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

// SyncStatus returns the sync state of a transaction.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM transactions WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return status, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (core.Account, error) {
	var (
		a         core.Account
		createdAt string
	)
	if err := s.Scan(&a.ID, &a.Name, &a.Balance, &createdAt); err != nil {
		return core.Account{}, err
	}
	a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return a, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		t    core.Transaction
		date string
	)
	if err := s.Scan(&t.ID, &t.Amount, &t.Category, &date, &t.PaymentMethod); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date %q: %w", t.ID, date, err)
	}
	t.Date = d
	return t, nil
}
