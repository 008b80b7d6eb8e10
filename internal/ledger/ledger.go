// Package ledger aggregates a snapshot of accounts, transactions and
// subscriptions into monthly summaries and balance projections.
//
// Every function here is pure: inputs are read, never modified, and the same
// inputs always produce the same output. Persistence and validation of
// account references happen at the storage boundary, not here.
package ledger

import (
	"errors"
	"fmt"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

// DaysPerMonth is the fixed month length used by FutureBalance.
const DaysPerMonth = 30

var ErrInvalidHorizon = errors.New("projection horizon must not be negative")

// Ledger is a caller-owned snapshot of the whole budget.
type Ledger struct {
	Accounts      []core.Account
	Transactions  []core.Transaction
	Subscriptions []core.Subscription
}

// SummarizeRange aggregates the transactions dated within [from, to], both inclusive.
func SummarizeRange(transactions []core.Transaction, from, to core.Date) core.Summary {
	summary := core.Summary{
		TotalIncome:       decimal.Zero,
		TotalExpense:      decimal.Zero,
		Net:               decimal.Zero,
		CategoryBreakdown: make(map[string]decimal.Decimal),
	}

	for _, t := range transactions {
		if !t.Date.Between(from, to) {
			continue
		}
		switch {
		case t.IsIncome():
			summary.TotalIncome = summary.TotalIncome.Add(t.Amount)
		case t.IsExpense():
			expense := t.Amount.Abs()
			summary.TotalExpense = summary.TotalExpense.Add(expense)
			summary.CategoryBreakdown[t.Category] = summary.CategoryBreakdown[t.Category].Add(expense)
		}
	}

	summary.Net = summary.TotalIncome.Sub(summary.TotalExpense)
	return summary
}

// MonthlySummary aggregates the transactions of a calendar month.
func MonthlySummary(transactions []core.Transaction, year, month int) core.Summary {
	from, to := core.MonthBounds(year, month)
	summary := SummarizeRange(transactions, from, to)
	summary.Year = year
	summary.Month = month
	return summary
}

// AccountBalances maps each account name to its stored balance.
func AccountBalances(accounts []core.Account) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balances[a.Name] = a.Balance
	}
	return balances
}

// FindAccount looks an account up by name.
func FindAccount(accounts []core.Account, name string) (core.Account, bool) {
	for _, a := range accounts {
		if a.Name == name {
			return a, true
		}
	}
	return core.Account{}, false
}

// FutureBalance projects the balance of accountName by adding every
// transaction booked against it and dated after today, up to and including
// today + 30*months days, to the account's current balance.
//
// Months are a fixed 30 days, not calendar months.
func FutureBalance(accounts []core.Account, transactions []core.Transaction, accountName string, months int, today core.Date) (decimal.Decimal, error) {
	if months < 0 {
		return decimal.Zero, ErrInvalidHorizon
	}
	account, ok := FindAccount(accounts, accountName)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", core.ErrUnknownAccount, accountName)
	}

	horizon := today.AddDays(DaysPerMonth * months)
	balance := account.Balance
	for _, t := range transactions {
		if t.PaymentMethod != accountName {
			continue
		}
		if t.Date.After(today) && !t.Date.After(horizon) {
			balance = balance.Add(t.Amount)
		}
	}
	return balance, nil
}

// MaterializeSubscription builds the expense transaction a subscription
// produces in the given month. It fails with core.ErrInvalidDate when the
// payment day does not exist in that month.
func MaterializeSubscription(sub core.Subscription, year, month int) (core.Transaction, error) {
	date, err := core.NewDateStrict(year, month, sub.PaymentDay)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("subscription %q: day %d of %04d-%02d: %w",
			sub.Name, sub.PaymentDay, year, month, err)
	}
	return core.Transaction{
		Amount:        sub.Amount.Abs().Neg(),
		Category:      core.SubscriptionCategory,
		Date:          date,
		PaymentMethod: sub.PaymentMethod,
	}, nil
}

// ProcessSubscriptions materializes one transaction per subscription for the
// given month. Any subscription whose payment day does not exist in the month
// fails the whole call; no partial result is returned.
func ProcessSubscriptions(subscriptions []core.Subscription, year, month int) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(subscriptions))
	for _, sub := range subscriptions {
		t, err := MaterializeSubscription(sub, year, month)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ApplyTransaction returns a copy of accounts with the transaction's signed
// amount added to the balance of the account it is booked against.
func ApplyTransaction(accounts []core.Account, t core.Transaction) ([]core.Account, error) {
	idx := -1
	for i, a := range accounts {
		if a.Name == t.PaymentMethod {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownAccount, t.PaymentMethod)
	}

	out := make([]core.Account, len(accounts))
	copy(out, accounts)
	out[idx].Balance = out[idx].Balance.Add(t.Amount)
	return out, nil
}

// MonthlySummary summarizes the snapshot's transactions for a month.
func (l Ledger) MonthlySummary(year, month int) core.Summary {
	return MonthlySummary(l.Transactions, year, month)
}

// AccountBalances returns the snapshot's balances by account name.
func (l Ledger) AccountBalances() map[string]decimal.Decimal {
	return AccountBalances(l.Accounts)
}

// FutureBalance projects an account of the snapshot.
func (l Ledger) FutureBalance(accountName string, months int, today core.Date) (decimal.Decimal, error) {
	return FutureBalance(l.Accounts, l.Transactions, accountName, months, today)
}

// AsOf returns a copy of the snapshot whose balances exclude transactions
// dated after today. Stored balances include future-dated bookings, which
// FutureBalance would otherwise count twice.
func (l Ledger) AsOf(today core.Date) Ledger {
	accounts := make([]core.Account, len(l.Accounts))
	copy(accounts, l.Accounts)
	for _, t := range l.Transactions {
		if !t.Date.After(today) {
			continue
		}
		for i := range accounts {
			if accounts[i].Name == t.PaymentMethod {
				accounts[i].Balance = accounts[i].Balance.Sub(t.Amount)
				break
			}
		}
	}
	return Ledger{Accounts: accounts, Transactions: l.Transactions, Subscriptions: l.Subscriptions}
}

// ProcessSubscriptions materializes the snapshot's subscriptions for a month.
func (l Ledger) ProcessSubscriptions(year, month int) ([]core.Transaction, error) {
	return ProcessSubscriptions(l.Subscriptions, year, month)
}

// AddTransaction applies t to the snapshot. On error the ledger is unchanged.
func (l *Ledger) AddTransaction(t core.Transaction) error {
	accounts, err := ApplyTransaction(l.Accounts, t)
	if err != nil {
		return err
	}
	l.Accounts = accounts
	l.Transactions = append(l.Transactions, t)
	return nil
}
