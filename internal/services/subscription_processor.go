package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/storage"
)

// ProcessResult counts what a processing run did.
type ProcessResult struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"` // already booked for the period or not yet due
	Failed    int `json:"failed"`
}

// SubscriptionProcessor materializes subscriptions into transactions.
type SubscriptionProcessor struct {
	store        storage.SubscriptionStore
	transactions *TransactionService
}

func NewSubscriptionProcessor(store storage.SubscriptionStore, transactions *TransactionService) *SubscriptionProcessor {
	return &SubscriptionProcessor{store: store, transactions: transactions}
}

// ProcessMonth books every subscription not yet booked for year/month.
// Subscriptions whose payment day does not exist in the month are logged and
// counted as failed; the others still proceed. The returned error joins
// every individual failure.
func (p *SubscriptionProcessor) ProcessMonth(ctx context.Context, year, month int) (ProcessResult, error) {
	if month < 1 || month > 12 {
		return ProcessResult{}, core.ErrInvalidMonth
	}
	return p.process(ctx, year, month, core.NewDate(year, month, core.DaysIn(year, month)), DueImmediately{})
}

// ProcessDue books the current month's subscriptions whose payment day has
// been reached by now.
func (p *SubscriptionProcessor) ProcessDue(ctx context.Context, now time.Time) (ProcessResult, error) {
	today := core.DateOf(now)
	return p.process(ctx, today.Year(), today.Month(), today, MonthlyDueness{})
}

func (p *SubscriptionProcessor) process(ctx context.Context, year, month int, today core.Date, dueness DuenessChecker) (ProcessResult, error) {
	if p.store == nil || p.transactions == nil {
		return ProcessResult{}, fmt.Errorf("processor not properly initialized")
	}

	subs, err := p.store.ListSubscriptions(ctx)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("list subscriptions: %w", err)
	}

	period := fmt.Sprintf("%04d-%02d", year, month)
	slog.InfoContext(ctx, "Processing subscriptions", "total", len(subs), "period", period)

	var (
		result ProcessResult
		errs   []error
	)
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !dueness.IsDue(sub, today) {
			result.Skipped++
			continue
		}

		done, err := p.store.IsSubscriptionProcessed(ctx, sub.ID, year, month)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check subscription run", "subscription_id", sub.ID, "error", err)
			result.Failed++
			errs = append(errs, err)
			continue
		}
		if done {
			result.Skipped++
			continue
		}

		t, err := ledger.MaterializeSubscription(sub, year, month)
		if err != nil {
			slog.WarnContext(ctx, "Subscription payment day does not exist in month",
				"subscription_id", sub.ID,
				"name", sub.Name,
				"payment_day", sub.PaymentDay,
				"period", period)
			result.Failed++
			errs = append(errs, err)
			continue
		}

		if _, err := p.transactions.AddSubscriptionPayment(ctx, sub, year, month, t); err != nil {
			if errors.Is(err, storage.ErrAlreadyProcessed) {
				result.Skipped++
				continue
			}
			slog.ErrorContext(ctx, "Failed to book subscription payment",
				"subscription_id", sub.ID,
				"name", sub.Name,
				"error", err)
			result.Failed++
			errs = append(errs, fmt.Errorf("subscription %q: %w", sub.Name, err))
			continue
		}

		result.Processed++
		slog.InfoContext(ctx, "Booked subscription payment",
			"subscription_id", sub.ID,
			"name", sub.Name,
			"amount", t.Amount.String(),
			"date", t.Date.String())
	}

	slog.InfoContext(ctx, "Subscription processing complete",
		"processed", result.Processed,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"period", period)

	return result, errors.Join(errs...)
}
