package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"budget/internal/core"
	"budget/internal/storage"
)

// SyncPublisher announces stored transactions to the sync worker.
type SyncPublisher interface {
	PublishTransactionSync(ctx context.Context, id, version int64) error
}

// transactionStore is what the write path needs from storage.
type transactionStore interface {
	storage.TransactionStore
	AddSubscriptionTransaction(ctx context.Context, subscriptionID int64, year, month int, t core.Transaction) (core.Transaction, error)
}

// TransactionService orchestrates the write path: persist, update the
// account balance, then publish a sync message.
type TransactionService struct {
	store     transactionStore
	publisher SyncPublisher
}

// NewTransactionService builds the service. publisher may be nil, in which
// case sync messages are skipped and the sync worker's sweep picks rows up.
func NewTransactionService(store transactionStore, publisher SyncPublisher) *TransactionService {
	return &TransactionService{store: store, publisher: publisher}
}

// AddTransaction stores t and applies it to its account. A failed publish is
// logged and never fails the write.
func (s *TransactionService) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	saved, err := s.store.AddTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, saved.ID)
	return saved, nil
}

// AddSubscriptionPayment books a materialized subscription payment once per period.
func (s *TransactionService) AddSubscriptionPayment(ctx context.Context, sub core.Subscription, year, month int, t core.Transaction) (core.Transaction, error) {
	saved, err := s.store.AddSubscriptionTransaction(ctx, sub.ID, year, month, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save subscription payment: %w", err)
	}
	s.publish(ctx, saved.ID)
	return saved, nil
}

func (s *TransactionService) publish(ctx context.Context, id int64) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message", "id", id)
		return
	}
	// Version 1: transactions are immutable once stored.
	if err := s.publisher.PublishTransactionSync(ctx, id, 1); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message", "id", id, "error", err)
	}
}

// Close closes the store and the publisher when they hold resources.
func (s *TransactionService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
