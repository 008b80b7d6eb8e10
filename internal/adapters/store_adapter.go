package adapters

import (
	"context"

	"budget/internal/core"
	"budget/internal/services"
	"budget/internal/storage"
)

// StoreAdapter exposes a storage.Store whose writes go through the
// TransactionService, so HTTP handlers trigger sync publishing without
// knowing about AMQP.
type StoreAdapter struct {
	storage.Store
	service *services.TransactionService
}

func NewStoreAdapter(store storage.Store, service *services.TransactionService) *StoreAdapter {
	return &StoreAdapter{
		Store:   store,
		service: service,
	}
}

// AddTransaction implements storage.TransactionStore
func (a *StoreAdapter) AddTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	return a.service.AddTransaction(ctx, t)
}

// Close releases the store and the publisher.
func (a *StoreAdapter) Close() error {
	return a.service.Close()
}
