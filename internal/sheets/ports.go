package sheets

import (
	"context"

	"budget/internal/core"
)

// TransactionExporter writes stored transactions to an external spreadsheet.
type TransactionExporter interface {
	// Append adds one row for t and returns a reference to where it landed.
	Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
}
