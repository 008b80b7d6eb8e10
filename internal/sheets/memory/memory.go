// Package memory records exported rows in process. The sync worker uses it
// when no spreadsheet is configured, and tests use it to observe exports.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"budget/internal/core"
	ports "budget/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows []core.Transaction
	fail error
}

var _ ports.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// Append stores the transaction and returns a synthetic row reference.
func (e *Exporter) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return "", e.fail
	}
	e.rows = append(e.rows, t)
	return fmt.Sprintf("mem:%d", len(e.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (e *Exporter) Rows() []core.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]core.Transaction(nil), e.rows...)
}

// FailWith makes subsequent appends fail with err; nil restores normal behavior.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

var ErrUnavailable = errors.New("exporter unavailable")
