package google

import (
	"context"
	"testing"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

func TestTransactionRow(t *testing.T) {
	row := transactionRow(core.Transaction{
		Amount:        decimal.RequireFromString("-12.5"),
		Category:      "Food",
		Date:          core.NewDate(2024, 3, 9),
		PaymentMethod: "Card",
	})

	want := []any{"2024-03-09", "Food", "-12.50", "Card"}
	if len(row) != len(want) {
		t.Fatalf("row = %v, want %v", row, want)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Transactions", 2024, "2024 Transactions"},
		{"  Transactions ", 2025, "2025 Transactions"},
		{"2023 Transactions", 2025, "2023 Transactions"},
		{"1800 Club", 2024, "2024 1800 Club"},
		{"", 2024, ""},
	}

	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestNewRequiresSpreadsheetID(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without spreadsheet id")
	}
}

func TestAppendRejectsInvalidTransaction(t *testing.T) {
	c := &Client{spreadsheetID: "sheet", sheetBase: "Transactions"}
	if _, err := c.Append(context.Background(), core.Transaction{}); err == nil {
		t.Fatal("expected validation error")
	}
}
