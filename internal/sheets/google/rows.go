package google

import (
	"fmt"
	"strconv"
	"strings"

	"budget/internal/core"
)

// transactionRow lays a transaction out as [date, category, amount, payment method].
func transactionRow(t core.Transaction) []any {
	return []any{t.Date.String(), t.Category, t.Amount.StringFixed(2), t.PaymentMethod}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
