package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary is the income/expense overview for a period.
type Summary struct {
	Year              int                        `json:"year"`
	Month             int                        `json:"month"` // 1-12
	TotalIncome       decimal.Decimal            `json:"total_income"`
	TotalExpense      decimal.Decimal            `json:"total_expense"`
	Net               decimal.Decimal            `json:"net"`
	CategoryBreakdown map[string]decimal.Decimal `json:"category_breakdown"`
}

// ByCategory returns the breakdown ordered by amount, largest first, with
// ties broken by name.
func (s Summary) ByCategory() []CategoryAmount {
	out := make([]CategoryAmount, 0, len(s.CategoryBreakdown))
	for name, amount := range s.CategoryBreakdown {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}
