package http

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// parseBalance accepts an empty or zero opening balance, which ParseAmount
// rejects for transactions.
func parseBalance(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	if d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ".")); err == nil && d.IsZero() {
		return decimal.Zero, nil
	}
	return core.ParseAmount(s)
}

func monthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return time.Month(m).String()
}

func summaryKey(year, month int) string {
	return core.NewDate(year, month, 1).Format("2006-01")
}
