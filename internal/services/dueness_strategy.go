package services

import (
	"budget/internal/core"
)

// DuenessChecker decides whether a subscription should be charged on a given day.
type DuenessChecker interface {
	IsDue(sub core.Subscription, today core.Date) bool
}

// MonthlyDueness charges a subscription once its payment day has been reached.
// A payment day past the end of the month becomes due on the month's last day,
// where materializing it reports the invalid date instead of silently skipping.
type MonthlyDueness struct{}

func (MonthlyDueness) IsDue(sub core.Subscription, today core.Date) bool {
	if today.Day() >= sub.PaymentDay {
		return true
	}
	return today.Day() == core.DaysIn(today.Year(), today.Month())
}

// DueImmediately treats every subscription as due. Used when a whole month
// is processed on request.
type DueImmediately struct{}

func (DueImmediately) IsDue(core.Subscription, core.Date) bool { return true }
