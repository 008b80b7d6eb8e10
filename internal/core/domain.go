package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionCategory is the category given to transactions materialized from subscriptions.
const SubscriptionCategory = "Subscription"

const maxNameLength = 100

type (
	Date struct {
		time.Time
	}

	Account struct {
		ID        int64           `json:"id"` // Database ID, zero until stored
		Name      string          `json:"name"`
		Balance   decimal.Decimal `json:"balance"`
		CreatedAt time.Time       `json:"created_at"`
	}

	Transaction struct {
		ID            int64           `json:"id"`
		Amount        decimal.Decimal `json:"amount"` // > 0 income, < 0 expense
		Category      string          `json:"category"`
		Date          Date            `json:"date"`
		PaymentMethod string          `json:"payment_method"` // Name of the account the transaction is booked against
	}

	Subscription struct {
		ID            int64           `json:"id"`
		Name          string          `json:"name"`
		Amount        decimal.Decimal `json:"amount"`      // Positive magnitude, booked as an expense
		PaymentDay    int             `json:"payment_day"` // Day of month, 1-31
		PaymentMethod string          `json:"payment_method"`
	}
)

var (
	ErrInvalidDay           = errors.New("invalid day")
	ErrInvalidMonth         = errors.New("invalid month")
	ErrInvalidDate          = errors.New("invalid date")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrEmptyName            = errors.New("empty name")
	ErrNameTooLong          = errors.New("name too long (max 100 characters)")
	ErrEmptyCategory        = errors.New("empty category")
	ErrEmptyPaymentMethod   = errors.New("empty payment method")
	ErrInvalidPaymentDay    = errors.New("payment day must be between 1 and 31")
	ErrUnknownAccount       = errors.New("unknown account")
	ErrMissingTransactionID = errors.New("missing transaction id")
)

// NewDate creates a new Date from year, month, day. Out of range values are
// normalized the way time.Date does; use NewDateStrict to reject them.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// NewDateStrict creates a Date and fails with ErrInvalidDate when the day does
// not exist in the given month.
func NewDateStrict(year, month, day int) (Date, error) {
	if month < 1 || month > 12 {
		return Date{}, ErrInvalidMonth
	}
	if day < 1 || day > DaysIn(year, month) {
		return Date{}, ErrInvalidDate
	}
	return NewDate(year, month, day), nil
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DaysIn returns the number of days in the given month, leap years included.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the first and last day of a month.
func MonthBounds(year, month int) (Date, Date) {
	return NewDate(year, month, 1), NewDate(year, month, DaysIn(year, month))
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// Between reports whether d lies in the inclusive range [from, to].
func (d Date) Between(from, to Date) bool {
	return !d.Before(from) && !d.After(to)
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON overrides the promoted time.Time encoding so dates travel as YYYY-MM-DD.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	return d.UnmarshalText([]byte(strings.Trim(string(b), `"`)))
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

// IsIncome reports whether the transaction adds money.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// IsExpense reports whether the transaction removes money.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	return nil
}

func (a Account) Validate() error {
	return validateName(a.Name)
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Category) > maxNameLength {
		return errors.New("category too long (max 100 characters)")
	}
	if strings.TrimSpace(t.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	return nil
}

func (s Subscription) Validate() error {
	if err := validateName(s.Name); err != nil {
		return err
	}
	if !s.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if s.PaymentDay < 1 || s.PaymentDay > 31 {
		return ErrInvalidPaymentDay
	}
	if strings.TrimSpace(s.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	return nil
}
