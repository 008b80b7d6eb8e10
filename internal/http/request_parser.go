// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// period parameters from query strings and form or JSON bodies decoded into
// domain values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budget/internal/core"
)

// maxBodyBytes caps request bodies read by RequestBodyParser.
const maxBodyBytes = 1 << 20

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams extracts year and month from query parameters. Missing
// values default to today's period; present but malformed values are errors.
func ParseMonthParams(query url.Values, today core.Date) (MonthParams, error) {
	params := MonthParams{Year: today.Year(), Month: today.Month()}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			return MonthParams{}, fmt.Errorf("year %q: %w", v, core.ErrInvalidDate)
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, fmt.Errorf("month %q: %w", v, core.ErrInvalidMonth)
		}
		params.Month = m
	}

	return params, nil
}

// ParseMonths reads the projection horizon, defaulting to one month.
func ParseMonths(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("months"))
	if v == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("months %q: not a number", v)
	}
	return n, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

var errBadKind = errors.New(`kind must be "income" or "expense"`)

// AccountInput decodes name and an optional opening balance.
func (p *RequestBodyParser) AccountInput() (core.Account, error) {
	balance, err := parseBalance(p.Get("balance"))
	if err != nil {
		return core.Account{}, err
	}
	a := core.Account{Name: p.Get("name"), Balance: balance}
	return a, a.Validate()
}

// TransactionInput decodes a transaction. The amount is signed; when kind is
// given the amount must be positive and kind decides its sign. A missing date
// means today.
func (p *RequestBodyParser) TransactionInput(today core.Date) (core.Transaction, error) {
	var (
		t   core.Transaction
		err error
	)

	switch kind := strings.ToLower(p.Get("kind")); kind {
	case "":
		t.Amount, err = core.ParseAmount(p.Get("amount"))
	case "income", "expense":
		t.Amount, err = core.ParsePositiveAmount(p.Get("amount"))
		if kind == "expense" {
			t.Amount = t.Amount.Neg()
		}
	default:
		return core.Transaction{}, errBadKind
	}
	if err != nil {
		return core.Transaction{}, err
	}

	t.Date = today
	if v := p.Get("date"); v != "" {
		if t.Date, err = core.ParseDate(v); err != nil {
			return core.Transaction{}, err
		}
	}
	t.Category = p.Get("category")
	t.PaymentMethod = p.Get("payment_method")
	return t, t.Validate()
}

func (p *RequestBodyParser) SubscriptionInput() (core.Subscription, error) {
	amount, err := core.ParsePositiveAmount(p.Get("amount"))
	if err != nil {
		return core.Subscription{}, err
	}
	day, err := strconv.Atoi(p.Get("payment_day"))
	if err != nil {
		return core.Subscription{}, core.ErrInvalidPaymentDay
	}
	s := core.Subscription{
		Name:          p.Get("name"),
		Amount:        amount,
		PaymentDay:    day,
		PaymentMethod: p.Get("payment_method"),
	}
	return s, s.Validate()
}
