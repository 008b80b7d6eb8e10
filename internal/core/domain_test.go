package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDaysIn(t *testing.T) {
	cases := []struct {
		year, month, want int
	}{
		{2024, 1, 31},
		{2024, 2, 29}, // leap year
		{2023, 2, 28},
		{1900, 2, 28}, // divisible by 100, not by 400
		{2000, 2, 29},
		{2024, 4, 30},
		{2024, 12, 31},
	}
	for _, tc := range cases {
		if got := DaysIn(tc.year, tc.month); got != tc.want {
			t.Errorf("DaysIn(%d, %d) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestNewDateStrict(t *testing.T) {
	if _, err := NewDateStrict(2024, 4, 31); err != ErrInvalidDate {
		t.Fatalf("April 31 should be invalid, got %v", err)
	}
	if _, err := NewDateStrict(2023, 2, 29); err != ErrInvalidDate {
		t.Fatalf("Feb 29 2023 should be invalid, got %v", err)
	}
	if _, err := NewDateStrict(2024, 13, 1); err != ErrInvalidMonth {
		t.Fatalf("month 13 should be invalid, got %v", err)
	}
	d, err := NewDateStrict(2024, 2, 29)
	if err != nil {
		t.Fatalf("Feb 29 2024 should be valid: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("unexpected date %s", d)
	}
}

func TestDateBetween(t *testing.T) {
	from, to := MonthBounds(2024, 2)
	if to.Day() != 29 {
		t.Fatalf("expected Feb 2024 to end on the 29th, got %d", to.Day())
	}
	if !from.Between(from, to) || !to.Between(from, to) {
		t.Fatal("range bounds must be inclusive")
	}
	if NewDate(2024, 3, 1).Between(from, to) {
		t.Fatal("March 1 is outside February")
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		D Date `json:"d"`
	}{NewDate(2024, 1, 5)})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"d":"2024-01-05"}` {
		t.Fatalf("unexpected json %s", b)
	}
	var out struct {
		D Date `json:"d"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatal(err)
	}
	if !out.D.Equal(NewDate(2024, 1, 5).Time) {
		t.Fatalf("round trip mismatch: %s", out.D)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Amount:        decimal.NewFromInt(-20),
		Category:      "Food",
		Date:          NewDate(2025, 1, 1),
		PaymentMethod: "Bank",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Amount: decimal.NewFromInt(1), Category: "c", PaymentMethod: "p"}, // zero date
		{Amount: decimal.Zero, Category: "c", Date: NewDate(2025, 1, 1), PaymentMethod: "p"},
		{Amount: decimal.NewFromInt(1), Category: " ", Date: NewDate(2025, 1, 1), PaymentMethod: "p"},
		{Amount: decimal.NewFromInt(1), Category: "c", Date: NewDate(2025, 1, 1), PaymentMethod: ""},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestSubscriptionValidate(t *testing.T) {
	good := Subscription{Name: "Music", Amount: decimal.NewFromInt(10), PaymentDay: 31, PaymentMethod: "Card"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Subscription{
		{Name: "", Amount: decimal.NewFromInt(10), PaymentDay: 1, PaymentMethod: "Card"},
		{Name: "x", Amount: decimal.NewFromInt(-10), PaymentDay: 1, PaymentMethod: "Card"},
		{Name: "x", Amount: decimal.NewFromInt(10), PaymentDay: 0, PaymentMethod: "Card"},
		{Name: "x", Amount: decimal.NewFromInt(10), PaymentDay: 32, PaymentMethod: "Card"},
		{Name: "x", Amount: decimal.NewFromInt(10), PaymentDay: 1, PaymentMethod: " "},
	}
	for i, s := range bads {
		if err := s.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
