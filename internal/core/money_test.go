package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"-200", "-200", true},
		{"+15.5", "15.5", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half away from zero
		{"-1.005", "-1.01", true},
		{" 2.50 ", "2.5", true},
		{"0", "", false},
		{"0.001", "", false}, // rounds to zero
		{"abc", "", false},
		{"1.2.3", "", false},
		{"--1", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestParsePositiveAmount(t *testing.T) {
	if _, err := ParsePositiveAmount("-3"); err == nil {
		t.Fatal("negative amount should be rejected")
	}
	got, err := ParsePositiveAmount("9,99")
	if err != nil || !got.Equal(decimal.RequireFromString("9.99")) {
		t.Fatalf("expected 9.99, got %s (err=%v)", got, err)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":        "0.00",
		"12.3":     "12.30",
		"-1234.5":  "-1,234.50",
		"1000000":  "1,000,000.00",
		"999.999":  "1,000.00",
		"-0.05":    "-0.05",
		"123456.7": "123,456.70",
		"-0.001":   "0.00",
		"-0.004":   "0.00",
		"-0.005":   "-0.01",
	}
	for in, want := range cases {
		if got := FormatAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatAmount(%s) = %q, want %q", in, got, want)
		}
	}
}
