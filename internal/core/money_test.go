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
		{"1200", "1200", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{".5", "0.5", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount("JPY", decimal.NewFromInt(1200)); got != "¥1200" {
		t.Fatalf("unexpected JPY format %q", got)
	}
	if got := FormatAmount("USD", decimal.RequireFromString("50.5")); got != "$50.50" {
		t.Fatalf("unexpected USD format %q", got)
	}
	if got := SymbolFor("XXX"); got != "¥" {
		t.Fatalf("unknown currency should fall back to yen, got %q", got)
	}
}

func TestAmountString(t *testing.T) {
	tests := []struct {
		currency, in, want string
	}{
		{"JPY", "1200", "1200"},
		{"USD", "12.5", "12.50"},
		{"AUD", "3", "3.00"},
		{"XXX", "1.234", "1.234"},
	}
	for _, tt := range tests {
		if got := AmountString(tt.currency, decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("AmountString(%s, %s) = %q, want %q", tt.currency, tt.in, got, tt.want)
		}
	}
}
