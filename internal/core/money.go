// Package core provides money parsing and handling utilities.
//
// Amounts are kept as shopspring decimals so per-currency sums stay exact
// for both zero-decimal currencies (JPY) and cent-based ones (USD, AUD, CAD).
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-entered string into a positive decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs,
// exponents, grouping characters and zero are rejected: the sign of a
// transaction is carried by its direction, never by its amount.
//
// Examples:
//   ParseAmount("1200")   -> 1200, nil
//   ParseAmount("12,5")   -> 12.5, nil
//   ParseAmount("-3")     -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range s {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// AmountString renders an amount at the currency's minor-unit precision
// (none for JPY). Unknown currencies keep the decimal's own digits.
func AmountString(currency string, amount decimal.Decimal) string {
	if c, ok := LookupCurrency(currency); ok {
		return amount.StringFixedBank(c.Decimals)
	}
	return amount.String()
}

// FormatAmount is AmountString prefixed with the currency's symbol.
func FormatAmount(currency string, amount decimal.Decimal) string {
	return SymbolFor(currency) + AmountString(currency, amount)
}
