package core

import "strings"

// DefaultCurrency is preselected on blank drafts.
const DefaultCurrency = "JPY"

// Currency describes one of the fixed known currencies.
type Currency struct {
	Code     string `json:"code"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals"`
}

var currencies = []Currency{
	{Code: "JPY", Symbol: "¥", Name: "日本円", Decimals: 0},
	{Code: "USD", Symbol: "$", Name: "アメリカドル", Decimals: 2},
	{Code: "AUD", Symbol: "A$", Name: "オーストラリアドル", Decimals: 2},
	{Code: "CAD", Symbol: "C$", Name: "カナダドル", Decimals: 2},
}

// Currencies returns the known currencies in display order.
func Currencies() []Currency {
	return append([]Currency(nil), currencies...)
}

// LookupCurrency finds a currency by its code (case-insensitive).
func LookupCurrency(code string) (Currency, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range currencies {
		if c.Code == code {
			return c, true
		}
	}
	return Currency{}, false
}

// SymbolFor returns the display symbol, falling back to the yen sign.
func SymbolFor(code string) string {
	if c, ok := LookupCurrency(code); ok {
		return c.Symbol
	}
	return "¥"
}
