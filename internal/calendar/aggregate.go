// Package calendar derives calendar cells, monthly series and category
// breakdowns from a transaction snapshot. Every function is pure: callers
// pass the collection in and get fresh values back.
package calendar

import (
	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// Palette is cycled over categories in first-seen order.
var Palette = []string{
	"#FF6384", "#36A2EB", "#FFCE56", "#4BC0C0",
	"#9966FF", "#FF9F40", "#FF6384", "#C9CBCF",
	"#4BC0C0", "#FF9F40",
}

// MonthTotals is one entry of a yearly series.
type MonthTotals struct {
	Month   int             `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Slice is one category of a breakdown.
type Slice struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Color    string          `json:"color"`
}

// TransactionsOnDate returns the transactions whose date is exactly date.
func TransactionsOnDate(txs []core.Transaction, date core.Date) []core.Transaction {
	out := []core.Transaction{}
	for _, tx := range txs {
		if tx.Date.SameDay(date) {
			out = append(out, tx)
		}
	}
	return out
}

// ByCurrencyTotals sums income and expense independently per currency.
func ByCurrencyTotals(txs []core.Transaction) map[string]core.Totals {
	out := map[string]core.Totals{}
	for _, tx := range txs {
		out[tx.Currency] = out[tx.Currency].Add(tx)
	}
	return out
}

func inMonth(tx core.Transaction, year, month int, currency string) bool {
	return tx.Date.Year() == year && tx.Date.Month() == month && tx.Currency == currency
}

// MonthlySeries returns twelve entries, January first, zero-filled.
func MonthlySeries(txs []core.Transaction, year int, currency string) []MonthTotals {
	series := make([]MonthTotals, 12)
	for i := range series {
		series[i] = MonthTotals{Month: i + 1, Income: decimal.Zero, Expense: decimal.Zero}
	}
	for _, tx := range txs {
		if tx.Date.Year() != year || tx.Currency != currency {
			continue
		}
		m := &series[tx.Date.Month()-1]
		switch tx.Type {
		case core.Income:
			m.Income = m.Income.Add(tx.Amount)
		case core.Expense:
			m.Expense = m.Expense.Add(tx.Amount)
		}
	}
	return series
}

// YearTotals folds a monthly series into one pair of totals.
func YearTotals(series []MonthTotals) core.Totals {
	t := core.Totals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, m := range series {
		t.Income = t.Income.Add(m.Income)
		t.Expense = t.Expense.Add(m.Expense)
	}
	return t
}

func matches(tx core.Transaction, year, month int, currency string, direction core.Direction) bool {
	if !inMonth(tx, year, month, currency) {
		return false
	}
	return direction == core.DirectionAll || direction == "" || tx.Type == direction
}

// CategoryBreakdown sums amounts per category for one month, currency and
// direction (DirectionAll for both). Colors follow first appearance.
func CategoryBreakdown(txs []core.Transaction, year, month int, currency string, direction core.Direction) []Slice {
	out := []Slice{}
	index := map[string]int{}
	for _, tx := range txs {
		if !matches(tx, year, month, currency, direction) {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(out)
			index[tx.Category] = i
			out = append(out, Slice{
				Category: tx.Category,
				Amount:   decimal.Zero,
				Color:    Palette[i%len(Palette)],
			})
		}
		out[i].Amount = out[i].Amount.Add(tx.Amount)
	}
	return out
}

// Summary is the headline of a period report.
type Summary struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// PeriodSummary totals the transactions a CategoryBreakdown would cover.
func PeriodSummary(txs []core.Transaction, year, month int, currency string, direction core.Direction) Summary {
	s := Summary{Total: decimal.Zero}
	for _, tx := range txs {
		if matches(tx, year, month, currency, direction) {
			s.Total = s.Total.Add(tx.Amount)
			s.Count++
		}
	}
	return s
}

// CountByCurrency counts the month's transactions per currency.
func CountByCurrency(txs []core.Transaction, year, month int) map[string]int {
	out := map[string]int{}
	for _, tx := range txs {
		if tx.Date.Year() == year && tx.Date.Month() == month {
			out[tx.Currency]++
		}
	}
	return out
}
