package core

import "github.com/shopspring/decimal"

// Totals holds income and expense sums for a single currency.
type Totals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// Add folds one transaction into the totals.
func (t Totals) Add(tx Transaction) Totals {
	switch tx.Type {
	case Income:
		t.Income = t.Income.Add(tx.Amount)
	case Expense:
		t.Expense = t.Expense.Add(tx.Amount)
	}
	return t
}

// Net is income minus expense.
func (t Totals) Net() decimal.Decimal {
	return t.Income.Sub(t.Expense)
}
