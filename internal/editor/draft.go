package editor

import (
	"encoding/json"
	"fmt"
	"strings"

	"kakeibo/internal/core"
)

// Draft is the editor's form. It is a value: every With method returns a
// changed copy and leaves the receiver alone.
type Draft struct {
	date        core.Date
	typ         core.Direction
	amount      string
	currency    string
	category    string
	description string
}

// BlankDraft is the form shown for a new transaction on date.
func BlankDraft(date core.Date, currency string) Draft {
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return Draft{date: date, typ: core.Expense, currency: currency}
}

// DraftFrom pre-fills a form from an existing transaction.
func DraftFrom(tx core.Transaction) Draft {
	return Draft{
		date:        tx.Date,
		typ:         tx.Type,
		amount:      tx.Amount.String(),
		currency:    tx.Currency,
		category:    tx.Category,
		description: tx.Description,
	}
}

func (d Draft) Date() core.Date      { return d.date }
func (d Draft) Type() core.Direction { return d.typ }
func (d Draft) Amount() string       { return d.amount }
func (d Draft) Currency() string     { return d.currency }
func (d Draft) Category() string     { return d.category }
func (d Draft) Description() string  { return d.description }

func (d Draft) WithDate(v core.Date) Draft {
	d.date = v
	return d
}

func (d Draft) WithType(v core.Direction) Draft {
	d.typ = v
	return d
}

func (d Draft) WithAmount(v string) Draft {
	d.amount = v
	return d
}

func (d Draft) WithCurrency(v string) Draft {
	d.currency = v
	return d
}

func (d Draft) WithCategory(v string) Draft {
	d.category = v
	return d
}

func (d Draft) WithDescription(v string) Draft {
	d.description = v
	return d
}

// Complete reports whether amount and category are both filled in.
func (d Draft) Complete() bool {
	return strings.TrimSpace(d.amount) != "" && strings.TrimSpace(d.category) != ""
}

// Transaction converts the form into a transaction ready for the ledger.
func (d Draft) Transaction() (core.Transaction, error) {
	if !d.Complete() {
		return core.Transaction{}, fmt.Errorf("%w: amount and category are required", core.ErrValidationFailed)
	}
	amount, err := core.ParseAmount(d.amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("%w: %v", core.ErrValidationFailed, err)
	}
	return core.Transaction{
		Date:        d.date,
		Type:        d.typ,
		Amount:      amount,
		Currency:    d.currency,
		Category:    strings.TrimSpace(d.category),
		Description: strings.TrimSpace(d.description),
	}, nil
}

type draftJSON struct {
	Date        core.Date      `json:"date"`
	Type        core.Direction `json:"type"`
	Amount      string         `json:"amount"`
	Currency    string         `json:"currency"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
}

func (d Draft) MarshalJSON() ([]byte, error) {
	return json.Marshal(draftJSON{
		Date:        d.date,
		Type:        d.typ,
		Amount:      d.amount,
		Currency:    d.currency,
		Category:    d.category,
		Description: d.description,
	})
}
