package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"

	// DirectionAll is only meaningful as a filter value.
	DirectionAll Direction = "all"
)

// DateLayout is the canonical on-the-wire form of a calendar date.
const DateLayout = "2006-01-02"

type (
	Direction string

	// Date is a calendar day without a time component. The wrapped time is
	// always midnight UTC so comparisons never cross a day boundary.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string          `json:"id"`
		Date        Date            `json:"date"`
		Type        Direction       `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDirection = errors.New("invalid transaction type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("unknown currency")
	ErrEmptyCategory    = errors.New("empty category")
)

// Valid reports whether d is one of the two transaction directions.
func (d Direction) Valid() bool {
	return d == Income || d == Expense
}

// ParseDirection accepts "income", "expense" and, when allowAll is set, "all".
func ParseDirection(s string, allowAll bool) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if d.Valid() || (allowAll && d == DirectionAll) {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string as a date-only value. Longer inputs
// such as RFC 3339 timestamps are cut to their first ten characters, so the
// day written in the string is the day returned.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
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

// SameDay compares year, month and day only.
func (d Date) SameDay(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month() && d.Day() == o.Day()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Signed returns the amount with the sign implied by the direction.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidDirection
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if _, ok := LookupCurrency(t.Currency); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, t.Currency)
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}
