package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-03-05", NewDate(2024, 3, 5), true},
		{" 2024-12-31 ", NewDate(2024, 12, 31), true},
		{"2024-03-05T23:30:00-09:00", NewDate(2024, 3, 5), true}, // day as written, no offset shift
		{"2024-02-30", Date{}, false},
		{"05/03/2024", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestDateOfKeepsLocalDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 00:30 in Tokyo is still the previous day in UTC.
	ts := time.Date(2024, 3, 5, 0, 30, 0, 0, tokyo)
	if got := DateOf(ts); !got.SameDay(NewDate(2024, 3, 5)) {
		t.Fatalf("expected 2024-03-05, got %s", got)
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 1, 9))
	if err != nil || string(b) != `"2024-01-09"` {
		t.Fatalf("unexpected marshal: %s err=%v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2024-01-09"`), &d); err != nil || !d.SameDay(NewDate(2024, 1, 9)) {
		t.Fatalf("unexpected unmarshal: %v err=%v", d, err)
	}
	if err := json.Unmarshal([]byte(`"nope"`), &d); err == nil {
		t.Fatalf("expected error for bad date")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:     NewDate(2024, 3, 5),
		Type:     Expense,
		Amount:   decimal.NewFromInt(1200),
		Currency: "JPY",
		Category: "食費",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []func(tx *Transaction){
		func(tx *Transaction) { tx.Date = Date{} },
		func(tx *Transaction) { tx.Type = "transfer" },
		func(tx *Transaction) { tx.Amount = decimal.Zero },
		func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) },
		func(tx *Transaction) { tx.Currency = "EUR" },
		func(tx *Transaction) { tx.Category = "  " },
	}
	for i, mutate := range bads {
		tx := good
		mutate(&tx)
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestSignedAmount(t *testing.T) {
	tx := Transaction{Type: Expense, Amount: decimal.NewFromInt(10)}
	if !tx.Signed().Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("expense should be negative, got %s", tx.Signed())
	}
	tx.Type = Income
	if !tx.Signed().Equal(decimal.NewFromInt(10)) {
		t.Fatalf("income should be positive, got %s", tx.Signed())
	}
}

func TestParseDirection(t *testing.T) {
	if d, err := ParseDirection("Income", false); err != nil || d != Income {
		t.Fatalf("expected income, got %q err=%v", d, err)
	}
	if _, err := ParseDirection("all", false); err == nil {
		t.Fatalf("all must be rejected when not allowed")
	}
	if d, err := ParseDirection("all", true); err != nil || d != DirectionAll {
		t.Fatalf("expected all, got %q err=%v", d, err)
	}
}

func TestRemoteErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&RemoteError{Op: "insert", Err: cause})
	if !errors.Is(err, cause) || !IsRemote(err) {
		t.Fatalf("remote error should unwrap to its cause")
	}
	if IsRemote(ErrNotFound) {
		t.Fatalf("not found is not a remote error")
	}
}

func TestSessionIdentity(t *testing.T) {
	a := &Session{ID: "s1", UserID: "u1"}
	b := &Session{ID: "s1", UserID: "u1", Email: "x@example.com"}
	c := &Session{ID: "s2", UserID: "u1"}
	if !a.SameIdentity(b) || a.SameIdentity(c) || a.SameIdentity(nil) {
		t.Fatalf("unexpected identity comparison")
	}
	var none *Session
	if !none.SameIdentity(nil) {
		t.Fatalf("two absent sessions are the same identity")
	}
}
