package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	gsheet "kakeibo/internal/sheets/google"
	"kakeibo/internal/store"
	"kakeibo/internal/store/memory"
)

type export struct {
	owner       string
	year, month int
	ids         []string
}

type fakeExporter struct {
	mu      sync.Mutex
	exports []export
	err     error
}

func (f *fakeExporter) ExportMonth(_ context.Context, owner string, year, month int, txs []core.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	f.exports = append(f.exports, export{owner, year, month, ids})
	return "ref", nil
}

// tabExporter replaces a whole tab on every export, like the Sheets client.
type tabExporter struct {
	mu   sync.Mutex
	tabs map[string][]string
}

func (f *tabExporter) ExportMonth(_ context.Context, owner string, year, month int, txs []core.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tab := gsheet.TabName(owner, year, month)
	ids := []string{}
	for _, row := range gsheet.MonthRows(txs, year, month)[1:] {
		ids = append(ids, row[6].(string))
	}
	f.tabs[tab] = ids
	return tab, nil
}

func row(id, owner, date string) store.Row {
	return store.Row{
		ID:       id,
		OwnerID:  owner,
		Date:     core.MustParseDate(date),
		Type:     core.Expense,
		Amount:   decimal.NewFromInt(100),
		Currency: "JPY",
		Category: "食費",
	}
}

func seeded() *memory.Store {
	mem := memory.New()
	mem.Seed(
		row("a", "u1", "2024-03-01"),
		row("b", "u1", "2024-03-30"),
		row("c", "u1", "2024-04-02"),
		row("d", "u2", "2024-03-15"),
	)
	return mem
}

func fixedClock() time.Time { return time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC) }

func TestHandleLedgerChange_ExportsOwnersMonth(t *testing.T) {
	exp := &fakeExporter{}
	w := NewMirrorWorker(seeded(), exp)

	err := w.HandleLedgerChange(context.Background(), &amqp.LedgerChangeMessage{
		Op: "created", OwnerID: "u1", TransactionID: "b", Date: "2024-03-30",
	})
	if err != nil {
		t.Fatalf("HandleLedgerChange() error = %v", err)
	}

	if len(exp.exports) != 1 {
		t.Fatalf("exports = %d, want 1", len(exp.exports))
	}
	got := exp.exports[0]
	if got.owner != "u1" || got.year != 2024 || got.month != 3 {
		t.Errorf("export = %+v", got)
	}
	if len(got.ids) != 2 {
		t.Errorf("exported ids = %v, want only u1's March rows", got.ids)
	}
}

func TestHandleLedgerChange_MovedUpdateRefreshesBothMonths(t *testing.T) {
	exp := &fakeExporter{}
	w := NewMirrorWorker(seeded(), exp)

	err := w.HandleLedgerChange(context.Background(), &amqp.LedgerChangeMessage{
		Op: "updated", OwnerID: "u1", TransactionID: "c", Date: "2024-04-02", PreviousDate: "2024-03-31",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(exp.exports) != 2 {
		t.Fatalf("exports = %d, want 2", len(exp.exports))
	}
	if exp.exports[0].month != 4 || exp.exports[1].month != 3 {
		t.Errorf("months = %d,%d, want 4,3", exp.exports[0].month, exp.exports[1].month)
	}
}

func TestHandleLedgerChange_NoDateUsesCurrentMonth(t *testing.T) {
	exp := &fakeExporter{}
	w := NewMirrorWorker(seeded(), exp, WithClock(fixedClock))

	if err := w.HandleLedgerChange(context.Background(), &amqp.LedgerChangeMessage{Op: "deleted", OwnerID: "u1"}); err != nil {
		t.Fatal(err)
	}
	if len(exp.exports) != 1 || exp.exports[0].month != 4 {
		t.Errorf("exports = %+v, want April", exp.exports)
	}
}

func TestHandleLedgerChange_BadDateIsDropped(t *testing.T) {
	exp := &fakeExporter{}
	w := NewMirrorWorker(seeded(), exp)

	err := w.HandleLedgerChange(context.Background(), &amqp.LedgerChangeMessage{OwnerID: "u1", Date: "garbage"})
	if err != nil {
		t.Errorf("bad date should be acknowledged, got %v", err)
	}
	if len(exp.exports) != 0 {
		t.Errorf("nothing should be exported, got %+v", exp.exports)
	}
}

func TestHandleLedgerChange_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memory.Store, *fakeExporter)
	}{
		{"store fails", func(m *memory.Store, _ *fakeExporter) {
			m.Fail = func(op string) error { return errors.New("db locked") }
		}},
		{"export fails", func(_ *memory.Store, e *fakeExporter) {
			e.err = errors.New("quota")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, exp := seeded(), &fakeExporter{}
			tt.setup(mem, exp)
			w := NewMirrorWorker(mem, exp)

			err := w.HandleLedgerChange(context.Background(), &amqp.LedgerChangeMessage{OwnerID: "u1", Date: "2024-03-01"})
			if err == nil {
				t.Error("expected an error so the message is requeued")
			}
		})
	}
}

func TestResync_CoversSeenAndSeededOwners(t *testing.T) {
	exp := &fakeExporter{}
	w := NewMirrorWorker(seeded(), exp, WithClock(fixedClock), WithOwners("u2"))

	_ = w.HandleLedgerChange(context.Background(), &amqp.LedgerChangeMessage{OwnerID: "u1", Date: "2024-03-01"})
	exp.exports = nil

	if err := w.Resync(context.Background()); err != nil {
		t.Fatalf("Resync() error = %v", err)
	}
	if got := w.Owners(); len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("Owners() = %v", got)
	}
	if len(exp.exports) != 2 {
		t.Fatalf("exports = %d, want 2", len(exp.exports))
	}
	for _, e := range exp.exports {
		if e.year != 2024 || e.month != 4 {
			t.Errorf("resync exported %d-%d, want current month", e.year, e.month)
		}
	}
}

func TestResync_TwoOwnersSameMonthKeepTheirRows(t *testing.T) {
	exp := &tabExporter{tabs: map[string][]string{}}
	march := func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) }
	w := NewMirrorWorker(seeded(), exp, WithClock(march), WithOwners("u1", "u2"))

	if err := w.Resync(context.Background()); err != nil {
		t.Fatalf("Resync() error = %v", err)
	}

	if len(exp.tabs) != 2 {
		t.Fatalf("tabs = %v, want one per owner", exp.tabs)
	}
	if got := exp.tabs["u1-2024-03"]; len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("u1 tab = %v, want [a b]", got)
	}
	if got := exp.tabs["u2-2024-03"]; len(got) != 1 || got[0] != "d" {
		t.Errorf("u2 tab = %v, want [d]", got)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	w := NewMirrorWorker(seeded(), &fakeExporter{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, time.Millisecond) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
