// Package worker keeps the spreadsheet mirror in step with the remote store.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/store"
)

// MonthExporter writes one month of an owner's ledger somewhere outside the
// store.
type MonthExporter interface {
	ExportMonth(ctx context.Context, owner string, year, month int, txs []core.Transaction) (string, error)
}

type month struct {
	year, month int
}

// MirrorWorker re-exports affected months on every ledger change. The store
// is the source of truth: messages only say which month to refresh.
type MirrorWorker struct {
	remote   store.Remote
	exporter MonthExporter
	logger   *log.Logger
	now      func() time.Time

	mu     sync.Mutex
	owners map[string]struct{}
}

type Option func(*MirrorWorker)

func WithClock(now func() time.Time) Option {
	return func(w *MirrorWorker) { w.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(w *MirrorWorker) { w.logger = logger }
}

// WithOwners seeds the set of owners the periodic resync covers.
func WithOwners(ids ...string) Option {
	return func(w *MirrorWorker) {
		for _, id := range ids {
			if id != "" {
				w.owners[id] = struct{}{}
			}
		}
	}
}

func NewMirrorWorker(remote store.Remote, exporter MonthExporter, opts ...Option) *MirrorWorker {
	w := &MirrorWorker{
		remote:   remote,
		exporter: exporter,
		logger:   log.Default(log.ComponentWorker),
		now:      time.Now,
		owners:   map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleLedgerChange is the AMQP handler. A returned error requeues the
// message.
func (w *MirrorWorker) HandleLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	change, err := msg.Change()
	if err != nil {
		// Unparseable dates will not get better on redelivery.
		w.logger.ErrorContext(ctx, "Dropping ledger change with bad date",
			log.FieldTransactionID, msg.TransactionID,
			"error", err)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing ledger change",
		log.FieldOperation, string(change.Op),
		log.FieldOwnerID, change.OwnerID,
		log.FieldTransactionID, change.TransactionID,
		log.FieldDate, change.Date.String())

	w.track(change.OwnerID)
	for _, m := range w.affectedMonths(change) {
		if err := w.MirrorMonth(ctx, change.OwnerID, m.year, m.month); err != nil {
			return err
		}
	}
	return nil
}

func (w *MirrorWorker) affectedMonths(c store.LedgerChange) []month {
	var out []month
	add := func(d core.Date) {
		if d.IsZero() {
			return
		}
		m := month{d.Year(), d.Month()}
		for _, seen := range out {
			if seen == m {
				return
			}
		}
		out = append(out, m)
	}
	add(c.Date)
	add(c.PreviousDate)
	if len(out) == 0 {
		now := w.now()
		out = append(out, month{now.Year(), int(now.Month())})
	}
	return out
}

// MirrorMonth reloads the owner's rows and exports the given month.
func (w *MirrorWorker) MirrorMonth(ctx context.Context, owner string, year, mon int) error {
	rows, err := w.remote.List(ctx, owner)
	if err != nil {
		return fmt.Errorf("list rows for %s: %w", owner, err)
	}
	txs := make([]core.Transaction, 0, len(rows))
	for _, r := range rows {
		if r.Date.Year() == year && r.Date.Month() == mon {
			txs = append(txs, r.Transaction())
		}
	}
	ref, err := w.exporter.ExportMonth(ctx, owner, year, mon, txs)
	if err != nil {
		return fmt.Errorf("export %04d-%02d: %w", year, mon, err)
	}
	w.logger.DebugContext(ctx, "Month exported",
		log.FieldOwnerID, owner,
		log.FieldSheetsRef, ref,
		log.FieldCount, len(txs))
	return nil
}

func (w *MirrorWorker) track(owner string) {
	if owner == "" {
		return
	}
	w.mu.Lock()
	w.owners[owner] = struct{}{}
	w.mu.Unlock()
}

// Owners returns the owners known to the worker, sorted.
func (w *MirrorWorker) Owners() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.owners))
	for id := range w.owners {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Resync re-exports the current month for every known owner. It is the
// backstop for lost messages. Failures are logged and counted; the first
// error is returned after all owners were attempted.
func (w *MirrorWorker) Resync(ctx context.Context) error {
	now := w.now()
	owners := w.Owners()
	var firstErr error
	failed := 0
	for _, owner := range owners {
		if err := w.MirrorMonth(ctx, owner, now.Year(), int(now.Month())); err != nil {
			w.logger.ErrorContext(ctx, "Resync failed", log.FieldOwnerID, owner, "error", err)
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	w.logger.InfoContext(ctx, "Resync completed",
		"owners", len(owners),
		"errors", failed)
	return firstErr
}

// Run calls Resync every interval until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = w.Resync(ctx)
		}
	}
}
