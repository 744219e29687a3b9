// Package ledger owns the signed-in user's transaction collection and keeps
// it consistent with the remote store. Writes are applied locally only after
// the store confirms them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/session"
	"kakeibo/internal/store"
)

// TempIDPrefix marks ids assigned locally when the store returned none.
const TempIDPrefix = "tmp-"

// Repository is the authoritative in-memory copy of one user's ledger.
type Repository struct {
	remote   store.Remote
	sessions session.Provider
	notifier store.ChangeNotifier
	logger   *log.Logger
	now      func() time.Time

	mu      sync.RWMutex
	txs     []core.Transaction
	owner   string
	version uint64
	epoch   uint64 // bumped by Clear
	issued  uint64 // last load sequence handed out
	applied uint64 // sequence of the load currently shown

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

type Option func(*Repository)

// WithNotifier publishes accepted writes. A nil notifier disables fan-out.
func WithNotifier(n store.ChangeNotifier) Option {
	return func(r *Repository) { r.notifier = n }
}

func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) { r.logger = logger }
}

// WithClock overrides the clock used for update timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func NewRepository(remote store.Remote, sessions session.Provider, opts ...Option) *Repository {
	r := &Repository{
		remote:   remote,
		sessions: sessions,
		logger:   log.Default(log.ComponentLedger),
		now:      time.Now,
		subs:     map[int]chan struct{}{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Transactions returns a snapshot of the collection, newest first as loaded.
func (r *Repository) Transactions() []core.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]core.Transaction(nil), r.txs...)
}

// Get returns the transaction with id from the collection.
func (r *Repository) Get(id string) (core.Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tx := range r.txs {
		if tx.ID == id {
			return tx, true
		}
	}
	return core.Transaction{}, false
}

// Owner is the user id the collection was loaded for, empty when cleared.
func (r *Repository) Owner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// Version increases on every change to the collection.
func (r *Repository) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Changes returns a channel signalled after every change, and a func to
// stop receiving. Signals are coalesced: a slow reader sees at least one.
func (r *Repository) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subMu.Unlock()

	return ch, func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		if _, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(ch)
		}
	}
}

func (r *Repository) notify() {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Load replaces the collection with the current user's rows. Without a
// session the collection is cleared and nil is returned.
//
// A load whose result arrives after a Clear, after a newer load was
// applied, or after the session changed is discarded with
// session.ErrStaleLoad.
func (r *Repository) Load(ctx context.Context) error {
	sess, err := r.sessions.CurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("current session: %w", err)
	}
	if sess == nil {
		r.Clear()
		return nil
	}

	r.mu.Lock()
	r.issued++
	seq := r.issued
	epoch := r.epoch
	r.mu.Unlock()

	rows, err := r.remote.List(ctx, sess.UserID)
	if err != nil {
		return remoteErr("list", err)
	}

	current, err := r.sessions.CurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("current session: %w", err)
	}

	txs := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.Transaction())
	}

	r.mu.Lock()
	switch {
	case r.epoch != epoch, seq < r.applied, !sess.SameIdentity(current):
		r.mu.Unlock()
		r.logger.DebugContext(ctx, "Discarding stale load",
			log.FieldLoadSeq, seq,
			log.FieldSessionID, sess.ID)
		return session.ErrStaleLoad
	}
	r.applied = seq
	r.txs = txs
	r.owner = sess.UserID
	r.version++
	r.mu.Unlock()

	r.notify()
	r.logger.InfoContext(ctx, "Ledger loaded",
		log.FieldOwnerID, sess.UserID,
		log.FieldCount, len(txs),
		log.FieldLoadSeq, seq)
	return nil
}

// Clear empties the collection without touching the store.
func (r *Repository) Clear() {
	r.mu.Lock()
	r.txs = nil
	r.owner = ""
	r.epoch++
	r.version++
	r.mu.Unlock()
	r.notify()
}

// Add persists a new transaction and prepends the stored record.
func (r *Repository) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := validate(tx); err != nil {
		return core.Transaction{}, err
	}
	sess, err := r.requireSession(ctx)
	if err != nil {
		return core.Transaction{}, err
	}

	epoch := r.currentEpoch()
	tx.ID = ""
	row, err := r.remote.Insert(ctx, store.RowFromTransaction(sess.UserID, tx))
	if err != nil {
		return core.Transaction{}, remoteErr("insert", err)
	}
	saved := row.Transaction()
	if saved.ID == "" {
		saved.ID = TempIDPrefix + uuid.NewString()
		r.logger.WarnContext(ctx, "Store returned no id, using temporary id", log.FieldTransactionID, saved.ID)
	}

	r.applyIfCurrent(ctx, sess, epoch, func() {
		r.txs = append([]core.Transaction{saved}, r.txs...)
	})

	r.publish(ctx, store.ChangeCreated, sess.UserID, saved, core.Date{})
	return saved, nil
}

// Update sends a full replacement for id and swaps it into the collection.
func (r *Repository) Update(ctx context.Context, id string, patch core.Transaction) (core.Transaction, error) {
	if err := validate(patch); err != nil {
		return core.Transaction{}, err
	}
	sess, err := r.requireSession(ctx)
	if err != nil {
		return core.Transaction{}, err
	}

	old, _ := r.Get(id)
	epoch := r.currentEpoch()
	row := store.RowFromTransaction(sess.UserID, patch)
	row.ID = id
	row.UpdatedAt = r.now().UTC()
	stored, err := r.remote.Update(ctx, sess.UserID, id, row)
	if err != nil {
		return core.Transaction{}, remoteErr("update", err)
	}
	saved := stored.Transaction()
	if saved.ID == "" {
		saved.ID = id
	}

	r.applyIfCurrent(ctx, sess, epoch, func() {
		for i := range r.txs {
			if r.txs[i].ID == id {
				r.txs[i] = saved
				break
			}
		}
	})

	r.publish(ctx, store.ChangeUpdated, sess.UserID, saved, old.Date)
	return saved, nil
}

// Delete removes id from the store and then from the collection.
func (r *Repository) Delete(ctx context.Context, id string) error {
	sess, err := r.requireSession(ctx)
	if err != nil {
		return err
	}
	old, _ := r.Get(id)
	epoch := r.currentEpoch()

	if err := r.remote.Delete(ctx, sess.UserID, id); err != nil {
		return remoteErr("delete", err)
	}

	r.applyIfCurrent(ctx, sess, epoch, func() {
		for i := range r.txs {
			if r.txs[i].ID == id {
				r.txs = append(r.txs[:i:i], r.txs[i+1:]...)
				break
			}
		}
	})

	old.ID = id
	r.publish(ctx, store.ChangeDeleted, sess.UserID, old, core.Date{})
	return nil
}

func (r *Repository) currentEpoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// applyIfCurrent runs apply under the write lock unless the collection was
// cleared or handed to another session while the store call was in flight.
// Callers still publish: the store write itself already happened.
func (r *Repository) applyIfCurrent(ctx context.Context, sess *core.Session, epoch uint64, apply func()) bool {
	current, err := r.sessions.CurrentSession(ctx)
	if err != nil || !sess.SameIdentity(current) {
		r.logger.DebugContext(ctx, "Skipping local apply, session changed", log.FieldSessionID, sess.ID)
		return false
	}

	r.mu.Lock()
	if r.epoch != epoch || (r.owner != "" && r.owner != sess.UserID) {
		r.mu.Unlock()
		r.logger.DebugContext(ctx, "Skipping local apply, collection cleared", log.FieldSessionID, sess.ID)
		return false
	}
	apply()
	r.version++
	r.mu.Unlock()
	r.notify()
	return true
}

func (r *Repository) requireSession(ctx context.Context) (*core.Session, error) {
	sess, err := r.sessions.CurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("current session: %w", err)
	}
	if sess == nil {
		return nil, core.ErrUnauthenticated
	}
	return sess, nil
}

func (r *Repository) publish(ctx context.Context, op store.ChangeOp, ownerID string, tx core.Transaction, prev core.Date) {
	r.logger.InfoContext(ctx, "Transaction "+string(op),
		append(log.TransactionAttrs(ownerID, tx), log.FieldOperation, string(op))...)
	if r.notifier == nil {
		r.logger.DebugContext(ctx, "No change notifier configured, skipping publish")
		return
	}
	change := store.LedgerChange{
		Op:            op,
		OwnerID:       ownerID,
		TransactionID: tx.ID,
		Date:          tx.Date,
		Currency:      tx.Currency,
	}
	if !prev.IsZero() && !prev.SameDay(tx.Date) {
		change.PreviousDate = prev
	}
	if err := r.notifier.PublishLedgerChange(ctx, change); err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish ledger change",
			log.FieldTransactionID, tx.ID,
			log.FieldOperation, string(op),
			log.FieldError, err)
	}
}

func validate(tx core.Transaction) error {
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("%w: amount is required", core.ErrValidationFailed)
	}
	if strings.TrimSpace(tx.Category) == "" {
		return fmt.Errorf("%w: category is required", core.ErrValidationFailed)
	}
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrValidationFailed, err)
	}
	return nil
}

func remoteErr(op string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotFound
	}
	var re *core.RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &core.RemoteError{Op: op, Err: err}
}
