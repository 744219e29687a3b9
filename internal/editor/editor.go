// Package editor drives the view/add/edit workflow for a selected day.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kakeibo/internal/calendar"
	"kakeibo/internal/categories"
	"kakeibo/internal/core"
)

// ErrInvalidTransition is returned for triggers the current state does not accept.
var ErrInvalidTransition = errors.New("invalid editor transition")

// Ledger is the subset of the repository the editor writes through.
type Ledger interface {
	Transactions() []core.Transaction
	Add(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Editor owns the current State. All transitions go through its methods.
type Editor struct {
	ledger     Ledger
	categories *categories.Manager
	currency   string

	mu             sync.Mutex
	state          State
	showCategories bool
	saving         bool
}

// New creates a closed editor. currency seeds blank drafts.
func New(ledger Ledger, cats *categories.Manager, currency string) *Editor {
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return &Editor{ledger: ledger, categories: cats, currency: currency, state: Closed{}}
}

// Snapshot is the externally visible editor state.
type Snapshot struct {
	State            State
	ShowCategories   bool
	CanSave          bool
	Categories       []string
	CustomCategories []string
	DayTransactions  []core.Transaction
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot captures the state together with everything a view needs.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		State:          e.state,
		ShowCategories: e.showCategories,
		CanSave:        e.canSave(),
	}
	if _, closed := e.state.(Closed); !closed {
		s.DayTransactions = e.dayTransactions()
	}
	if d, ok := draftOf(e.state); ok {
		s.Categories = e.categories.CategoriesFor(d.Type())
		s.CustomCategories = e.categories.Custom(d.Type())
	}
	return s
}

// Select focuses date. Allowed while Closed or already Viewing.
func (e *Editor) Select(date core.Date) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state.(type) {
	case Closed, Viewing:
		e.state = Viewing{Date: date}
		return nil
	}
	return e.invalid("select")
}

// AddNew opens a blank draft for the viewed day.
func (e *Editor) AddNew() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.state.(Viewing)
	if !ok {
		return e.invalid("add")
	}
	e.state = Adding{Date: v.Date, Draft: BlankDraft(v.Date, e.currency)}
	return nil
}

// Edit opens a draft pre-filled from the transaction with id.
func (e *Editor) Edit(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.state.(Viewing)
	if !ok {
		return e.invalid("edit")
	}
	for _, tx := range e.ledger.Transactions() {
		if tx.ID == id {
			e.state = Editing{Date: v.Date, ID: id, Draft: DraftFrom(tx)}
			return nil
		}
	}
	return core.ErrNotFound
}

// UpdateDraft replaces the current draft with fn's result.
func (e *Editor) UpdateDraft(fn func(Draft) Draft) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := draftOf(e.state)
	if !ok {
		return e.invalid("update draft")
	}
	e.state = withDraft(e.state, fn(d))
	return nil
}

// CanSave is false while the draft lacks an amount or a category.
func (e *Editor) CanSave() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canSave()
}

func (e *Editor) canSave() bool {
	d, ok := draftOf(e.state)
	return ok && d.Complete()
}

// Save writes the draft through the ledger and returns to Viewing. On any
// failure the state, draft included, is kept. The lock is released while
// the ledger call runs. If the state moved on meanwhile the write stands
// and the newer state is kept.
func (e *Editor) Save(ctx context.Context) (core.Transaction, error) {
	e.mu.Lock()
	if e.saving {
		err := e.invalid("save")
		e.mu.Unlock()
		return core.Transaction{}, err
	}
	before := e.state
	d, ok := draftOf(before)
	if !ok {
		err := e.invalid("save")
		e.mu.Unlock()
		return core.Transaction{}, err
	}
	tx, err := d.Transaction()
	if err != nil {
		e.mu.Unlock()
		return core.Transaction{}, err
	}
	e.saving = true
	e.mu.Unlock()

	var saved core.Transaction
	switch s := before.(type) {
	case Adding:
		saved, err = e.ledger.Add(ctx, tx)
	case Editing:
		saved, err = e.ledger.Update(ctx, s.ID, tx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		return core.Transaction{}, err
	}
	if e.state == before {
		e.state = Viewing{Date: dateOf(before)}
		e.showCategories = false
	}
	return saved, nil
}

// Back discards the draft and returns to the day's list.
func (e *Editor) Back() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state.(type) {
	case Adding, Editing:
		e.state = Viewing{Date: dateOf(e.state)}
		e.showCategories = false
		return nil
	}
	return e.invalid("back")
}

// Close discards everything. Valid from any state.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Closed{}
	e.showCategories = false
}

// Delete removes a transaction while viewing its day; the state stays Viewing.
func (e *Editor) Delete(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.state.(Viewing); !ok {
		return e.invalid("delete")
	}
	return e.ledger.Delete(ctx, id)
}

// ToggleCategoryManager flips the category panel and returns its new visibility.
func (e *Editor) ToggleCategoryManager() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := draftOf(e.state); !ok {
		return false, e.invalid("toggle categories")
	}
	e.showCategories = !e.showCategories
	return e.showCategories, nil
}

// AddCategory adds a custom category for the draft's direction.
func (e *Editor) AddCategory(name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := draftOf(e.state)
	if !ok {
		return false, e.invalid("add category")
	}
	return e.categories.AddCustom(d.Type(), name), nil
}

// RemoveCategory removes a custom category for the draft's direction and
// clears the draft's selection when it pointed at the removed name.
func (e *Editor) RemoveCategory(name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := draftOf(e.state)
	if !ok {
		return false, e.invalid("remove category")
	}
	removed := e.categories.RemoveCustom(d.Type(), name)
	if removed && d.Category() == name {
		e.state = withDraft(e.state, d.WithCategory(""))
	}
	return removed, nil
}

// ReleaseCategory clears the draft's category after name was removed for
// direction d outside the editor.
func (e *Editor) ReleaseCategory(d core.Direction, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if draft, ok := draftOf(e.state); ok && draft.Type() == d && draft.Category() == name {
		e.state = withDraft(e.state, draft.WithCategory(""))
	}
}

// DayTransactions lists the selected day's transactions, empty when Closed.
func (e *Editor) DayTransactions() []core.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dayTransactions()
}

func (e *Editor) dayTransactions() []core.Transaction {
	date := dateOf(e.state)
	if date.IsZero() {
		return []core.Transaction{}
	}
	return calendar.TransactionsOnDate(e.ledger.Transactions(), date)
}

func (e *Editor) invalid(trigger string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, trigger, e.state.Name())
}
