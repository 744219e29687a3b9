package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/core"
)

// Row is the persisted shape of a transaction, owner and timestamps included.
// An empty description is stored as NULL.
type Row struct {
	ID          string
	OwnerID     string
	Date        core.Date
	Type        core.Direction
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// User is a credential record for the built-in session provider.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// ChangeOp names an accepted ledger write.
type ChangeOp string

const (
	ChangeCreated ChangeOp = "created"
	ChangeUpdated ChangeOp = "updated"
	ChangeDeleted ChangeOp = "deleted"
)

// LedgerChange describes a write the remote store has confirmed.
type LedgerChange struct {
	Op            ChangeOp
	OwnerID       string
	TransactionID string
	Date          core.Date
	Currency      string
	// PreviousDate is set on updates that moved the transaction to another day.
	PreviousDate  core.Date
}

// Ports for outbound adapters.
type (
	// Remote is the persistent store transactions are synchronized with.
	// Every call is scoped to the owning user.
	Remote interface {
		// List returns the owner's rows ordered by date descending.
		List(ctx context.Context, ownerID string) ([]Row, error)
		// Insert stores a new row and returns it as persisted.
		Insert(ctx context.Context, row Row) (Row, error)
		// Update replaces an owned row. Returns core.ErrNotFound when no row matches.
		Update(ctx context.Context, ownerID, id string, row Row) (Row, error)
		// Delete removes an owned row. Returns core.ErrNotFound when no row matches.
		Delete(ctx context.Context, ownerID, id string) error
	}

	// Profiles keeps one profile row per signed-in user.
	Profiles interface {
		EnsureProfile(ctx context.Context, userID, displayName string) (created bool, err error)
	}

	// Users stores credentials. UserByEmail returns core.ErrNotFound for unknown addresses.
	Users interface {
		CreateUser(ctx context.Context, u User) (User, error)
		UserByEmail(ctx context.Context, email string) (User, error)
	}

	// ChangeNotifier fans accepted writes out to other processes.
	ChangeNotifier interface {
		PublishLedgerChange(ctx context.Context, change LedgerChange) error
	}
)

// ErrEmailTaken is returned by Users.CreateUser for duplicate addresses.
var ErrEmailTaken = errors.New("email already registered")

// RowFromTransaction builds the persisted form of tx for owner.
func RowFromTransaction(ownerID string, tx core.Transaction) Row {
	var desc *string
	if tx.Description != "" {
		d := tx.Description
		desc = &d
	}
	return Row{
		ID:          tx.ID,
		OwnerID:     ownerID,
		Date:        core.NewDate(tx.Date.Year(), tx.Date.Month(), tx.Date.Day()),
		Type:        tx.Type,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Category:    tx.Category,
		Description: desc,
	}
}

// Transaction converts a persisted row back to the in-memory form.
func (r Row) Transaction() core.Transaction {
	desc := ""
	if r.Description != nil {
		desc = *r.Description
	}
	return core.Transaction{
		ID:          r.ID,
		Date:        r.Date,
		Type:        r.Type,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Category:    r.Category,
		Description: desc,
	}
}
