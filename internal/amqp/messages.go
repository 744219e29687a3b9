package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/store"
)

// LedgerChangeMessage announces a confirmed write. It carries just enough to
// locate the affected month; consumers reload the rows themselves.
type LedgerChangeMessage struct {
	Op            string    `json:"op"`
	OwnerID       string    `json:"owner_id"`
	TransactionID string    `json:"transaction_id"`
	Date          string    `json:"date"`
	Currency      string    `json:"currency"`
	PreviousDate  string    `json:"previous_date,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerChangeMessage(c store.LedgerChange) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Op:            string(c.Op),
		OwnerID:       c.OwnerID,
		TransactionID: c.TransactionID,
		Date:          c.Date.String(),
		Currency:      c.Currency,
		PreviousDate:  c.PreviousDate.String(),
		Timestamp:     time.Now(),
	}
}

func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID == "" {
		return nil, fmt.Errorf("ledger change without owner")
	}
	return &msg, nil
}

// Change converts the message back into the port type.
func (m *LedgerChangeMessage) Change() (store.LedgerChange, error) {
	date, err := optionalDate(m.Date)
	if err != nil {
		return store.LedgerChange{}, err
	}
	prev, err := optionalDate(m.PreviousDate)
	if err != nil {
		return store.LedgerChange{}, err
	}
	return store.LedgerChange{
		Op:            store.ChangeOp(m.Op),
		OwnerID:       m.OwnerID,
		TransactionID: m.TransactionID,
		Date:          date,
		Currency:      m.Currency,
		PreviousDate:  prev,
	}, nil
}

func optionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}
