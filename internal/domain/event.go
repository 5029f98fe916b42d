package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EventType is the type of an incoming ledger instruction.
type EventType string

const (
	EventTypeDeposit    EventType = "deposit"
	EventTypeWithdrawal EventType = "withdrawal"
	EventTypeDispute    EventType = "dispute"
	EventTypeResolve    EventType = "resolve"
	EventTypeChargeback EventType = "chargeback"
)

// ParseEventType parses a case-insensitive event type name.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.ToLower(strings.TrimSpace(s))); t {
	case EventTypeDeposit, EventTypeWithdrawal, EventTypeDispute, EventTypeResolve, EventTypeChargeback:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, s)
	}
}

// CarriesAmount reports whether events of this type must carry an amount.
func (t EventType) CarriesAmount() bool {
	return t == EventTypeDeposit || t == EventTypeWithdrawal
}

// Event is a single instruction from the ingress stream. For dispute, resolve
// and chargeback TxID references an earlier deposit.
type Event struct {
	Type     EventType
	ClientID uint16
	TxID     uint32
	Amount   decimal.NullDecimal
}

// Validate checks that the amount is present exactly when the type needs one.
func (e Event) Validate() error {
	switch {
	case e.Type.CarriesAmount() && !e.Amount.Valid:
		return fmt.Errorf("%w: %s requires an amount", ErrMalformedEvent, e.Type)
	case !e.Type.CarriesAmount() && e.Amount.Valid:
		return fmt.Errorf("%w: %s must not carry an amount", ErrMalformedEvent, e.Type)
	}
	return nil
}

// Deposit builds a deposit event.
func Deposit(clientID uint16, txID uint32, amount decimal.Decimal) Event {
	return Event{Type: EventTypeDeposit, ClientID: clientID, TxID: txID, Amount: decimal.NewNullDecimal(amount)}
}

// Withdrawal builds a withdrawal event.
func Withdrawal(clientID uint16, txID uint32, amount decimal.Decimal) Event {
	return Event{Type: EventTypeWithdrawal, ClientID: clientID, TxID: txID, Amount: decimal.NewNullDecimal(amount)}
}

// Dispute builds a dispute event referencing txID.
func Dispute(clientID uint16, txID uint32) Event {
	return Event{Type: EventTypeDispute, ClientID: clientID, TxID: txID}
}

// Resolve builds a resolve event referencing txID.
func Resolve(clientID uint16, txID uint32) Event {
	return Event{Type: EventTypeResolve, ClientID: clientID, TxID: txID}
}

// Chargeback builds a chargeback event referencing txID.
func Chargeback(clientID uint16, txID uint32) Event {
	return Event{Type: EventTypeChargeback, ClientID: clientID, TxID: txID}
}
