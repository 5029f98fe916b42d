package domain

import (
	"github.com/shopspring/decimal"
)

// TransactionKind is the kind of a base ledger record.
type TransactionKind string

const (
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

// IsValid checks if the kind is a known base record kind.
func (k TransactionKind) IsValid() bool {
	return k == TransactionKindDeposit || k == TransactionKindWithdrawal
}

// DisputeState tracks where a record is in the dispute lifecycle.
//
//	none -> disputed -> resolved | charged_back
//
// Resolved and charged_back are terminal.
type DisputeState string

const (
	DisputeStateNone        DisputeState = "none"
	DisputeStateDisputed    DisputeState = "disputed"
	DisputeStateResolved    DisputeState = "resolved"
	DisputeStateChargedBack DisputeState = "charged_back"
)

var validDisputeStates = map[DisputeState]bool{
	DisputeStateNone:        true,
	DisputeStateDisputed:    true,
	DisputeStateResolved:    true,
	DisputeStateChargedBack: true,
}

// IsValid checks if the state is a known dispute state.
func (s DisputeState) IsValid() bool {
	return validDisputeStates[s]
}

// Transaction is a persisted deposit or withdrawal. Only DisputeState
// changes after the record is first written.
type Transaction struct {
	ID           uint32
	ClientID     uint16
	Kind         TransactionKind
	Amount       decimal.Decimal
	DisputeState DisputeState
}

// SameBase reports whether both records agree on their immutable fields.
func (t *Transaction) SameBase(other *Transaction) bool {
	return t.ID == other.ID &&
		t.ClientID == other.ClientID &&
		t.Kind == other.Kind &&
		t.Amount.Equal(other.Amount)
}

// Dispute moves a deposit from none to disputed.
func (t *Transaction) Dispute() error {
	if t.Kind != TransactionKindDeposit {
		return ErrWithdrawalNotDisputable
	}
	if t.DisputeState != DisputeStateNone {
		return ErrAlreadyDisputed
	}
	t.DisputeState = DisputeStateDisputed
	return nil
}

// Resolve closes an open dispute in the client's favour.
func (t *Transaction) Resolve() error {
	if t.DisputeState != DisputeStateDisputed {
		return ErrNotDisputed
	}
	t.DisputeState = DisputeStateResolved
	return nil
}

// Chargeback closes an open dispute against the client.
func (t *Transaction) Chargeback() error {
	if t.DisputeState != DisputeStateDisputed {
		return ErrNotDisputed
	}
	t.DisputeState = DisputeStateChargedBack
	return nil
}
