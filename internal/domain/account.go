package domain

import (
	"github.com/shopspring/decimal"
)

// Account is the latest balance snapshot of a single client.
//
// Available may go negative when a deposit is disputed after its funds were
// withdrawn. Held never goes negative under normal operation.
type Account struct {
	ClientID  uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Locked    bool
}

// NewAccount returns a zero-balance, unlocked account for clientID.
func NewAccount(clientID uint16) *Account {
	return &Account{
		ClientID:  clientID,
		Available: decimal.Zero,
		Held:      decimal.Zero,
	}
}

// Total returns available plus held funds.
func (a *Account) Total() decimal.Decimal {
	return a.Available.Add(a.Held)
}

// Deposit credits amount to the available funds.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	a.Available = a.Available.Add(amount)
	return nil
}

// Withdraw debits amount from the available funds.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if a.Available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.Available = a.Available.Sub(amount)
	return nil
}

// Hold moves amount from available to held. It is not a funds check:
// available may become negative.
func (a *Account) Hold(amount decimal.Decimal) {
	a.Available = a.Available.Sub(amount)
	a.Held = a.Held.Add(amount)
}

// Release moves amount from held back to available.
func (a *Account) Release(amount decimal.Decimal) {
	a.Held = a.Held.Sub(amount)
	a.Available = a.Available.Add(amount)
}

// Charge removes amount from the held funds and locks the account.
func (a *Account) Charge(amount decimal.Decimal) {
	a.Held = a.Held.Sub(amount)
	a.Locked = true
}
