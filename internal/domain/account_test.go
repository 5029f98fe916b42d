package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAccount_Withdraw(t *testing.T) {
	tests := []struct {
		name        string
		available   decimal.Decimal
		amount      decimal.Decimal
		expectError error
		want        decimal.Decimal
	}{
		{
			name:      "withdraw less than available",
			available: decimal.NewFromInt(100),
			amount:    decimal.NewFromInt(40),
			want:      decimal.NewFromInt(60),
		},
		{
			name:      "withdraw exact available",
			available: decimal.NewFromInt(100),
			amount:    decimal.NewFromInt(100),
			want:      decimal.Zero,
		},
		{
			name:        "withdraw more than available",
			available:   decimal.NewFromInt(100),
			amount:      decimal.NewFromInt(150),
			expectError: ErrInsufficientFunds,
			want:        decimal.NewFromInt(100),
		},
		{
			name:        "negative amount",
			available:   decimal.NewFromInt(100),
			amount:      decimal.NewFromInt(-1),
			expectError: ErrNegativeAmount,
			want:        decimal.NewFromInt(100),
		},
		{
			name:        "negative available",
			available:   decimal.NewFromInt(-5),
			amount:      decimal.NewFromInt(1),
			expectError: ErrInsufficientFunds,
			want:        decimal.NewFromInt(-5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{Available: tt.available}

			err := acc.Withdraw(tt.amount)

			if !errors.Is(err, tt.expectError) {
				t.Fatalf("expected error %v, got %v", tt.expectError, err)
			}
			if !acc.Available.Equal(tt.want) {
				t.Errorf("expected available %s, got %s", tt.want, acc.Available)
			}
		})
	}
}

func TestAccount_Deposit(t *testing.T) {
	acc := NewAccount(1)

	if err := acc.Deposit(decimal.RequireFromString("1.2345")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := acc.Deposit(decimal.NewFromInt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}

	expected := decimal.RequireFromString("1.2345")
	if !acc.Available.Equal(expected) {
		t.Errorf("expected available %s, got %s", expected, acc.Available)
	}
}

func TestAccount_HoldReleaseRoundTrip(t *testing.T) {
	acc := &Account{Available: decimal.NewFromInt(4), Held: decimal.Zero}

	acc.Hold(decimal.NewFromInt(5))
	if !acc.Available.Equal(decimal.NewFromInt(-1)) || !acc.Held.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected balances after hold: available=%s held=%s", acc.Available, acc.Held)
	}
	if !acc.Total().Equal(decimal.NewFromInt(4)) {
		t.Fatalf("hold must not change total, got %s", acc.Total())
	}

	acc.Release(decimal.NewFromInt(5))
	if !acc.Available.Equal(decimal.NewFromInt(4)) || !acc.Held.IsZero() {
		t.Errorf("expected pre-hold balances, got available=%s held=%s", acc.Available, acc.Held)
	}
}

func TestAccount_Charge(t *testing.T) {
	acc := &Account{Available: decimal.NewFromInt(-1), Held: decimal.NewFromInt(5)}

	acc.Charge(decimal.NewFromInt(5))

	if !acc.Locked {
		t.Error("expected account to be locked")
	}
	if !acc.Held.IsZero() {
		t.Errorf("expected held 0, got %s", acc.Held)
	}
	if !acc.Total().Equal(decimal.NewFromInt(-1)) {
		t.Errorf("expected total -1, got %s", acc.Total())
	}
}
