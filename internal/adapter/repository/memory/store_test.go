package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/domain"
)

func TestStoreTransactions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.GetTransaction(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	tx := &domain.Transaction{
		ID:           1,
		ClientID:     7,
		Kind:         domain.TransactionKindDeposit,
		Amount:       decimal.RequireFromString("1.5"),
		DisputeState: domain.DisputeStateNone,
	}
	if err := store.PutTransaction(ctx, tx); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	tx.DisputeState = domain.DisputeStateDisputed

	got, err := store.GetTransaction(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.DisputeState != domain.DisputeStateNone {
		t.Fatalf("expected stored state none, got %s", got.DisputeState)
	}

	if err := store.PutTransaction(ctx, tx); err != nil {
		t.Fatalf("state update should be allowed, got %v", err)
	}

	conflict := *tx
	conflict.Amount = decimal.NewFromInt(2)
	if err := store.PutTransaction(ctx, &conflict); !errors.Is(err, domain.ErrCorruptLedger) {
		t.Fatalf("expected ErrCorruptLedger, got %v", err)
	}
}

func TestStoreCommitRejectsTakenIDAtomically(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	tx := &domain.Transaction{ID: 1, ClientID: 1, Kind: domain.TransactionKindDeposit, Amount: decimal.NewFromInt(5), DisputeState: domain.DisputeStateNone}
	account := domain.NewAccount(1)
	account.Available = decimal.NewFromInt(5)
	if err := store.Commit(ctx, tx, account); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	duplicate := &domain.Transaction{ID: 1, ClientID: 2, Kind: domain.TransactionKindDeposit, Amount: decimal.NewFromInt(5), DisputeState: domain.DisputeStateNone}
	if err := store.Commit(ctx, duplicate, domain.NewAccount(2)); !errors.Is(err, domain.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	if _, err := store.GetSnapshot(ctx, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("snapshot of failed commit must not be stored, got %v", err)
	}

	conflict := *duplicate
	conflict.DisputeState = domain.DisputeStateDisputed
	if err := store.Commit(ctx, &conflict, domain.NewAccount(2)); !errors.Is(err, domain.ErrCorruptLedger) {
		t.Fatalf("expected ErrCorruptLedger, got %v", err)
	}

	got, err := store.GetTransaction(ctx, 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.ClientID != 1 || got.DisputeState != domain.DisputeStateNone {
		t.Fatalf("existing record changed: %+v", got)
	}
}

func TestStoreListSnapshotsOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for _, id := range []uint16{9, 2, 5} {
		if err := store.PutSnapshot(ctx, domain.NewAccount(id)); err != nil {
			t.Fatalf("put snapshot failed: %v", err)
		}
	}

	accounts, err := store.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	want := []uint16{2, 5, 9}
	if len(accounts) != len(want) {
		t.Fatalf("expected %d snapshots, got %d", len(want), len(accounts))
	}
	for i, id := range want {
		if accounts[i].ClientID != id {
			t.Fatalf("position %d: expected client %d, got %d", i, id, accounts[i].ClientID)
		}
	}
}
