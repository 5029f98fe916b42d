package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/iho/paymentsengine/internal/domain"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func deposit(id uint32, client uint16, amount string) *domain.Transaction {
	return &domain.Transaction{
		ID:           id,
		ClientID:     client,
		Kind:         domain.TransactionKindDeposit,
		Amount:       decimal.RequireFromString(amount),
		DisputeState: domain.DisputeStateNone,
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	store, err := Open(path)
	require.NoError(t, err)

	account := domain.NewAccount(3)
	account.Available = decimal.RequireFromString("-1.2345")
	account.Held = decimal.RequireFromString("5")
	account.Locked = true

	require.NoError(t, store.Commit(ctx, deposit(42, 3, "5"), account))
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path)

	got, err := reopened.GetSnapshot(ctx, 3)
	require.NoError(t, err)
	assert.True(t, got.Available.Equal(account.Available), "available %s", got.Available)
	assert.True(t, got.Held.Equal(account.Held), "held %s", got.Held)
	assert.True(t, got.Locked)

	record, err := reopened.GetTransaction(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), record.ClientID)
	assert.Equal(t, domain.TransactionKindDeposit, record.Kind)
	assert.True(t, record.Amount.Equal(decimal.NewFromInt(5)))
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	_, err := store.GetTransaction(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetSnapshot(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func disputed(r *domain.Transaction) *domain.Transaction {
	r.DisputeState = domain.DisputeStateDisputed
	return r
}

func TestStorePutTransactionConflicts(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	require.NoError(t, store.PutTransaction(ctx, deposit(1, 1, "2.5")))

	tests := []struct {
		name    string
		record  *domain.Transaction
		wantErr error
	}{
		{
			name:   "dispute state update",
			record: disputed(deposit(1, 1, "2.5")),
		},
		{
			name:   "equal amount with different scale",
			record: disputed(deposit(1, 1, "2.5000")),
		},
		{
			name:    "fresh record with taken id",
			record:  deposit(1, 1, "2.5"),
			wantErr: domain.ErrDuplicateTransaction,
		},
		{
			name:    "fresh record from another client",
			record:  deposit(1, 2, "7"),
			wantErr: domain.ErrDuplicateTransaction,
		},
		{
			name:    "different amount",
			record:  disputed(deposit(1, 1, "3")),
			wantErr: domain.ErrCorruptLedger,
		},
		{
			name:    "different client",
			record:  disputed(deposit(1, 2, "2.5")),
			wantErr: domain.ErrCorruptLedger,
		},
		{
			name: "different kind",
			record: func() *domain.Transaction {
				r := disputed(deposit(1, 1, "2.5"))
				r.Kind = domain.TransactionKindWithdrawal
				return r
			}(),
			wantErr: domain.ErrCorruptLedger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.PutTransaction(ctx, tt.record)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	record, err := store.GetTransaction(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), record.ClientID)
	assert.True(t, record.Amount.Equal(decimal.RequireFromString("2.5")))
}

func TestStoreCommitIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	require.NoError(t, store.PutTransaction(ctx, deposit(1, 1, "1")))

	err := store.Commit(ctx, deposit(1, 2, "1"), domain.NewAccount(2))
	require.ErrorIs(t, err, domain.ErrDuplicateTransaction)

	_, err = store.GetSnapshot(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = store.Commit(ctx, disputed(deposit(1, 3, "1")), domain.NewAccount(3))
	require.ErrorIs(t, err, domain.ErrCorruptLedger)

	_, err = store.GetSnapshot(ctx, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreListSnapshotsOrdered(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	for _, id := range []uint16{300, 2, 65535, 17} {
		require.NoError(t, store.PutSnapshot(ctx, domain.NewAccount(id)))
	}

	accounts, err := store.ListSnapshots(ctx)
	require.NoError(t, err)

	ids := make([]uint16, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ClientID)
	}
	assert.Equal(t, []uint16{2, 17, 300, 65535}, ids)
}

func TestStoreDetectsCorruptRows(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))

	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(transactionsBucket).Put(transactionKey(9), []byte("not json"))
	})
	require.NoError(t, err)

	_, err = store.GetTransaction(ctx, 9)
	assert.True(t, errors.Is(err, domain.ErrCorruptLedger), "got %v", err)
}

func TestStorePing(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	assert.NoError(t, store.Ping(context.Background()))
}
