package usecase

import (
	"context"

	"github.com/iho/paymentsengine/internal/domain"
)

// LedgerStore is the durable record of transactions and client snapshots.
//
// Every write must be durable before it returns. Lookups of absent keys
// return domain.ErrNotFound. A transaction in dispute state none is a fresh
// record: if its ID is already stored the write changes nothing and returns
// domain.ErrDuplicateTransaction, checked atomically with the write. Updating
// a transaction with base fields that differ from the stored record returns
// domain.ErrCorruptLedger. Any other error is fatal to ingestion.
type LedgerStore interface {
	PutTransaction(ctx context.Context, tx *domain.Transaction) error
	GetTransaction(ctx context.Context, id uint32) (*domain.Transaction, error)
	PutSnapshot(ctx context.Context, account *domain.Account) error
	GetSnapshot(ctx context.Context, clientID uint16) (*domain.Account, error)
}

// AtomicCommitter is implemented by stores that can persist a transaction
// record and the resulting snapshot in a single durable write.
type AtomicCommitter interface {
	Commit(ctx context.Context, tx *domain.Transaction, account *domain.Account) error
}

// SnapshotLister enumerates every persisted snapshot ordered by client ID.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context) ([]*domain.Account, error)
}

// ReportStore is a ledger store that can also be read back for reporting.
type ReportStore interface {
	LedgerStore
	SnapshotLister
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}
