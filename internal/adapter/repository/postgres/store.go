package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/usecase"
)

var (
	_ usecase.ReportStore     = (*Store)(nil)
	_ usecase.AtomicCommitter = (*Store)(nil)
	_ usecase.Pinger          = (*Store)(nil)
)

const (
	// Fresh records only. A taken tx_id inserts nothing.
	insertTransactionSQL = `
INSERT INTO ledger_transactions (tx_id, client_id, kind, amount, dispute_state)
VALUES ($1, $2, $3, $4::numeric, $5)
ON CONFLICT (tx_id) DO NOTHING`

	// The conditional update leaves a conflicting row untouched, so zero
	// affected rows means the base fields disagree.
	upsertTransactionSQL = `
INSERT INTO ledger_transactions (tx_id, client_id, kind, amount, dispute_state)
VALUES ($1, $2, $3, $4::numeric, $5)
ON CONFLICT (tx_id) DO UPDATE
SET dispute_state = EXCLUDED.dispute_state, updated_at = now()
WHERE ledger_transactions.client_id = EXCLUDED.client_id
  AND ledger_transactions.kind = EXCLUDED.kind
  AND ledger_transactions.amount = EXCLUDED.amount`

	getTransactionSQL = `
SELECT client_id, kind, amount::text, dispute_state
FROM ledger_transactions
WHERE tx_id = $1`

	upsertSnapshotSQL = `
INSERT INTO ledger_snapshots (client_id, available, held, locked)
VALUES ($1, $2::numeric, $3::numeric, $4)
ON CONFLICT (client_id) DO UPDATE
SET available = EXCLUDED.available,
    held = EXCLUDED.held,
    locked = EXCLUDED.locked,
    updated_at = now()`

	getSnapshotSQL = `
SELECT client_id, available::text, held::text, locked
FROM ledger_snapshots
WHERE client_id = $1`

	listSnapshotsSQL = `
SELECT client_id, available::text, held::text, locked
FROM ledger_snapshots
ORDER BY client_id`
)

// Store implements the ledger store on PostgreSQL.
type Store struct {
	pool    pgxPool
	retrier *Retrier
}

// NewStore creates a new Store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return newStoreWithPool(pool, NewRetrier(logger))
}

func newStoreWithPool(pool pgxPool, retrier *Retrier) *Store {
	return &Store{pool: pool, retrier: retrier}
}

// PutTransaction inserts a fresh record or updates the dispute state of an
// existing one. A fresh record whose ID is taken fails with
// ErrDuplicateTransaction; an update with different base fields fails with
// ErrCorruptLedger.
func (s *Store) PutTransaction(ctx context.Context, tx *domain.Transaction) error {
	return s.retrier.Retry(ctx, func() error {
		return putTransaction(ctx, s.pool, tx)
	})
}

// GetTransaction retrieves a transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, id uint32) (*domain.Transaction, error) {
	var (
		clientID            int32
		kind, amount, state string
	)

	err := s.pool.QueryRow(ctx, getTransactionSQL, int64(id)).Scan(&clientID, &kind, &amount, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}

		return nil, err
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %d amount %q", domain.ErrCorruptLedger, id, amount)
	}

	record := &domain.Transaction{
		ID:           id,
		ClientID:     uint16(clientID),
		Kind:         domain.TransactionKind(kind),
		Amount:       parsed,
		DisputeState: domain.DisputeState(state),
	}
	if !record.Kind.IsValid() || !record.DisputeState.IsValid() {
		return nil, fmt.Errorf("%w: transaction %d has kind %q state %q", domain.ErrCorruptLedger, id, kind, state)
	}

	return record, nil
}

// PutSnapshot upserts the snapshot of account.ClientID.
func (s *Store) PutSnapshot(ctx context.Context, account *domain.Account) error {
	return s.retrier.Retry(ctx, func() error {
		return putSnapshot(ctx, s.pool, account)
	})
}

// GetSnapshot retrieves the latest snapshot of clientID.
func (s *Store) GetSnapshot(ctx context.Context, clientID uint16) (*domain.Account, error) {
	account, err := scanSnapshot(s.pool.QueryRow(ctx, getSnapshotSQL, int32(clientID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}

		return nil, err
	}

	return account, nil
}

// Commit writes tx and account in one database transaction.
func (s *Store) Commit(ctx context.Context, tx *domain.Transaction, account *domain.Account) error {
	return s.retrier.Retry(ctx, func() error {
		return inTx(ctx, s.pool, func(dbTx pgx.Tx) error {
			if err := putTransaction(ctx, dbTx, tx); err != nil {
				return err
			}
			return putSnapshot(ctx, dbTx, account)
		})
	})
}

// ListSnapshots returns every snapshot ordered by client ID.
func (s *Store) ListSnapshots(ctx context.Context) ([]*domain.Account, error) {
	rows, err := s.pool.Query(ctx, listSnapshotsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func putTransaction(ctx context.Context, db execer, tx *domain.Transaction) error {
	fresh := tx.DisputeState == domain.DisputeStateNone
	query := upsertTransactionSQL
	if fresh {
		query = insertTransactionSQL
	}

	tag, err := db.Exec(ctx, query,
		int64(tx.ID),
		int32(tx.ClientID),
		string(tx.Kind),
		tx.Amount.String(),
		string(tx.DisputeState),
	)
	if err != nil {
		return err
	}

	switch {
	case tag.RowsAffected() > 0:
		return nil
	case fresh:
		return fmt.Errorf("%w: transaction %d", domain.ErrDuplicateTransaction, tx.ID)
	default:
		return fmt.Errorf("%w: transaction %d rewritten with different base fields", domain.ErrCorruptLedger, tx.ID)
	}
}

func putSnapshot(ctx context.Context, db execer, account *domain.Account) error {
	_, err := db.Exec(ctx, upsertSnapshotSQL,
		int32(account.ClientID),
		account.Available.String(),
		account.Held.String(),
		account.Locked,
	)

	return err
}

func scanSnapshot(row pgx.Row) (*domain.Account, error) {
	var (
		clientID        int32
		available, held string
		locked          bool
	)

	if err := row.Scan(&clientID, &available, &held, &locked); err != nil {
		return nil, err
	}

	account := &domain.Account{ClientID: uint16(clientID), Locked: locked}

	var err error
	if account.Available, err = decimal.NewFromString(available); err != nil {
		return nil, fmt.Errorf("%w: client %d available %q", domain.ErrCorruptLedger, clientID, available)
	}
	if account.Held, err = decimal.NewFromString(held); err != nil {
		return nil, fmt.Errorf("%w: client %d held %q", domain.ErrCorruptLedger, clientID, held)
	}

	return account, nil
}
