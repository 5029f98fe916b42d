// Package bolt implements the ledger store on an embedded bbolt file.
//
// Every write runs in its own read-write transaction, which bbolt fsyncs
// before Update returns.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	bbolt "go.etcd.io/bbolt"

	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/usecase"
)

var (
	transactionsBucket = []byte("transactions")
	clientsBucket      = []byte("clients")
)

var (
	_ usecase.ReportStore     = (*Store)(nil)
	_ usecase.AtomicCommitter = (*Store)(nil)
	_ usecase.Pinger          = (*Store)(nil)
)

// Store is a bbolt-backed ledger store.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the store file at path, creating parent directories
// as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{transactionsBucket, clientsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutTransaction stores tx. A fresh record whose ID is taken fails with
// ErrDuplicateTransaction; an update with different base fields fails with
// ErrCorruptLedger.
func (s *Store) PutTransaction(_ context.Context, tx *domain.Transaction) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return putTransaction(btx, tx)
	})
}

// GetTransaction returns the record for id.
func (s *Store) GetTransaction(_ context.Context, id uint32) (*domain.Transaction, error) {
	var record *domain.Transaction

	err := s.db.View(func(btx *bbolt.Tx) error {
		var err error
		record, err = getTransaction(btx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// PutSnapshot overwrites the snapshot of account.ClientID.
func (s *Store) PutSnapshot(_ context.Context, account *domain.Account) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		return putSnapshot(btx, account)
	})
}

// GetSnapshot returns the latest snapshot of clientID.
func (s *Store) GetSnapshot(_ context.Context, clientID uint16) (*domain.Account, error) {
	var account *domain.Account

	err := s.db.View(func(btx *bbolt.Tx) error {
		raw := btx.Bucket(clientsBucket).Get(clientKey(clientID))
		if raw == nil {
			return domain.ErrNotFound
		}

		var err error
		account, err = decodeSnapshot(raw)
		return err
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Commit writes tx and account in a single bbolt transaction.
func (s *Store) Commit(_ context.Context, tx *domain.Transaction, account *domain.Account) error {
	return s.db.Update(func(btx *bbolt.Tx) error {
		if err := putTransaction(btx, tx); err != nil {
			return err
		}
		return putSnapshot(btx, account)
	})
}

// ListSnapshots returns every snapshot ordered by client ID. Keys are
// big-endian so bucket order is numeric order.
func (s *Store) ListSnapshots(_ context.Context) ([]*domain.Account, error) {
	var accounts []*domain.Account

	err := s.db.View(func(btx *bbolt.Tx) error {
		return btx.Bucket(clientsBucket).ForEach(func(_, v []byte) error {
			account, err := decodeSnapshot(v)
			if err != nil {
				return err
			}
			accounts = append(accounts, account)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// Ping checks that the database file is still usable.
func (s *Store) Ping(_ context.Context) error {
	return s.db.View(func(btx *bbolt.Tx) error {
		if btx.Bucket(clientsBucket) == nil {
			return errors.New("clients bucket missing")
		}
		return nil
	})
}

func putTransaction(btx *bbolt.Tx, tx *domain.Transaction) error {
	existing, err := getTransaction(btx, tx.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return err
	case tx.DisputeState == domain.DisputeStateNone:
		return fmt.Errorf("%w: transaction %d", domain.ErrDuplicateTransaction, tx.ID)
	case !existing.SameBase(tx):
		return fmt.Errorf("%w: transaction %d rewritten with different base fields", domain.ErrCorruptLedger, tx.ID)
	}

	raw, err := json.Marshal(transactionRow{
		ClientID:     tx.ClientID,
		Kind:         string(tx.Kind),
		Amount:       tx.Amount,
		DisputeState: string(tx.DisputeState),
	})
	if err != nil {
		return fmt.Errorf("encode transaction %d: %w", tx.ID, err)
	}

	return btx.Bucket(transactionsBucket).Put(transactionKey(tx.ID), raw)
}

func getTransaction(btx *bbolt.Tx, id uint32) (*domain.Transaction, error) {
	raw := btx.Bucket(transactionsBucket).Get(transactionKey(id))
	if raw == nil {
		return nil, domain.ErrNotFound
	}

	var row transactionRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("%w: decode transaction %d: %v", domain.ErrCorruptLedger, id, err)
	}

	record := &domain.Transaction{
		ID:           id,
		ClientID:     row.ClientID,
		Kind:         domain.TransactionKind(row.Kind),
		Amount:       row.Amount,
		DisputeState: domain.DisputeState(row.DisputeState),
	}
	if !record.Kind.IsValid() || !record.DisputeState.IsValid() {
		return nil, fmt.Errorf("%w: transaction %d has kind %q state %q", domain.ErrCorruptLedger, id, row.Kind, row.DisputeState)
	}

	return record, nil
}

func putSnapshot(btx *bbolt.Tx, account *domain.Account) error {
	raw, err := json.Marshal(snapshotRow{
		ClientID:  account.ClientID,
		Available: account.Available,
		Held:      account.Held,
		Locked:    account.Locked,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", account.ClientID, err)
	}

	return btx.Bucket(clientsBucket).Put(clientKey(account.ClientID), raw)
}

func decodeSnapshot(raw []byte) (*domain.Account, error) {
	var row snapshotRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", domain.ErrCorruptLedger, err)
	}

	return &domain.Account{
		ClientID:  row.ClientID,
		Available: row.Available,
		Held:      row.Held,
		Locked:    row.Locked,
	}, nil
}

type transactionRow struct {
	ClientID     uint16          `json:"client"`
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	DisputeState string          `json:"dispute_state"`
}

type snapshotRow struct {
	ClientID  uint16          `json:"client"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Locked    bool            `json:"locked"`
}

func transactionKey(id uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, id)
}

func clientKey(id uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, id)
}
