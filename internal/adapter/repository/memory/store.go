// Package memory provides a non-durable ledger store for tests, the synthetic
// generator, and throwaway runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/usecase"
)

var (
	_ usecase.ReportStore     = (*Store)(nil)
	_ usecase.AtomicCommitter = (*Store)(nil)
	_ usecase.Pinger          = (*Store)(nil)
)

// Store keeps transactions and snapshots in maps. Values are copied on the
// way in and out so callers never share state with the store.
type Store struct {
	mu           sync.RWMutex
	transactions map[uint32]domain.Transaction
	snapshots    map[uint16]domain.Account
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[uint32]domain.Transaction),
		snapshots:    make(map[uint16]domain.Account),
	}
}

// PutTransaction stores tx. A fresh record whose ID is taken fails with
// ErrDuplicateTransaction; an update with different base fields fails with
// ErrCorruptLedger.
func (s *Store) PutTransaction(_ context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.putTransaction(tx)
}

func (s *Store) putTransaction(tx *domain.Transaction) error {
	existing, ok := s.transactions[tx.ID]
	switch {
	case ok && tx.DisputeState == domain.DisputeStateNone:
		return domain.ErrDuplicateTransaction
	case ok && !existing.SameBase(tx):
		return domain.ErrCorruptLedger
	}
	s.transactions[tx.ID] = *tx
	return nil
}

// GetTransaction returns the record for id.
func (s *Store) GetTransaction(_ context.Context, id uint32) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tx, nil
}

// PutSnapshot overwrites the snapshot of account.ClientID.
func (s *Store) PutSnapshot(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[account.ClientID] = *account
	return nil
}

// GetSnapshot returns the latest snapshot of clientID.
func (s *Store) GetSnapshot(_ context.Context, clientID uint16) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.snapshots[clientID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &account, nil
}

// Commit stores tx and account under one lock.
func (s *Store) Commit(_ context.Context, tx *domain.Transaction, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.putTransaction(tx); err != nil {
		return err
	}
	s.snapshots[account.ClientID] = *account
	return nil
}

// ListSnapshots returns every snapshot ordered by client ID.
func (s *Store) ListSnapshots(_ context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]*domain.Account, 0, len(s.snapshots))
	for _, account := range s.snapshots {
		account := account
		accounts = append(accounts, &account)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].ClientID < accounts[j].ClientID
	})

	return accounts, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}
