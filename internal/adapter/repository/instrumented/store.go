// Package instrumented records Prometheus metrics around any ledger store.
package instrumented

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/infrastructure/metrics"
	"github.com/iho/paymentsengine/internal/usecase"
)

var (
	_ usecase.ReportStore     = (*Store)(nil)
	_ usecase.AtomicCommitter = (*Store)(nil)
	_ usecase.Pinger          = (*Store)(nil)
)

// Store wraps a ledger store and observes every call under the driver label.
// A missing key and a taken transaction ID are normal outcomes and are not
// counted as errors.
type Store struct {
	next    usecase.LedgerStore
	driver  string
	metrics *metrics.Metrics
}

// Wrap returns next instrumented with m.
func Wrap(next usecase.LedgerStore, driver string, m *metrics.Metrics) *Store {
	return &Store{next: next, driver: driver, metrics: m}
}

func (s *Store) PutTransaction(ctx context.Context, tx *domain.Transaction) error {
	return s.observe("put_transaction", func() error {
		return s.next.PutTransaction(ctx, tx)
	})
}

func (s *Store) GetTransaction(ctx context.Context, id uint32) (*domain.Transaction, error) {
	var record *domain.Transaction
	err := s.observe("get_transaction", func() error {
		var err error
		record, err = s.next.GetTransaction(ctx, id)
		return err
	})
	return record, err
}

func (s *Store) PutSnapshot(ctx context.Context, account *domain.Account) error {
	return s.observe("put_snapshot", func() error {
		return s.next.PutSnapshot(ctx, account)
	})
}

func (s *Store) GetSnapshot(ctx context.Context, clientID uint16) (*domain.Account, error) {
	var account *domain.Account
	err := s.observe("get_snapshot", func() error {
		var err error
		account, err = s.next.GetSnapshot(ctx, clientID)
		return err
	})
	return account, err
}

// Commit uses the wrapped store's atomic commit, or two sequential writes
// when it has none.
func (s *Store) Commit(ctx context.Context, tx *domain.Transaction, account *domain.Account) error {
	committer, ok := s.next.(usecase.AtomicCommitter)
	if !ok {
		if err := s.PutTransaction(ctx, tx); err != nil {
			return err
		}
		return s.PutSnapshot(ctx, account)
	}

	return s.observe("commit", func() error {
		return committer.Commit(ctx, tx, account)
	})
}

func (s *Store) ListSnapshots(ctx context.Context) ([]*domain.Account, error) {
	lister, ok := s.next.(usecase.SnapshotLister)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list snapshots", s.next)
	}

	var accounts []*domain.Account
	err := s.observe("list_snapshots", func() error {
		var err error
		accounts, err = lister.ListSnapshots(ctx)
		return err
	})
	return accounts, err
}

func (s *Store) Ping(ctx context.Context) error {
	pinger, ok := s.next.(usecase.Pinger)
	if !ok {
		return nil
	}
	return s.observe("ping", func() error {
		return pinger.Ping(ctx)
	})
}

func (s *Store) observe(operation string, fn func() error) error {
	if s.metrics == nil {
		return fn()
	}

	start := time.Now()
	err := fn()

	s.metrics.StoreOperations.WithLabelValues(s.driver, operation).Inc()
	s.metrics.StoreDuration.WithLabelValues(s.driver, operation).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrDuplicateTransaction) {
		s.metrics.StoreErrors.WithLabelValues(s.driver, operation).Inc()
	}

	return err
}
