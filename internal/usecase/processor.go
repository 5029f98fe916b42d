package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/infrastructure/logger"
	"github.com/iho/paymentsengine/internal/infrastructure/metrics"
)

// ClientProcessor applies events for exactly one client. It is not safe for
// concurrent use: the dispatcher gives each processor a single goroutine.
type ClientProcessor struct {
	store   LedgerStore
	account domain.Account
	policy  FreezePolicy
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// ProcessorOptions configures a ClientProcessor.
type ProcessorOptions struct {
	FreezePolicy FreezePolicy
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
}

// LoadClientProcessor recovers the client's snapshot from the store, or starts
// from a zero balance when the client has never been seen. Any other store
// error is returned and must be treated as fatal.
func LoadClientProcessor(ctx context.Context, store LedgerStore, clientID uint16, opts ProcessorOptions) (*ClientProcessor, bool, error) {
	account, err := store.GetSnapshot(ctx, clientID)
	recovered := true
	switch {
	case errors.Is(err, domain.ErrNotFound):
		account = domain.NewAccount(clientID)
		recovered = false
	case err != nil:
		return nil, false, fmt.Errorf("load snapshot for client %d: %w", clientID, err)
	case account.ClientID != clientID:
		return nil, false, fmt.Errorf("%w: snapshot for client %d stored under client %d", domain.ErrCorruptLedger, account.ClientID, clientID)
	}

	return NewClientProcessor(store, account, opts), recovered, nil
}

// NewClientProcessor creates a processor starting from account.
func NewClientProcessor(store LedgerStore, account *domain.Account, opts ProcessorOptions) *ClientProcessor {
	if opts.FreezePolicy == "" {
		opts.FreezePolicy = FreezeAccount
	}

	return &ClientProcessor{
		store:   store,
		account: *account,
		policy:  opts.FreezePolicy,
		logger:  logger.ForClient(opts.Logger, account.ClientID),
		metrics: opts.Metrics,
	}
}

// Account returns a copy of the current snapshot.
func (p *ClientProcessor) Account() domain.Account {
	return p.account
}

// Apply evaluates ev against the current snapshot and the transaction history.
//
// A nil error means the event was accepted and persisted. Errors for which
// domain.IsRejection is true leave both the snapshot and the store untouched.
// Any other error comes from the store and is fatal.
func (p *ClientProcessor) Apply(ctx context.Context, ev domain.Event) error {
	start := time.Now()

	err := p.apply(ctx, ev)

	if p.metrics != nil {
		p.metrics.ApplyDuration.Observe(time.Since(start).Seconds())
		p.metrics.EventsProcessed.WithLabelValues(string(ev.Type), outcome(err)).Inc()
		if reason := domain.RejectionReason(err); reason != "" {
			p.metrics.EventsRejected.WithLabelValues(reason).Inc()
		}
	}

	if domain.IsRejection(err) {
		p.logger.Debug().
			Err(err).
			Str("type", string(ev.Type)).
			Uint32("tx", ev.TxID).
			Msg("event rejected")
	}

	return err
}

func (p *ClientProcessor) apply(ctx context.Context, ev domain.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	if ev.ClientID != p.account.ClientID {
		return domain.ErrClientMismatch
	}

	if p.account.Locked && p.policy == FreezeAccount {
		return domain.ErrAccountLocked
	}

	switch ev.Type {
	case domain.EventTypeDeposit:
		return p.deposit(ctx, ev.TxID, ev.Amount.Decimal)
	case domain.EventTypeWithdrawal:
		return p.withdraw(ctx, ev.TxID, ev.Amount.Decimal)
	case domain.EventTypeDispute:
		return p.dispute(ctx, ev.TxID)
	case domain.EventTypeResolve:
		return p.resolve(ctx, ev.TxID)
	case domain.EventTypeChargeback:
		return p.chargeback(ctx, ev.TxID)
	default:
		return fmt.Errorf("%w: unknown event type %q", domain.ErrMalformedEvent, ev.Type)
	}
}

func (p *ClientProcessor) deposit(ctx context.Context, txID uint32, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.ErrNegativeAmount
	}

	if err := p.ensureUnused(ctx, txID); err != nil {
		return err
	}

	next := p.account
	if err := next.Deposit(amount); err != nil {
		return err
	}

	return p.commit(ctx, p.newRecord(txID, domain.TransactionKindDeposit, amount), &next)
}

func (p *ClientProcessor) withdraw(ctx context.Context, txID uint32, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return domain.ErrNegativeAmount
	}

	if err := p.ensureUnused(ctx, txID); err != nil {
		return err
	}

	next := p.account
	if err := next.Withdraw(amount); err != nil {
		return err
	}

	return p.commit(ctx, p.newRecord(txID, domain.TransactionKindWithdrawal, amount), &next)
}

func (p *ClientProcessor) dispute(ctx context.Context, txID uint32) error {
	record, err := p.lookup(ctx, txID)
	if err != nil {
		return err
	}

	if err := record.Dispute(); err != nil {
		return err
	}

	next := p.account
	next.Hold(record.Amount)

	return p.commit(ctx, record, &next)
}

func (p *ClientProcessor) resolve(ctx context.Context, txID uint32) error {
	record, err := p.lookup(ctx, txID)
	if err != nil {
		return err
	}

	if err := record.Resolve(); err != nil {
		return err
	}

	next := p.account
	next.Release(record.Amount)

	return p.commit(ctx, record, &next)
}

func (p *ClientProcessor) chargeback(ctx context.Context, txID uint32) error {
	record, err := p.lookup(ctx, txID)
	if err != nil {
		return err
	}

	if err := record.Chargeback(); err != nil {
		return err
	}

	next := p.account
	next.Charge(record.Amount)

	if err := p.commit(ctx, record, &next); err != nil {
		return err
	}

	if p.metrics != nil {
		p.metrics.Chargebacks.Inc()
	}
	p.logger.Info().Uint32("tx", txID).Msg("chargeback applied, account locked")

	return nil
}

// ensureUnused rejects transaction IDs that already exist anywhere in the ledger.
func (p *ClientProcessor) ensureUnused(ctx context.Context, txID uint32) error {
	_, err := p.store.GetTransaction(ctx, txID)
	switch {
	case err == nil:
		return domain.ErrDuplicateTransaction
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("lookup transaction %d: %w", txID, err)
	}
}

// lookup fetches a record referenced by a dispute-lifecycle event. Records of
// other clients are reported as a mismatch and never touched.
func (p *ClientProcessor) lookup(ctx context.Context, txID uint32) (*domain.Transaction, error) {
	record, err := p.store.GetTransaction(ctx, txID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil, domain.ErrUnknownTransaction
	case err != nil:
		return nil, fmt.Errorf("lookup transaction %d: %w", txID, err)
	}

	if record.ClientID != p.account.ClientID {
		return nil, domain.ErrClientMismatch
	}

	return record, nil
}

func (p *ClientProcessor) newRecord(txID uint32, kind domain.TransactionKind, amount decimal.Decimal) *domain.Transaction {
	return &domain.Transaction{
		ID:           txID,
		ClientID:     p.account.ClientID,
		Kind:         kind,
		Amount:       amount,
		DisputeState: domain.DisputeStateNone,
	}
}

// commit persists the record and the next snapshot, and only then makes next
// the in-memory state. A failed commit leaves the processor unchanged.
//
// The store checks fresh records for a taken ID inside the write, so another
// client racing past ensureUnused with the same ID surfaces here as a
// rejection.
func (p *ClientProcessor) commit(ctx context.Context, record *domain.Transaction, next *domain.Account) error {
	var err error
	if committer, ok := p.store.(AtomicCommitter); ok {
		err = committer.Commit(ctx, record, next)
	} else {
		err = p.store.PutTransaction(ctx, record)
		if err == nil {
			err = p.store.PutSnapshot(ctx, next)
		}
	}
	switch {
	case errors.Is(err, domain.ErrDuplicateTransaction):
		return domain.ErrDuplicateTransaction
	case err != nil:
		return fmt.Errorf("persist transaction %d: %w", record.ID, err)
	}

	p.account = *next

	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case domain.IsRejection(err):
		return "rejected"
	default:
		return "failed"
	}
}
