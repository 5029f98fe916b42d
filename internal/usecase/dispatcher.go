package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/infrastructure/logger"
	"github.com/iho/paymentsengine/internal/infrastructure/metrics"
)

// DispatcherOptions configures a Dispatcher. Zero values fall back to defaults.
type DispatcherOptions struct {
	MailboxSize      int
	MaxActiveClients int
	FreezePolicy     FreezePolicy
	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
}

// RunStats summarizes a single ingestion run.
type RunStats struct {
	Events      int64
	Accepted    int64
	Rejected    int64
	Clients     int
	Interrupted bool
}

// Dispatcher fans a single ordered event stream out to one worker per client.
// Events of one client are applied in arrival order; distinct clients run in
// parallel.
type Dispatcher struct {
	store LedgerStore
	opts  DispatcherOptions
}

// NewDispatcher creates a new dispatcher backed by store.
func NewDispatcher(store LedgerStore, opts DispatcherOptions) *Dispatcher {
	if opts.MailboxSize <= 0 {
		opts.MailboxSize = DefaultMailboxSize
	}
	if opts.MaxActiveClients <= 0 {
		opts.MaxActiveClients = DefaultMaxActiveClients
	}
	if opts.FreezePolicy == "" {
		opts.FreezePolicy = FreezeAccount
	}

	return &Dispatcher{store: store, opts: opts}
}

type clientWorker struct {
	clientID  uint16
	mailbox   chan domain.Event
	done      chan struct{}
	closeOnce sync.Once
}

// stop closes the mailbox and waits until the worker has drained it.
func (w *clientWorker) stop() {
	w.closeOnce.Do(func() { close(w.mailbox) })
	<-w.done
}

type runCounters struct {
	accepted atomic.Int64
	rejected atomic.Int64
}

// Run consumes events until the channel is closed, ctx is cancelled, or a
// worker hits a store failure. It returns once every worker has stopped.
//
// Cancelling ctx is a graceful stop: workers finish the event they are
// applying and exit, and RunStats.Interrupted is set. A store failure is
// returned as the error.
func (d *Dispatcher) Run(ctx context.Context, events <-chan domain.Event) (RunStats, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		stats    RunStats
		counters runCounters
		seen     = make(map[uint16]struct{})
	)

	active, err := lru.NewWithEvict(d.opts.MaxActiveClients, func(clientID uint16, w *clientWorker) {
		w.stop()
		if d.opts.Metrics != nil {
			d.opts.Metrics.ClientsEvicted.Inc()
		}
		d.opts.Logger.Debug().Uint16("client", clientID).Msg("client worker evicted")
	})
	if err != nil {
		return stats, fmt.Errorf("create worker cache: %w", err)
	}

	dispatch := func(ev domain.Event) bool {
		w, ok := active.Get(ev.ClientID)
		if !ok {
			w = d.spawn(gctx, g, ev.ClientID, &counters)
			active.Add(ev.ClientID, w)
			seen[ev.ClientID] = struct{}{}
			if d.opts.Metrics != nil {
				d.opts.Metrics.ActiveClients.Set(float64(active.Len()))
			}
		}

		select {
		case w.mailbox <- ev:
			return true
		case <-gctx.Done():
			return false
		}
	}

loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			stats.Events++
			if !dispatch(ev) {
				break loop
			}
		}
	}

	for _, w := range active.Values() {
		w.closeOnce.Do(func() { close(w.mailbox) })
	}

	err = g.Wait()

	if d.opts.Metrics != nil {
		d.opts.Metrics.ActiveClients.Set(0)
	}

	stats.Accepted = counters.accepted.Load()
	stats.Rejected = counters.rejected.Load()
	stats.Clients = len(seen)
	stats.Interrupted = err == nil && ctx.Err() != nil

	return stats, err
}

func (d *Dispatcher) spawn(ctx context.Context, g *errgroup.Group, clientID uint16, counters *runCounters) *clientWorker {
	w := &clientWorker{
		clientID: clientID,
		mailbox:  make(chan domain.Event, d.opts.MailboxSize),
		done:     make(chan struct{}),
	}

	g.Go(func() error {
		defer close(w.done)
		return d.work(ctx, w, counters)
	})

	return w
}

func (d *Dispatcher) work(ctx context.Context, w *clientWorker, counters *runCounters) error {
	log := logger.ForClient(d.opts.Logger, w.clientID)

	// Store calls run to completion even after cancellation so an event is
	// never left half persisted.
	storeCtx := context.WithoutCancel(ctx)

	processor, recovered, err := LoadClientProcessor(storeCtx, d.store, w.clientID, ProcessorOptions{
		FreezePolicy: d.opts.FreezePolicy,
		Logger:       d.opts.Logger,
		Metrics:      d.opts.Metrics,
	})
	if err != nil {
		log.Error().Err(err).Msg("client recovery failed")
		return err
	}

	if recovered {
		if d.opts.Metrics != nil {
			d.opts.Metrics.ClientsRecovered.Inc()
		}
		log.Debug().Msg("client recovered from store")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.mailbox:
			if !ok {
				return nil
			}

			err := processor.Apply(storeCtx, ev)
			switch {
			case err == nil:
				counters.accepted.Add(1)
			case domain.IsRejection(err):
				counters.rejected.Add(1)
			default:
				log.Error().Err(err).Uint32("tx", ev.TxID).Msg("store failure, halting ingestion")
				return fmt.Errorf("client %d: %w", w.clientID, err)
			}
		}
	}
}
