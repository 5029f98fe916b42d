// Package generator produces synthetic event streams for load testing.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/adapter/repository/memory"
	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/usecase"
)

// EventWriter receives generated events in order.
type EventWriter interface {
	Write(domain.Event) error
}

// Options tunes the mix of generated events. Zero values use the defaults.
type Options struct {
	// DisputeRatio is the share of dispute-lifecycle events.
	DisputeRatio float64
	// NewClientRatio is the chance a transfer opens a new client.
	NewClientRatio float64
	// MaxAmount bounds deposit and withdrawal amounts.
	MaxAmount int64
	Rand      *rand.Rand
}

func (o *Options) setDefaults() {
	if o.DisputeRatio <= 0 {
		o.DisputeRatio = 0.1
	}
	if o.NewClientRatio <= 0 {
		o.NewClientRatio = 0.3
	}
	if o.MaxAmount <= 0 {
		o.MaxAmount = 1000
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Summary counts the generated events by outcome against a fresh ledger.
type Summary struct {
	Events   int
	Accepted int
	Rejected int
	Clients  int
}

type generator struct {
	opts       Options
	store      *memory.Store
	processors map[uint16]*usecase.ClientProcessor
	clients    []uint16
	base       []domain.Event
	disputed   []domain.Event
	summary    Summary
}

// Generate writes count events to w. Each event is also applied to an
// in-memory ledger so disputes, resolves and chargebacks mostly refer to
// transactions they can act on; the rest exercise the rejection paths.
func Generate(ctx context.Context, count int, w EventWriter, opts Options) (Summary, error) {
	opts.setDefaults()

	g := &generator{
		opts:       opts,
		store:      memory.NewStore(),
		processors: make(map[uint16]*usecase.ClientProcessor),
	}

	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return g.summary, err
		}

		ev, err := g.next(uint32(i))
		if err != nil {
			return g.summary, err
		}

		if err := g.apply(ctx, ev); err != nil {
			return g.summary, err
		}

		if err := w.Write(ev); err != nil {
			return g.summary, fmt.Errorf("write event %d: %w", i, err)
		}
		g.summary.Events++
	}

	g.summary.Clients = len(g.clients)
	return g.summary, nil
}

func (g *generator) next(txID uint32) (domain.Event, error) {
	rng := g.opts.Rand

	if len(g.base) > 0 && rng.Float64() < g.opts.DisputeRatio {
		return g.disputeEvent(), nil
	}

	client, err := g.pickClient()
	if err != nil {
		return domain.Event{}, err
	}

	amount := decimal.New(rng.Int64N(g.opts.MaxAmount*10_000), -4)

	var ev domain.Event
	if rng.IntN(2) == 0 {
		ev = domain.Withdrawal(client, txID, amount)
	} else {
		ev = domain.Deposit(client, txID, amount)
	}
	g.base = append(g.base, ev)

	return ev, nil
}

// disputeEvent opens a new dispute on a random earlier transaction, or moves
// an open one to resolve or chargeback.
func (g *generator) disputeEvent() domain.Event {
	rng := g.opts.Rand

	roll := rng.IntN(10)
	if len(g.disputed) == 0 || roll <= 5 {
		target := g.base[rng.IntN(len(g.base))]
		ev := domain.Dispute(target.ClientID, target.TxID)
		g.disputed = append(g.disputed, ev)
		return ev
	}

	idx := rng.IntN(len(g.disputed))
	target := g.disputed[idx]
	g.disputed = append(g.disputed[:idx], g.disputed[idx+1:]...)

	if roll <= 8 {
		return domain.Resolve(target.ClientID, target.TxID)
	}
	return domain.Chargeback(target.ClientID, target.TxID)
}

func (g *generator) pickClient() (uint16, error) {
	rng := g.opts.Rand

	canGrow := len(g.clients) <= math.MaxUint16
	if canGrow && (len(g.clients) == 0 || rng.Float64() < g.opts.NewClientRatio) {
		id := uint16(len(g.clients))
		g.clients = append(g.clients, id)
		return id, nil
	}
	if len(g.clients) == 0 {
		return 0, errors.New("no clients available")
	}

	return g.clients[rng.IntN(len(g.clients))], nil
}

func (g *generator) apply(ctx context.Context, ev domain.Event) error {
	p, ok := g.processors[ev.ClientID]
	if !ok {
		var err error
		p, _, err = usecase.LoadClientProcessor(ctx, g.store, ev.ClientID, usecase.ProcessorOptions{Logger: zerolog.Nop()})
		if err != nil {
			return err
		}
		g.processors[ev.ClientID] = p
	}

	err := p.Apply(ctx, ev)
	switch {
	case err == nil:
		g.summary.Accepted++
	case domain.IsRejection(err):
		g.summary.Rejected++
	default:
		return err
	}

	return nil
}
