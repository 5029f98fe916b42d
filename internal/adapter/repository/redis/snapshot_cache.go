package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/paymentsengine/internal/domain"
	"github.com/iho/paymentsengine/internal/infrastructure/metrics"
	"github.com/iho/paymentsengine/internal/usecase"
)

var (
	_ usecase.ReportStore     = (*SnapshotCache)(nil)
	_ usecase.AtomicCommitter = (*SnapshotCache)(nil)
	_ usecase.Pinger          = (*SnapshotCache)(nil)
)

// DefaultSnapshotTTL is used when NewSnapshotCache is given a zero TTL.
const DefaultSnapshotTTL = 10 * time.Minute

// SnapshotCache is a write-through Redis cache in front of a durable ledger
// store. Only snapshots are cached; transactions always go to the store.
//
// Redis is never the source of truth. Every snapshot write deletes the
// client's entry before touching the store and fails if it cannot, so an entry
// that exists was written after the latest durable snapshot. The entry is set
// again only after the store write succeeds, and a failure there just leaves
// the client uncached. Reads never fill the cache.
type SnapshotCache struct {
	next    usecase.LedgerStore
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewSnapshotCache wraps next with a Redis snapshot cache.
func NewSnapshotCache(next usecase.LedgerStore, client *redis.Client, ttl time.Duration, logger zerolog.Logger, m *metrics.Metrics) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}

	return &SnapshotCache{
		next:    next,
		client:  client,
		prefix:  "ledger:snapshot:",
		ttl:     ttl,
		logger:  logger.With().Str("component", "snapshot_cache").Logger(),
		metrics: m,
	}
}

// PutTransaction passes through to the store.
func (c *SnapshotCache) PutTransaction(ctx context.Context, tx *domain.Transaction) error {
	return c.next.PutTransaction(ctx, tx)
}

// GetTransaction passes through to the store.
func (c *SnapshotCache) GetTransaction(ctx context.Context, id uint32) (*domain.Transaction, error) {
	return c.next.GetTransaction(ctx, id)
}

// PutSnapshot invalidates the cached entry, writes to the store, then
// refreshes the cache.
func (c *SnapshotCache) PutSnapshot(ctx context.Context, account *domain.Account) error {
	if err := c.invalidate(ctx, account.ClientID); err != nil {
		return err
	}
	if err := c.next.PutSnapshot(ctx, account); err != nil {
		return err
	}

	c.store(ctx, account)
	return nil
}

// GetSnapshot serves from Redis when the entry is there and reads the store
// otherwise.
func (c *SnapshotCache) GetSnapshot(ctx context.Context, clientID uint16) (*domain.Account, error) {
	account, err := c.load(ctx, clientID)
	switch {
	case err == nil:
		c.count("hit")
		return account, nil
	case errors.Is(err, redis.Nil):
		c.count("miss")
	default:
		c.fail("get", err)
	}

	return c.next.GetSnapshot(ctx, clientID)
}

// Commit invalidates the cached entry and writes through the store's atomic
// commit when it has one.
func (c *SnapshotCache) Commit(ctx context.Context, tx *domain.Transaction, account *domain.Account) error {
	if err := c.invalidate(ctx, account.ClientID); err != nil {
		return err
	}

	if committer, ok := c.next.(usecase.AtomicCommitter); ok {
		if err := committer.Commit(ctx, tx, account); err != nil {
			return err
		}
	} else {
		if err := c.next.PutTransaction(ctx, tx); err != nil {
			return err
		}
		if err := c.next.PutSnapshot(ctx, account); err != nil {
			return err
		}
	}

	c.store(ctx, account)
	return nil
}

// ListSnapshots always reads the store.
func (c *SnapshotCache) ListSnapshots(ctx context.Context) ([]*domain.Account, error) {
	lister, ok := c.next.(usecase.SnapshotLister)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list snapshots", c.next)
	}
	return lister.ListSnapshots(ctx)
}

// Ping checks Redis and, when supported, the underlying store.
func (c *SnapshotCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if pinger, ok := c.next.(usecase.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func (c *SnapshotCache) key(clientID uint16) string {
	return c.prefix + strconv.FormatUint(uint64(clientID), 10)
}

func (c *SnapshotCache) load(ctx context.Context, clientID uint16) (*domain.Account, error) {
	fields, err := c.client.HGetAll(ctx, c.key(clientID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, redis.Nil
	}

	available, err := decimal.NewFromString(fields["available"])
	if err != nil {
		return nil, fmt.Errorf("decode available: %w", err)
	}
	held, err := decimal.NewFromString(fields["held"])
	if err != nil {
		return nil, fmt.Errorf("decode held: %w", err)
	}
	locked, err := strconv.ParseBool(fields["locked"])
	if err != nil {
		return nil, fmt.Errorf("decode locked: %w", err)
	}

	return &domain.Account{
		ClientID:  clientID,
		Available: available,
		Held:      held,
		Locked:    locked,
	}, nil
}

// invalidate drops the entry of clientID ahead of a durable write.
func (c *SnapshotCache) invalidate(ctx context.Context, clientID uint16) error {
	if err := c.client.Del(ctx, c.key(clientID)).Err(); err != nil {
		c.fail("invalidate", err)
		return fmt.Errorf("invalidate cached snapshot of client %d: %w", clientID, err)
	}
	return nil
}

func (c *SnapshotCache) store(ctx context.Context, account *domain.Account) {
	key := c.key(account.ClientID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"available", account.Available.String(),
			"held", account.Held.String(),
			"locked", strconv.FormatBool(account.Locked),
		)
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		c.fail("set", err)
	}
}

func (c *SnapshotCache) count(result string) {
	if c.metrics == nil {
		return
	}
	if result == "hit" {
		c.metrics.CacheHits.Inc()
	} else {
		c.metrics.CacheMisses.Inc()
	}
}

func (c *SnapshotCache) fail(operation string, err error) {
	c.logger.Warn().Err(err).Str("operation", operation).Msg("snapshot cache operation failed")
	if c.metrics != nil {
		c.metrics.CacheErrors.WithLabelValues(operation).Inc()
	}
}
