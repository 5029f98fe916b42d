package main

import (
	"context"
	"fmt"

	boltRepo "github.com/iho/paymentsengine/internal/adapter/repository/bolt"
	"github.com/iho/paymentsengine/internal/adapter/repository/instrumented"
	"github.com/iho/paymentsengine/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/paymentsengine/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/paymentsengine/internal/adapter/repository/redis"
	"github.com/iho/paymentsengine/internal/infrastructure/postgres"
	"github.com/iho/paymentsengine/internal/infrastructure/redis"
	"github.com/iho/paymentsengine/internal/usecase"
)

// ledgerStore is what the commands need from a fully wired store.
type ledgerStore interface {
	usecase.ReportStore
	usecase.Pinger
}

// openStore builds the configured driver, wraps it with metrics and, when
// REDIS_URL is set, the snapshot cache. The returned func releases every
// connection it opened.
func (a *app) openStore(ctx context.Context) (ledgerStore, func(), error) {
	var (
		base    usecase.LedgerStore
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch a.cfg.StoreDriver {
	case "bolt":
		store, err := boltRepo.Open(a.cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Error().Err(err).Msg("failed to close bolt store")
			}
		})
		base = store
		a.logger.Debug().Str("path", a.cfg.StorePath).Msg("opened bolt store")

	case "postgres":
		if err := postgres.RunMigrations(a.cfg.DatabaseURL, a.cfg.MigrationsPath, a.logger); err != nil {
			return nil, nil, err
		}

		connectCtx, cancel := context.WithTimeout(ctx, a.cfg.DatabaseTimeout)
		defer cancel()

		pool, err := postgres.NewPool(connectCtx, postgres.PoolConfig{
			DatabaseURL: a.cfg.DatabaseURL,
			MaxConns:    a.cfg.DatabaseMaxConns,
			MinConns:    a.cfg.DatabaseMinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		base = postgresRepo.NewStore(pool, a.logger)
		a.logger.Debug().Msg("connected to postgres")

	case "memory":
		base = memory.NewStore()

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", a.cfg.StoreDriver)
	}

	var store ledgerStore = instrumented.Wrap(base, a.cfg.StoreDriver, a.metrics)

	if a.cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, a.cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { client.Close() })
		store = redisRepo.NewSnapshotCache(store, client, a.cfg.SnapshotCacheTTL, a.logger, a.metrics)
		a.logger.Debug().Msg("snapshot cache enabled")
	}

	return store, closeAll, nil
}
