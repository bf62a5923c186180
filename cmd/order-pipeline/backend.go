package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/order-lifecycle-streams/config"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/memengine"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/postgresengine"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/redisengine"
)

const (
	connectMaxElapsed = 30 * time.Second
	connectMaxTries   = 10
)

// backend is the set of stores one run works on. close releases their connections.
type backend struct {
	logs      streams.LogClient
	counters  streams.Counters
	documents streams.Documents
	closers   []func()
}

func (b backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics streams.MetricsCollector) (backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		store, err := memengine.NewStore(memengine.WithLogger(logger), memengine.WithMetrics(metrics))
		if err != nil {
			return backend{}, err
		}

		logger.Info("embedded redis server started", "addr", store.Addr())

		return backend{logs: store, counters: store, documents: store, closers: []func(){store.Close}}, nil

	case config.BackendRedis:
		store, closeRedis, err := openRedis(ctx, cfg.Redis, logger, metrics)
		if err != nil {
			return backend{}, err
		}

		return backend{logs: store, counters: store, documents: store, closers: []func(){closeRedis}}, nil

	case config.BackendPostgres:
		logs, closeRedis, err := openRedis(ctx, cfg.Redis, logger, metrics)
		if err != nil {
			return backend{}, err
		}

		state, closePostgres, err := openPostgres(ctx, cfg, logger, metrics)
		if err != nil {
			closeRedis()
			return backend{}, err
		}

		return backend{logs: logs, counters: state, documents: state, closers: []func(){closeRedis, closePostgres}}, nil

	default:
		return backend{}, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

func openRedis(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger, metrics streams.MetricsCollector) (redisengine.Store, func(), error) {
	options, err := cfg.Options()
	if err != nil {
		return redisengine.Store{}, nil, err
	}

	client := redis.NewClient(options)
	closeClient := func() {
		if err := client.Close(); err != nil {
			logger.Error("closing redis client failed", "error", err.Error())
		}
	}

	store, err := redisengine.NewStore(client, redisengine.WithLogger(logger), redisengine.WithMetrics(metrics))
	if err != nil {
		closeClient()
		return redisengine.Store{}, nil, err
	}

	if err := connect(ctx, logger, "redis", store.Ping); err != nil {
		closeClient()
		return redisengine.Store{}, nil, err
	}

	return store, closeClient, nil
}

func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics streams.MetricsCollector) (postgresengine.Store, func(), error) {
	options := []postgresengine.Option{postgresengine.WithLogger(logger), postgresengine.WithMetrics(metrics)}

	var (
		store   postgresengine.Store
		ping    func(context.Context) error
		closeDB func()
		err     error
	)

	switch cfg.PostgresDriver {
	case config.DriverPGX:
		poolConfig, configErr := cfg.Postgres.PGXPoolConfig()
		if configErr != nil {
			return postgresengine.Store{}, nil, configErr
		}

		pool, poolErr := pgxpool.NewWithConfig(ctx, poolConfig)
		if poolErr != nil {
			return postgresengine.Store{}, nil, poolErr
		}

		ping, closeDB = pool.Ping, pool.Close
		store, err = postgresengine.NewStoreFromPGXPool(pool, options...)

	case config.DriverSQLDB:
		db, openErr := cfg.Postgres.OpenSQLDB()
		if openErr != nil {
			return postgresengine.Store{}, nil, openErr
		}

		ping, closeDB = db.PingContext, func() { _ = db.Close() }
		store, err = postgresengine.NewStoreFromSQLDB(db, options...)

	case config.DriverSQLX:
		db, openErr := cfg.Postgres.OpenSQLX()
		if openErr != nil {
			return postgresengine.Store{}, nil, openErr
		}

		ping, closeDB = db.PingContext, func() { _ = db.Close() }
		store, err = postgresengine.NewStoreFromSQLX(db, options...)

	default:
		return postgresengine.Store{}, nil, fmt.Errorf("%w: %q", config.ErrUnknownDriver, cfg.PostgresDriver)
	}

	if err == nil {
		err = connect(ctx, logger, "postgres", ping)
	}

	if err == nil {
		err = store.EnsureSchema(ctx)
	}

	if err != nil {
		closeDB()
		return postgresengine.Store{}, nil, err
	}

	return store, closeDB, nil
}

// connect pings until the server answers, backing off exponentially between attempts.
func connect(ctx context.Context, logger *slog.Logger, server string, ping func(context.Context) error) error {
	_, err := backoff.Retry(
		ctx,
		func() (struct{}, error) {
			return struct{}{}, ping(ctx)
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(connectMaxElapsed),
		backoff.WithMaxTries(connectMaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("server not reachable yet, retrying", "server", server, "error", err.Error(), "retry_in", next.String())
		}),
	)
	if err != nil {
		return errors.Join(fmt.Errorf("connecting to %s failed", server), err)
	}

	return nil
}
