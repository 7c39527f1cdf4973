package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"MiniInventory/internal/config"
	"MiniInventory/internal/inventory"
)

// openBackend builds the configured collection backend. The returned close func
// releases its connections and is never nil.
func openBackend(ctx context.Context, cfg config.Config, log *zap.Logger) (inventory.Backend, func(), error) {
	noop := func() {}

	switch cfg.Storage.Driver {
	case config.DriverFile:
		log.Info("using file storage", zap.String("path", cfg.Storage.Path))
		return inventory.NewFileBackend(cfg.Storage.Path), noop, nil

	case config.DriverMemory:
		log.Warn("using memory storage, data is lost on exit")
		return inventory.NewMemBackend(), noop, nil

	case config.DriverPostgres:
		db, err := inventory.OpenPostgres(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, noop, err
		}
		b := inventory.NewPostgresBackend(db)
		if err := b.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info("using postgres storage")
		return b, func() { _ = db.Close() }, nil

	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Storage.Redis.Addr})
		b := inventory.NewRedisBackend(rdb, cfg.Storage.Redis.Key)
		if err := b.Ping(ctx); err != nil {
			_ = rdb.Close()
			return nil, noop, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("using redis storage", zap.String("addr", cfg.Storage.Redis.Addr))
		return b, func() { _ = rdb.Close() }, nil
	}

	return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
