package main

import (
	"context"
	"fmt"
	"log/slog"

	"newsletter/internal/newsletter"
	"newsletter/internal/newsletter/store/subscription"
	"newsletter/internal/platform/config"
	"newsletter/internal/platform/postgres"
	"newsletter/internal/platform/redis"
)

// openStore builds the configured subscription store. The returned close
// function releases its connections.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (newsletter.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		store := subscription.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("using postgres subscription store")
		return store, db.Close, nil

	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis subscription store", "key_prefix", cfg.Redis.KeyPrefix)
		return subscription.NewRedis(client.Client, cfg.Redis.KeyPrefix), client.Close, nil

	case config.BackendMemory:
		log.Info("using in-memory subscription store")
		return subscription.NewInMemory(), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
