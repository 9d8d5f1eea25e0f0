package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/becomeliminal/nim-memory/config"
	"github.com/becomeliminal/nim-memory/memory/store"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
	"github.com/becomeliminal/nim-memory/memory/store/inmem"
	"github.com/becomeliminal/nim-memory/memory/store/mongo"
	"github.com/becomeliminal/nim-memory/memory/store/postgres"
	"github.com/becomeliminal/nim-memory/memory/store/redis"
	"github.com/becomeliminal/nim-memory/memory/store/sqlite"
)

func newBackend(cfg config.StoreConfig, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Backend {
	case "inmem":
		return inmem.New(), nil
	case "sqlite":
		return sqlite.New(cfg.Path), nil
	case "chromem":
		return chromem.New(chromem.Options{Path: cfg.Path, Compress: cfg.Compress, Logger: logger}), nil
	case "redis":
		return redis.New(redis.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			Database: cfg.Redis.Database,
			Prefix:   cfg.Redis.Prefix,
		}), nil
	case "postgres":
		return postgres.New(cfg.URL), nil
	case "mongo":
		return mongo.New(cfg.URL, cfg.Database), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func storeConfig(cfg config.StoreConfig, logger *slog.Logger) store.Config {
	return store.Config{
		Name:           cfg.Name,
		Dimensionality: cfg.Dimensionality,
		MaxVectors:     cfg.MaxVectors,
		CapacityPolicy: store.CapacityPolicy(cfg.CapacityPolicy),
		Logger:         logger,
	}
}

// openStore opens a store over backend. The backend is closed when the store
// cannot be opened, since no Store owns it yet.
func openStore(ctx context.Context, backend store.Backend, cfg config.StoreConfig, logger *slog.Logger) (*store.Store, error) {
	s, err := store.Open(ctx, backend, storeConfig(cfg, logger))
	if err != nil {
		if cerr := backend.Close(); cerr != nil {
			logger.Warn("failed to close store backend", "backend", cfg.Backend, "error", cerr)
		}
		return nil, err
	}
	return s, nil
}
