package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/config"
	"github.com/mvpetrera/portfolio/internal/db"
	"github.com/mvpetrera/portfolio/internal/storage"
)

// openStorage builds the configured backend. SQL backends are migrated
// before use. The returned func releases the connection.
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, func(), error) {
	switch cfg.Storage.Type {
	case config.StorageMemory:
		store := storage.NewMemoryStorage(logger)
		if err := storage.SeedTopics(ctx, store); err != nil {
			return nil, nil, err
		}
		logger.Info("Using in-memory storage")
		return store, func() {}, nil

	case config.StoragePostgres, config.StorageSQLite:
		conn, err := openDB(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(conn, cfg.Storage.Type, cfg.Storage.MigrationsDir); err != nil {
			conn.Close()
			return nil, nil, err
		}
		store := storage.NewSQLStorage(conn, cfg.Storage.Type, cfg.Storage.DatabaseURL, logger)
		return store, func() { conn.Close() }, nil
	}
	return nil, nil, fmt.Errorf("%w %q", config.ErrUnknownStorage, cfg.Storage.Type)
}

func openDB(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	conn, err := db.Connect(cfg.Storage.Type, cfg.Storage.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return conn, nil
}
