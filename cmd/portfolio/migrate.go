package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mvpetrera/portfolio/internal/config"
	"github.com/mvpetrera/portfolio/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|status]",
	Short:     "Apply or inspect the SQL schema migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "status"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Type == config.StorageMemory {
		return fmt.Errorf("migrations need a SQL storage, set STORAGE_TYPE to %s or %s",
			config.StoragePostgres, config.StorageSQLite)
	}

	conn, err := openDB(cfg, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if len(args) == 1 && args[0] == "status" {
		return db.Status(conn, cfg.Storage.Type, cfg.Storage.MigrationsDir)
	}
	if err := db.Migrate(conn, cfg.Storage.Type, cfg.Storage.MigrationsDir); err != nil {
		return err
	}
	logger.Info("Migrations applied", zap.String("storage", cfg.Storage.Type))
	return nil
}
