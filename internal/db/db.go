package db

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/pressly/goose"
	"go.uber.org/zap"

	// drivers registered for sql.Open
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// gooseDialects maps a database/sql driver name to the goose dialect.
var gooseDialects = map[string]string{
	"postgres": "postgres",
	"sqlite":   "sqlite3",
}

// Connect opens and pings a database.
func Connect(driver, dsn string, logger *zap.Logger) (*sql.DB, error) {
	if _, ok := gooseDialects[driver]; !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s: data source is not set", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if driver == "sqlite" {
		// one writer at a time, and foreign keys are off by default
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("Connected to database", zap.String("driver", driver))
	return db, nil
}

// Migrate applies every pending migration from dir/<driver>.
func Migrate(db *sql.DB, driver, dir string) error {
	dialect, ok := gooseDialects[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	if err := goose.Up(db, filepath.Join(dir, driver)); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Status prints the state of every migration in dir/<driver>.
func Status(db *sql.DB, driver, dir string) error {
	dialect, ok := gooseDialects[driver]
	if !ok {
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.Status(db, filepath.Join(dir, driver))
}
