package db

import (
	"database/sql"
	"fmt"

	"storefront-cart/internal/config"
	"storefront-cart/internal/logger"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// NewDatabase opens and pings a Postgres connection.
func NewDatabase(cfg *config.Config) (*sql.DB, error) {
	return newDatabaseWithDriver(cfg, "postgres")
}

func newDatabaseWithDriver(cfg *config.Config, driver string) (*sql.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	logger.L().Info("database connection established", zap.String("host", cfg.DBHost))
	return db, nil
}

func InitDB(cfg *config.Config) *sql.DB {
	db, err := NewDatabase(cfg)
	if err != nil {
		logger.L().Fatal("database init failed", zap.Error(err))
	}
	return db
}
