package database

import (
	"fmt"

	"github.com/tradecore/exchange-api/internal/database/migrations"
	"github.com/tradecore/exchange-api/internal/trading"
	"github.com/tradecore/exchange-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "exchange.db"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate schemas
	err = db.AutoMigrate(
		&types.Order{},
		&types.Trade{},
		&trading.IdempotencyRecord{},
	)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddTradeQueryIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
