package migrations

import (
	"gorm.io/gorm"
)

// AddTradeQueryIndexes creates the composite indexes the trade history
// and journal queries rely on.
func AddTradeQueryIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for per-pair trade history, newest first
		`CREATE INDEX IF NOT EXISTS idx_trades_pair_executed_at
		 ON trades(pair, executed_at)`,

		// Index for replaying a taker's fills
		`CREATE INDEX IF NOT EXISTS idx_trades_taker_order_id
		 ON trades(taker_order_id)`,

		// Composite index for owner-scoped order lookups
		`CREATE INDEX IF NOT EXISTS idx_orders_order_id_client_id
		 ON orders(order_id, client_id)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
