package trading

import (
	"errors"
	"time"

	"github.com/tradecore/exchange-api/internal/types"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) GetOrderByOrderIDAndClientID(orderID, clientID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ? AND client_id = ?", orderID, clientID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (d *Database) UpdateOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

func (d *Database) CreateTrades(trades []types.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return d.db.Create(&trades).Error
}

func (d *Database) GetTradesByTakerOrder(orderID string) ([]types.Trade, error) {
	var trades []types.Trade
	if err := d.db.Where("taker_order_id = ?", orderID).Order("executed_at").Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (d *Database) GetTradesByPair(pair string, limit int) ([]types.Trade, error) {
	var trades []types.Trade
	if err := d.db.Where("pair = ?", pair).Order("executed_at desc").Limit(limit).Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// GetIdempotencyRecord retrieves an idempotency record by key. A missing
// record is not an error: callers check ResourceID.
func (d *Database) GetIdempotencyRecord(key string) (*IdempotencyRecord, error) {
	var record IdempotencyRecord
	if err := d.db.Where("idempotency_key = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &record, nil
		}
		return nil, err
	}
	return &record, nil
}

// CreateOrderWithIdempotency persists a new order and its idempotency
// record in one transaction.
func (d *Database) CreateOrderWithIdempotency(order *types.Order, idempotencyKey, resourceType string) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(order).Error; err != nil {
		tx.Rollback()
		return err
	}

	record := IdempotencyRecord{
		IdempotencyKey: idempotencyKey,
		ResourceID:     order.OrderID,
		ResourceType:   resourceType,
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
