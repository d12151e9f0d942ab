package types

import (
	"time"

	"gorm.io/gorm"
)

// Order is the persisted and wire representation of an order. Prices and
// quantities cross the API boundary as decimal strings so no precision
// is lost through JSON serialization.
type Order struct {
	gorm.Model `json:"-"`
	OrderID    string    `gorm:"uniqueIndex" json:"order_id"`
	ClientID   string    `json:"client_id"`
	Pair       string    `gorm:"index" json:"pair"`
	Side       string    `json:"side"`       // BUY or SELL
	OrderType  string    `json:"order_type"` // MARKET or LIMIT
	Quantity   string    `json:"quantity"`
	Remaining  string    `json:"remaining"`
	Price      string    `json:"price,omitempty"`
	Status     string    `json:"status"` // OPEN, FILLED
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Trade is the immutable record of one matched fill. The execution
// price is the maker's resting price; the side is the taker's side.
type Trade struct {
	gorm.Model    `json:"-"`
	TradeID       string    `gorm:"uniqueIndex" json:"trade_id"`
	Pair          string    `gorm:"index" json:"pair"`
	Price         string    `json:"price"`
	Quantity      string    `json:"quantity"`
	TakerOrderID  string    `json:"taker_order_id"`
	TakerClientID string    `json:"taker_client_id"`
	MakerOrderID  string    `json:"maker_order_id"`
	MakerClientID string    `json:"maker_client_id"`
	Side          string    `json:"side"`
	ExecutedAt    time.Time `gorm:"index" json:"executed_at"`
}
