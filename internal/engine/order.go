package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type OrderType string

const (
	Limit  OrderType = "LIMIT"
	Market OrderType = "MARKET"
)

// Order statuses
const (
	StatusOpen   = "OPEN"
	StatusFilled = "FILLED"
)

// Order is the engine's working representation of a resting or incoming
// order. Remaining is monotonically non-increasing and an order with
// Remaining zero is terminal: it never appears in a price level.
type Order struct {
	OrderID   string
	ClientID  string
	Pair      string
	Side      Side
	Type      OrderType
	Price     decimal.Decimal // unset for market orders
	Quantity  decimal.Decimal
	Remaining decimal.Decimal
	Status    string
	CreatedAt time.Time

	// seq is the per-book insertion sequence, the FIFO tie-breaker
	// among orders resting at the same price.
	seq uint64
}

// Trade is an immutable record of one matched fill. The execution price
// is always the maker's resting price.
type Trade struct {
	TradeID       string
	Pair          string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	TakerOrderID  string
	TakerClientID string
	MakerOrderID  string
	MakerClientID string
	Side          Side // taker's side
	ExecutedAt    time.Time
}

// validateOrder rejects malformed input before any state is touched.
func validateOrder(o *Order) error {
	if o.Pair == "" {
		return errInvalid("pair is required")
	}
	if o.Side != Buy && o.Side != Sell {
		return errInvalid("side must be BUY or SELL")
	}
	if o.Type != Limit && o.Type != Market {
		return errInvalid("type must be LIMIT or MARKET")
	}
	if !o.Quantity.IsPositive() {
		return errInvalid("quantity must be positive")
	}
	if o.Type == Limit && !o.Price.IsPositive() {
		return errInvalid("limit orders require a positive price")
	}
	return nil
}
