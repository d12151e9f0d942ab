package engine

import "github.com/shopspring/decimal"

// Fill is one proposed execution against a resting maker order. Proposals
// are transient: they are computed and committed inside the same atomic
// step and never persisted.
type Fill struct {
	MakerOrderID  string
	MakerClientID string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
}

// crosses reports whether an incoming order would execute against the
// given resting price. Market orders cross every level.
func crosses(taker *Order, restingPrice decimal.Decimal) bool {
	if taker.Type == Market {
		return true
	}
	if taker.Side == Buy {
		return restingPrice.LessThanOrEqual(taker.Price)
	}
	return restingPrice.GreaterThanOrEqual(taker.Price)
}

// proposeFills walks the opposing side of the book in price-time priority
// and returns the fills an incoming order would execute, plus its
// remaining quantity after those fills. The walk is a pure read: book
// state is not mutated and identical input state yields identical output.
//
// Execution price is always the resting (maker) order's price. Within a
// price level makers fill strictly FIFO by insertion sequence.
func proposeFills(b *Book, taker *Order) ([]Fill, decimal.Decimal) {
	remaining := taker.Remaining
	var fills []Fill

	opposing := b.opposing(taker.Side)
	for _, lvl := range opposing.levels {
		if remaining.IsZero() || !crosses(taker, lvl.price) {
			break
		}
		for _, maker := range lvl.orders {
			if remaining.IsZero() {
				break
			}
			qty := decimal.Min(remaining, maker.Remaining)
			fills = append(fills, Fill{
				MakerOrderID:  maker.OrderID,
				MakerClientID: maker.ClientID,
				Price:         lvl.price,
				Quantity:      qty,
			})
			remaining = remaining.Sub(qty)
		}
	}

	return fills, remaining
}
