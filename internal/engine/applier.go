package engine

import (
	"time"

	"github.com/google/uuid"
)

// applyFills commits a fill proposal: decrements maker remaining
// quantities, removes fully-filled makers from their price level, and
// emits one Trade record per fill.
//
// The whole proposal is validated against live book state before any
// mutation. A maker that has disappeared or no longer carries enough
// remaining quantity fails the commit with ErrStaleMatchState and leaves
// the book untouched; the caller must re-run matching from fresh state.
func applyFills(b *Book, taker *Order, fills []Fill, now time.Time) ([]Trade, error) {
	makers := make([]*Order, len(fills))
	for i, f := range fills {
		maker, ok := b.Order(f.MakerOrderID)
		if !ok {
			return nil, errStale("maker order " + f.MakerOrderID + " no longer resting")
		}
		if maker.Remaining.LessThan(f.Quantity) {
			return nil, errStale("maker order " + f.MakerOrderID + " has insufficient remaining")
		}
		if !maker.Price.Equal(f.Price) {
			return nil, errStale("maker order " + f.MakerOrderID + " price changed")
		}
		makers[i] = maker
	}

	trades := make([]Trade, 0, len(fills))
	for i, f := range fills {
		maker := makers[i]
		maker.Remaining = maker.Remaining.Sub(f.Quantity)
		if maker.Remaining.IsZero() {
			maker.Status = StatusFilled
			b.remove(maker)
		}
		taker.Remaining = taker.Remaining.Sub(f.Quantity)

		trades = append(trades, Trade{
			TradeID:       "TRD_" + uuid.New().String(),
			Pair:          b.Pair,
			Price:         f.Price,
			Quantity:      f.Quantity,
			TakerOrderID:  taker.OrderID,
			TakerClientID: taker.ClientID,
			MakerOrderID:  maker.OrderID,
			MakerClientID: f.MakerClientID,
			Side:          taker.Side,
			ExecutedAt:    now,
		})
	}

	if taker.Remaining.IsZero() {
		taker.Status = StatusFilled
	}
	return trades, nil
}
