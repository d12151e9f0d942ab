package engine

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return v
}

func newTestEngine(sinks ...TradeSink) *Engine {
	return New(NewMemoryStore(ModeAtomic), sinks...)
}

func limitOrder(id, pair string, side Side, price, qty string) *Order {
	p, _ := decimal.NewFromString(price)
	q, _ := decimal.NewFromString(qty)
	return &Order{
		OrderID:  id,
		ClientID: "client-" + id,
		Pair:     pair,
		Side:     side,
		Type:     Limit,
		Price:    p,
		Quantity: q,
	}
}

func marketOrder(id, pair string, side Side, qty string) *Order {
	q, _ := decimal.NewFromString(qty)
	return &Order{
		OrderID:  id,
		ClientID: "client-" + id,
		Pair:     pair,
		Side:     side,
		Type:     Market,
		Quantity: q,
	}
}

// captureSink records every published trade for assertions.
type captureSink struct {
	trades []Trade
}

func (c *captureSink) PublishTrade(t Trade) {
	c.trades = append(c.trades, t)
}

// checkBookInvariants verifies the reachable-state invariants: every
// order referenced by a price level has remaining > 0 and matches the
// level's price and side, every tracked order with remaining > 0 rests
// in exactly one level, and the resting book is never crossed.
func checkBookInvariants(t *testing.T, e *Engine, pair string) {
	t.Helper()
	e.store.View(pair, func(b *Book) {
		referenced := make(map[string]int)
		for _, side := range []*bookSide{&b.bids, &b.asks} {
			for _, lvl := range side.levels {
				if len(lvl.orders) == 0 {
					t.Errorf("pair %s: empty price level %s left in book", pair, lvl.price)
				}
				for _, o := range lvl.orders {
					referenced[o.OrderID]++
					if !o.Remaining.IsPositive() {
						t.Errorf("pair %s: order %s resting with remaining %s", pair, o.OrderID, o.Remaining)
					}
					if !o.Price.Equal(lvl.price) {
						t.Errorf("pair %s: order %s price %s resting at level %s", pair, o.OrderID, o.Price, lvl.price)
					}
				}
			}
		}
		for id, count := range referenced {
			if count != 1 {
				t.Errorf("pair %s: order %s referenced by %d levels", pair, id, count)
			}
			if _, ok := b.orders[id]; !ok {
				t.Errorf("pair %s: order %s resting but not tracked", pair, id)
			}
		}
		for id, o := range b.orders {
			if o.Remaining.IsPositive() && referenced[id] != 1 {
				t.Errorf("pair %s: order %s with remaining %s absent from price levels", pair, id, o.Remaining)
			}
		}

		bid, hasBid := b.BestBid()
		ask, hasAsk := b.BestAsk()
		if hasBid && hasAsk && bid.GreaterThanOrEqual(ask) {
			t.Errorf("pair %s: crossed resting book, best bid %s >= best ask %s", pair, bid, ask)
		}
	})
}

func requireDecimal(t *testing.T, got decimal.Decimal, want string, context string) {
	t.Helper()
	if !got.Equal(d(t, want)) {
		t.Fatalf("%s: got %s, want %s", context, got, want)
	}
}

func orderID(i int) string {
	return fmt.Sprintf("ord-%03d", i)
}
