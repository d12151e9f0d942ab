package trading

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tradecore/exchange-api/internal/engine"
	"github.com/tradecore/exchange-api/internal/types"
)

// toEngineOrder parses the wire representation into the engine's working
// order. Decimal parsing failures surface as InvalidOrder so the caller
// gets a 400, not a 500.
func toEngineOrder(o *types.Order) (*engine.Order, error) {
	qty, err := decimal.NewFromString(o.Quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q is not a decimal", engine.ErrInvalidOrder, o.Quantity)
	}

	price := decimal.Zero
	if o.Price != "" {
		price, err = decimal.NewFromString(o.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: price %q is not a decimal", engine.ErrInvalidOrder, o.Price)
		}
	}

	return &engine.Order{
		OrderID:   o.OrderID,
		ClientID:  o.ClientID,
		Pair:      o.Pair,
		Side:      engine.Side(o.Side),
		Type:      engine.OrderType(o.OrderType),
		Price:     price,
		Quantity:  qty,
		CreatedAt: o.CreatedAt,
	}, nil
}

// syncFromEngine copies the engine's post-processing state back onto the
// wire order.
func syncFromEngine(dst *types.Order, src *engine.Order) {
	dst.OrderID = src.OrderID
	dst.Remaining = src.Remaining.String()
	dst.Status = src.Status
	dst.CreatedAt = src.CreatedAt
}

// ToWireTrade converts an executed engine trade to its persisted/wire
// form.
func ToWireTrade(t engine.Trade) types.Trade {
	return types.Trade{
		TradeID:       t.TradeID,
		Pair:          t.Pair,
		Price:         t.Price.String(),
		Quantity:      t.Quantity.String(),
		TakerOrderID:  t.TakerOrderID,
		TakerClientID: t.TakerClientID,
		MakerOrderID:  t.MakerOrderID,
		MakerClientID: t.MakerClientID,
		Side:          string(t.Side),
		ExecutedAt:    t.ExecutedAt,
	}
}

func toWireSnapshot(s engine.Snapshot) *types.OrderbookSnapshot {
	out := &types.OrderbookSnapshot{
		Pair:      s.Pair,
		Bids:      make([]types.PriceLevel, 0, len(s.Bids)),
		Asks:      make([]types.PriceLevel, 0, len(s.Asks)),
		Timestamp: s.Timestamp,
	}
	for _, lvl := range s.Bids {
		out.Bids = append(out.Bids, types.PriceLevel{Price: lvl.Price.String(), Quantity: lvl.Quantity.String()})
	}
	for _, lvl := range s.Asks {
		out.Asks = append(out.Asks, types.PriceLevel{Price: lvl.Price.String(), Quantity: lvl.Quantity.String()})
	}
	return out
}
