package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRejectsInvalidOrders(t *testing.T) {
	e := newTestEngine()

	cases := []struct {
		name  string
		order *Order
	}{
		{"zero quantity", limitOrder("o1", "BTC-USD", Buy, "100", "0")},
		{"negative quantity", limitOrder("o2", "BTC-USD", Buy, "100", "-1")},
		{"limit without price", limitOrder("o3", "BTC-USD", Buy, "0", "1")},
		{"missing pair", limitOrder("o4", "", Buy, "100", "1")},
		{"unknown side", &Order{OrderID: "o5", Pair: "BTC-USD", Side: "HOLD", Type: Limit, Price: d(t, "1"), Quantity: d(t, "1")}},
		{"unknown type", &Order{OrderID: "o6", Pair: "BTC-USD", Side: Buy, Type: "STOP", Price: d(t, "1"), Quantity: d(t, "1")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.MatchOrder(tc.order); !errors.Is(err, ErrInvalidOrder) {
				t.Fatalf("expected ErrInvalidOrder, got %v", err)
			}
		})
	}

	if err := e.AddOrder(marketOrder("m1", "BTC-USD", Buy, "1")); !errors.Is(err, ErrInvalidOrder) {
		t.Fatalf("market orders must not rest via AddOrder, got %v", err)
	}

	// Nothing above may have touched the book.
	snap := e.Snapshot("BTC-USD", 0)
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatal("rejected orders must leave no state behind")
	}
}

func TestAddOrderCrossingTriggersMatch(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(sink)

	if err := e.AddOrder(limitOrder("ask1", "BTC-USD", Sell, "100", "5")); err != nil {
		t.Fatalf("add ask: %v", err)
	}
	// A crossing add must match immediately rather than rest crossed.
	if err := e.AddOrder(limitOrder("bid1", "BTC-USD", Buy, "101", "5")); err != nil {
		t.Fatalf("add crossing bid: %v", err)
	}

	if len(sink.trades) != 1 {
		t.Fatalf("expected 1 trade from crossing add, got %d", len(sink.trades))
	}
	requireDecimal(t, sink.trades[0].Price, "100", "maker price on crossing add")
	checkBookInvariants(t, e, "BTC-USD")
}

func TestGeneratesOrderIDWhenAbsent(t *testing.T) {
	e := newTestEngine()
	o := limitOrder("", "BTC-USD", Buy, "100", "1")
	if _, err := e.MatchOrder(o); err != nil {
		t.Fatalf("match: %v", err)
	}
	if o.OrderID == "" {
		t.Fatal("engine must assign an order id when the caller does not")
	}
}

func TestSinksReceiveTrades(t *testing.T) {
	sink := &captureSink{}
	e := newTestEngine(sink)

	if err := e.AddOrder(limitOrder("ask1", "BTC-USD", Sell, "100", "2")); err != nil {
		t.Fatalf("add ask: %v", err)
	}
	res, err := e.MatchOrder(marketOrder("mkt1", "BTC-USD", Buy, "2"))
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	if len(sink.trades) != len(res.Trades) {
		t.Fatalf("sink saw %d trades, result has %d", len(sink.trades), len(res.Trades))
	}
	if sink.trades[0].TradeID != res.Trades[0].TradeID {
		t.Fatal("sink received a different trade than the match result")
	}
}

func TestDegradedModeSurfaced(t *testing.T) {
	e := New(NewMemoryStore(ModeDegraded))
	if e.Mode() != ModeDegraded {
		t.Fatalf("mode = %s, want %s", e.Mode(), ModeDegraded)
	}
	if got := e.Metrics().Mode; got != ModeDegraded {
		t.Fatalf("metrics mode = %s, want %s", got, ModeDegraded)
	}

	// Matching behaves identically in degraded mode; only durability and
	// the reported mode differ.
	if err := e.AddOrder(limitOrder("ask1", "BTC-USD", Sell, "100", "1")); err != nil {
		t.Fatalf("add ask: %v", err)
	}
	res, err := e.MatchOrder(limitOrder("bid1", "BTC-USD", Buy, "100", "1"))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade in degraded mode, got %d", len(res.Trades))
	}
}

func TestBatchCountsFailuresIndividually(t *testing.T) {
	e := newTestEngine()

	orders := []*Order{
		limitOrder("ok1", "BTC-USD", Sell, "100", "1"),
		limitOrder("bad1", "BTC-USD", Buy, "0", "1"), // invalid: no price
		limitOrder("ok2", "BTC-USD", Buy, "100", "1"),
	}
	res := e.ProcessBatch(orders)

	if res.Successful != 2 {
		t.Fatalf("successful = %d, want 2", res.Successful)
	}
	if res.Failed != 1 {
		t.Fatalf("failed = %d, want 1", res.Failed)
	}
	if res.TotalTrades != 1 {
		t.Fatalf("total trades = %d, want 1", res.TotalTrades)
	}
	checkBookInvariants(t, e, "BTC-USD")
}

// batchFixture builds a deterministic interleaved order flow for two
// unrelated pairs.
func batchFixture(t *testing.T) []*Order {
	t.Helper()
	var orders []*Order
	for i := 0; i < 25; i++ {
		price := fmt.Sprintf("%d", 100+i%5)
		orders = append(orders,
			limitOrder(fmt.Sprintf("a-ask-%02d", i), "BTC-USD", Sell, price, "1"),
			limitOrder(fmt.Sprintf("b-ask-%02d", i), "ETH-USD", Sell, price, "2"),
			limitOrder(fmt.Sprintf("a-bid-%02d", i), "BTC-USD", Buy, price, "1"),
			limitOrder(fmt.Sprintf("b-bid-%02d", i), "ETH-USD", Buy, price, "2"),
		)
	}
	return orders
}

func cloneOrders(orders []*Order) []*Order {
	out := make([]*Order, len(orders))
	for i, o := range orders {
		copied := *o
		out[i] = &copied
	}
	return out
}

func TestBatchConcurrencyMatchesSequential(t *testing.T) {
	orders := batchFixture(t)

	concurrent := newTestEngine()
	res := concurrent.ProcessBatch(cloneOrders(orders))
	if res.Failed != 0 {
		t.Fatalf("batch had %d failures", res.Failed)
	}

	sequential := newTestEngine()
	seqTrades := 0
	for _, o := range cloneOrders(orders) {
		r, err := sequential.MatchOrder(o)
		if err != nil {
			t.Fatalf("sequential match: %v", err)
		}
		seqTrades += len(r.Trades)
	}

	if res.TotalTrades != seqTrades {
		t.Fatalf("concurrent batch produced %d trades, sequential %d", res.TotalTrades, seqTrades)
	}

	for _, pair := range []string{"BTC-USD", "ETH-USD"} {
		checkBookInvariants(t, concurrent, pair)

		cs := concurrent.Snapshot(pair, 0)
		ss := sequential.Snapshot(pair, 0)
		compareLevels(t, pair+" bids", cs.Bids, ss.Bids)
		compareLevels(t, pair+" asks", cs.Asks, ss.Asks)
	}
}

func compareLevels(t *testing.T, context string, got, want []LevelView) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: %d levels vs %d sequential", context, len(got), len(want))
	}
	for i := range got {
		if !got[i].Price.Equal(want[i].Price) || !got[i].Quantity.Equal(want[i].Quantity) {
			t.Fatalf("%s level %d: got %s@%s, want %s@%s", context, i,
				got[i].Quantity, got[i].Price, want[i].Quantity, want[i].Price)
		}
	}
}

func TestBatchMetricsAccumulate(t *testing.T) {
	e := newTestEngine()
	res := e.ProcessBatch(batchFixture(t))

	m := e.Metrics()
	if m.OrdersProcessed != uint64(res.Successful) {
		t.Fatalf("orders processed = %d, want %d", m.OrdersProcessed, res.Successful)
	}
	if m.TradesExecuted != uint64(res.TotalTrades) {
		t.Fatalf("trades executed = %d, want %d", m.TradesExecuted, res.TotalTrades)
	}
	if m.Mode != ModeAtomic {
		t.Fatalf("mode = %s, want %s", m.Mode, ModeAtomic)
	}
}

func TestSnapshotUnknownPairIsEmpty(t *testing.T) {
	e := newTestEngine()
	snap := e.Snapshot("NO-SUCH", 5)
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Fatal("unknown pair must yield an empty snapshot")
	}
	if snap.Pair != "NO-SUCH" {
		t.Fatalf("snapshot pair = %s", snap.Pair)
	}
}

func TestDecimalPrecisionPreserved(t *testing.T) {
	e := newTestEngine()
	if err := e.AddOrder(limitOrder("ask1", "BTC-USD", Sell, "0.00000001", "0.30000001")); err != nil {
		t.Fatalf("add ask: %v", err)
	}
	res, err := e.MatchOrder(marketOrder("mkt1", "BTC-USD", Buy, "0.1"))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	requireDecimal(t, res.Trades[0].Quantity, "0.1", "fractional fill")
	var rest decimal.Decimal
	e.store.View("BTC-USD", func(b *Book) {
		o, _ := b.Order("ask1")
		rest = o.Remaining
	})
	requireDecimal(t, rest, "0.20000001", "no precision loss on remaining")
}
