package engine

import (
	"errors"
	"testing"
	"time"
)

func TestStaleProposalRejected(t *testing.T) {
	b := NewBook("BTC-USD")
	maker := limitOrder("maker1", "BTC-USD", Sell, "100", "5")
	admit(maker)
	b.insert(maker)

	taker := limitOrder("taker1", "BTC-USD", Buy, "100", "8")
	admit(taker)

	// Proposal claims more than the maker holds.
	fills := []Fill{{
		MakerOrderID:  "maker1",
		MakerClientID: maker.ClientID,
		Price:         d(t, "100"),
		Quantity:      d(t, "8"),
	}}

	_, err := applyFills(b, taker, fills, time.Now())
	if !errors.Is(err, ErrStaleMatchState) {
		t.Fatalf("expected ErrStaleMatchState, got %v", err)
	}
	requireDecimal(t, maker.Remaining, "5", "maker must be untouched after failed commit")
	requireDecimal(t, taker.Remaining, "8", "taker must be untouched after failed commit")
}

func TestStaleProposalNoPartialApplication(t *testing.T) {
	b := NewBook("BTC-USD")
	maker1 := limitOrder("maker1", "BTC-USD", Sell, "100", "5")
	admit(maker1)
	b.insert(maker1)

	taker := limitOrder("taker1", "BTC-USD", Buy, "100", "8")
	admit(taker)

	// First entry is valid, second references a maker that is gone.
	fills := []Fill{
		{MakerOrderID: "maker1", MakerClientID: maker1.ClientID, Price: d(t, "100"), Quantity: d(t, "5")},
		{MakerOrderID: "ghost", Price: d(t, "100"), Quantity: d(t, "3")},
	}

	_, err := applyFills(b, taker, fills, time.Now())
	if !errors.Is(err, ErrStaleMatchState) {
		t.Fatalf("expected ErrStaleMatchState, got %v", err)
	}
	requireDecimal(t, maker1.Remaining, "5", "valid entry must not be applied when the proposal fails")
	if _, ok := b.Order("maker1"); !ok {
		t.Fatal("maker1 must still be resting")
	}
}

func TestApplyRemovesFilledMakers(t *testing.T) {
	b := NewBook("BTC-USD")
	maker := limitOrder("maker1", "BTC-USD", Sell, "100", "5")
	admit(maker)
	b.insert(maker)

	taker := limitOrder("taker1", "BTC-USD", Buy, "100", "5")
	admit(taker)

	fills, remaining := proposeFills(b, taker)
	requireDecimal(t, remaining, "0", "proposal remaining")

	trades, err := applyFills(b, taker, fills, time.Now())
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(trades))
	}
	if maker.Status != StatusFilled {
		t.Fatalf("maker status = %s, want %s", maker.Status, StatusFilled)
	}
	if _, ok := b.Order("maker1"); ok {
		t.Fatal("fully-filled maker must be removed from the book")
	}
	if lvl := b.asks.best(); lvl != nil {
		t.Fatalf("emptied price level must be destroyed, found %s", lvl.price)
	}
}

func TestPartialFillKeepsQueuePosition(t *testing.T) {
	b := NewBook("BTC-USD")
	first := limitOrder("first", "BTC-USD", Sell, "100", "10")
	admit(first)
	b.insert(first)
	second := limitOrder("second", "BTC-USD", Sell, "100", "10")
	admit(second)
	b.insert(second)

	taker := limitOrder("taker1", "BTC-USD", Buy, "100", "4")
	admit(taker)
	fills, _ := proposeFills(b, taker)
	if _, err := applyFills(b, taker, fills, time.Now()); err != nil {
		t.Fatalf("apply: %v", err)
	}

	// first was partially filled and must still be at the head of the level.
	lvl := b.asks.best()
	if lvl == nil || len(lvl.orders) != 2 {
		t.Fatalf("expected both makers still resting")
	}
	if lvl.orders[0].OrderID != "first" {
		t.Fatalf("partially-filled maker lost FIFO position, head is %s", lvl.orders[0].OrderID)
	}
	requireDecimal(t, lvl.orders[0].Remaining, "6", "partial maker remaining")
}
