package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// priceLevel is one price point on one side of the book, holding resting
// orders in strict FIFO order. A level exists only while it has at least
// one resting order.
type priceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

func (l *priceLevel) totalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, o := range l.orders {
		total = total.Add(o.Remaining)
	}
	return total
}

// bookSide keeps price levels sorted best-first: descending for bids,
// ascending for asks.
type bookSide struct {
	levels     []*priceLevel
	descending bool
}

// find returns the index of the level at price, or the insertion index
// and false when no such level exists.
func (s *bookSide) find(price decimal.Decimal) (int, bool) {
	idx := sort.Search(len(s.levels), func(i int) bool {
		cmp := s.levels[i].price.Cmp(price)
		if s.descending {
			return cmp <= 0
		}
		return cmp >= 0
	})
	if idx < len(s.levels) && s.levels[idx].price.Equal(price) {
		return idx, true
	}
	return idx, false
}

func (s *bookSide) best() *priceLevel {
	if len(s.levels) == 0 {
		return nil
	}
	return s.levels[0]
}

func (s *bookSide) enqueue(o *Order) {
	idx, ok := s.find(o.Price)
	if !ok {
		lvl := &priceLevel{price: o.Price}
		s.levels = append(s.levels, nil)
		copy(s.levels[idx+1:], s.levels[idx:])
		s.levels[idx] = lvl
	}
	s.levels[idx].orders = append(s.levels[idx].orders, o)
}

// unlink removes the order from its level and destroys the level when it
// empties. Returns false if the order is not resting on this side.
func (s *bookSide) unlink(o *Order) bool {
	idx, ok := s.find(o.Price)
	if !ok {
		return false
	}
	lvl := s.levels[idx]
	for i, resting := range lvl.orders {
		if resting.OrderID == o.OrderID {
			lvl.orders = append(lvl.orders[:i], lvl.orders[i+1:]...)
			if len(lvl.orders) == 0 {
				s.levels = append(s.levels[:idx], s.levels[idx+1:]...)
			}
			return true
		}
	}
	return false
}

// Book is the authoritative resting state for a single trading pair. It
// is not safe for concurrent use; all access goes through the store's
// per-pair serialization.
type Book struct {
	Pair string

	bids   bookSide
	asks   bookSide
	orders map[string]*Order
	seq    uint64
}

func NewBook(pair string) *Book {
	return &Book{
		Pair:   pair,
		bids:   bookSide{descending: true},
		asks:   bookSide{},
		orders: make(map[string]*Order),
	}
}

func (b *Book) side(s Side) *bookSide {
	if s == Buy {
		return &b.bids
	}
	return &b.asks
}

// opposing returns the side an incoming order matches against.
func (b *Book) opposing(s Side) *bookSide {
	if s == Buy {
		return &b.asks
	}
	return &b.bids
}

// insert rests a limit order on its side, assigning the FIFO sequence.
func (b *Book) insert(o *Order) {
	b.seq++
	o.seq = b.seq
	o.Status = StatusOpen
	b.side(o.Side).enqueue(o)
	b.orders[o.OrderID] = o
}

// remove takes a resting order out of the book entirely.
func (b *Book) remove(o *Order) {
	b.side(o.Side).unlink(o)
	delete(b.orders, o.OrderID)
}

// Order returns the resting order with the given id, if any.
func (b *Book) Order(id string) (*Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

func (b *Book) BestBid() (decimal.Decimal, bool) {
	if lvl := b.bids.best(); lvl != nil {
		return lvl.price, true
	}
	return decimal.Zero, false
}

func (b *Book) BestAsk() (decimal.Decimal, bool) {
	if lvl := b.asks.best(); lvl != nil {
		return lvl.price, true
	}
	return decimal.Zero, false
}

// LevelView is one aggregated price level of a snapshot. Individual
// order identities are not exposed.
type LevelView struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Snapshot describes the top depth levels of both sides at a point in
// time.
type Snapshot struct {
	Pair      string
	Bids      []LevelView
	Asks      []LevelView
	Timestamp time.Time
}

func (s *bookSide) depth(n int) []LevelView {
	if n <= 0 || n > len(s.levels) {
		n = len(s.levels)
	}
	out := make([]LevelView, 0, n)
	for _, lvl := range s.levels[:n] {
		out = append(out, LevelView{Price: lvl.price, Quantity: lvl.totalQuantity()})
	}
	return out
}

// Depth returns an aggregated view of the top n levels per side.
func (b *Book) Depth(n int) Snapshot {
	return Snapshot{
		Pair:      b.Pair,
		Bids:      b.bids.depth(n),
		Asks:      b.asks.depth(n),
		Timestamp: time.Now(),
	}
}
