package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// TradeSink consumes executed trades. Implementations must be
// non-blocking best-effort: a sink failure is logged by the sink itself
// and never propagates into the order-processing path.
type TradeSink interface {
	PublishTrade(Trade)
}

// MatchResult is the outcome of one add-and-match operation.
type MatchResult struct {
	Order     *Order
	Trades    []Trade
	Remaining decimal.Decimal
}

// Engine is the process-wide matching engine handle. It is constructed
// once at startup and injected into callers; there is no package-level
// instance.
type Engine struct {
	store   AtomicBookStore
	metrics *Recorder
	sinks   []TradeSink
	logger  zerolog.Logger
}

func New(store AtomicBookStore, sinks ...TradeSink) *Engine {
	e := &Engine{
		store:   store,
		metrics: NewRecorder(),
		sinks:   sinks,
		logger:  log.With().Str("component", "engine").Logger(),
	}
	if store.Mode() == ModeDegraded {
		e.logger.Warn().
			Str("mode", string(ModeDegraded)).
			Msg("engine running in degraded mode: atomicity against the durable store is relaxed")
	}
	return e
}

// Mode reports the engine's current atomicity mode.
func (e *Engine) Mode() Mode { return e.store.Mode() }

// Pairs lists the pairs that currently hold book state.
func (e *Engine) Pairs() []string { return e.store.Pairs() }

// AddSink registers a trade sink. Must be called during startup, before
// orders flow; the sink slice is not guarded.
func (e *Engine) AddSink(s TradeSink) {
	e.sinks = append(e.sinks, s)
}

// admit normalizes an incoming order: generated id when the caller did
// not supply one, remaining initialized to the full quantity.
func admit(o *Order) {
	if o.OrderID == "" {
		o.OrderID = uuid.New().String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.Remaining = o.Quantity
	o.Status = StatusOpen
}

// AddOrder inserts a limit order into the book without the caller
// receiving trades. If the order crosses the opposing best price it is
// still matched immediately — a crossed resting book is never a valid
// outcome — and the resulting trades flow to the configured sinks.
func (e *Engine) AddOrder(o *Order) error {
	if err := validateOrder(o); err != nil {
		return err
	}
	if o.Type == Market {
		return errInvalid("market orders cannot rest; submit for matching instead")
	}
	_, err := e.submit(o)
	return err
}

// MatchOrder inserts an order and matches it against resting liquidity
// in one atomic step, returning the executed trades and the taker's
// remaining quantity. Limit leftovers rest in the book; market leftovers
// are discarded.
func (e *Engine) MatchOrder(o *Order) (*MatchResult, error) {
	if err := validateOrder(o); err != nil {
		return nil, err
	}
	return e.submit(o)
}

// submit runs the insert-and-maybe-match compound operation under the
// pair's serialization point. Matching decision and commit are one
// indivisible step: no other order for the same pair can observe the
// book between them.
func (e *Engine) submit(o *Order) (*MatchResult, error) {
	start := time.Now()
	admit(o)

	var trades []Trade
	err := e.store.Update(o.Pair, func(b *Book) error {
		fills, _ := proposeFills(b, o)
		committed, err := applyFills(b, o, fills, time.Now())
		if err != nil {
			return err
		}
		trades = committed
		if o.Type == Limit && o.Remaining.IsPositive() {
			b.insert(o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metrics.RecordOrder(time.Since(start), len(trades))
	for _, t := range trades {
		for _, sink := range e.sinks {
			sink.PublishTrade(t)
		}
	}

	e.logger.Debug().
		Str("order_id", o.OrderID).
		Str("pair", o.Pair).
		Str("side", string(o.Side)).
		Int("trades", len(trades)).
		Str("remaining", o.Remaining.String()).
		Msg("order processed")

	return &MatchResult{Order: o, Trades: trades, Remaining: o.Remaining}, nil
}

// Snapshot returns an aggregated view of the top depth levels for a
// pair. The snapshot is consistent with itself but may trail in-flight
// updates; it must not be used for matching decisions.
func (e *Engine) Snapshot(pair string, depth int) Snapshot {
	var snap Snapshot
	e.store.View(pair, func(b *Book) {
		snap = b.Depth(depth)
	})
	return snap
}

// Metrics returns the recorder's counters plus the operating mode.
func (e *Engine) Metrics() Metrics {
	m := e.metrics.Snapshot()
	m.Mode = e.store.Mode()
	return m
}
