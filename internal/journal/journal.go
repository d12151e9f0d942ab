package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradecore/exchange-api/internal/engine"
	"github.com/tradecore/exchange-api/internal/trading"
	"github.com/tradecore/exchange-api/internal/types"
)

const (
	defaultBufferSize = 4096
	flushInterval     = 250 * time.Millisecond
	flushBatchSize    = 500
)

// Writer journals executed trades to the database off the matching
// path. Trades are buffered on a channel and flushed in batches; when
// the buffer is full the trade is dropped and counted, never blocking
// the engine.
type Writer struct {
	db      *trading.Database
	trades  chan types.Trade
	dropped atomic.Uint64
}

var _ engine.TradeSink = (*Writer)(nil)

func NewWriter(db *trading.Database) *Writer {
	return &Writer{
		db:     db,
		trades: make(chan types.Trade, defaultBufferSize),
	}
}

// PublishTrade enqueues a trade for journaling. Non-blocking.
func (w *Writer) PublishTrade(t engine.Trade) {
	select {
	case w.trades <- trading.ToWireTrade(t):
	default:
		w.dropped.Add(1)
		log.Warn().Str("trade_id", t.TradeID).Msg("journal buffer full, dropping trade")
	}
}

// Run drains the buffer until ctx is cancelled, flushing on a short
// ticker or whenever a batch fills up. A final flush runs on shutdown.
func (w *Writer) Run(ctx context.Context) {
	logger := log.With().Str("component", "trade_journal").Logger()
	logger.Info().Msg("starting trade journal")

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]types.Trade, 0, flushBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.db.CreateTrades(batch); err != nil {
			logger.Error().Err(err).Int("count", len(batch)).Msg("failed to journal trades")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case t := <-w.trades:
					batch = append(batch, t)
					if len(batch) == flushBatchSize {
						flush()
					}
				default:
					flush()
					if n := w.dropped.Load(); n > 0 {
						logger.Warn().Uint64("dropped", n).Msg("trades dropped during run")
					}
					logger.Info().Msg("shutting down trade journal")
					return
				}
			}
		case t := <-w.trades:
			batch = append(batch, t)
			if len(batch) == flushBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
