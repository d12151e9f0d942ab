package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/tradecore/exchange-api/internal/engine"
	"github.com/tradecore/exchange-api/internal/trading"
)

// Producer publishes executed trades to a Kafka topic, keyed by pair so
// downstream consumers see per-pair ordering. Writes happen on a
// background goroutine; the matching path only enqueues.
type Producer struct {
	writer *kafka.Writer
	trades chan engine.Trade
}

var _ engine.TradeSink = (*Producer)(nil)

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
		trades: make(chan engine.Trade, 4096),
	}
}

// PublishTrade enqueues a trade for delivery. Non-blocking.
func (p *Producer) PublishTrade(t engine.Trade) {
	select {
	case p.trades <- t:
	default:
		log.Warn().Str("trade_id", t.TradeID).Msg("kafka buffer full, dropping trade")
	}
}

// Run delivers enqueued trades until ctx is cancelled.
func (p *Producer) Run(ctx context.Context) {
	logger := log.With().Str("component", "trade_stream").Logger()
	logger.Info().Str("topic", p.writer.Topic).Msg("starting trade stream producer")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down trade stream producer")
			return
		case t := <-p.trades:
			if err := p.send(ctx, t); err != nil {
				logger.Error().Err(err).Str("trade_id", t.TradeID).Msg("failed to publish trade")
			}
		}
	}
}

func (p *Producer) send(ctx context.Context, t engine.Trade) error {
	value, err := json.Marshal(trading.ToWireTrade(t))
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(t.Pair),
		Value: value,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
