package marketdata

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/tradecore/exchange-api/internal/engine"
	"github.com/tradecore/exchange-api/internal/trading"
	"github.com/tradecore/exchange-api/internal/types"
)

const bookDepth = 10

// Service streams executed trades and book updates to websocket
// clients. It sits behind the engine as a trade sink; nothing here may
// block the matching path.
type Service struct {
	engine   *engine.Engine
	trades   *hub[types.Trade]
	books    *hub[*types.OrderbookSnapshot]
	upgrader websocket.Upgrader
}

var _ engine.TradeSink = (*Service)(nil)

func NewService(eng *engine.Engine) *Service {
	return &Service{
		engine:   eng,
		trades:   newHub[types.Trade](),
		books:    newHub[*types.OrderbookSnapshot](),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// PublishTrade broadcasts the trade and, when anyone is watching the
// book stream, a fresh top-of-book snapshot for the trade's pair.
func (s *Service) PublishTrade(t engine.Trade) {
	s.trades.Broadcast(trading.ToWireTrade(t))

	if s.books.Subscribers() == 0 {
		return
	}
	s.books.Broadcast(toBookMessage(s.engine.Snapshot(t.Pair, bookDepth)))
}

func toBookMessage(snap engine.Snapshot) *types.OrderbookSnapshot {
	out := &types.OrderbookSnapshot{
		Pair:      snap.Pair,
		Bids:      make([]types.PriceLevel, 0, len(snap.Bids)),
		Asks:      make([]types.PriceLevel, 0, len(snap.Asks)),
		Timestamp: snap.Timestamp,
	}
	for _, lvl := range snap.Bids {
		out.Bids = append(out.Bids, types.PriceLevel{Price: lvl.Price.String(), Quantity: lvl.Quantity.String()})
	}
	for _, lvl := range snap.Asks {
		out.Asks = append(out.Asks, types.PriceLevel{Price: lvl.Price.String(), Quantity: lvl.Quantity.String()})
	}
	return out
}

type outboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TradeStreamHandler upgrades the connection and pushes every executed
// trade until the client goes away.
func (s *Service) TradeStreamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Msg("trade stream upgrade failed")
			return
		}
		defer conn.Close()

		sub := s.trades.Subscribe(64)
		defer s.trades.Unsubscribe(sub)

		for trade := range sub.ch {
			msg := outboundMessage{Type: "trade", Data: trade}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// BookStreamHandler pushes a top-of-book snapshot after every trade.
// An initial snapshot is sent when a pair query parameter is present.
func (s *Service) BookStreamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Msg("book stream upgrade failed")
			return
		}
		defer conn.Close()

		sub := s.books.Subscribe(64)
		defer s.books.Unsubscribe(sub)

		if pair := c.Query("pair"); pair != "" {
			snap := toBookMessage(s.engine.Snapshot(pair, bookDepth))
			snap.Timestamp = time.Now()
			if err := conn.WriteJSON(outboundMessage{Type: "book", Data: snap}); err != nil {
				return
			}
		}

		for view := range sub.ch {
			msg := outboundMessage{Type: "book", Data: view}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
