package trading

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tradecore/exchange-api/internal/auth"
	"github.com/tradecore/exchange-api/internal/engine"
	"github.com/tradecore/exchange-api/internal/types"
	"github.com/tradecore/exchange-api/pkg/response"
)

// Service handles order intake and exposes the engine's operations. The
// database is optional: in degraded mode the service keeps matching with
// persistence disabled.
type Service struct {
	db     *Database
	engine *engine.Engine
}

// NewService creates the trading service. gormDB may be nil when the
// engine runs degraded; every persistence call is then skipped.
func NewService(gormDB *gorm.DB, eng *engine.Engine) *Service {
	s := &Service{engine: eng}
	if gormDB != nil {
		s.db = NewDatabase(gormDB)
	}
	return s
}

// Engine exposes the underlying engine handle (used for wiring sinks
// and the simulation binary).
func (s *Service) Engine() *engine.Engine { return s.engine }

// CreateOrder validates and rests a limit order. With an idempotency key
// already seen, the previously created order is returned unchanged.
func (s *Service) CreateOrder(order *types.Order, idempotencyKey string) error {
	if s.db != nil {
		record, err := s.db.GetIdempotencyRecord(idempotencyKey)
		if err == nil && record.ResourceID != "" && record.ExpiresAt.After(time.Now()) {
			existing, err := s.db.GetOrder(record.ResourceID)
			if err != nil {
				return err
			}
			if existing == nil {
				return errors.New("idempotency record points at a missing order")
			}
			*order = *existing
			return nil
		}
	}

	order.OrderID = uuid.New().String()
	order.CreatedAt = time.Now()

	eo, err := toEngineOrder(order)
	if err != nil {
		return err
	}
	if err := s.engine.AddOrder(eo); err != nil {
		return err
	}
	syncFromEngine(order, eo)

	if s.db != nil {
		if err := s.db.CreateOrderWithIdempotency(order, idempotencyKey, "order"); err != nil {
			log.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to persist accepted order")
			return err
		}
	}
	return nil
}

// MatchOrder submits an order for immediate matching and returns the
// executed trades plus the remaining amount.
func (s *Service) MatchOrder(order *types.Order, idempotencyKey string) (*types.MatchResponse, error) {
	if s.db != nil {
		record, err := s.db.GetIdempotencyRecord(idempotencyKey)
		if err == nil && record.ResourceID != "" && record.ExpiresAt.After(time.Now()) {
			return s.replayMatch(record.ResourceID)
		}
	}

	order.OrderID = uuid.New().String()
	order.CreatedAt = time.Now()

	eo, err := toEngineOrder(order)
	if err != nil {
		return nil, err
	}
	result, err := s.engine.MatchOrder(eo)
	if err != nil {
		return nil, err
	}
	syncFromEngine(order, eo)

	if s.db != nil {
		if err := s.db.CreateOrderWithIdempotency(order, idempotencyKey, "match"); err != nil {
			// The match is already committed; losing the order row is a
			// durability gap, not a matching failure.
			log.Error().Err(err).Str("order_id", order.OrderID).Msg("failed to persist matched order")
		}
	}

	trades := make([]types.Trade, 0, len(result.Trades))
	for _, t := range result.Trades {
		trades = append(trades, ToWireTrade(t))
	}
	return &types.MatchResponse{
		Order:           order,
		Trades:          trades,
		RemainingAmount: result.Remaining.String(),
	}, nil
}

// replayMatch rebuilds the response of a previously processed match from
// the persisted order and its trades.
func (s *Service) replayMatch(orderID string) (*types.MatchResponse, error) {
	order, err := s.db.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, errors.New("idempotency record points at a missing order")
	}
	trades, err := s.db.GetTradesByTakerOrder(orderID)
	if err != nil {
		return nil, err
	}
	return &types.MatchResponse{
		Order:           order,
		Trades:          trades,
		RemainingAmount: order.Remaining,
	}, nil
}

// ProcessBatch fans a collection of orders into the engine's batch
// pipeline. Accepted orders are persisted best-effort after the batch so
// persistence never sits on the matching path.
func (s *Service) ProcessBatch(req *types.BatchRequest) *types.BatchResponse {
	orders := make([]*engine.Order, 0, len(req.Orders))
	invalid := 0
	for i := range req.Orders {
		wire := &req.Orders[i]
		if wire.OrderID == "" {
			wire.OrderID = uuid.New().String()
		}
		eo, err := toEngineOrder(wire)
		if err != nil {
			invalid++
			continue
		}
		orders = append(orders, eo)
	}

	result := s.engine.ProcessBatch(orders)

	return &types.BatchResponse{
		Successful:       result.Successful,
		Failed:           result.Failed + invalid,
		TotalTrades:      result.TotalTrades,
		ProcessingTimeMs: result.ProcessingTime.Milliseconds(),
	}
}

// GetOrderByOrderIDAndClientID retrieves an order scoped to its owner.
func (s *Service) GetOrderByOrderIDAndClientID(orderID, clientID string) (*types.Order, error) {
	if s.db == nil {
		return nil, engine.ErrStoreUnavailable
	}
	return s.db.GetOrderByOrderIDAndClientID(orderID, clientID)
}

// TradeHistory returns the most recent trades for a pair, newest first.
func (s *Service) TradeHistory(pair string, limit int) ([]types.Trade, error) {
	if s.db == nil {
		return nil, engine.ErrStoreUnavailable
	}
	return s.db.GetTradesByPair(pair, limit)
}

// Snapshot returns the aggregated top levels for a pair.
func (s *Service) Snapshot(pair string, depth int) *types.OrderbookSnapshot {
	return toWireSnapshot(s.engine.Snapshot(pair, depth))
}

// Metrics returns engine throughput counters plus the operating mode.
func (s *Service) Metrics() engine.Metrics {
	return s.engine.Metrics()
}

// GinHandlers contains HTTP handlers for the engine endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// handleEngineError maps engine error taxonomy onto HTTP responses.
func handleEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidOrder):
		response.BadRequest(c, err.Error())
	case errors.Is(err, engine.ErrStaleMatchState):
		response.Conflict(c, err.Error())
	case errors.Is(err, engine.ErrStoreUnavailable):
		response.InternalError(c, err.Error())
	default:
		response.Handle(c, nil, err)
	}
}

// CreateOrderHandler handles POST requests to rest a new limit order.
// Requires a valid JWT token and an Idempotency-Key header.
func (h *GinHandlers) CreateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		var order types.Order
		if err := c.ShouldBindJSON(&order); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		order.ClientID = c.GetString("clientID")

		if err := h.service.CreateOrder(&order, idempotencyKey); err != nil {
			handleEngineError(c, err)
			return
		}
		response.Success(c, order)
	}
}

// MatchOrderHandler handles POST requests to submit an order for
// immediate matching.
func (h *GinHandlers) MatchOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader("Idempotency-Key")
		if idempotencyKey == "" {
			response.BadRequest(c, "Idempotency-Key header is required")
			return
		}

		var order types.Order
		if err := c.ShouldBindJSON(&order); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		order.ClientID = c.GetString("clientID")

		result, err := h.service.MatchOrder(&order, idempotencyKey)
		if err != nil {
			handleEngineError(c, err)
			return
		}
		response.Success(c, result)
	}
}

// GetOrderStatusHandler handles GET requests for an order's status,
// scoped to the authenticated client.
func (h *GinHandlers) GetOrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}
		clientID := auth.GetClientID(claims)
		if clientID == "" {
			response.Unauthorized(c, "Invalid client ID in token")
			return
		}

		orderID := c.Param("order_id")
		if orderID == "" {
			response.BadRequest(c, "Order ID is required")
			return
		}

		order, err := h.service.GetOrderByOrderIDAndClientID(orderID, clientID)
		if err != nil || order == nil {
			response.NotFound(c, "Order not found")
			return
		}
		response.Success(c, order)
	}
}

// OrderbookHandler handles GET requests for an aggregated book snapshot.
// Query parameter depth limits the number of levels per side.
func (h *GinHandlers) OrderbookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pair := c.Param("pair")
		if pair == "" {
			response.BadRequest(c, "Pair is required")
			return
		}
		depth, err := strconv.Atoi(c.DefaultQuery("depth", "20"))
		if err != nil || depth < 0 {
			response.BadRequest(c, "depth must be a non-negative integer")
			return
		}
		response.Success(c, h.service.Snapshot(pair, depth))
	}
}

// TradeHistoryHandler handles GET requests for recent trades on a pair.
func (h *GinHandlers) TradeHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		pair := c.Param("pair")
		if pair == "" {
			response.BadRequest(c, "Pair is required")
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}

		trades, err := h.service.TradeHistory(pair, limit)
		if err != nil {
			handleEngineError(c, err)
			return
		}
		response.Success(c, trades)
	}
}

// BatchHandler handles POST requests to ingest a batch of orders.
// Requires internal authentication.
func (h *GinHandlers) BatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if len(req.Orders) == 0 {
			response.BadRequest(c, "batch contains no orders")
			return
		}
		response.Success(c, h.service.ProcessBatch(&req))
	}
}

// MetricsHandler handles GET requests for engine throughput metrics.
func (h *GinHandlers) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, h.service.Metrics())
	}
}

// HealthHandler reports liveness and the engine's operating mode.
func (h *GinHandlers) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, gin.H{
			"status": "ok",
			"mode":   h.service.Engine().Mode(),
			"pairs":  len(h.service.Engine().Pairs()),
		})
	}
}
