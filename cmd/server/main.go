package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/tradecore/exchange-api/internal/auth"
	"github.com/tradecore/exchange-api/internal/database"
	"github.com/tradecore/exchange-api/internal/engine"
	"github.com/tradecore/exchange-api/internal/journal"
	"github.com/tradecore/exchange-api/internal/marketdata"
	"github.com/tradecore/exchange-api/internal/stream"
	"github.com/tradecore/exchange-api/internal/trading"
	"github.com/tradecore/exchange-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the matching engine API server with
// graceful shutdown support. When the database cannot be opened the
// server starts in degraded mode: matching continues in memory with
// persistence and idempotency replay disabled.
func main() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "exchange-secret-key"
	}

	// Initialize database; fall back to degraded mode on failure
	mode := engine.ModeAtomic
	var db *gorm.DB
	gormDB, err := database.NewDatabase(os.Getenv("DATABASE_DSN"))
	if err != nil {
		if os.Getenv("ALLOW_DEGRADED") != "true" {
			zlog.Fatal().Err(err).Msg("Failed to initialize database")
		}
		zlog.Warn().Err(err).Msg("Database unavailable, starting in degraded mode")
		mode = engine.ModeDegraded
	} else {
		db = gormDB
	}

	// Engine store and sinks
	store := engine.NewMemoryStore(mode)
	eng := engine.New(store)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	marketData := marketdata.NewService(eng)
	eng.AddSink(marketData)

	if db != nil {
		journalWriter := journal.NewWriter(trading.NewDatabase(db))
		eng.AddSink(journalWriter)
		go journalWriter.Run(bgCtx)
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_TRADES_TOPIC")
		if topic == "" {
			topic = "trades"
		}
		producer := stream.NewProducer(strings.Split(brokers, ","), topic)
		eng.AddSink(producer)
		go producer.Run(bgCtx)
		defer producer.Close()
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(jwtSecret)
	authHandlers := auth.NewGinHandlers(authService)
	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	tradingService := trading.NewService(db, eng)
	tradingHandlers := trading.NewGinHandlers(tradingService)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, jwtSecret, authHandlers, tradingHandlers, marketData)

	// Get port from env otherwise it's 8080
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Create server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop background workers after the listener drains so the journal
	// can flush in-flight trades.
	bgCancel()
	time.Sleep(500 * time.Millisecond)

	zlog.Info().Msg("Server exiting")
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order routes: Protected by JWT authentication
// - Market data routes: Public snapshots plus websocket streams
// - Internal routes: Protected by internal authentication
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	tradingHandlers *trading.GinHandlers,
	marketData *marketdata.Service,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.JWTAuth(jwtSecret))
		{
			orders.POST("", tradingHandlers.CreateOrderHandler())
			orders.POST("/match", tradingHandlers.MatchOrderHandler())
			orders.GET("/:order_id", tradingHandlers.GetOrderStatusHandler())
		}

		// Market data routes
		v1.GET("/orderbook/:pair", tradingHandlers.OrderbookHandler())
		v1.GET("/trades/:pair", tradingHandlers.TradeHistoryHandler())
		v1.GET("/metrics", tradingHandlers.MetricsHandler())
		v1.GET("/health", tradingHandlers.HealthHandler())

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/batch", tradingHandlers.BatchHandler())
		}
	}

	// Websocket streams
	ws := router.Group("/ws")
	{
		ws.GET("/trades", marketData.TradeStreamHandler())
		ws.GET("/book", marketData.BookStreamHandler())
	}
}
