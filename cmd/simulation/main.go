package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradecore/exchange-api/internal/auth"
	"github.com/tradecore/exchange-api/internal/database"
	"github.com/tradecore/exchange-api/internal/engine"
	"github.com/tradecore/exchange-api/internal/marketdata"
	"github.com/tradecore/exchange-api/internal/trading"
	"github.com/tradecore/exchange-api/internal/types"
	"github.com/tradecore/exchange-api/pkg/middleware"
)

const (
	minOrders     = 50
	maxOrders     = 500
	numWorkers    = 5
	serverAddress = "http://localhost:8080"
	jwtSecret     = "simulation-secret-key"
)

var (
	pairs = []string{"BTC-USD", "ETH-USD", "SOL-USD", "ADA-USD"}
	sides = []string{"BUY", "SELL"}
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the exchange API
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	// Create HTTP client with timeout
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		stats: map[string]*routeStats{
			"auth":      {name: "Authentication"},
			"create":    {name: "Create Order"},
			"match":     {name: "Match Order"},
			"orderbook": {name: "Orderbook"},
			"metrics":   {name: "Metrics"},
		},
	}

	// Get auth token
	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    auth.TestAPIKey,
		"api_secret": auth.TestAPISecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// createOrder rests a new limit order via the API
// Returns the order ID on success
func (sc *simulationClient) createOrder(order *types.Order) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["create"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(order)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/orders", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Create order response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("create order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			OrderID string `json:"order_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	if result.Data.OrderID == "" {
		return "", fmt.Errorf("no order ID in response: %s", string(respBody))
	}

	return result.Data.OrderID, nil
}

// matchOrder submits an order for immediate matching
// Returns the match result with executed trades on success
func (sc *simulationClient) matchOrder(order *types.Order) (*types.MatchResponse, error) {
	start := time.Now()
	defer func() {
		sc.stats["match"].addDuration(time.Since(start))
	}()

	body, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/orders/match", sc.baseURL),
		bytes.NewBuffer(body),
	)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("response", string(respBody)).Msg("Match order response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("match order failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                `json:"success"`
		Data    types.MatchResponse `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// getOrderbook retrieves the aggregated book snapshot for a pair
func (sc *simulationClient) getOrderbook(pair string) (*types.OrderbookSnapshot, error) {
	start := time.Now()
	defer func() {
		sc.stats["orderbook"].addDuration(time.Since(start))
	}()

	resp, err := sc.client.Get(fmt.Sprintf("%s/api/v1/orderbook/%s?depth=10", sc.baseURL, pair))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("orderbook failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool                    `json:"success"`
		Data    types.OrderbookSnapshot `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// getMetrics retrieves engine throughput metrics
func (sc *simulationClient) getMetrics() (*engine.Metrics, error) {
	start := time.Now()
	defer func() {
		sc.stats["metrics"].addDuration(time.Since(start))
	}()

	resp, err := sc.client.Get(fmt.Sprintf("%s/api/v1/metrics", sc.baseURL))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metrics failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Success bool           `json:"success"`
		Data    engine.Metrics `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}

	return &result.Data, nil
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Microsecond),
			max.Round(time.Microsecond),
			mean.Round(time.Microsecond),
			median.Round(time.Microsecond),
			p95.Round(time.Microsecond),
			p99.Round(time.Microsecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the matching simulation
// It starts a local API server and simulates multiple concurrent trading clients
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Generate random number of orders to process
	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	stats := struct {
		mu             sync.Mutex
		TotalOrders    int
		RestedOrders   int
		MatchedOrders  int
		ExecutedTrades int
		FailedOrders   int
		StartTime      time.Time
		Pairs          map[string]int
		Sides          map[string]int
	}{
		StartTime: time.Now(),
		Pairs:     make(map[string]int),
		Sides:     make(map[string]int),
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for j := 0; j < targetOrders/numWorkers; j++ {
				pair := pairs[rand.Intn(len(pairs))]
				side := sides[rand.Intn(len(sides))]
				order := &types.Order{
					ClientID:  fmt.Sprintf("CLIENT_%d", workerID),
					Pair:      pair,
					Side:      side,
					OrderType: "LIMIT",
					Quantity:  fmt.Sprintf("%d", rand.Intn(100)+1),
					Price:     fmt.Sprintf("%d", rand.Intn(200)+900),
				}

				stats.mu.Lock()
				stats.TotalOrders++
				stats.Pairs[pair]++
				stats.Sides[side]++
				stats.mu.Unlock()

				// Half the orders rest, half are submitted for matching
				if j%2 == 0 {
					if _, err := simClient.createOrder(order); err != nil {
						log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to create order")
						stats.mu.Lock()
						stats.FailedOrders++
						stats.mu.Unlock()
						continue
					}
					stats.mu.Lock()
					stats.RestedOrders++
					stats.mu.Unlock()
				} else {
					result, err := simClient.matchOrder(order)
					if err != nil {
						log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to match order")
						stats.mu.Lock()
						stats.FailedOrders++
						stats.mu.Unlock()
						continue
					}
					stats.mu.Lock()
					stats.MatchedOrders++
					stats.ExecutedTrades += len(result.Trades)
					stats.mu.Unlock()
				}

				// Random sleep between orders
				time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			}
		}(i)
	}
	wg.Wait()

	// Fetch final books and engine metrics
	for _, pair := range pairs {
		book, err := simClient.getOrderbook(pair)
		if err != nil {
			log.Error().Err(err).Str("pair", pair).Msg("Failed to fetch orderbook")
			continue
		}
		log.Info().
			Str("pair", pair).
			Int("bid_levels", len(book.Bids)).
			Int("ask_levels", len(book.Asks)).
			Msg("Final book depth")
	}

	metrics, err := simClient.getMetrics()
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch metrics")
	}

	// Print summary
	duration := time.Since(stats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("🚀 MATCHING SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf(`
📊 Order Statistics
------------------
Total Orders:     %d
Rested:           %d
Matched:          %d
Executed Trades:  %d
Failed Orders:    %d
Duration:         %v
`, stats.TotalOrders, stats.RestedOrders, stats.MatchedOrders, stats.ExecutedTrades,
		stats.FailedOrders, duration.Round(time.Millisecond))

	if metrics != nil {
		fmt.Printf(`
⚙️  Engine Metrics
------------------
Orders Processed: %d
Trades Executed:  %d
Avg Latency (ms): %.3f
Peak TPS:         %d
Mode:             %s
`, metrics.OrdersProcessed, metrics.TradesExecuted, metrics.AverageLatencyMs,
			metrics.PeakTPS, metrics.Mode)
	}

	fmt.Println("\n📈 Pair Distribution")
	fmt.Println("--------------------")
	maxPairCount := 0
	for _, count := range stats.Pairs {
		if count > maxPairCount {
			maxPairCount = count
		}
	}
	for pair, count := range stats.Pairs {
		barLength := int(float64(count) / float64(maxPairCount) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-8s: %s (%d)\n", pair, bar, count)
	}

	fmt.Println("\n📉 Side Distribution")
	fmt.Println("------------------")
	for side, count := range stats.Sides {
		barLength := int(float64(count) / float64(stats.TotalOrders) * 20)
		bar := strings.Repeat("█", barLength)
		fmt.Printf("%-4s: %s (%d)\n", side, bar, count)
	}

	fmt.Println("\n" + strings.Repeat("=", 80))

	simClient.printPerformanceStats()
}

// startServer initializes and starts the exchange API server
// Sets up all required services, handlers and routes
func startServer() error {
	// Initialize an in-memory database so runs leave nothing behind
	db, err := database.NewDatabase("file::memory:?cache=shared")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize engine and services
	store := engine.NewMemoryStore(engine.ModeAtomic)
	eng := engine.New(store)

	authService := auth.NewService(jwtSecret)
	tradingService := trading.NewService(db, eng)
	marketData := marketdata.NewService(eng)
	eng.AddSink(marketData)

	// Register test credentials
	authService.RegisterAPICredentials(auth.TestAPIKey, auth.TestAPISecret)

	// Initialize router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	authHandlers := auth.NewGinHandlers(authService)
	tradingHandlers := trading.NewGinHandlers(tradingService)

	// Setup routes
	setupRoutes(router, authHandlers, tradingHandlers, marketData)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
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

		// Internal routes
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
