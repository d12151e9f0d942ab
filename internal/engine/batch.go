package engine

import (
	"sync"
	"time"
)

// BatchResult aggregates the outcome of one batch ingestion run.
type BatchResult struct {
	Successful     int
	Failed         int
	TotalTrades    int
	ProcessingTime time.Duration
}

// ProcessBatch ingests a collection of independent orders. Orders are
// grouped by pair preserving submission order: groups run concurrently,
// orders within a group run sequentially. This keeps cross-pair
// processing fully parallel while preserving FIFO priority within each
// pair.
//
// Per-order failures are counted individually and never abort or roll
// back the rest of the batch.
func (e *Engine) ProcessBatch(orders []*Order) *BatchResult {
	start := time.Now()

	groups := make(map[string][]*Order)
	pairs := make([]string, 0)
	for _, o := range orders {
		if _, ok := groups[o.Pair]; !ok {
			pairs = append(pairs, o.Pair)
		}
		groups[o.Pair] = append(groups[o.Pair], o)
	}

	var (
		mu         sync.Mutex
		successful int
		failed     int
		trades     int
	)

	var wg sync.WaitGroup
	for _, pair := range pairs {
		wg.Add(1)
		go func(batch []*Order) {
			defer wg.Done()
			for _, o := range batch {
				res, err := e.MatchOrder(o)
				mu.Lock()
				if err != nil {
					failed++
					mu.Unlock()
					e.logger.Warn().
						Err(err).
						Str("order_id", o.OrderID).
						Str("pair", o.Pair).
						Msg("batch order rejected")
					continue
				}
				successful++
				trades += len(res.Trades)
				mu.Unlock()
			}
		}(groups[pair])
	}
	wg.Wait()

	result := &BatchResult{
		Successful:     successful,
		Failed:         failed,
		TotalTrades:    trades,
		ProcessingTime: time.Since(start),
	}

	e.logger.Info().
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("total_trades", result.TotalTrades).
		Dur("processing_time", result.ProcessingTime).
		Msg("batch processed")

	return result
}
