package engine

import (
	"sync"
	"time"
)

// latencyAlpha is the smoothing constant for the running average latency.
const latencyAlpha = 0.1

// Metrics is a point-in-time view of engine throughput. It is
// best-effort observability and is never authoritative for book state.
type Metrics struct {
	OrdersProcessed     uint64  `json:"orders_processed"`
	TradesExecuted      uint64  `json:"trades_executed"`
	AverageLatencyMs    float64 `json:"average_latency_ms"`
	PeakTPS             uint64  `json:"peak_tps"`
	CurrentSecondOrders uint64  `json:"current_second_orders"`
	Mode                Mode    `json:"mode"`
}

// Recorder accumulates throughput counters, an exponentially-smoothed
// average latency, and peak per-second throughput over rolling 1-second
// windows. Updates never fail and never block the matching path beyond a
// short mutex hold.
type Recorder struct {
	now func() time.Time

	mu              sync.Mutex
	ordersProcessed uint64
	tradesExecuted  uint64
	avgLatencyMs    float64
	windowStart     int64 // unix second of the current window
	windowOrders    uint64
	peakTPS         uint64
}

func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// RecordOrder registers one processed order, its end-to-end latency, and
// the number of trades it produced.
func (r *Recorder) RecordOrder(latency time.Duration, trades int) {
	second := r.now().Unix()
	latencyMs := float64(latency.Microseconds()) / 1000.0

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ordersProcessed++
	r.tradesExecuted += uint64(trades)

	if r.ordersProcessed == 1 {
		r.avgLatencyMs = latencyMs
	} else {
		r.avgLatencyMs = latencyAlpha*latencyMs + (1-latencyAlpha)*r.avgLatencyMs
	}

	if second != r.windowStart {
		if r.windowOrders > r.peakTPS {
			r.peakTPS = r.windowOrders
		}
		r.windowStart = second
		r.windowOrders = 0
	}
	r.windowOrders++
	if r.windowOrders > r.peakTPS {
		r.peakTPS = r.windowOrders
	}
}

// Snapshot returns the current counters.
func (r *Recorder) Snapshot() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.windowOrders
	if r.now().Unix() != r.windowStart {
		current = 0
	}
	return Metrics{
		OrdersProcessed:     r.ordersProcessed,
		TradesExecuted:      r.tradesExecuted,
		AverageLatencyMs:    r.avgLatencyMs,
		PeakTPS:             r.peakTPS,
		CurrentSecondOrders: current,
	}
}
