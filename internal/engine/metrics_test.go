package engine

import (
	"testing"
	"time"
)

func TestRecorderCountsOrdersAndTrades(t *testing.T) {
	r := NewRecorder()
	r.RecordOrder(2*time.Millisecond, 3)
	r.RecordOrder(4*time.Millisecond, 0)

	m := r.Snapshot()
	if m.OrdersProcessed != 2 {
		t.Fatalf("orders = %d, want 2", m.OrdersProcessed)
	}
	if m.TradesExecuted != 3 {
		t.Fatalf("trades = %d, want 3", m.TradesExecuted)
	}
}

func TestRecorderLatencySmoothing(t *testing.T) {
	r := NewRecorder()

	r.RecordOrder(10*time.Millisecond, 0)
	m := r.Snapshot()
	if m.AverageLatencyMs != 10 {
		t.Fatalf("first sample must seed the average, got %f", m.AverageLatencyMs)
	}

	r.RecordOrder(20*time.Millisecond, 0)
	m = r.Snapshot()
	// alpha=0.1: 0.1*20 + 0.9*10 = 11
	if m.AverageLatencyMs < 10.9 || m.AverageLatencyMs > 11.1 {
		t.Fatalf("smoothed latency = %f, want ~11", m.AverageLatencyMs)
	}
}

func TestRecorderPeakTPSRollingWindow(t *testing.T) {
	r := NewRecorder()
	current := time.Unix(1000, 0)
	r.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		r.RecordOrder(time.Millisecond, 0)
	}
	current = time.Unix(1001, 0)
	for i := 0; i < 3; i++ {
		r.RecordOrder(time.Millisecond, 0)
	}

	m := r.Snapshot()
	if m.PeakTPS != 5 {
		t.Fatalf("peak TPS = %d, want 5", m.PeakTPS)
	}
	if m.CurrentSecondOrders != 3 {
		t.Fatalf("current second orders = %d, want 3", m.CurrentSecondOrders)
	}

	// A stale window reports zero current-second throughput.
	current = time.Unix(1010, 0)
	m = r.Snapshot()
	if m.CurrentSecondOrders != 0 {
		t.Fatalf("stale window should report 0, got %d", m.CurrentSecondOrders)
	}
	if m.PeakTPS != 5 {
		t.Fatalf("peak must survive window rollover, got %d", m.PeakTPS)
	}
}
