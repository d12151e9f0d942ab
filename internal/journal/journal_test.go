package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tradecore/exchange-api/internal/engine"
	"github.com/tradecore/exchange-api/internal/trading"
	"github.com/tradecore/exchange-api/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&types.Trade{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testTrade(id string) engine.Trade {
	return engine.Trade{
		TradeID:       id,
		Pair:          "BTC-USD",
		Price:         decimal.NewFromInt(100),
		Quantity:      decimal.NewFromInt(2),
		TakerOrderID:  "taker-1",
		TakerClientID: "alice",
		MakerOrderID:  "maker-1",
		MakerClientID: "bob",
		Side:          engine.Buy,
		ExecutedAt:    time.Now(),
	}
}

func TestWriterFlushesOnShutdown(t *testing.T) {
	db := newTestDB(t)
	w := NewWriter(trading.NewDatabase(db))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	for i := 0; i < 10; i++ {
		w.PublishTrade(testTrade(fmt.Sprintf("trade-%d", i)))
	}

	cancel()
	<-done

	var count int64
	if err := db.Model(&types.Trade{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 10 {
		t.Fatalf("journaled trades = %d, want 10", count)
	}
}

func TestWriterFlushesOnInterval(t *testing.T) {
	db := newTestDB(t)
	w := NewWriter(trading.NewDatabase(db))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.PublishTrade(testTrade("trade-interval"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var count int64
		if err := db.Model(&types.Trade{}).Count(&count).Error; err != nil {
			t.Fatalf("count: %v", err)
		}
		if count == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("trade was not flushed within the deadline")
}
