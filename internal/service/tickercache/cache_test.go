package tickercache

import (
	"sync"
	"testing"
	"time"

	"github.com/krobus00/arbitrage-service/internal/entity"
)

func TestCacheSetOverwritesInPlace(t *testing.T) {
	cache := New()
	now := time.Now()

	cache.Set(entity.Ticker{Exchange: entity.ExchangeBinance, Pair: "BTC/USDT", Bid: 100, Ask: 101, Timestamp: now})
	cache.Set(entity.Ticker{Exchange: entity.ExchangeBinance, Pair: "BTC/USDT", Bid: 102, Ask: 103, Timestamp: now.Add(time.Second)})

	got, ok := cache.Get(entity.ExchangeBinance, "BTC/USDT")
	if !ok {
		t.Fatal("expected ticker to be cached")
	}
	if got.Bid != 102 || got.Ask != 103 {
		t.Fatalf("expected latest ticker, got bid=%v ask=%v", got.Bid, got.Ask)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected a single entry, got %d", cache.Len())
	}
}

func TestCacheReturnedValueIsDetached(t *testing.T) {
	cache := New()
	ticker := entity.Ticker{Exchange: entity.ExchangeOKX, Pair: "ETH/USDT", Bid: 10, Ask: 11}
	cache.Set(ticker)

	ticker.Bid = 0
	got, _ := cache.Get(entity.ExchangeOKX, "ETH/USDT")
	if got.Bid != 10 {
		t.Fatalf("cache entry changed through caller copy: %v", got.Bid)
	}
}

func TestCacheSnapshotOrdering(t *testing.T) {
	cache := New()
	cache.Set(entity.Ticker{Exchange: entity.ExchangeOKX, Pair: "ETH/USDT"})
	cache.Set(entity.Ticker{Exchange: entity.ExchangeBinance, Pair: "ETH/USDT"})
	cache.Set(entity.Ticker{Exchange: entity.ExchangeBybit, Pair: "BTC/USDT"})

	snapshot := cache.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 tickers, got %d", len(snapshot))
	}

	expected := []struct {
		pair     string
		exchange entity.ExchangeName
	}{
		{"BTC/USDT", entity.ExchangeBybit},
		{"ETH/USDT", entity.ExchangeBinance},
		{"ETH/USDT", entity.ExchangeOKX},
	}
	for i, want := range expected {
		if snapshot[i].Pair != want.pair || snapshot[i].Exchange != want.exchange {
			t.Fatalf("snapshot[%d] = %s/%s, want %s/%s", i, snapshot[i].Exchange, snapshot[i].Pair, want.exchange, want.pair)
		}
	}
}

func TestCacheConcurrentWritersPerExchange(t *testing.T) {
	cache := New()
	var wg sync.WaitGroup

	for _, exchange := range entity.SupportedExchanges {
		wg.Add(1)
		go func(exchange entity.ExchangeName) {
			defer wg.Done()
			for i := 1; i <= 500; i++ {
				cache.Set(entity.Ticker{Exchange: exchange, Pair: "BTC/USDT", Bid: float64(i), Ask: float64(i + 1)})
				_ = cache.Snapshot()
			}
		}(exchange)
	}
	wg.Wait()

	for _, exchange := range entity.SupportedExchanges {
		got, ok := cache.Get(exchange, "BTC/USDT")
		if !ok || got.Bid != 500 {
			t.Fatalf("%s: expected final bid 500, got %v (ok=%v)", exchange, got.Bid, ok)
		}
	}
}
