package tickercache

import (
	"sort"
	"sync"

	"github.com/krobus00/arbitrage-service/internal/entity"
)

type key struct {
	exchange entity.ExchangeName
	pair     string
}

// Cache holds the latest ticker per (exchange, pair). Each connector only writes its own
// exchange keys, so a per-key pointer swap is the only synchronization needed.
type Cache struct {
	entries sync.Map // key -> *entity.Ticker
}

func New() *Cache {
	return &Cache{}
}

// Set replaces the entry for the ticker's key. The stored value is a private copy and is
// never mutated afterwards.
func (c *Cache) Set(ticker entity.Ticker) {
	stored := ticker
	c.entries.Store(key{exchange: ticker.Exchange, pair: ticker.Pair}, &stored)
}

func (c *Cache) Get(exchange entity.ExchangeName, pair string) (entity.Ticker, bool) {
	value, ok := c.entries.Load(key{exchange: exchange, pair: pair})
	if !ok {
		return entity.Ticker{}, false
	}
	return *value.(*entity.Ticker), true
}

func (c *Cache) Delete(exchange entity.ExchangeName, pair string) {
	c.entries.Delete(key{exchange: exchange, pair: pair})
}

// Snapshot returns every cached ticker ordered by pair then exchange.
func (c *Cache) Snapshot() []entity.Ticker {
	tickers := make([]entity.Ticker, 0)
	c.entries.Range(func(_, value any) bool {
		tickers = append(tickers, *value.(*entity.Ticker))
		return true
	})

	sort.Slice(tickers, func(i, j int) bool {
		if tickers[i].Pair != tickers[j].Pair {
			return tickers[i].Pair < tickers[j].Pair
		}
		return tickers[i].Exchange < tickers[j].Exchange
	})

	return tickers
}

func (c *Cache) Len() int {
	count := 0
	c.entries.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
