package exchange

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

// parsePrice accepts only finite, strictly positive values.
func parsePrice(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return value, validPrice(value)
}

func validPrice(value float64) bool {
	return value > 0 && !math.IsInf(value, 0) && !math.IsNaN(value)
}

// parseOptional is used for volume and change fields, which default to zero.
func parseOptional(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0
	}
	return value
}

// changePercent derives the 24h change for venues that only report the open price.
func changePercent(last, open float64) float64 {
	if open <= 0 {
		return 0
	}
	return (last - open) / open * 100
}

// syntheticBook widens the last price into a bid/ask for venues without a live book.
func syntheticBook(last float64) (bid, ask float64) {
	return last * (1 - constant.SyntheticSpreadRatio), last * (1 + constant.SyntheticSpreadRatio)
}

func tickerTime(unixMilli int64) time.Time {
	if unixMilli <= 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(unixMilli).UTC()
}

func parseMillis(raw string) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return value
}

// completeTicker reports whether a ticker may be written to the cache.
func completeTicker(t entity.Ticker) bool {
	return t.Pair != "" && validPrice(t.Bid) && validPrice(t.Ask) && validPrice(t.Last)
}
