package entity

import "time"

// Ticker is the normalized top-of-book snapshot for one (exchange, pair).
type Ticker struct {
	Exchange  ExchangeName `json:"exchange"`
	Pair      string       `json:"pair"`
	Bid       float64      `json:"bid"`
	Ask       float64      `json:"ask"`
	Last      float64      `json:"last"`
	Volume24h float64      `json:"volume24h"`
	Change24h float64      `json:"change24h"`
	Timestamp time.Time    `json:"timestamp"`
}

// Quotable reports whether both sides of the book are usable for the scan.
func (t Ticker) Quotable() bool {
	return t.Bid > 0 && t.Ask > 0
}
