package entity

import "time"

type ArbitrageOpportunity struct {
	ID              string       `json:"id" db:"id"`
	Pair            string       `json:"pair" db:"pair"`
	BuyExchange     ExchangeName `json:"buyExchange" db:"buy_exchange"`
	SellExchange    ExchangeName `json:"sellExchange" db:"sell_exchange"`
	BuyPrice        float64      `json:"buyPrice" db:"buy_price"`
	SellPrice       float64      `json:"sellPrice" db:"sell_price"`
	SpreadPercent   float64      `json:"spreadPercent" db:"spread_percent"`
	ProfitPercent   float64      `json:"profitPercent" db:"profit_percent"`
	EstimatedProfit float64      `json:"estimatedProfit" db:"estimated_profit"`
	BuyFee          float64      `json:"buyFee" db:"buy_fee"`
	SellFee         float64      `json:"sellFee" db:"sell_fee"`
	// Volume is always zero, order book depth is not modeled.
	Volume    float64   `json:"volume" db:"volume"`
	Timestamp time.Time `json:"timestamp" db:"detected_at"`
}

func (o ArbitrageOpportunity) TableName() string {
	return "arbitrage_opportunities"
}

// CooldownKey identifies a recurring opportunity for alert rate limiting.
func (o ArbitrageOpportunity) CooldownKey() string {
	return CooldownKey(o.Pair, o.BuyExchange, o.SellExchange)
}

func CooldownKey(pair string, buyExchange, sellExchange ExchangeName) string {
	return pair + "|" + string(buyExchange) + "|" + string(sellExchange)
}

type VenueQuote struct {
	Exchange ExchangeName `json:"exchange"`
	Bid      float64      `json:"bid"`
	Ask      float64      `json:"ask"`
}

// AnalysisEvent is the unthrottled diagnostic emitted for every wide spread.
type AnalysisEvent struct {
	Pair          string       `json:"pair"`
	BuyExchange   ExchangeName `json:"buyExchange"`
	SellExchange  ExchangeName `json:"sellExchange"`
	BuyPrice      float64      `json:"buyPrice"`
	SellPrice     float64      `json:"sellPrice"`
	SpreadPercent float64      `json:"spreadPercent"`
	Venues        []VenueQuote `json:"venues"`
	Timestamp     time.Time    `json:"timestamp"`
}

// OpportunityFilter narrows journal queries. Zero values match everything.
type OpportunityFilter struct {
	Pair     string
	Exchange ExchangeName
	Since    time.Time
	Limit    uint64
}
