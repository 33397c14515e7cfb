package exchange

import (
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

const binanceDefaultWSURL = "wss://stream.binance.com:9443/ws"

type BinanceExchange struct {
	wsURL     string
	requestID atomic.Int64
}

func NewBinanceExchange(wsURL string) *BinanceExchange {
	return &BinanceExchange{wsURL: defaultString(wsURL, binanceDefaultWSURL)}
}

func (e *BinanceExchange) Name() entity.ExchangeName { return entity.ExchangeBinance }

func (e *BinanceExchange) Endpoint() string { return e.wsURL }

func (e *BinanceExchange) FormatSymbol(pair string) string {
	return joinSymbol(pair, "", false)
}

func (e *BinanceExchange) ParseSymbol(symbol string) (string, bool) {
	return parseSymbol(symbol, "")
}

func (e *BinanceExchange) SendSubscribe(w FrameWriter, pairs []string) error {
	return e.sendMethod(w, "SUBSCRIBE", pairs)
}

func (e *BinanceExchange) SendUnsubscribe(w FrameWriter, pairs []string) error {
	return e.sendMethod(w, "UNSUBSCRIBE", pairs)
}

func (e *BinanceExchange) sendMethod(w FrameWriter, method string, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}

	params := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		params = append(params, strings.ToLower(e.FormatSymbol(pair))+"@ticker")
	}

	return w.WriteJSON(map[string]any{
		"method": method,
		"params": params,
		"id":     e.requestID.Add(1),
	})
}

// SendPing uses a transport ping frame; the stream answers with a pong frame.
func (e *BinanceExchange) SendPing(w FrameWriter) error {
	return w.WritePing()
}

func (e *BinanceExchange) HandleMessage(_ FrameWriter, payload []byte) []entity.Ticker {
	// Every key is declared: the decoder falls back to case-insensitive matching, and
	// Binance uses pairs like "b"/"B" for different fields.
	var msg struct {
		Event       string `json:"e"`
		EventTime   int64  `json:"E"`
		Symbol      string `json:"s"`
		PriceChange string `json:"p"`
		ChangePct   string `json:"P"`
		LastPrice   string `json:"c"`
		LastQty     string `json:"Q"`
		BidPrice    string `json:"b"`
		BidQty      string `json:"B"`
		AskPrice    string `json:"a"`
		AskQty      string `json:"A"`
		OpenPrice   string `json:"o"`
		OpenTime    int64  `json:"O"`
		CloseTime   int64  `json:"C"`
		LowPrice    string `json:"l"`
		LastTradeID int64  `json:"L"`
		BaseVolume  string `json:"v"`
		QuoteVolume string `json:"q"`
	}

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil
	}

	if msg.Event != "24hrTicker" {
		return nil
	}

	pair, ok := e.ParseSymbol(msg.Symbol)
	if !ok {
		return nil
	}

	last, ok := parsePrice(msg.LastPrice)
	if !ok {
		return nil
	}
	bid, ok := parsePrice(msg.BidPrice)
	if !ok {
		return nil
	}
	ask, ok := parsePrice(msg.AskPrice)
	if !ok {
		return nil
	}

	return []entity.Ticker{{
		Exchange:  entity.ExchangeBinance,
		Pair:      pair,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume24h: parseOptional(msg.BaseVolume),
		Change24h: parseOptional(msg.ChangePct),
		Timestamp: tickerTime(msg.EventTime),
	}}
}
