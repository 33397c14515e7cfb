package exchange

import (
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

const (
	bybitDefaultWSURL = "wss://stream.bybit.com/v5/public/spot"
	bybitMaxArgs      = 10
)

// BybitExchange merges the spot tickers channel (last, volume, change) with the
// orderbook.1 channel (best bid/ask), since spot tickers carry no top of book.
type BybitExchange struct {
	wsURL string

	mu     sync.Mutex
	states map[string]*bybitState
}

type bybitState struct {
	last      float64
	volume    float64
	change    float64
	bid       float64
	ask       float64
	updatedAt int64
}

func NewBybitExchange(wsURL string) *BybitExchange {
	return &BybitExchange{
		wsURL:  defaultString(wsURL, bybitDefaultWSURL),
		states: make(map[string]*bybitState),
	}
}

func (e *BybitExchange) Name() entity.ExchangeName { return entity.ExchangeBybit }

func (e *BybitExchange) Endpoint() string { return e.wsURL }

func (e *BybitExchange) FormatSymbol(pair string) string {
	return joinSymbol(pair, "", false)
}

func (e *BybitExchange) ParseSymbol(symbol string) (string, bool) {
	return parseSymbol(symbol, "")
}

func (e *BybitExchange) topics(pairs []string) []string {
	topics := make([]string, 0, len(pairs)*2)
	for _, pair := range pairs {
		symbol := e.FormatSymbol(pair)
		topics = append(topics, "tickers."+symbol, "orderbook.1."+symbol)
	}
	return topics
}

func (e *BybitExchange) SendSubscribe(w FrameWriter, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}
	return e.sendOp(w, "subscribe", e.topics(pairs))
}

func (e *BybitExchange) SendUnsubscribe(w FrameWriter, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}

	e.mu.Lock()
	for _, pair := range pairs {
		delete(e.states, e.FormatSymbol(pair))
	}
	e.mu.Unlock()

	return e.sendOp(w, "unsubscribe", e.topics(pairs))
}

// sendOp splits the topics into requests of at most bybitMaxArgs, the spot limit.
func (e *BybitExchange) sendOp(w FrameWriter, op string, topics []string) error {
	for start := 0; start < len(topics); start += bybitMaxArgs {
		end := min(start+bybitMaxArgs, len(topics))
		if err := w.WriteJSON(map[string]any{"op": op, "args": topics[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

func (e *BybitExchange) SendPing(w FrameWriter) error {
	return w.WriteJSON(map[string]string{"op": "ping"})
}

func (e *BybitExchange) HandleMessage(_ FrameWriter, payload []byte) []entity.Ticker {
	var msg struct {
		Topic string          `json:"topic"`
		Op    string          `json:"op"`
		TS    int64           `json:"ts"`
		Data  json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil
	}

	// op frames are subscription acks and pongs
	if msg.Op != "" || msg.Topic == "" || len(msg.Data) == 0 {
		return nil
	}

	switch {
	case strings.HasPrefix(msg.Topic, "tickers."):
		return e.handleTicker(msg.TS, msg.Data)
	case strings.HasPrefix(msg.Topic, "orderbook.1."):
		return e.handleOrderbook(msg.TS, strings.TrimPrefix(msg.Topic, "orderbook.1."), msg.Data)
	default:
		return nil
	}
}

func (e *BybitExchange) handleTicker(ts int64, data []byte) []entity.Ticker {
	var ticker struct {
		Symbol       string `json:"symbol"`
		LastPrice    string `json:"lastPrice"`
		Volume24h    string `json:"volume24h"`
		Price24hPcnt string `json:"price24hPcnt"`
		PrevPrice24h string `json:"prevPrice24h"`
	}
	if err := json.Unmarshal(data, &ticker); err != nil {
		return nil
	}

	last, ok := parsePrice(ticker.LastPrice)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state(ticker.Symbol)
	state.last = last
	state.volume = parseOptional(ticker.Volume24h)
	state.change = parseOptional(ticker.Price24hPcnt) * 100
	state.updatedAt = ts

	return e.emit(ticker.Symbol, state)
}

func (e *BybitExchange) handleOrderbook(ts int64, symbol string, data []byte) []entity.Ticker {
	var book struct {
		Symbol string      `json:"s"`
		Bids   [][2]string `json:"b"`
		Asks   [][2]string `json:"a"`
	}
	if err := json.Unmarshal(data, &book); err != nil {
		return nil
	}
	if book.Symbol != "" {
		symbol = book.Symbol
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state(symbol)
	if len(book.Bids) > 0 {
		if bid, ok := parsePrice(book.Bids[0][0]); ok {
			state.bid = bid
		}
	}
	if len(book.Asks) > 0 {
		if ask, ok := parsePrice(book.Asks[0][0]); ok {
			state.ask = ask
		}
	}
	state.updatedAt = ts

	return e.emit(symbol, state)
}

// state must be called with mu held.
func (e *BybitExchange) state(symbol string) *bybitState {
	symbol = strings.ToUpper(symbol)
	state, ok := e.states[symbol]
	if !ok {
		state = &bybitState{}
		e.states[symbol] = state
	}
	return state
}

func (e *BybitExchange) emit(symbol string, state *bybitState) []entity.Ticker {
	pair, ok := e.ParseSymbol(symbol)
	if !ok {
		return nil
	}

	ticker := entity.Ticker{
		Exchange:  entity.ExchangeBybit,
		Pair:      pair,
		Bid:       state.bid,
		Ask:       state.ask,
		Last:      state.last,
		Volume24h: state.volume,
		Change24h: state.change,
		Timestamp: tickerTime(state.updatedAt),
	}
	if !completeTicker(ticker) {
		return nil
	}

	return []entity.Ticker{ticker}
}
