package exchange

import (
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

const (
	gateDefaultWSURL  = "wss://api.gateio.ws/ws/v4/"
	gateTickerChannel = "spot.tickers"
	gateBookChannel   = "spot.book_ticker"
	gatePingChannel   = "spot.ping"
	gateUpdateEvent   = "update"
)

// GateExchange subscribes to spot.tickers for last/volume/change and spot.book_ticker for
// the live top of book. The ticker's highest_bid/lowest_ask are used until a book update arrives.
type GateExchange struct {
	wsURL string

	mu     sync.Mutex
	states map[string]*gateState
}

type gateState struct {
	ticker  entity.Ticker
	hasBook bool
}

func NewGateExchange(wsURL string) *GateExchange {
	return &GateExchange{
		wsURL:  defaultString(wsURL, gateDefaultWSURL),
		states: make(map[string]*gateState),
	}
}

func (e *GateExchange) Name() entity.ExchangeName { return entity.ExchangeGate }

func (e *GateExchange) Endpoint() string { return e.wsURL }

func (e *GateExchange) FormatSymbol(pair string) string {
	return joinSymbol(pair, "_", false)
}

func (e *GateExchange) ParseSymbol(symbol string) (string, bool) {
	return parseSymbol(symbol, "_")
}

func (e *GateExchange) SendSubscribe(w FrameWriter, pairs []string) error {
	return e.sendEvent(w, "subscribe", pairs)
}

func (e *GateExchange) SendUnsubscribe(w FrameWriter, pairs []string) error {
	if len(pairs) > 0 {
		e.mu.Lock()
		for _, pair := range pairs {
			delete(e.states, e.FormatSymbol(pair))
		}
		e.mu.Unlock()
	}
	return e.sendEvent(w, "unsubscribe", pairs)
}

func (e *GateExchange) sendEvent(w FrameWriter, event string, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}

	symbols := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		symbols = append(symbols, e.FormatSymbol(pair))
	}

	for _, channel := range []string{gateTickerChannel, gateBookChannel} {
		err := w.WriteJSON(map[string]any{
			"time":    time.Now().Unix(),
			"channel": channel,
			"event":   event,
			"payload": symbols,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (e *GateExchange) SendPing(w FrameWriter) error {
	return w.WriteJSON(map[string]any{
		"time":    time.Now().Unix(),
		"channel": gatePingChannel,
	})
}

func (e *GateExchange) HandleMessage(_ FrameWriter, payload []byte) []entity.Ticker {
	var msg struct {
		TimeMs  int64           `json:"time_ms"`
		Channel string          `json:"channel"`
		Event   string          `json:"event"`
		Result  json.RawMessage `json:"result"`
	}

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil
	}

	if msg.Event != gateUpdateEvent || len(msg.Result) == 0 {
		return nil
	}

	switch msg.Channel {
	case gateTickerChannel:
		return e.handleTicker(msg.TimeMs, msg.Result)
	case gateBookChannel:
		return e.handleBook(msg.TimeMs, msg.Result)
	default:
		return nil
	}
}

func (e *GateExchange) handleTicker(ts int64, data []byte) []entity.Ticker {
	var result struct {
		CurrencyPair     string `json:"currency_pair"`
		Last             string `json:"last"`
		LowestAsk        string `json:"lowest_ask"`
		HighestBid       string `json:"highest_bid"`
		ChangePercentage string `json:"change_percentage"`
		BaseVolume       string `json:"base_volume"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}

	pair, ok := e.ParseSymbol(result.CurrencyPair)
	if !ok {
		return nil
	}
	last, ok := parsePrice(result.Last)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state(result.CurrencyPair)
	state.ticker.Pair = pair
	state.ticker.Last = last
	state.ticker.Volume24h = parseOptional(result.BaseVolume)
	state.ticker.Change24h = parseOptional(result.ChangePercentage)
	state.ticker.Timestamp = tickerTime(ts)
	if !state.hasBook {
		state.ticker.Bid, _ = parsePrice(result.HighestBid)
		state.ticker.Ask, _ = parsePrice(result.LowestAsk)
	}

	return e.emit(state)
}

func (e *GateExchange) handleBook(ts int64, data []byte) []entity.Ticker {
	var result struct {
		UpdateTime int64  `json:"t"`
		Symbol     string `json:"s"`
		Bid        string `json:"b"`
		BidSize    string `json:"B"`
		Ask        string `json:"a"`
		AskSize    string `json:"A"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}

	pair, ok := e.ParseSymbol(result.Symbol)
	if !ok {
		return nil
	}
	bid, ok := parsePrice(result.Bid)
	if !ok {
		return nil
	}
	ask, ok := parsePrice(result.Ask)
	if !ok {
		return nil
	}
	if result.UpdateTime > 0 {
		ts = result.UpdateTime
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.state(result.Symbol)
	state.ticker.Pair = pair
	state.ticker.Bid = bid
	state.ticker.Ask = ask
	state.ticker.Timestamp = tickerTime(ts)
	state.hasBook = true

	return e.emit(state)
}

// state must be called with mu held.
func (e *GateExchange) state(symbol string) *gateState {
	symbol = strings.ToUpper(symbol)
	state, ok := e.states[symbol]
	if !ok {
		state = &gateState{ticker: entity.Ticker{Exchange: entity.ExchangeGate}}
		e.states[symbol] = state
	}
	return state
}

func (e *GateExchange) emit(state *gateState) []entity.Ticker {
	if !completeTicker(state.ticker) {
		return nil
	}
	return []entity.Ticker{state.ticker}
}
