package exchange

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

const htxDefaultWSURL = "wss://api.huobi.pro/ws"

// HTXExchange streams gzip-compressed market detail frames. The detail channel carries no
// book, so bid/ask are synthesized around the last trade price.
type HTXExchange struct {
	wsURL     string
	requestID atomic.Int64
}

func NewHTXExchange(wsURL string) *HTXExchange {
	return &HTXExchange{wsURL: defaultString(wsURL, htxDefaultWSURL)}
}

func (e *HTXExchange) Name() entity.ExchangeName { return entity.ExchangeHTX }

func (e *HTXExchange) Endpoint() string { return e.wsURL }

func (e *HTXExchange) FormatSymbol(pair string) string {
	return joinSymbol(pair, "", true)
}

func (e *HTXExchange) ParseSymbol(symbol string) (string, bool) {
	return parseSymbol(symbol, "")
}

func (e *HTXExchange) topic(pair string) string {
	return "market." + e.FormatSymbol(pair) + ".detail"
}

func (e *HTXExchange) SendSubscribe(w FrameWriter, pairs []string) error {
	return e.send(w, "sub", pairs)
}

func (e *HTXExchange) SendUnsubscribe(w FrameWriter, pairs []string) error {
	return e.send(w, "unsub", pairs)
}

// send issues one request per topic, the API accepts a single topic per request.
func (e *HTXExchange) send(w FrameWriter, op string, pairs []string) error {
	for _, pair := range pairs {
		err := w.WriteJSON(map[string]string{
			op:   e.topic(pair),
			"id": "id" + strconv.FormatInt(e.requestID.Add(1), 10),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SendPing sends the client heartbeat. Server pings are answered in HandleMessage.
func (e *HTXExchange) SendPing(w FrameWriter) error {
	return w.WriteJSON(map[string]int64{"ping": time.Now().UnixMilli()})
}

func (e *HTXExchange) HandleMessage(w FrameWriter, payload []byte) []entity.Ticker {
	var msg struct {
		Ping    int64  `json:"ping"`
		Channel string `json:"ch"`
		TS      int64  `json:"ts"`
		Tick    *struct {
			Open   float64 `json:"open"`
			Close  float64 `json:"close"`
			Amount float64 `json:"amount"`
			Vol    float64 `json:"vol"`
		} `json:"tick"`
	}

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil
	}

	if msg.Ping > 0 {
		if w != nil {
			_ = w.WriteJSON(map[string]int64{"pong": msg.Ping})
		}
		return nil
	}

	if msg.Tick == nil || !strings.HasPrefix(msg.Channel, "market.") || !strings.HasSuffix(msg.Channel, ".detail") {
		return nil
	}

	symbol := strings.TrimSuffix(strings.TrimPrefix(msg.Channel, "market."), ".detail")
	pair, ok := e.ParseSymbol(symbol)
	if !ok {
		return nil
	}

	last := msg.Tick.Close
	if !validPrice(last) {
		return nil
	}
	bid, ask := syntheticBook(last)

	return []entity.Ticker{{
		Exchange:  entity.ExchangeHTX,
		Pair:      pair,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Volume24h: msg.Tick.Amount,
		Change24h: changePercent(last, msg.Tick.Open),
		Timestamp: tickerTime(msg.TS),
	}}
}
