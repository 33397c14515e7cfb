package exchange

import (
	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

const okxDefaultWSURL = "wss://ws.okx.com:8443/ws/v5/public"

type OKXExchange struct {
	wsURL string
}

func NewOKXExchange(wsURL string) *OKXExchange {
	return &OKXExchange{wsURL: defaultString(wsURL, okxDefaultWSURL)}
}

func (e *OKXExchange) Name() entity.ExchangeName { return entity.ExchangeOKX }

func (e *OKXExchange) Endpoint() string { return e.wsURL }

func (e *OKXExchange) FormatSymbol(pair string) string {
	return joinSymbol(pair, "-", false)
}

func (e *OKXExchange) ParseSymbol(symbol string) (string, bool) {
	return parseSymbol(symbol, "-")
}

func (e *OKXExchange) SendSubscribe(w FrameWriter, pairs []string) error {
	return e.sendOp(w, "subscribe", pairs)
}

func (e *OKXExchange) SendUnsubscribe(w FrameWriter, pairs []string) error {
	return e.sendOp(w, "unsubscribe", pairs)
}

func (e *OKXExchange) sendOp(w FrameWriter, op string, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}

	args := make([]map[string]string, 0, len(pairs))
	for _, pair := range pairs {
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  e.FormatSymbol(pair),
		})
	}

	return w.WriteJSON(map[string]any{"op": op, "args": args})
}

// SendPing sends the literal text "ping"; the "pong" reply is not JSON and gets dropped.
func (e *OKXExchange) SendPing(w FrameWriter) error {
	return w.WriteText([]byte("ping"))
}

func (e *OKXExchange) HandleMessage(_ FrameWriter, payload []byte) []entity.Ticker {
	var msg struct {
		Event string `json:"event"`
		Arg   struct {
			Channel string `json:"channel"`
			InstID  string `json:"instId"`
		} `json:"arg"`
		Data []struct {
			InstID  string `json:"instId"`
			Last    string `json:"last"`
			AskPx   string `json:"askPx"`
			BidPx   string `json:"bidPx"`
			Open24h string `json:"open24h"`
			Vol24h  string `json:"vol24h"`
			TS      string `json:"ts"`
		} `json:"data"`
	}

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil
	}

	if msg.Event != "" || msg.Arg.Channel != "tickers" || len(msg.Data) == 0 {
		return nil
	}

	tickers := make([]entity.Ticker, 0, len(msg.Data))
	for _, d := range msg.Data {
		pair, ok := e.ParseSymbol(d.InstID)
		if !ok {
			continue
		}

		last, ok := parsePrice(d.Last)
		if !ok {
			continue
		}
		bid, ok := parsePrice(d.BidPx)
		if !ok {
			continue
		}
		ask, ok := parsePrice(d.AskPx)
		if !ok {
			continue
		}

		tickers = append(tickers, entity.Ticker{
			Exchange:  entity.ExchangeOKX,
			Pair:      pair,
			Bid:       bid,
			Ask:       ask,
			Last:      last,
			Volume24h: parseOptional(d.Vol24h),
			Change24h: changePercent(last, parseOptional(d.Open24h)),
			Timestamp: tickerTime(parseMillis(d.TS)),
		})
	}

	return tickers
}
