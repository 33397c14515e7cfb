package exchange

import (
	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

const bitgetDefaultWSURL = "wss://ws.bitget.com/v2/ws/public"

type BitgetExchange struct {
	wsURL string
}

func NewBitgetExchange(wsURL string) *BitgetExchange {
	return &BitgetExchange{wsURL: defaultString(wsURL, bitgetDefaultWSURL)}
}

func (e *BitgetExchange) Name() entity.ExchangeName { return entity.ExchangeBitget }

func (e *BitgetExchange) Endpoint() string { return e.wsURL }

func (e *BitgetExchange) FormatSymbol(pair string) string {
	return joinSymbol(pair, "", false)
}

func (e *BitgetExchange) ParseSymbol(symbol string) (string, bool) {
	return parseSymbol(symbol, "")
}

func (e *BitgetExchange) SendSubscribe(w FrameWriter, pairs []string) error {
	return e.sendOp(w, "subscribe", pairs)
}

func (e *BitgetExchange) SendUnsubscribe(w FrameWriter, pairs []string) error {
	return e.sendOp(w, "unsubscribe", pairs)
}

func (e *BitgetExchange) sendOp(w FrameWriter, op string, pairs []string) error {
	if len(pairs) == 0 {
		return nil
	}

	args := make([]map[string]string, 0, len(pairs))
	for _, pair := range pairs {
		args = append(args, map[string]string{
			"instType": "SPOT",
			"channel":  "ticker",
			"instId":   e.FormatSymbol(pair),
		})
	}

	return w.WriteJSON(map[string]any{"op": op, "args": args})
}

func (e *BitgetExchange) SendPing(w FrameWriter) error {
	return w.WriteText([]byte("ping"))
}

func (e *BitgetExchange) HandleMessage(_ FrameWriter, payload []byte) []entity.Ticker {
	var msg struct {
		Event  string `json:"event"`
		Action string `json:"action"`
		Arg    struct {
			Channel string `json:"channel"`
		} `json:"arg"`
		Data []struct {
			InstID     string `json:"instId"`
			LastPr     string `json:"lastPr"`
			BidPr      string `json:"bidPr"`
			AskPr      string `json:"askPr"`
			Open24h    string `json:"open24h"`
			BaseVolume string `json:"baseVolume"`
			TS         string `json:"ts"`
		} `json:"data"`
	}

	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil
	}

	if msg.Event != "" || msg.Arg.Channel != "ticker" {
		return nil
	}

	tickers := make([]entity.Ticker, 0, len(msg.Data))
	for _, d := range msg.Data {
		pair, ok := e.ParseSymbol(d.InstID)
		if !ok {
			continue
		}

		last, ok := parsePrice(d.LastPr)
		if !ok {
			continue
		}
		bid, ok := parsePrice(d.BidPr)
		if !ok {
			continue
		}
		ask, ok := parsePrice(d.AskPr)
		if !ok {
			continue
		}

		tickers = append(tickers, entity.Ticker{
			Exchange:  entity.ExchangeBitget,
			Pair:      pair,
			Bid:       bid,
			Ask:       ask,
			Last:      last,
			Volume24h: parseOptional(d.BaseVolume),
			Change24h: changePercent(last, parseOptional(d.Open24h)),
			Timestamp: tickerTime(parseMillis(d.TS)),
		})
	}

	return tickers
}
