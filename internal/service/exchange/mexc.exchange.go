package exchange

import (
	"context"
	"fmt"
	"net/http"

	"github.com/krobus00/arbitrage-service/internal/entity"
)

const mexcDefaultRESTURL = "https://api.mexc.com"

type MEXCExchange struct {
	baseURL    string
	httpClient *http.Client
}

func NewMEXCExchange(restURL string, httpClient *http.Client) *MEXCExchange {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRESTTimeout}
	}
	return &MEXCExchange{
		baseURL:    defaultString(restURL, mexcDefaultRESTURL),
		httpClient: httpClient,
	}
}

func (e *MEXCExchange) Name() entity.ExchangeName { return entity.ExchangeMEXC }

func (e *MEXCExchange) FormatSymbol(pair string) string {
	return joinSymbol(pair, "", false)
}

func (e *MEXCExchange) ParseSymbol(symbol string) (string, bool) {
	return parseSymbol(symbol, "")
}

func (e *MEXCExchange) FetchTickers(ctx context.Context) ([]entity.Ticker, error) {
	var resp []struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
		BidPrice  string `json:"bidPrice"`
		AskPrice  string `json:"askPrice"`
		OpenPrice string `json:"openPrice"`
		Volume    string `json:"volume"`
		CloseTime int64  `json:"closeTime"`
	}

	if err := getJSON(ctx, e.httpClient, e.baseURL+"/api/v3/ticker/24hr", &resp); err != nil {
		return nil, fmt.Errorf("mexc 24hr tickers: %w", err)
	}

	tickers := make([]entity.Ticker, 0, len(resp))
	for _, d := range resp {
		pair, ok := e.ParseSymbol(d.Symbol)
		if !ok {
			continue
		}

		last, ok := parsePrice(d.LastPrice)
		if !ok {
			continue
		}

		bid, bidOK := parsePrice(d.BidPrice)
		ask, askOK := parsePrice(d.AskPrice)
		if !bidOK || !askOK {
			bid, ask = syntheticBook(last)
		}

		tickers = append(tickers, entity.Ticker{
			Exchange:  entity.ExchangeMEXC,
			Pair:      pair,
			Bid:       bid,
			Ask:       ask,
			Last:      last,
			Volume24h: parseOptional(d.Volume),
			Change24h: changePercent(last, parseOptional(d.OpenPrice)),
			Timestamp: tickerTime(d.CloseTime),
		})
	}

	return tickers, nil
}
