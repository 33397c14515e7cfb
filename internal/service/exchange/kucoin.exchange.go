package exchange

import (
	"context"
	"fmt"
	"net/http"

	"github.com/krobus00/arbitrage-service/internal/entity"
)

const (
	kucoinDefaultRESTURL = "https://api.kucoin.com"
	kucoinSuccessCode    = "200000"
)

type KucoinExchange struct {
	baseURL    string
	httpClient *http.Client
}

func NewKucoinExchange(restURL string, httpClient *http.Client) *KucoinExchange {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRESTTimeout}
	}
	return &KucoinExchange{
		baseURL:    defaultString(restURL, kucoinDefaultRESTURL),
		httpClient: httpClient,
	}
}

func (e *KucoinExchange) Name() entity.ExchangeName { return entity.ExchangeKucoin }

func (e *KucoinExchange) FormatSymbol(pair string) string {
	return joinSymbol(pair, "-", false)
}

func (e *KucoinExchange) ParseSymbol(symbol string) (string, bool) {
	return parseSymbol(symbol, "-")
}

// FetchTickers reads the all-market snapshot. A missing best bid or ask is synthesized
// around the last price.
func (e *KucoinExchange) FetchTickers(ctx context.Context) ([]entity.Ticker, error) {
	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			Time   int64 `json:"time"`
			Ticker []struct {
				Symbol     string `json:"symbol"`
				Buy        string `json:"buy"`
				Sell       string `json:"sell"`
				Last       string `json:"last"`
				Vol        string `json:"vol"`
				ChangeRate string `json:"changeRate"`
			} `json:"ticker"`
		} `json:"data"`
	}

	if err := getJSON(ctx, e.httpClient, e.baseURL+"/api/v1/market/allTickers", &resp); err != nil {
		return nil, fmt.Errorf("kucoin all tickers: %w", err)
	}

	if resp.Code != kucoinSuccessCode {
		return nil, fmt.Errorf("kucoin all tickers rejected: code=%s message=%s", resp.Code, resp.Msg)
	}

	timestamp := tickerTime(resp.Data.Time)
	tickers := make([]entity.Ticker, 0, len(resp.Data.Ticker))
	for _, d := range resp.Data.Ticker {
		pair, ok := e.ParseSymbol(d.Symbol)
		if !ok {
			continue
		}

		last, ok := parsePrice(d.Last)
		if !ok {
			continue
		}

		bid, bidOK := parsePrice(d.Buy)
		ask, askOK := parsePrice(d.Sell)
		if !bidOK || !askOK {
			bid, ask = syntheticBook(last)
		}

		tickers = append(tickers, entity.Ticker{
			Exchange:  entity.ExchangeKucoin,
			Pair:      pair,
			Bid:       bid,
			Ask:       ask,
			Last:      last,
			Volume24h: parseOptional(d.Vol),
			Change24h: parseOptional(d.ChangeRate) * 100,
			Timestamp: timestamp,
		})
	}

	return tickers, nil
}
