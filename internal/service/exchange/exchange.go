package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/entity"
)

var ErrUnsupportedExchange = errors.New("unsupported exchange")

// Adapter is the protocol-specific part shared by every venue.
type Adapter interface {
	Name() entity.ExchangeName
	// FormatSymbol maps a canonical "BASE/QUOTE" pair to the exchange symbol.
	FormatSymbol(pair string) string
	// ParseSymbol maps an exchange symbol back to "BASE/QUOTE".
	ParseSymbol(symbol string) (string, bool)
}

// FrameWriter is the outbound half of a websocket session.
type FrameWriter interface {
	WriteJSON(v any) error
	WriteText(data []byte) error
	WritePing() error
}

// StreamAdapter plugs a websocket protocol into the stream connector.
type StreamAdapter interface {
	Adapter
	Endpoint() string
	SendSubscribe(w FrameWriter, pairs []string) error
	SendUnsubscribe(w FrameWriter, pairs []string) error
	SendPing(w FrameWriter) error
	// HandleMessage decodes one text payload. Control frames, acks and malformed payloads
	// yield no tickers. The writer is available for protocol-level replies.
	HandleMessage(w FrameWriter, payload []byte) []entity.Ticker
}

// PollAdapter fetches a full-market snapshot over REST.
type PollAdapter interface {
	Adapter
	FetchTickers(ctx context.Context) ([]entity.Ticker, error)
}

const defaultRESTTimeout = 8 * time.Second

// NewAdapter builds the adapter for the given exchange. Empty endpoints fall back to the
// public production endpoints.
func NewAdapter(name entity.ExchangeName, exchangeConfig config.ExchangeConfig) (Adapter, error) {
	wsURL := strings.TrimSpace(exchangeConfig.WSURL)
	restURL := strings.TrimRight(strings.TrimSpace(exchangeConfig.RESTURL), "/")
	httpClient := &http.Client{Timeout: defaultRESTTimeout}

	switch name {
	case entity.ExchangeBinance:
		return NewBinanceExchange(wsURL), nil
	case entity.ExchangeBybit:
		return NewBybitExchange(wsURL), nil
	case entity.ExchangeOKX:
		return NewOKXExchange(wsURL), nil
	case entity.ExchangeGate:
		return NewGateExchange(wsURL), nil
	case entity.ExchangeBitget:
		return NewBitgetExchange(wsURL), nil
	case entity.ExchangeHTX:
		return NewHTXExchange(wsURL), nil
	case entity.ExchangeKucoin:
		return NewKucoinExchange(restURL, httpClient), nil
	case entity.ExchangeMEXC:
		return NewMEXCExchange(restURL, httpClient), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExchange, name)
	}
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
