package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

type ExchangeName string

const (
	ExchangeBinance ExchangeName = "binance"
	ExchangeBybit   ExchangeName = "bybit"
	ExchangeOKX     ExchangeName = "okx"
	ExchangeGate    ExchangeName = "gate"
	ExchangeBitget  ExchangeName = "bitget"
	ExchangeHTX     ExchangeName = "htx"
	ExchangeKucoin  ExchangeName = "kucoin"
	ExchangeMEXC    ExchangeName = "mexc"
)

// SupportedExchanges keeps the startup order of the connectors.
var SupportedExchanges = []ExchangeName{
	ExchangeBinance,
	ExchangeBybit,
	ExchangeOKX,
	ExchangeGate,
	ExchangeBitget,
	ExchangeHTX,
	ExchangeKucoin,
	ExchangeMEXC,
}

func ParseExchangeName(raw string) (ExchangeName, bool) {
	name := ExchangeName(strings.ToLower(strings.TrimSpace(raw)))
	for _, v := range SupportedExchanges {
		if v == name {
			return name, true
		}
	}
	return "", false
}

// ExchangeIdentity is loaded once at startup and never mutated.
type ExchangeIdentity struct {
	ID          ExchangeName    `json:"id"`
	DisplayName string          `json:"displayName"`
	MakerFee    decimal.Decimal `json:"makerFee"`
	TakerFee    decimal.Decimal `json:"takerFee"`
}

type ExchangeIdentities map[ExchangeName]ExchangeIdentity

func (e ExchangeIdentities) TakerFee(name ExchangeName) decimal.Decimal {
	identity, ok := e[name]
	if !ok {
		return decimal.Zero
	}
	return identity.TakerFee
}

// DefaultExchangeIdentities returns the static spot fee table. Rates are fractions (0.001 = 0.1%).
func DefaultExchangeIdentities() ExchangeIdentities {
	return ExchangeIdentities{
		ExchangeBinance: {ID: ExchangeBinance, DisplayName: "Binance", MakerFee: decimal.RequireFromString("0.001"), TakerFee: decimal.RequireFromString("0.001")},
		ExchangeBybit:   {ID: ExchangeBybit, DisplayName: "Bybit", MakerFee: decimal.RequireFromString("0.001"), TakerFee: decimal.RequireFromString("0.001")},
		ExchangeOKX:     {ID: ExchangeOKX, DisplayName: "OKX", MakerFee: decimal.RequireFromString("0.0008"), TakerFee: decimal.RequireFromString("0.001")},
		ExchangeGate:    {ID: ExchangeGate, DisplayName: "Gate.io", MakerFee: decimal.RequireFromString("0.002"), TakerFee: decimal.RequireFromString("0.002")},
		ExchangeBitget:  {ID: ExchangeBitget, DisplayName: "Bitget", MakerFee: decimal.RequireFromString("0.001"), TakerFee: decimal.RequireFromString("0.001")},
		ExchangeHTX:     {ID: ExchangeHTX, DisplayName: "HTX", MakerFee: decimal.RequireFromString("0.002"), TakerFee: decimal.RequireFromString("0.002")},
		ExchangeKucoin:  {ID: ExchangeKucoin, DisplayName: "KuCoin", MakerFee: decimal.RequireFromString("0.001"), TakerFee: decimal.RequireFromString("0.001")},
		ExchangeMEXC:    {ID: ExchangeMEXC, DisplayName: "MEXC", MakerFee: decimal.Zero, TakerFee: decimal.RequireFromString("0.0005")},
	}
}
