package bootstrap

import (
	"testing"

	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/shopspring/decimal"
)

func TestBuildExchangeIdentitiesAppliesOverrides(t *testing.T) {
	identities := buildExchangeIdentities(map[string]config.ExchangeConfig{
		"Binance": {TakerFee: 0.00075},
		"okx":     {MakerFee: 0.0005},
		"kraken":  {TakerFee: 0.5},
	})

	if !identities.TakerFee(entity.ExchangeBinance).Equal(decimal.RequireFromString("0.00075")) {
		t.Fatalf("binance taker = %s", identities.TakerFee(entity.ExchangeBinance))
	}
	if !identities[entity.ExchangeBinance].MakerFee.Equal(decimal.RequireFromString("0.001")) {
		t.Fatal("binance maker should keep the built-in fee")
	}
	if !identities[entity.ExchangeOKX].MakerFee.Equal(decimal.RequireFromString("0.0005")) {
		t.Fatalf("okx maker = %s", identities[entity.ExchangeOKX].MakerFee)
	}
	if !identities.TakerFee(entity.ExchangeOKX).Equal(decimal.RequireFromString("0.001")) {
		t.Fatal("okx taker should keep the built-in fee")
	}
	if _, ok := identities["kraken"]; ok {
		t.Fatal("unknown exchanges must be ignored")
	}
}

func TestBuildSettings(t *testing.T) {
	connectors := []entity.ConnectorInfo{
		{ConnectionStatus: entity.ConnectionStatus{Exchange: entity.ExchangeBinance}, Subscriptions: []string{"BTC/USDT"}},
		{ConnectionStatus: entity.ConnectionStatus{Exchange: entity.ExchangeGate}, Subscriptions: []string{"ETH/USDT"}},
	}

	explicit := buildSettings(config.ArbitrageConfig{
		MinProfitPercent: 0.4,
		TradeAmount:      500,
		EnabledPairs:     []string{"SOL/USDT"},
		EnabledExchanges: []string{"bybit"},
	}, connectors)
	if len(explicit.EnabledExchanges) != 1 || explicit.EnabledExchanges[0] != entity.ExchangeBybit {
		t.Fatalf("exchanges = %v", explicit.EnabledExchanges)
	}
	if len(explicit.EnabledPairs) != 1 || explicit.EnabledPairs[0] != "SOL/USDT" {
		t.Fatalf("pairs = %v", explicit.EnabledPairs)
	}
	if explicit.MinProfitPercent != 0.4 || explicit.TradeAmount != 500 {
		t.Fatalf("unexpected settings %+v", explicit)
	}

	fallback := buildSettings(config.ArbitrageConfig{}, connectors)
	if len(fallback.EnabledExchanges) != 2 || fallback.EnabledExchanges[1] != entity.ExchangeGate {
		t.Fatalf("fallback exchanges = %v", fallback.EnabledExchanges)
	}
	if len(fallback.EnabledPairs) != 2 || fallback.EnabledPairs[0] != "BTC/USDT" {
		t.Fatalf("fallback pairs = %v", fallback.EnabledPairs)
	}
}
