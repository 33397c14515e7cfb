/*
Copyright © 2026 Michael Putera Wardana <michaelputeraw@gmail.com>
*/
package cmd

import (
	"github.com/krobus00/arbitrage-service/internal/bootstrap"
	"github.com/spf13/cobra"
)

// marketDataGatewayCmd represents the marketDataGateway command
var marketDataGatewayCmd = &cobra.Command{
	Use:   "market-data-gateway",
	Short: "Market data gateway and arbitrage scanner",
	Long: `Market Data Gateway keeps one connector per enabled exchange, caches the latest
ticker of every subscribed pair and scans the cache for arbitrage opportunities.

This service:
- Streams or polls top-of-book quotes from each exchange
- Reconnects and replays subscriptions after connection loss
- Emits opportunity and analysis events to JetStream, Redis and metrics
- Serves the control API for connectors, tickers and settings`,
	Run: bootstrap.StartMarketDataGateway,
}

func init() {
	rootCmd.AddCommand(marketDataGatewayCmd)
}
