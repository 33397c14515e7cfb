package constant

const (
	// ArbitrageDatabase and ArbitrageCache are the keys of the database and redis config sections.
	ArbitrageDatabase = "arbitrage"
	ArbitrageCache    = "arbitrage"

	MarketDataGatewayClientName   = "arbitrage-market-data-gateway"
	OpportunityRecorderClientName = "arbitrage-opportunity-recorder"
	StreamSetupClientName         = "arbitrage-stream-setup"
)
