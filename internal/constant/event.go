package constant

import "strings"

const (
	ArbitrageStreamName       = "arbitrage"
	ArbitrageStreamSubjectAll = "arbitrage.>"

	OpportunityStreamSubject = "arbitrage.opportunity"
	AnalysisStreamSubject    = "arbitrage.analysis"
	StatusStreamSubjectBase  = "arbitrage.status"
	TickerStreamSubjectBase  = "arbitrage.ticker"

	OpportunityRecorderQueueGroup = "opportunity_recorder_group"
	OpportunityRecorderDurable    = "opportunity_recorder"
)

func GetStatusStreamSubject(exchange string) string {
	return StatusStreamSubjectBase + "." + strings.ToLower(exchange)
}

func GetTickerStreamSubject(exchange string) string {
	return TickerStreamSubjectBase + "." + strings.ToLower(exchange)
}
