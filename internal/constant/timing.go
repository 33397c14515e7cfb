package constant

import "time"

const (
	HeartbeatInterval = 20 * time.Second
	ReconnectDelay    = 5 * time.Second
	PollInterval      = 2 * time.Second
	ScanInterval      = 1 * time.Second
	CooldownWindow    = 30 * time.Second

	// AnalysisSpreadPercent is the spread above which a diagnostic analysis event is emitted.
	AnalysisSpreadPercent = 0.3

	// SyntheticSpreadRatio widens last price into a bid/ask when a venue exposes no live book.
	SyntheticSpreadRatio = 0.0001
)
