package instrumentation

import (
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arbitrage"

var TickersReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connector",
		Name:      "tickers_received_total",
		Help:      "Normalized tickers written to the cache",
	},
	[]string{"exchange"},
)

// ConnectionState is 1 for the current state of each exchange and 0 for the others.
var ConnectionState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "connector",
		Name:      "connection_state",
		Help:      "Current connection state per exchange",
	},
	[]string{"exchange", "state"},
)

var StatusTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "connector",
		Name:      "status_transitions_total",
		Help:      "Connection status transitions per exchange",
	},
	[]string{"exchange", "state"},
)

var OpportunitiesDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "opportunities_total",
		Help:      "Opportunities emitted after the cooldown filter",
	},
	[]string{"pair", "buy_exchange", "sell_exchange"},
)

var OpportunityProfit = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "opportunity_profit_percent",
		Help:      "Net profit percent of emitted opportunities",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	},
)

var AnalysisEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "analysis_events_total",
		Help:      "Wide-spread analysis events",
	},
	[]string{"pair"},
)

var ScanDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "scan_duration_seconds",
		Help:      "Duration of one full scan over the enabled pairs",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	},
)

var EventsDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Events dropped because a subscriber buffer was full",
	},
	[]string{"subscriber", "kind"},
)

var SinkErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sink",
		Name:      "errors_total",
		Help:      "Failed deliveries to downstream sinks",
	},
	[]string{"sink", "kind"},
)

var OpportunitiesRecorded = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "recorder",
		Name:      "opportunities_recorded_total",
		Help:      "Opportunities written to the database",
	},
)

var connectionStates = []entity.ConnectionState{
	entity.ConnectionDisconnected,
	entity.ConnectionConnecting,
	entity.ConnectionConnected,
	entity.ConnectionError,
}

// Observe records one dispatched event. It is run as a dispatcher subscriber.
func Observe(event entity.Event) {
	switch event.Kind {
	case entity.EventTicker:
		TickersReceived.WithLabelValues(string(event.Ticker.Exchange)).Inc()
	case entity.EventStatus:
		exchange := string(event.Status.Exchange)
		StatusTransitions.WithLabelValues(exchange, string(event.Status.Status)).Inc()
		for _, state := range connectionStates {
			value := 0.0
			if state == event.Status.Status {
				value = 1
			}
			ConnectionState.WithLabelValues(exchange, string(state)).Set(value)
		}
	case entity.EventOpportunity:
		o := event.Opportunity
		OpportunitiesDetected.WithLabelValues(o.Pair, string(o.BuyExchange), string(o.SellExchange)).Inc()
		OpportunityProfit.Observe(o.ProfitPercent)
	case entity.EventAnalysis:
		AnalysisEvents.WithLabelValues(event.Analysis.Pair).Inc()
	}
}

var ControlRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "control",
		Name:      "request_duration_seconds",
		Help:      "Control API latency per route template",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"route", "method", "status"},
)
