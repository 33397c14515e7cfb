package entity

import (
	"context"
	"time"
)

type Publisher interface {
	JetstreamEventInit(ctx context.Context) error
}

type Subscriber interface {
	JetstreamEventSubscribe(ctx context.Context) error
}

type EventKind string

const (
	EventStatus      EventKind = "status"
	EventTicker      EventKind = "ticker"
	EventAnalysis    EventKind = "analysis"
	EventOpportunity EventKind = "opportunity"
)

// Event is the envelope fanned out by the dispatcher. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind        EventKind             `json:"kind"`
	EmittedAt   time.Time             `json:"emittedAt"`
	Status      *ConnectionStatus     `json:"status,omitempty"`
	Ticker      *Ticker               `json:"ticker,omitempty"`
	Analysis    *AnalysisEvent        `json:"analysis,omitempty"`
	Opportunity *ArbitrageOpportunity `json:"opportunity,omitempty"`
}

type OpportunityEvent struct {
	RetryCount int                  `json:"retry"`
	Data       ArbitrageOpportunity `json:"data"`
}

// EventPublisher is implemented by the dispatcher; producers never block on it.
type EventPublisher interface {
	Publish(event Event)
}
