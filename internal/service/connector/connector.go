package connector

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guregu/null/v6"
	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/service/exchange"
	"github.com/krobus00/arbitrage-service/internal/service/tickercache"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownExchange = errors.New("unknown exchange")
	ErrInvalidPair     = errors.New("invalid pair")
)

// Connector owns the lifecycle of one exchange feed. Implementations are safe for concurrent use.
type Connector interface {
	Name() entity.ExchangeName
	// Connect is idempotent while connecting or connected.
	Connect(ctx context.Context) error
	// Disconnect stops every timer and goroutine owned by the connector.
	Disconnect()
	Subscribe(pairs []string) error
	Unsubscribe(pairs []string) error
	Status() entity.ConnectionStatus
	Subscriptions() []string
}

type Options struct {
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	PollInterval      time.Duration
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	Dialer            *websocket.Dialer
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = constant.HeartbeatInterval
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = constant.ReconnectDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = constant.PollInterval
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	return o
}

// New picks the connector implementation from the adapter's capabilities.
func New(adapter exchange.Adapter, cache *tickercache.Cache, events entity.EventPublisher, opts Options) (Connector, error) {
	switch a := adapter.(type) {
	case exchange.StreamAdapter:
		return NewStreamConnector(a, cache, events, opts), nil
	case exchange.PollAdapter:
		return NewPollConnector(a, cache, events, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s has no transport", exchange.ErrUnsupportedExchange, adapter.Name())
	}
}

// base holds the state shared by both transports. Fields below mu are guarded by it.
type base struct {
	name   entity.ExchangeName
	cache  *tickercache.Cache
	events entity.EventPublisher
	opts   Options
	logger *logrus.Entry

	mu            sync.Mutex
	status        entity.ConnectionStatus
	subscriptions map[string]struct{}
	// generation is bumped on every session start, failure and disconnect. Goroutines and
	// timers carry the generation they were started with and exit when it no longer matches.
	generation uint64
}

func (b *base) init(name entity.ExchangeName, cache *tickercache.Cache, events entity.EventPublisher, opts Options) {
	b.name = name
	b.cache = cache
	b.events = events
	b.opts = opts.withDefaults()
	b.logger = logrus.WithField("exchange", name)
	b.status = entity.ConnectionStatus{
		Exchange:   name,
		Status:     entity.ConnectionDisconnected,
		LastUpdate: time.Now().UTC(),
	}
	b.subscriptions = make(map[string]struct{})
}

func (b *base) Name() entity.ExchangeName {
	return b.name
}

func (b *base) Status() entity.ConnectionStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *base) Subscriptions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscriptionsLocked()
}

func (b *base) subscriptionsLocked() []string {
	pairs := make([]string, 0, len(b.subscriptions))
	for pair := range b.subscriptions {
		pairs = append(pairs, pair)
	}
	slices.Sort(pairs)
	return pairs
}

// addLocked returns the pairs that were not subscribed yet.
func (b *base) addLocked(pairs []string) []string {
	added := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if _, ok := b.subscriptions[pair]; ok {
			continue
		}
		b.subscriptions[pair] = struct{}{}
		added = append(added, pair)
	}
	return added
}

// removeLocked returns the pairs that were subscribed and drops their cached tickers.
func (b *base) removeLocked(pairs []string) []string {
	removed := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		if _, ok := b.subscriptions[pair]; !ok {
			continue
		}
		delete(b.subscriptions, pair)
		b.cache.Delete(b.name, pair)
		removed = append(removed, pair)
	}
	return removed
}

// setStatusLocked records a transition and emits it. Publish never blocks, so it is safe under mu.
func (b *base) setStatusLocked(state entity.ConnectionState, err error) {
	b.status = entity.ConnectionStatus{
		Exchange:   b.name,
		Status:     state,
		LastUpdate: time.Now().UTC(),
	}
	if err != nil {
		b.status.ErrorMessage = null.StringFrom(err.Error())
	}

	status := b.status
	b.events.Publish(entity.Event{
		Kind:      entity.EventStatus,
		EmittedAt: status.LastUpdate,
		Status:    &status,
	})
}

// store writes subscribed tickers to the cache, then announces them. The cache write
// happens under mu so a concurrent unsubscribe cannot be undone by an in-flight frame.
func (b *base) store(tickers []entity.Ticker) {
	if len(tickers) == 0 {
		return
	}

	b.mu.Lock()
	accepted := make([]entity.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if _, ok := b.subscriptions[t.Pair]; !ok {
			continue
		}
		t.Exchange = b.name
		b.cache.Set(t)
		accepted = append(accepted, t)
	}
	b.mu.Unlock()

	for _, t := range accepted {
		ticker := t
		b.events.Publish(entity.Event{
			Kind:      entity.EventTicker,
			EmittedAt: time.Now().UTC(),
			Ticker:    &ticker,
		})
	}
}

// NormalizePairs upper-cases and deduplicates "BASE/QUOTE" pairs.
func NormalizePairs(pairs []string) ([]string, error) {
	normalized := make([]string, 0, len(pairs))
	seen := make(map[string]struct{}, len(pairs))
	for _, raw := range pairs {
		pair := strings.ToUpper(strings.TrimSpace(raw))
		base, quote, ok := strings.Cut(pair, "/")
		if !ok || base == "" || quote == "" || strings.Contains(quote, "/") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPair, raw)
		}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		normalized = append(normalized, pair)
	}
	return normalized, nil
}
