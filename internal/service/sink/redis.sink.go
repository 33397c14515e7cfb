package sink

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/instrumentation"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	defaultKeyPrefix      = "arbitrage:"
	defaultOpportunityCap = 500
)

type redisWriter interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
}

// RedisMirror keeps the latest tickers and connection states in hashes and the most recent
// opportunities in a capped list.
type RedisMirror struct {
	client         redisWriter
	prefix         string
	opportunityCap int64
}

func NewRedisMirror(client redisWriter, prefix string, opportunityCap int64) *RedisMirror {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultKeyPrefix
	}
	if !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	if opportunityCap <= 0 {
		opportunityCap = defaultOpportunityCap
	}

	return &RedisMirror{client: client, prefix: prefix, opportunityCap: opportunityCap}
}

func (m *RedisMirror) TickerKey(exchange entity.ExchangeName, pair string) string {
	return m.prefix + "ticker:" + string(exchange) + ":" + pair
}

func (m *RedisMirror) StatusKey(exchange entity.ExchangeName) string {
	return m.prefix + "status:" + string(exchange)
}

func (m *RedisMirror) OpportunitiesKey() string {
	return m.prefix + "opportunities"
}

func (m *RedisMirror) Handle(ctx context.Context, event entity.Event) {
	var err error
	switch event.Kind {
	case entity.EventTicker:
		err = m.saveTicker(ctx, event.Ticker)
	case entity.EventStatus:
		err = m.saveStatus(ctx, event.Status)
	case entity.EventOpportunity:
		err = m.pushOpportunity(ctx, event.Opportunity)
	default:
		return
	}

	if err != nil {
		instrumentation.SinkErrors.WithLabelValues("redis", string(event.Kind)).Inc()
		logrus.WithField("kind", event.Kind).Errorf("failed to mirror event to redis: %v", err)
	}
}

func (m *RedisMirror) saveTicker(ctx context.Context, t *entity.Ticker) error {
	if t == nil {
		return nil
	}

	return m.client.HSet(ctx, m.TickerKey(t.Exchange, t.Pair),
		"bid", formatFloat(t.Bid),
		"ask", formatFloat(t.Ask),
		"last", formatFloat(t.Last),
		"volume24h", formatFloat(t.Volume24h),
		"change24h", formatFloat(t.Change24h),
		"timestamp", t.Timestamp.UTC().Format(time.RFC3339Nano),
	).Err()
}

func (m *RedisMirror) saveStatus(ctx context.Context, s *entity.ConnectionStatus) error {
	if s == nil {
		return nil
	}

	return m.client.HSet(ctx, m.StatusKey(s.Exchange),
		"status", string(s.Status),
		"lastUpdate", s.LastUpdate.UTC().Format(time.RFC3339Nano),
		"errorMessage", s.ErrorMessage.String,
	).Err()
}

func (m *RedisMirror) pushOpportunity(ctx context.Context, o *entity.ArbitrageOpportunity) error {
	if o == nil {
		return nil
	}

	payload, err := json.Marshal(o)
	if err != nil {
		return err
	}

	key := m.OpportunitiesKey()
	if err := m.client.LPush(ctx, key, payload).Err(); err != nil {
		return err
	}
	return m.client.LTrim(ctx, key, 0, m.opportunityCap-1).Err()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
