package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/instrumentation"
	"github.com/krobus00/arbitrage-service/internal/service/tickercache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ErrInvalidSettings = errors.New("invalid settings")

const (
	priceScale   = 12
	percentScale = 10
)

var (
	hundred           = decimal.NewFromInt(100)
	analysisThreshold = decimal.NewFromFloat(constant.AnalysisSpreadPercent)
)

// Engine scans the ticker cache on a fixed period and emits analysis and opportunity events.
type Engine struct {
	cache      *tickercache.Cache
	events     entity.EventPublisher
	identities entity.ExchangeIdentities
	interval   time.Duration
	cooldown   time.Duration
	newID      func() string

	mu       sync.RWMutex
	settings entity.Settings

	// only touched by Scan
	scanMu    sync.Mutex
	cooldowns map[string]time.Time
}

func NewEngine(cache *tickercache.Cache, events entity.EventPublisher, identities entity.ExchangeIdentities, settings entity.Settings) (*Engine, error) {
	normalized, err := ValidateSettings(settings)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cache:      cache,
		events:     events,
		identities: identities,
		interval:   constant.ScanInterval,
		cooldown:   constant.CooldownWindow,
		newID:      uuid.NewString,
		settings:   normalized,
		cooldowns:  make(map[string]time.Time),
	}, nil
}

// ValidateSettings normalizes pair and exchange names and rejects unusable values.
func ValidateSettings(settings entity.Settings) (entity.Settings, error) {
	s := settings.Clone()

	if math.IsNaN(s.MinProfitPercent) || math.IsInf(s.MinProfitPercent, 0) {
		return entity.Settings{}, fmt.Errorf("%w: minProfitPercent must be finite", ErrInvalidSettings)
	}
	if math.IsNaN(s.TradeAmount) || math.IsInf(s.TradeAmount, 0) || s.TradeAmount < 0 {
		return entity.Settings{}, fmt.Errorf("%w: tradeAmount must be a non-negative number", ErrInvalidSettings)
	}

	exchanges := make([]entity.ExchangeName, 0, len(s.EnabledExchanges))
	seenExchanges := make(map[entity.ExchangeName]struct{}, len(s.EnabledExchanges))
	for _, raw := range s.EnabledExchanges {
		name, ok := entity.ParseExchangeName(string(raw))
		if !ok {
			return entity.Settings{}, fmt.Errorf("%w: unknown exchange %q", ErrInvalidSettings, raw)
		}
		if _, ok := seenExchanges[name]; ok {
			continue
		}
		seenExchanges[name] = struct{}{}
		exchanges = append(exchanges, name)
	}
	s.EnabledExchanges = exchanges

	pairs := make([]string, 0, len(s.EnabledPairs))
	seenPairs := make(map[string]struct{}, len(s.EnabledPairs))
	for _, raw := range s.EnabledPairs {
		pair := strings.ToUpper(strings.TrimSpace(raw))
		base, quote, ok := strings.Cut(pair, "/")
		if !ok || base == "" || quote == "" {
			return entity.Settings{}, fmt.Errorf("%w: pair %q is not BASE/QUOTE", ErrInvalidSettings, raw)
		}
		if _, ok := seenPairs[pair]; ok {
			continue
		}
		seenPairs[pair] = struct{}{}
		pairs = append(pairs, pair)
	}
	s.EnabledPairs = pairs

	return s, nil
}

func (e *Engine) Settings() entity.Settings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.settings.Clone()
}

// UpdateSettings applies a partial update. A scan already in progress keeps its snapshot.
func (e *Engine) UpdateSettings(patch entity.SettingsPatch) (entity.Settings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := ValidateSettings(patch.Apply(e.settings))
	if err != nil {
		return entity.Settings{}, err
	}
	e.settings = next

	logrus.WithFields(logrus.Fields{
		"min_profit_percent": next.MinProfitPercent,
		"trade_amount":       next.TradeAmount,
		"pairs":              len(next.EnabledPairs),
		"exchanges":          len(next.EnabledExchanges),
	}).Info("arbitrage settings updated")

	return next.Clone(), nil
}

// Run scans on every tick until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	logrus.Infof("arbitrage engine started, scanning every %s", e.interval)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("arbitrage engine stopped")
			return
		case now := <-ticker.C:
			e.Scan(now)
		}
	}
}

type quote struct {
	exchange entity.ExchangeName
	bid      float64
	ask      float64
}

// Scan runs one pass over every enabled pair and returns the opportunities it emitted.
func (e *Engine) Scan(now time.Time) []entity.ArbitrageOpportunity {
	start := time.Now()
	defer func() {
		instrumentation.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	settings := e.Settings()

	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	var emitted []entity.ArbitrageOpportunity
	for _, pair := range settings.EnabledPairs {
		if opportunity, ok := e.scanPair(now, pair, settings); ok {
			emitted = append(emitted, opportunity)
		}
	}
	return emitted
}

func (e *Engine) scanPair(now time.Time, pair string, settings entity.Settings) (entity.ArbitrageOpportunity, bool) {
	quotes := make([]quote, 0, len(settings.EnabledExchanges))
	for _, exchange := range settings.EnabledExchanges {
		ticker, ok := e.cache.Get(exchange, pair)
		if !ok || !ticker.Quotable() {
			continue
		}
		quotes = append(quotes, quote{exchange: exchange, bid: ticker.Bid, ask: ticker.Ask})
	}
	if len(quotes) < 2 {
		return entity.ArbitrageOpportunity{}, false
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].ask < quotes[j].ask
	})

	buy := quotes[0]
	sell := quotes[len(quotes)-1]

	// the sell leg hits the live bid of the candidate venue
	sellBid := sell.bid
	if live, ok := e.cache.Get(sell.exchange, pair); ok && live.Bid > 0 {
		sellBid = live.Bid
	}

	buyPrice := decimal.NewFromFloat(buy.ask)
	sellPrice := decimal.NewFromFloat(sellBid)
	spread := sellPrice.Sub(buyPrice).Div(buyPrice).Mul(hundred)

	if spread.GreaterThanOrEqual(analysisThreshold) {
		e.publishAnalysis(now, pair, buy, sell.exchange, sellBid, spread, quotes)
	}

	buyFeeRate := e.identities.TakerFee(buy.exchange)
	sellFeeRate := e.identities.TakerFee(sell.exchange)
	profit := spread.Sub(buyFeeRate.Add(sellFeeRate).Mul(hundred))

	if profit.LessThan(decimal.NewFromFloat(settings.MinProfitPercent)) {
		return entity.ArbitrageOpportunity{}, false
	}

	key := entity.CooldownKey(pair, buy.exchange, sell.exchange)
	if last, ok := e.cooldowns[key]; ok && now.Sub(last) < e.cooldown {
		return entity.ArbitrageOpportunity{}, false
	}
	e.cooldowns[key] = now

	tradeAmount := decimal.NewFromFloat(settings.TradeAmount)
	opportunity := entity.ArbitrageOpportunity{
		ID:              e.newID(),
		Pair:            pair,
		BuyExchange:     buy.exchange,
		SellExchange:    sell.exchange,
		BuyPrice:        buyPrice.Round(priceScale).InexactFloat64(),
		SellPrice:       sellPrice.Round(priceScale).InexactFloat64(),
		SpreadPercent:   spread.Round(percentScale).InexactFloat64(),
		ProfitPercent:   profit.Round(percentScale).InexactFloat64(),
		EstimatedProfit: profit.Div(hundred).Mul(tradeAmount).Round(percentScale).InexactFloat64(),
		BuyFee:          buyFeeRate.Mul(tradeAmount).Round(percentScale).InexactFloat64(),
		SellFee:         sellFeeRate.Mul(tradeAmount).Round(percentScale).InexactFloat64(),
		Volume:          0,
		Timestamp:       now.UTC(),
	}

	logrus.WithFields(logrus.Fields{
		"pair":           pair,
		"buy_exchange":   buy.exchange,
		"sell_exchange":  sell.exchange,
		"profit_percent": opportunity.ProfitPercent,
	}).Info("arbitrage opportunity detected")

	e.events.Publish(entity.Event{
		Kind:        entity.EventOpportunity,
		EmittedAt:   now.UTC(),
		Opportunity: &opportunity,
	})

	return opportunity, true
}

func (e *Engine) publishAnalysis(now time.Time, pair string, buy quote, sellExchange entity.ExchangeName, sellBid float64, spread decimal.Decimal, quotes []quote) {
	venues := make([]entity.VenueQuote, 0, len(quotes))
	for _, q := range quotes {
		venues = append(venues, entity.VenueQuote{Exchange: q.exchange, Bid: q.bid, Ask: q.ask})
	}

	analysis := entity.AnalysisEvent{
		Pair:          pair,
		BuyExchange:   buy.exchange,
		SellExchange:  sellExchange,
		BuyPrice:      buy.ask,
		SellPrice:     sellBid,
		SpreadPercent: spread.Round(percentScale).InexactFloat64(),
		Venues:        venues,
		Timestamp:     now.UTC(),
	}

	e.events.Publish(entity.Event{
		Kind:      entity.EventAnalysis,
		EmittedAt: now.UTC(),
		Analysis:  &analysis,
	})
}
