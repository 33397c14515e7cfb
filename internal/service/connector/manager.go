package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/service/exchange"
	"github.com/krobus00/arbitrage-service/internal/service/tickercache"
	"github.com/sirupsen/logrus"
)

// Manager is the set of connectors built at startup, keyed by exchange id.
type Manager struct {
	order      []entity.ExchangeName
	connectors map[entity.ExchangeName]Connector
}

func NewManager(connectors ...Connector) *Manager {
	m := &Manager{connectors: make(map[entity.ExchangeName]Connector, len(connectors))}
	for _, c := range connectors {
		if _, ok := m.connectors[c.Name()]; ok {
			continue
		}
		m.order = append(m.order, c.Name())
		m.connectors[c.Name()] = c
	}
	return m
}

// NewManagerFromConfig builds one connector per enabled exchange. An exchange that fails to
// build is logged and skipped so the others still start. Exchanges without their own pair
// list are seeded with defaultPairs.
func NewManagerFromConfig(exchanges map[string]config.ExchangeConfig, defaultPairs []string, cache *tickercache.Cache, events entity.EventPublisher, opts Options) *Manager {
	connectors := make([]Connector, 0, len(entity.SupportedExchanges))
	for _, name := range entity.SupportedExchanges {
		exchangeConfig, ok := exchanges[string(name)]
		if !ok || !exchangeConfig.Enabled {
			continue
		}

		logger := logrus.WithField("exchange", name)

		adapter, err := exchange.NewAdapter(name, exchangeConfig)
		if err != nil {
			logger.Errorf("failed to build adapter: %v", err)
			continue
		}

		c, err := New(adapter, cache, events, opts)
		if err != nil {
			logger.Errorf("failed to build connector: %v", err)
			continue
		}

		pairs := exchangeConfig.Pairs
		if len(pairs) == 0 {
			pairs = defaultPairs
		}
		if err := c.Subscribe(pairs); err != nil {
			logger.Errorf("invalid pairs: %v", err)
			continue
		}

		connectors = append(connectors, c)
	}

	return NewManager(connectors...)
}

func (m *Manager) Get(raw string) (Connector, error) {
	name, ok := entity.ParseExchangeName(raw)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, raw)
	}
	c, ok := m.connectors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not enabled", ErrUnknownExchange, raw)
	}
	return c, nil
}

func (m *Manager) Names() []entity.ExchangeName {
	return append([]entity.ExchangeName(nil), m.order...)
}

// ConnectAll connects every exchange concurrently. Failures are logged; each connector keeps
// retrying on its own.
func (m *Manager) ConnectAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range m.order {
		c := m.connectors[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Connect(ctx); err != nil {
				logrus.WithField("exchange", name).Warn(err)
			}
		}()
	}
	wg.Wait()
}

func (m *Manager) DisconnectAll() {
	for _, name := range m.order {
		m.connectors[name].Disconnect()
	}
}

func (m *Manager) List() []entity.ConnectorInfo {
	infos := make([]entity.ConnectorInfo, 0, len(m.order))
	for _, name := range m.order {
		c := m.connectors[name]
		infos = append(infos, entity.ConnectorInfo{
			ConnectionStatus: c.Status(),
			Subscriptions:    c.Subscriptions(),
		})
	}
	return infos
}
