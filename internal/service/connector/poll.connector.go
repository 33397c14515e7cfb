package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/service/exchange"
	"github.com/krobus00/arbitrage-service/internal/service/tickercache"
)

// PollConnector drives a REST snapshot adapter on a fixed interval. It reports the same
// status transitions as the stream connector: a failed poll is an error state and the next
// successful one is connected again.
type PollConnector struct {
	base
	adapter exchange.PollAdapter

	// guarded by base.mu
	cancel context.CancelFunc
}

func NewPollConnector(adapter exchange.PollAdapter, cache *tickercache.Cache, events entity.EventPublisher, opts Options) *PollConnector {
	c := &PollConnector{adapter: adapter}
	c.base.init(adapter.Name(), cache, events, opts)
	return c
}

// Connect runs the first poll synchronously and returns its error. Polling continues in the
// background either way until Disconnect.
func (c *PollConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return nil
	}
	c.generation++
	generation := c.generation
	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setStatusLocked(entity.ConnectionConnecting, nil)
	c.mu.Unlock()

	c.logger.Infof("polling %s every %s", c.name, c.opts.PollInterval)

	firstCtx, firstCancel := context.WithCancel(pollCtx)
	stop := context.AfterFunc(ctx, firstCancel)
	err := c.poll(firstCtx, generation)
	stop()
	firstCancel()

	go c.run(pollCtx, generation)

	if err != nil {
		return fmt.Errorf("%s poll failed: %w", c.name, err)
	}
	return nil
}

func (c *PollConnector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if c.status.Status != entity.ConnectionDisconnected {
		c.setStatusLocked(entity.ConnectionDisconnected, nil)
	}
}

func (c *PollConnector) Subscribe(pairs []string) error {
	normalized, err := NormalizePairs(pairs)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(normalized)
	return nil
}

func (c *PollConnector) Unsubscribe(pairs []string) error {
	normalized, err := NormalizePairs(pairs)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(normalized)
	return nil
}

func (c *PollConnector) run(ctx context.Context, generation uint64) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.poll(ctx, generation)
		}
	}
}

func (c *PollConnector) poll(ctx context.Context, generation uint64) error {
	tickers, err := c.adapter.FetchTickers(ctx)

	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return nil
	}

	if err != nil {
		c.logger.Warnf("%s poll failed: %v", c.name, err)
		if c.status.Status != entity.ConnectionError || c.status.ErrorMessage.String != err.Error() {
			c.setStatusLocked(entity.ConnectionError, err)
		}
		c.mu.Unlock()
		return err
	}

	if c.status.Status != entity.ConnectionConnected {
		c.setStatusLocked(entity.ConnectionConnected, nil)
	}
	c.mu.Unlock()

	c.store(tickers)
	return nil
}
