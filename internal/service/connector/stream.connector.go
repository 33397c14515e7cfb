package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/service/exchange"
	"github.com/krobus00/arbitrage-service/internal/service/tickercache"
	"github.com/sirupsen/logrus"
)

var errConnectionClosed = errors.New("connection closed")

// StreamConnector keeps one websocket session per exchange alive. The subscription set
// outlives sessions and is replayed in full after every successful dial.
type StreamConnector struct {
	base
	adapter exchange.StreamAdapter

	// guarded by base.mu
	session        *wsSession
	reconnectTimer *time.Timer
}

func NewStreamConnector(adapter exchange.StreamAdapter, cache *tickercache.Cache, events entity.EventPublisher, opts Options) *StreamConnector {
	c := &StreamConnector{adapter: adapter}
	c.base.init(adapter.Name(), cache, events, opts)
	return c
}

func (c *StreamConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status.Status == entity.ConnectionConnecting || c.status.Status == entity.ConnectionConnected {
		c.mu.Unlock()
		return nil
	}
	c.stopReconnectLocked()
	c.generation++
	generation := c.generation
	c.setStatusLocked(entity.ConnectionConnecting, nil)
	c.mu.Unlock()

	endpoint := c.adapter.Endpoint()
	c.logger.Infof("connecting to %s", endpoint)

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()
	conn, _, err := c.opts.Dialer.DialContext(dialCtx, endpoint, nil)

	c.mu.Lock()
	if generation != c.generation {
		// disconnected while dialing
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}

	if err != nil {
		c.logger.Errorf("%s ws dial failed: %v", c.name, err)
		c.failLocked(err)
		c.mu.Unlock()
		return fmt.Errorf("%s dial failed: %w", c.name, err)
	}

	session := newWSSession(conn, c.opts.WriteTimeout)
	c.session = session
	c.setStatusLocked(entity.ConnectionConnected, nil)
	pairs := c.subscriptionsLocked()
	c.mu.Unlock()

	// pairs added after the snapshot are sent by Subscribe itself
	if len(pairs) > 0 {
		c.logger.WithField("pairs", len(pairs)).Info("replaying subscriptions")
		if err := c.adapter.SendSubscribe(session, pairs); err != nil {
			c.mu.Lock()
			defer c.mu.Unlock()
			if generation != c.generation {
				return nil
			}
			c.failLocked(err)
			return fmt.Errorf("%s subscribe failed: %w", c.name, err)
		}
	}

	go c.readLoop(generation, session)
	go c.heartbeat(generation, session)

	return nil
}

func (c *StreamConnector) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.stopReconnectLocked()
	c.closeSessionLocked()

	if c.status.Status != entity.ConnectionDisconnected {
		c.setStatusLocked(entity.ConnectionDisconnected, nil)
	}
}

func (c *StreamConnector) Subscribe(pairs []string) error {
	normalized, err := NormalizePairs(pairs)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	added := c.addLocked(normalized)
	if len(added) == 0 || c.session == nil || c.status.Status != entity.ConnectionConnected {
		return nil
	}

	if err := c.adapter.SendSubscribe(c.session, added); err != nil {
		return fmt.Errorf("%s subscribe failed: %w", c.name, err)
	}
	return nil
}

func (c *StreamConnector) Unsubscribe(pairs []string) error {
	normalized, err := NormalizePairs(pairs)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.removeLocked(normalized)
	if len(removed) == 0 || c.session == nil || c.status.Status != entity.ConnectionConnected {
		return nil
	}

	if err := c.adapter.SendUnsubscribe(c.session, removed); err != nil {
		return fmt.Errorf("%s unsubscribe failed: %w", c.name, err)
	}
	return nil
}

func (c *StreamConnector) readLoop(generation uint64, session *wsSession) {
	for {
		messageType, data, err := session.conn.ReadMessage()
		if err != nil {
			c.handleSessionError(generation, err)
			return
		}

		payload, ok := decodeFrame(messageType, data)
		if !ok {
			c.logger.Debug("dropping undecodable frame")
			continue
		}

		c.store(c.adapter.HandleMessage(session, payload))
	}
}

func (c *StreamConnector) heartbeat(generation uint64, session *wsSession) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-session.done:
			return
		case <-ticker.C:
			if err := c.adapter.SendPing(session); err != nil {
				c.handleSessionError(generation, err)
				return
			}
		}
	}
}

func (c *StreamConnector) handleSessionError(generation uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	c.logger.Errorf("%s ws session failed: %v", c.name, err)
	c.failLocked(err)
}

// failLocked tears down the current session, reports the error and schedules a reconnect.
func (c *StreamConnector) failLocked(err error) {
	c.generation++
	c.closeSessionLocked()
	c.setStatusLocked(entity.ConnectionError, err)
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the single reconnect timer. A pending timer is never duplicated.
func (c *StreamConnector) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}

	generation := c.generation
	delay := c.opts.ReconnectDelay
	c.logger.WithFields(logrus.Fields{"retry_in": delay.String()}).Warn("scheduling reconnect")

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if generation != c.generation {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		c.mu.Unlock()

		_ = c.Connect(context.Background())
	})
}

func (c *StreamConnector) stopReconnectLocked() {
	if c.reconnectTimer == nil {
		return
	}
	c.reconnectTimer.Stop()
	c.reconnectTimer = nil
}

func (c *StreamConnector) closeSessionLocked() {
	if c.session == nil {
		return
	}
	c.session.close()
	c.session = nil
}

// wsSession is the FrameWriter handed to adapters. gorilla connections allow one concurrent
// writer, so data frames go through mu; control frames may be written concurrently.
type wsSession struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newWSSession(conn *websocket.Conn, writeTimeout time.Duration) *wsSession {
	return &wsSession{
		conn:         conn,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

func (s *wsSession) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.WriteText(payload)
}

func (s *wsSession) WriteText(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed() {
		return errConnectionClosed
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *wsSession) WritePing() error {
	if s.closed() {
		return errConnectionClosed
	}
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

func (s *wsSession) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}
