package dispatcher

import (
	"context"
	"sync"

	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/instrumentation"
	"github.com/sirupsen/logrus"
)

const DefaultBuffer = 1024

type HandlerFunc func(ctx context.Context, event entity.Event)

// Dispatcher fans events out to subscribers. Each subscriber owns a buffered channel;
// Publish never blocks and drops the event for any subscriber whose buffer is full.
type Dispatcher struct {
	buffer int

	mu          sync.RWMutex
	subscribers []*subscription
	closed      bool
}

type subscription struct {
	name   string
	kinds  map[entity.EventKind]struct{}
	events chan entity.Event
}

func New(buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Dispatcher{buffer: buffer}
}

// Subscribe registers a named subscriber for the given kinds, or every kind when none are
// given. The returned channel is closed by Close.
func (d *Dispatcher) Subscribe(name string, kinds ...entity.EventKind) <-chan entity.Event {
	sub := &subscription{
		name:   name,
		events: make(chan entity.Event, d.buffer),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[entity.EventKind]struct{}, len(kinds))
		for _, kind := range kinds {
			sub.kinds[kind] = struct{}{}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		close(sub.events)
		return sub.events
	}
	d.subscribers = append(d.subscribers, sub)
	return sub.events
}

func (d *Dispatcher) Publish(event entity.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return
	}

	for _, sub := range d.subscribers {
		if sub.kinds != nil {
			if _, ok := sub.kinds[event.Kind]; !ok {
				continue
			}
		}

		select {
		case sub.events <- event:
		default:
			instrumentation.EventsDropped.WithLabelValues(sub.name, string(event.Kind)).Inc()
		}
	}
}

// Close stops delivery and closes every subscriber channel. Publish after Close is a no-op.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	for _, sub := range d.subscribers {
		close(sub.events)
	}
}

// Consume runs handler for every event on ch until ch is closed or ctx is done. A panicking
// handler is logged and does not stop the loop.
func Consume(ctx context.Context, name string, ch <-chan entity.Event, handler HandlerFunc) {
	logger := logrus.WithField("subscriber", name)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Errorf("event handler panic: %v", r)
					}
				}()
				handler(ctx, event)
			}()
		}
	}
}
