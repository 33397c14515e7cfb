package recorder

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/instrumentation"
	"github.com/krobus00/arbitrage-service/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const (
	defaultHandlerTimeout = 5 * time.Second
	defaultMaxRetries     = 3

	timeoutHandlerKey = "record_opportunity"
)

type opportunityStore interface {
	Create(ctx context.Context, data *entity.ArbitrageOpportunity) (bool, error)
}

// Recorder journals every opportunity published on the JetStream opportunity subject.
type Recorder struct {
	js         nats.JetStreamContext
	store      opportunityStore
	timeout    time.Duration
	maxRetries int

	subscription *nats.Subscription
}

func NewRecorder(js nats.JetStreamContext, store opportunityStore, cfg config.NatsJetstreamConfig) *Recorder {
	timeout := cfg.TimeoutHandler[timeoutHandlerKey]
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Recorder{
		js:         js,
		store:      store,
		timeout:    timeout,
		maxRetries: maxRetries,
	}
}

func (r *Recorder) JetstreamEventSubscribe(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	subscription, err := r.js.QueueSubscribe(
		constant.OpportunityStreamSubject,
		constant.OpportunityRecorderQueueGroup,
		func(msg *nats.Msg) {
			err := util.ProcessWithTimeout(r.timeout, msg, r.HandleMessage)
			if err != nil {
				logrus.Errorf("error processing message: %v", err)
				return
			}

			err = msg.Ack()
			if err != nil {
				logrus.Errorf("failed to acknowledge message: %v", err)
				return
			}
		},
		nats.ManualAck(),
		nats.Durable(constant.OpportunityRecorderDurable),
		nats.DeliverAll(),
	)
	if err != nil {
		return err
	}

	r.subscription = subscription
	logrus.WithField("subject", constant.OpportunityStreamSubject).Info("opportunity recorder subscribed")

	return nil
}

func (r *Recorder) Stop() error {
	if r.subscription == nil {
		return nil
	}
	return r.subscription.Drain()
}

// HandleMessage stores one opportunity. Failed writes are republished with an increased
// retry count until maxRetries, after which the opportunity is dropped. A non-nil error
// leaves the message unacknowledged so JetStream redelivers it.
func (r *Recorder) HandleMessage(ctx context.Context, msg *nats.Msg) error {
	logger := logrus.WithField("subject", msg.Subject)

	var event entity.OpportunityEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logger.Errorf("dropping undecodable opportunity: %v", err)
		return nil
	}
	if event.Data.ID == "" {
		logger.Error("dropping opportunity without id")
		return nil
	}

	logger = logger.WithFields(logrus.Fields{
		"id":    event.Data.ID,
		"pair":  event.Data.Pair,
		"retry": event.RetryCount,
	})

	inserted, err := r.store.Create(ctx, &event.Data)
	if err == nil {
		if inserted {
			instrumentation.OpportunitiesRecorded.Inc()
			logger.Debug("opportunity recorded")
		} else {
			logger.Debug("opportunity already recorded")
		}
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	logger.Errorf("failed to record opportunity: %v", err)

	event.RetryCount++
	if event.RetryCount >= r.maxRetries {
		logger.Error("giving up on opportunity after max retries")
		return nil
	}

	if err := util.PublishEvent(r.js, constant.OpportunityStreamSubject, event); err != nil {
		return err
	}

	return nil
}
