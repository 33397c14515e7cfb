package sink

import (
	"context"
	"errors"
	"time"

	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/instrumentation"
	"github.com/krobus00/arbitrage-service/internal/util"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const defaultStreamMaxAge = 24 * time.Hour

// JetstreamForwarder republishes dispatcher events on the arbitrage JetStream subjects.
type JetstreamForwarder struct {
	js            nats.JetStreamContext
	maxAge        time.Duration
	publishTicker bool
}

func NewJetstreamForwarder(js nats.JetStreamContext, cfg config.NatsJetstreamConfig) *JetstreamForwarder {
	maxAge := cfg.StreamMaxAge
	if maxAge <= 0 {
		maxAge = defaultStreamMaxAge
	}

	return &JetstreamForwarder{
		js:            js,
		maxAge:        maxAge,
		publishTicker: cfg.PublishTicker,
	}
}

func (f *JetstreamForwarder) JetstreamEventInit(ctx context.Context) error {
	streamConfig := &nats.StreamConfig{
		Name:      constant.ArbitrageStreamName,
		Subjects:  []string{constant.ArbitrageStreamSubjectAll},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    f.maxAge,
		Replicas:  1,
	}

	stream, err := f.js.StreamInfo(constant.ArbitrageStreamName, nats.Context(ctx))
	if err != nil && !errors.Is(err, nats.ErrStreamNotFound) {
		logrus.Error(err)
		return err
	}

	if stream == nil {
		logrus.Infof("creating stream: %s", constant.ArbitrageStreamName)
		_, err = f.js.AddStream(streamConfig, nats.Context(ctx))
		return err
	}

	logrus.Infof("updating stream: %s", constant.ArbitrageStreamName)
	_, err = f.js.UpdateStream(streamConfig, nats.Context(ctx))
	if err != nil {
		logrus.Error(err)
		return err
	}

	logrus.Infof("stream %s is ready", constant.ArbitrageStreamName)

	return nil
}

// Subject maps an event to its JetStream subject. Ticker events are only forwarded when enabled.
func (f *JetstreamForwarder) Subject(event entity.Event) (string, bool) {
	switch event.Kind {
	case entity.EventOpportunity:
		if event.Opportunity == nil {
			return "", false
		}
		return constant.OpportunityStreamSubject, true
	case entity.EventAnalysis:
		if event.Analysis == nil {
			return "", false
		}
		return constant.AnalysisStreamSubject, true
	case entity.EventStatus:
		if event.Status == nil {
			return "", false
		}
		return constant.GetStatusStreamSubject(string(event.Status.Exchange)), true
	case entity.EventTicker:
		if !f.publishTicker || event.Ticker == nil {
			return "", false
		}
		return constant.GetTickerStreamSubject(string(event.Ticker.Exchange)), true
	default:
		return "", false
	}
}

func (f *JetstreamForwarder) Handle(_ context.Context, event entity.Event) {
	subject, ok := f.Subject(event)
	if !ok {
		return
	}

	var payload any = event
	var opts []nats.PubOpt
	if event.Kind == entity.EventOpportunity {
		payload = entity.OpportunityEvent{Data: *event.Opportunity}
		opts = append(opts, nats.MsgId(event.Opportunity.ID))
	}

	if err := util.PublishEvent(f.js, subject, payload, opts...); err != nil {
		instrumentation.SinkErrors.WithLabelValues("jetstream", string(event.Kind)).Inc()
		logrus.WithField("subject", subject).Errorf("failed to publish event: %v", err)
	}
}
