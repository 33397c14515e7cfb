package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/constant"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/nats-io/nats.go"
)

type fakeStore struct {
	mu      sync.Mutex
	created []entity.ArbitrageOpportunity
	seen    map[string]struct{}
	err     error
}

func (s *fakeStore) Create(_ context.Context, data *entity.ArbitrageOpportunity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false, s.err
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[data.ID]; ok {
		return false, nil
	}
	s.seen[data.ID] = struct{}{}
	s.created = append(s.created, *data)
	return true, nil
}

type fakeJetStream struct {
	nats.JetStreamContext

	mu        sync.Mutex
	published []entity.OpportunityEvent
	subjects  []string
	err       error
}

func (f *fakeJetStream) Publish(subject string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	var event entity.OpportunityEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	f.published = append(f.published, event)
	f.subjects = append(f.subjects, subject)
	return &nats.PubAck{}, nil
}

func opportunityMessage(t *testing.T, retry int, id string) *nats.Msg {
	t.Helper()

	data, err := json.Marshal(entity.OpportunityEvent{
		RetryCount: retry,
		Data: entity.ArbitrageOpportunity{
			ID:            id,
			Pair:          "ETH/USDT",
			BuyExchange:   entity.ExchangeKucoin,
			SellExchange:  entity.ExchangeGate,
			ProfitPercent: 0.9,
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return &nats.Msg{Subject: constant.OpportunityStreamSubject, Data: data}
}

func TestRecorderStoresOnce(t *testing.T) {
	store := &fakeStore{}
	recorder := NewRecorder(&fakeJetStream{}, store, config.NatsJetstreamConfig{})

	for range 2 {
		if err := recorder.HandleMessage(context.Background(), opportunityMessage(t, 0, "opp-1")); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}

	if len(store.created) != 1 {
		t.Fatalf("expected one stored row, got %d", len(store.created))
	}
	if store.created[0].SellExchange != entity.ExchangeGate {
		t.Fatalf("unexpected row %+v", store.created[0])
	}
}

func TestRecorderRetriesByRepublishing(t *testing.T) {
	js := &fakeJetStream{}
	store := &fakeStore{err: errors.New("db down")}
	recorder := NewRecorder(js, store, config.NatsJetstreamConfig{MaxRetries: 3})

	if err := recorder.HandleMessage(context.Background(), opportunityMessage(t, 0, "opp-1")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(js.published) != 1 || js.published[0].RetryCount != 1 {
		t.Fatalf("expected one republish with retry 1, got %+v", js.published)
	}
	if js.subjects[0] != constant.OpportunityStreamSubject {
		t.Fatalf("unexpected subject %q", js.subjects[0])
	}

	if err := recorder.HandleMessage(context.Background(), opportunityMessage(t, 2, "opp-1")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(js.published) != 1 {
		t.Fatalf("expected no republish after max retries, got %d", len(js.published))
	}
}

func TestRecorderRepublishFailureLeavesMessageUnacked(t *testing.T) {
	js := &fakeJetStream{err: errors.New("nats down")}
	recorder := NewRecorder(js, &fakeStore{err: errors.New("db down")}, config.NatsJetstreamConfig{})

	if err := recorder.HandleMessage(context.Background(), opportunityMessage(t, 0, "opp-1")); err == nil {
		t.Fatal("expected error so the message is redelivered")
	}
}

func TestRecorderDropsPoisonMessages(t *testing.T) {
	store := &fakeStore{}
	recorder := NewRecorder(&fakeJetStream{}, store, config.NatsJetstreamConfig{})

	for _, msg := range []*nats.Msg{
		{Subject: constant.OpportunityStreamSubject, Data: []byte("{not json")},
		opportunityMessage(t, 0, ""),
	} {
		if err := recorder.HandleMessage(context.Background(), msg); err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
	}
	if len(store.created) != 0 {
		t.Fatal("poison messages must not be stored")
	}
}
