package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

type fakeJetStream struct {
	nats.JetStreamContext

	subject string
	data    []byte
	opts    int
	err     error
}

func (f *fakeJetStream) Publish(subject string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	f.subject = subject
	f.data = data
	f.opts = len(opts)
	return &nats.PubAck{}, f.err
}

func TestProcessWithTimeout(t *testing.T) {
	msg := &nats.Msg{Subject: "arbitrage.opportunity"}

	err := ProcessWithTimeout(time.Second, msg, func(context.Context, *nats.Msg) error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	wantErr := errors.New("boom")
	err = ProcessWithTimeout(time.Second, msg, func(context.Context, *nats.Msg) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	err = ProcessWithTimeout(10*time.Millisecond, msg, func(ctx context.Context, _ *nats.Msg) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestPublishEvent(t *testing.T) {
	js := &fakeJetStream{}
	if err := PublishEvent(js, "arbitrage.analysis", map[string]string{"pair": "BTC/USDT"}, nats.MsgId("a")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if js.subject != "arbitrage.analysis" || string(js.data) != `{"pair":"BTC/USDT"}` || js.opts != 1 {
		t.Fatalf("unexpected publish %q %q %d", js.subject, js.data, js.opts)
	}

	js.err = errors.New("no responders")
	if err := PublishEvent(js, "arbitrage.analysis", 1); !errors.Is(err, js.err) {
		t.Fatalf("err = %v", err)
	}

	if err := PublishEvent(js, "arbitrage.analysis", func() {}); err == nil {
		t.Fatal("expected marshal error")
	}
}
