package connector

import (
	"bytes"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/krobus00/arbitrage-service/internal/service/exchange"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func deflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeFrame(t *testing.T) {
	plain := []byte(`{"ch":"market.btcusdt.detail","ts":1700000000000,"tick":{"open":95,"close":100,"amount":12.5}}`)

	tests := []struct {
		name        string
		messageType int
		data        []byte
		ok          bool
	}{
		{name: "text", messageType: websocket.TextMessage, data: plain, ok: true},
		{name: "gzip binary", messageType: websocket.BinaryMessage, data: gzipBytes(t, plain), ok: true},
		{name: "gzip in text frame", messageType: websocket.TextMessage, data: gzipBytes(t, plain), ok: true},
		{name: "raw deflate", messageType: websocket.BinaryMessage, data: deflateBytes(t, plain), ok: true},
		{name: "empty", messageType: websocket.TextMessage, data: nil, ok: false},
		{name: "truncated gzip", messageType: websocket.BinaryMessage, data: []byte{0x1f, 0x8b, 0x08}, ok: false},
		{name: "invalid utf8", messageType: websocket.TextMessage, data: []byte{0xff, 0xfe, 0xfd}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeFrame(tt.messageType, tt.data)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !bytes.Equal(got, plain) {
				t.Fatalf("payload = %s", got)
			}
		})
	}
}

func TestGzipAndPlainFramesDecodeToSameTickers(t *testing.T) {
	plain := []byte(`{"ch":"market.ethusdt.detail","ts":1700000000000,"tick":{"open":1900,"close":2000,"amount":7}}`)
	adapter := exchange.NewHTXExchange("")

	fromText, ok := decodeFrame(websocket.TextMessage, plain)
	if !ok {
		t.Fatal("plain frame rejected")
	}
	fromGzip, ok := decodeFrame(websocket.BinaryMessage, gzipBytes(t, plain))
	if !ok {
		t.Fatal("gzip frame rejected")
	}

	a := adapter.HandleMessage(nil, fromText)
	b := adapter.HandleMessage(nil, fromGzip)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one ticker each, got %d and %d", len(a), len(b))
	}
	if a[0] != b[0] {
		t.Fatalf("tickers differ: %+v vs %+v", a[0], b[0])
	}
}
