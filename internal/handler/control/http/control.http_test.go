package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/service/arbitrage"
	"github.com/krobus00/arbitrage-service/internal/service/connector"
	"github.com/krobus00/arbitrage-service/internal/service/dispatcher"
	"github.com/krobus00/arbitrage-service/internal/service/tickercache"
)

const testAPIKey = "test-key"

type fakeConnector struct {
	name entity.ExchangeName

	mu         sync.Mutex
	state      entity.ConnectionState
	pairs      []string
	connectErr error
}

func (f *fakeConnector) Name() entity.ExchangeName { return f.name }

func (f *fakeConnector) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		f.state = entity.ConnectionError
		return f.connectErr
	}
	f.state = entity.ConnectionConnected
	return nil
}

func (f *fakeConnector) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = entity.ConnectionDisconnected
}

func (f *fakeConnector) Subscribe(pairs []string) error {
	normalized, err := connector.NormalizePairs(pairs)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs = append(f.pairs, normalized...)
	return nil
}

func (f *fakeConnector) Unsubscribe(pairs []string) error {
	normalized, err := connector.NormalizePairs(pairs)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.pairs[:0]
	for _, p := range f.pairs {
		remove := false
		for _, n := range normalized {
			if p == n {
				remove = true
			}
		}
		if !remove {
			kept = append(kept, p)
		}
	}
	f.pairs = kept
	return nil
}

func (f *fakeConnector) Status() entity.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := f.state
	if state == "" {
		state = entity.ConnectionDisconnected
	}
	return entity.ConnectionStatus{Exchange: f.name, Status: state}
}

func (f *fakeConnector) Subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.pairs...)
}

type fakeFinder struct {
	filter entity.OpportunityFilter
	err    error
}

func (f *fakeFinder) FindRecent(_ context.Context, filter entity.OpportunityFilter) ([]entity.ArbitrageOpportunity, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []entity.ArbitrageOpportunity{{ID: "opp-1", Pair: filter.Pair}}, nil
}

type testServer struct {
	router  *mux.Router
	binance *fakeConnector
	okx     *fakeConnector
	cache   *tickercache.Cache
	engine  *arbitrage.Engine
}

func newTestServer(t *testing.T, finder OpportunityFinder) *testServer {
	t.Helper()

	binance := &fakeConnector{name: entity.ExchangeBinance}
	okx := &fakeConnector{name: entity.ExchangeOKX, connectErr: errors.New("dial tcp: refused")}
	cache := tickercache.New()
	engine, err := arbitrage.NewEngine(cache, dispatcher.New(1), entity.DefaultExchangeIdentities(), entity.Settings{
		MinProfitPercent: 0.5,
		EnabledExchanges: []entity.ExchangeName{entity.ExchangeBinance, entity.ExchangeOKX},
		EnabledPairs:     []string{"BTC/USDT"},
		TradeAmount:      1000,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	keys := []config.APIKeyConfig{
		{Name: "ops", Key: testAPIKey, Active: true},
		{Name: "old", Key: "expired-key", Active: true, ExpiredAt: "2020-01-01"},
		{Name: "off", Key: "inactive-key", Active: false},
	}

	handler := NewControlHTTPHandler(connector.NewManager(binance, okx), engine, cache, finder, keys)

	router := mux.NewRouter()
	handler.Register(router)

	return &testServer{router: router, binance: binance, okx: okx, cache: cache, engine: engine}
}

func (s *testServer) do(method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t, nil)

	if rec := s.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before connect = %d", rec.Code)
	}

	_ = s.binance.Connect(context.Background())
	rec := s.do(http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz after connect = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["connected"] != float64(1) {
		t.Fatalf("unexpected readyz body %v", body)
	}

	if rec := s.do(http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
}

func TestConnectorLifecycleRequiresAPIKey(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		apiKey  string
		code    int
		errText string
	}{
		{name: "missing", apiKey: "", code: http.StatusUnauthorized, errText: errAPIKeyMissing.Error()},
		{name: "unknown", apiKey: "nope", code: http.StatusUnauthorized, errText: errAPIKeyInvalid.Error()},
		{name: "expired", apiKey: "expired-key", code: http.StatusUnauthorized, errText: errAPIKeyExpired.Error()},
		{name: "inactive", apiKey: "inactive-key", code: http.StatusUnauthorized, errText: errAPIKeyInactive.Error()},
		{name: "valid", apiKey: testAPIKey, code: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/v1/connectors/binance/connect", "", tt.apiKey)
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.code, rec.Body.String())
			}
			if tt.errText != "" {
				body := decode[map[string]string](t, rec)
				if body["error"] != tt.errText {
					t.Fatalf("error = %q, want %q", body["error"], tt.errText)
				}
			}
		})
	}

	if s.binance.Status().Status != entity.ConnectionConnected {
		t.Fatalf("binance status = %s", s.binance.Status().Status)
	}

	rec := s.do(http.MethodPost, "/v1/connectors/binance/disconnect", "", testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("disconnect = %d", rec.Code)
	}
	resp := decode[ConnectorResponse](t, rec)
	if resp.Status != entity.ConnectionDisconnected || resp.Exchange != entity.ExchangeBinance {
		t.Fatalf("unexpected disconnect response %+v", resp)
	}
}

func TestConnectFailureReportsStatus(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/v1/connectors/okx/connect", "", testAPIKey)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[ConnectorResponse](t, rec)
	if resp.Status != entity.ConnectionError || resp.Error == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestUnknownAndDisabledExchanges(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/v1/connectors/kraken", "/v1/connectors/mexc"} {
		if rec := s.do(http.MethodGet, path, "", ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s = %d", path, rec.Code)
		}
	}
	if rec := s.do(http.MethodGet, "/v1/connectors/BINANCE", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("exchange names are case-insensitive, got %d", rec.Code)
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/v1/connectors/binance/subscribe", `{"pairs":["btc/usdt","ETH/USDT"]}`, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("subscribe = %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ConnectorResponse](t, rec)
	if strings.Join(resp.Subscriptions, ",") != "BTC/USDT,ETH/USDT" {
		t.Fatalf("subscriptions = %v", resp.Subscriptions)
	}

	rec = s.do(http.MethodPost, "/v1/connectors/binance/unsubscribe", `{"pairs":["BTC/USDT"]}`, testAPIKey)
	resp = decode[ConnectorResponse](t, rec)
	if strings.Join(resp.Subscriptions, ",") != "ETH/USDT" {
		t.Fatalf("subscriptions after unsubscribe = %v", resp.Subscriptions)
	}

	for _, body := range []string{`{"pairs":["BTCUSDT"]}`, `{"pairs":[]}`, `not json`, `{"symbols":["BTC/USDT"]}`} {
		rec := s.do(http.MethodPost, "/v1/connectors/binance/subscribe", body, testAPIKey)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, rec.Code)
		}
	}
}

func TestListConnectors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/v1/connectors", "", "")
	infos := decode[[]entity.ConnectorInfo](t, rec)
	if len(infos) != 2 || infos[0].Exchange != entity.ExchangeBinance || infos[1].Exchange != entity.ExchangeOKX {
		t.Fatalf("unexpected connectors %+v", infos)
	}
}

func TestListTickersFilters(t *testing.T) {
	s := newTestServer(t, nil)
	now := time.Now().UTC()
	s.cache.Set(entity.Ticker{Exchange: entity.ExchangeBinance, Pair: "BTC/USDT", Bid: 100, Ask: 101, Timestamp: now})
	s.cache.Set(entity.Ticker{Exchange: entity.ExchangeOKX, Pair: "BTC/USDT", Bid: 102, Ask: 103, Timestamp: now})
	s.cache.Set(entity.Ticker{Exchange: entity.ExchangeOKX, Pair: "ETH/USDT", Bid: 10, Ask: 11, Timestamp: now})

	tests := []struct {
		query string
		want  int
	}{
		{query: "", want: 3},
		{query: "?exchange=okx", want: 2},
		{query: "?pair=btc/usdt", want: 2},
		{query: "?exchange=okx&pair=ETH/USDT", want: 1},
	}
	for _, tt := range tests {
		rec := s.do(http.MethodGet, "/v1/tickers"+tt.query, "", "")
		tickers := decode[[]entity.Ticker](t, rec)
		if len(tickers) != tt.want {
			t.Fatalf("query %q: got %d tickers, want %d", tt.query, len(tickers), tt.want)
		}
	}

	if rec := s.do(http.MethodGet, "/v1/tickers?exchange=kraken", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown exchange filter = %d", rec.Code)
	}
}

func TestSettingsPatch(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPatch, "/v1/settings", `{"minProfitPercent":1.25}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("patch without key = %d", rec.Code)
	}

	rec = s.do(http.MethodPatch, "/v1/settings", `{"minProfitPercent":1.25,"enabledPairs":["eth/usdt"]}`, testAPIKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d: %s", rec.Code, rec.Body.String())
	}
	settings := decode[entity.Settings](t, rec)
	if settings.MinProfitPercent != 1.25 || settings.TradeAmount != 1000 || len(settings.EnabledPairs) != 1 || settings.EnabledPairs[0] != "ETH/USDT" {
		t.Fatalf("unexpected settings %+v", settings)
	}
	if s.engine.Settings().MinProfitPercent != 1.25 {
		t.Fatal("engine settings not updated")
	}

	for _, body := range []string{`{"tradeAmount":-1}`, `{"enabledExchanges":["kraken"]}`, `{"unknown":true}`} {
		rec := s.do(http.MethodPatch, "/v1/settings", body, testAPIKey)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, rec.Code)
		}
	}

	rec = s.do(http.MethodGet, "/v1/settings", "", "")
	if decode[entity.Settings](t, rec).MinProfitPercent != 1.25 {
		t.Fatal("rejected patch must not change settings")
	}
}

func TestListOpportunities(t *testing.T) {
	s := newTestServer(t, nil)
	if rec := s.do(http.MethodGet, "/v1/opportunities", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("without journal = %d", rec.Code)
	}

	finder := &fakeFinder{}
	s = newTestServer(t, finder)
	rec := s.do(http.MethodGet, "/v1/opportunities?pair=btc/usdt&exchange=okx&limit=5&since=2024-05-01T00:00:00Z", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	want := entity.OpportunityFilter{
		Pair:     "BTC/USDT",
		Exchange: entity.ExchangeOKX,
		Since:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Limit:    5,
	}
	if finder.filter.Pair != want.Pair || finder.filter.Exchange != want.Exchange || finder.filter.Limit != want.Limit || !finder.filter.Since.Equal(want.Since) {
		t.Fatalf("filter = %+v, want %+v", finder.filter, want)
	}

	for _, query := range []string{"?limit=abc", "?since=yesterday", "?exchange=kraken"} {
		if rec := s.do(http.MethodGet, "/v1/opportunities"+query, "", ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("query %s = %d", query, rec.Code)
		}
	}

	finder.err = errors.New("db down")
	if rec := s.do(http.MethodGet, "/v1/opportunities", "", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("finder error = %d", rec.Code)
	}
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    time.Time
		has     bool
		wantErr bool
	}{
		{name: "nil", value: nil},
		{name: "empty", value: " "},
		{name: "rfc3339", value: "2030-01-02T03:04:05Z", want: time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC), has: true},
		{name: "date", value: "2030-01-02", want: time.Date(2030, 1, 3, 0, 0, 0, 0, time.UTC), has: true},
		{name: "garbage", value: "soon", wantErr: true},
		{name: "number", value: 42, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, has, err := parseExpiry(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if has != tt.has || !got.Equal(tt.want) {
				t.Fatalf("parseExpiry() = %s, %v, want %s, %v", got, has, tt.want, tt.has)
			}
		})
	}
}
