package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/krobus00/arbitrage-service/internal/config"
	"github.com/krobus00/arbitrage-service/internal/entity"
	"github.com/krobus00/arbitrage-service/internal/service/arbitrage"
	"github.com/krobus00/arbitrage-service/internal/service/connector"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 16

var errJournalDisabled = errors.New("opportunity journal is not configured")

type ConnectorRegistry interface {
	Get(raw string) (connector.Connector, error)
	List() []entity.ConnectorInfo
}

type SettingsStore interface {
	Settings() entity.Settings
	UpdateSettings(patch entity.SettingsPatch) (entity.Settings, error)
}

type TickerSnapshotter interface {
	Snapshot() []entity.Ticker
}

type OpportunityFinder interface {
	FindRecent(ctx context.Context, filter entity.OpportunityFilter) ([]entity.ArbitrageOpportunity, error)
}

type PairsRequest struct {
	Pairs []string `json:"pairs"`
}

type ConnectorResponse struct {
	entity.ConnectorInfo
	Error string `json:"error,omitempty"`
}

type Handler struct {
	connectors    ConnectorRegistry
	settings      SettingsStore
	tickers       TickerSnapshotter
	opportunities OpportunityFinder
	apiKeys       *apiKeyValidator
}

// NewControlHTTPHandler builds the control surface. opportunities may be nil when no journal
// database is configured.
func NewControlHTTPHandler(connectors ConnectorRegistry, settings SettingsStore, tickers TickerSnapshotter, opportunities OpportunityFinder, apiKeys []config.APIKeyConfig) *Handler {
	return &Handler{
		connectors:    connectors,
		settings:      settings,
		tickers:       tickers,
		opportunities: opportunities,
		apiKeys:       newAPIKeyValidator(apiKeys),
	}
}

func (h *Handler) Register(router *mux.Router) {
	protected := h.apiKeys.middleware

	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	router.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/connectors", h.ListConnectors).Methods(http.MethodGet)
	v1.HandleFunc("/connectors/{exchange}", h.GetConnector).Methods(http.MethodGet)
	v1.Handle("/connectors/{exchange}/connect", protected(http.HandlerFunc(h.Connect))).Methods(http.MethodPost)
	v1.Handle("/connectors/{exchange}/disconnect", protected(http.HandlerFunc(h.Disconnect))).Methods(http.MethodPost)
	v1.Handle("/connectors/{exchange}/subscribe", protected(http.HandlerFunc(h.Subscribe))).Methods(http.MethodPost)
	v1.Handle("/connectors/{exchange}/unsubscribe", protected(http.HandlerFunc(h.Unsubscribe))).Methods(http.MethodPost)
	v1.HandleFunc("/tickers", h.ListTickers).Methods(http.MethodGet)
	v1.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	v1.Handle("/settings", protected(http.HandlerFunc(h.UpdateSettings))).Methods(http.MethodPatch)
	v1.HandleFunc("/opportunities", h.ListOpportunities).Methods(http.MethodGet)
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Readyz reports ready once any connector is streaming data.
func (h *Handler) Readyz(w http.ResponseWriter, _ *http.Request) {
	connected := 0
	for _, info := range h.connectors.List() {
		if info.Status == entity.ConnectionConnected {
			connected++
		}
	}

	code := http.StatusOK
	status := "ready"
	if connected == 0 {
		code = http.StatusServiceUnavailable
		status = "not ready"
	}

	writeJSON(w, code, map[string]any{"status": status, "connected": connected})
}

func (h *Handler) ListConnectors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.connectors.List())
}

func (h *Handler) GetConnector(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, connectorInfo(c))
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	// the connection outlives the request
	err := c.Connect(context.WithoutCancel(r.Context()))
	if err != nil {
		logrus.WithField("exchange", c.Name()).Warnf("connect requested via control api failed: %v", err)
		writeJSON(w, http.StatusBadGateway, ConnectorResponse{ConnectorInfo: connectorInfo(c), Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ConnectorResponse{ConnectorInfo: connectorInfo(c)})
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	c.Disconnect()
	writeJSON(w, http.StatusOK, ConnectorResponse{ConnectorInfo: connectorInfo(c)})
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscriptions(w, r, connector.Connector.Subscribe)
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscriptions(w, r, connector.Connector.Unsubscribe)
}

func (h *Handler) changeSubscriptions(w http.ResponseWriter, r *http.Request, apply func(connector.Connector, []string) error) {
	c, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req PairsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Pairs) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("pairs is required"))
		return
	}

	if err := apply(c, req.Pairs); err != nil {
		if errors.Is(err, connector.ErrInvalidPair) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		// the subscription set is already updated; only the wire command failed
		writeJSON(w, http.StatusBadGateway, ConnectorResponse{ConnectorInfo: connectorInfo(c), Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ConnectorResponse{ConnectorInfo: connectorInfo(c)})
}

func (h *Handler) ListTickers(w http.ResponseWriter, r *http.Request) {
	exchangeFilter := strings.TrimSpace(r.URL.Query().Get("exchange"))
	pairFilter := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("pair")))

	var exchangeName entity.ExchangeName
	if exchangeFilter != "" {
		name, ok := entity.ParseExchangeName(exchangeFilter)
		if !ok {
			writeError(w, http.StatusBadRequest, connector.ErrUnknownExchange)
			return
		}
		exchangeName = name
	}

	snapshot := h.tickers.Snapshot()
	tickers := make([]entity.Ticker, 0, len(snapshot))
	for _, t := range snapshot {
		if exchangeName != "" && t.Exchange != exchangeName {
			continue
		}
		if pairFilter != "" && t.Pair != pairFilter {
			continue
		}
		tickers = append(tickers, t)
	}

	writeJSON(w, http.StatusOK, tickers)
}

func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Settings())
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch entity.SettingsPatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	settings, err := h.settings.UpdateSettings(patch)
	if err != nil {
		if errors.Is(err, arbitrage.ErrInvalidSettings) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	if h.opportunities == nil {
		writeError(w, http.StatusNotFound, errJournalDisabled)
		return
	}

	filter, err := parseOpportunityFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	opportunities, err := h.opportunities.FindRecent(r.Context(), filter)
	if err != nil {
		logrus.Errorf("failed to list opportunities: %v", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}

	writeJSON(w, http.StatusOK, opportunities)
}

func parseOpportunityFilter(r *http.Request) (entity.OpportunityFilter, error) {
	query := r.URL.Query()
	filter := entity.OpportunityFilter{
		Pair: strings.ToUpper(strings.TrimSpace(query.Get("pair"))),
	}

	if raw := strings.TrimSpace(query.Get("exchange")); raw != "" {
		name, ok := entity.ParseExchangeName(raw)
		if !ok {
			return filter, connector.ErrUnknownExchange
		}
		filter.Exchange = name
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return filter, errors.New("invalid limit")
		}
		filter.Limit = limit
	}

	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, errors.New("invalid since, expected RFC3339")
		}
		filter.Since = since
	}

	return filter, nil
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (connector.Connector, bool) {
	c, err := h.connectors.Get(mux.Vars(r)["exchange"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return c, true
}

func connectorInfo(c connector.Connector) entity.ConnectorInfo {
	return entity.ConnectorInfo{
		ConnectionStatus: c.Status(),
		Subscriptions:    c.Subscriptions(),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
