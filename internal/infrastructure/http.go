package infrastructure

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/krobus00/arbitrage-service/internal/instrumentation"
	"github.com/sirupsen/logrus"
)

const (
	defaultHTTPPort       = "8080"
	httpReadHeaderTimeout = 2 * time.Second
	httpReadTimeout       = 5 * time.Second
	// POST /connect waits for the exchange dial
	httpWriteTimeout = 15 * time.Second
	httpIdleTimeout  = 60 * time.Second
)

// quietRoutes are scraped or polled constantly and only logged at debug level.
var quietRoutes = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/metrics": {},
}

type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer serves the control router on port. HTTP_PORT overrides the configured value.
func NewHTTPServer(port string, router *mux.Router) *HTTPServer {
	router.Use(httpRecoveryMiddleware, httpRequestIDMiddleware, httpAccessLogMiddleware)

	return &HTTPServer{
		server: &http.Server{
			Addr:              resolveHTTPAddr(port),
			Handler:           router,
			ReadHeaderTimeout: httpReadHeaderTimeout,
			ReadTimeout:       httpReadTimeout,
			WriteTimeout:      httpWriteTimeout,
			IdleTimeout:       httpIdleTimeout,
		},
	}
}

func (h *HTTPServer) Start() error {
	logrus.WithField("addr", h.server.Addr).Info("control api listening")
	err := h.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r)
	})
}

func httpRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logrus.WithFields(logrus.Fields{
					"method": r.Method,
					"route":  routeTemplate(r),
					"panic":  recovered,
				}).Error("panic recovered in control handler")
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// httpAccessLogMiddleware logs and times each request under its route template, so
// /v1/connectors/binance and /v1/connectors/okx share one series.
func httpAccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		writer := &httpResponseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(writer, r)

		route := routeTemplate(r)
		elapsed := time.Since(started)
		instrumentation.ControlRequestDuration.
			WithLabelValues(route, r.Method, strconv.Itoa(writer.statusCode)).
			Observe(elapsed.Seconds())

		entry := logrus.WithFields(logrus.Fields{
			"method":      r.Method,
			"route":       route,
			"path":        r.URL.Path,
			"remote_addr": clientIPFromRequest(r),
			"status":      writer.statusCode,
			"request_id":  w.Header().Get("X-Request-Id"),
			"duration_ms": elapsed.Milliseconds(),
		})
		if _, ok := quietRoutes[route]; ok {
			entry.Debug("control request handled")
			return
		}
		entry.Info("control request handled")
	})
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

type httpResponseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *httpResponseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func clientIPFromRequest(r *http.Request) string {
	if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func resolveHTTPAddr(port string) string {
	if envPort := strings.TrimSpace(os.Getenv("HTTP_PORT")); envPort != "" {
		port = envPort
	}
	port = strings.TrimPrefix(strings.TrimSpace(port), ":")
	if port == "" {
		port = defaultHTTPPort
	}
	return ":" + port
}
