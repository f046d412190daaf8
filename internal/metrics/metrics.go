// Package metrics provides Prometheus instrumentation for the session engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CommandsTotal counts lifecycle commands executed, partitioned by command.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackpot_commands_total",
		Help: "Total number of lifecycle commands executed",
	}, []string{"command"})

	// TransitionRejections counts commands rejected by the state machine.
	TransitionRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stackpot_transition_rejections_total",
		Help: "Commands rejected as invalid for the current phase",
	})

	// ValidationRejections counts stake configurations rejected by validation.
	ValidationRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stackpot_validation_rejections_total",
		Help: "Stake configurations rejected by validation",
	})

	// ActiveSessions tracks the number of occupied current-session slots.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stackpot_active_sessions",
		Help: "Number of occupied current-session slots",
	})

	// ParkedSessions tracks the number of parked multi-day sessions.
	ParkedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stackpot_parked_sessions",
		Help: "Number of sessions parked for a next day",
	})

	// StakesCreated counts stake settlement records created.
	StakesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stackpot_stakes_created_total",
		Help: "Stake settlement records created at session end",
	})

	// SyncFailures counts persistence writes that failed and were queued
	// for retry.
	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stackpot_sync_failures_total",
		Help: "Persistence writes that failed and await retry",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stackpot_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stackpot_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stackpot_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
