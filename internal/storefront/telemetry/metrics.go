package telemetry

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storefront"

// Metrics holds the storefront's Prometheus collectors. A nil *Metrics is
// valid and records nothing, so components can be built without a registry.
type Metrics struct {
	refreshTotal       *prometheus.CounterVec
	refreshShared      prometheus.Counter
	sessionResolutions *prometheus.CounterVec
	guardDecisions     *prometheus.CounterVec
	orderPlacements    *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	eventSubscribers   prometheus.Gauge
}

// NewMetrics registers the storefront collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		refreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Provider refresh calls by outcome",
		}, []string{"outcome"}),

		refreshShared: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_shared_total",
			Help:      "Refresh callers served by an in-flight or recently completed rotation",
		}),

		sessionResolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_resolutions_total",
			Help:      "Session resolutions by result",
		}, []string{"result"}),

		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions",
		}, []string{"decision"}),

		orderPlacements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_placements_total",
			Help:      "Order placement attempts by path and outcome",
		}, []string{"path", "outcome"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		eventSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "auth_event_subscribers",
			Help:      "Open auth event websocket connections",
		}),
	}
}

func (m *Metrics) Refresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RefreshShared() {
	if m == nil {
		return
	}
	m.refreshShared.Inc()
}

func (m *Metrics) Resolution(result string) {
	if m == nil {
		return
	}
	m.sessionResolutions.WithLabelValues(result).Inc()
}

func (m *Metrics) GuardDecision(decision string) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) OrderPlacement(path, outcome string) {
	if m == nil {
		return
	}
	m.orderPlacements.WithLabelValues(path, outcome).Inc()
}

// SubscriberOpened and SubscriberClosed track the websocket hub size.
func (m *Metrics) SubscriberOpened() {
	if m == nil {
		return
	}
	m.eventSubscribers.Inc()
}

func (m *Metrics) SubscriberClosed() {
	if m == nil {
		return
	}
	m.eventSubscribers.Dec()
}

// HTTPMiddleware observes request durations labelled by the matched mux
// pattern. It must sit directly in front of the mux, since the mux records
// the pattern on the request it was handed.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter

	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("telemetry: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
