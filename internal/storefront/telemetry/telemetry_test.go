package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.Refresh("success")
		m.RefreshShared()
		m.Resolution("ok")
		m.GuardDecision("pass")
		m.OrderPlacement("api", "success")
		m.SubscriberOpened()
		m.SubscriberClosed()
	})

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, m.HTTPMiddleware(h))
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Refresh("success")
	m.Refresh("success")
	m.Refresh("definitive")
	m.RefreshShared()
	m.OrderPlacement("direct", "failure")

	require.Equal(t, 2.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues("definitive")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.refreshShared))
	require.Equal(t, 1.0, testutil.ToFloat64(m.orderPlacements.WithLabelValues("direct", "failure")))
}

func TestHTTPMiddlewareUsesPattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := m.HTTPMiddleware(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	require.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
	n, err := testutil.GatherAndCount(reg, "storefront_http_request_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	families, err := reg.Gather()
	require.NoError(t, err)
	var route string
	for _, f := range families {
		if f.GetName() != "storefront_http_request_duration_seconds" {
			continue
		}
		for _, l := range f.GetMetric()[0].GetLabel() {
			if l.GetName() == "route" {
				route = l.GetValue()
			}
		}
	}
	require.Equal(t, "GET /api/orders/{id}", route)
}

func TestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "ok")
	EndSpan(span, nil)
	_, span = StartSpan(context.Background(), "bad")
	EndSpan(span, errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, codes.Ok, ended[0].Status().Code)
	require.Equal(t, codes.Error, ended[1].Status().Code)
	require.Len(t, ended[1].Events(), 1)
}
