// Package metrics exposes prometheus instrumentation for the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventhub"

type Metrics struct {
	registry   *prometheus.Registry
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	logins     *prometheus.CounterVec
	wsConns    prometheus.Gauge
	generated  prometheus.Counter
}

func New() *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets}, []string{"method", "route"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "login_attempts_total"}, []string{"method", "outcome"})
	wsConns := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "websocket_connections"})
	generated := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "matches_generated_total"})
	r.MustRegister(httpReqCnt, httpDur, logins, wsConns, generated)

	return &Metrics{
		registry:   r,
		httpReqCnt: httpReqCnt,
		httpDur:    httpDur,
		logins:     logins,
		wsConns:    wsConns,
		generated:  generated,
	}
}

// ObserveLogin counts one finished login attempt.
func (m *Metrics) ObserveLogin(method, outcome string) {
	m.logins.WithLabelValues(method, outcome).Inc()
}

// MatchesGenerated adds n generated fixtures.
func (m *Metrics) MatchesGenerated(n int) {
	m.generated.Add(float64(n))
}

// Connections is the gauge the realtime hub keeps current.
func (m *Metrics) Connections() prometheus.Gauge {
	return m.wsConns
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpReqCnt.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDur.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
