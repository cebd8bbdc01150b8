// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/airwarehouse/internal/core"
)

const namespace = "airwarehouse"

// Metrics implements core.Recorder on its own registry.
type Metrics struct {
	reg *prometheus.Registry

	rowsCleaned     *prometheus.CounterVec
	rowsQuarantined *prometheus.CounterVec
	rowsCommitted   *prometheus.CounterVec
	quarantineFail  prometheus.Counter
	streamMessages  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var _ core.Recorder = (*Metrics)(nil)

// New registers the pipeline collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		rowsCleaned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_cleaned_total",
			Help:      "Rows that passed cleaning, by destination table.",
		}, []string{"table"}),
		rowsQuarantined: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_quarantined_total",
			Help:      "Rows routed to quarantine, by table and pipeline stage.",
		}, []string{"table", "stage"}),
		rowsCommitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_committed_total",
			Help:      "Rows inserted into a destination table.",
		}, []string{"table"}),
		quarantineFail: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quarantine_write_failures_total",
			Help:      "Quarantine entries the primary store failed to persist.",
		}),
		streamMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_messages_total",
			Help:      "Messages handled by the streaming loop, by outcome.",
		}, []string{"outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		}, []string{"route"}),
	}
}

func (m *Metrics) RowsCleaned(table string, n int) {
	m.rowsCleaned.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) RowsQuarantined(table, stage string, n int) {
	m.rowsQuarantined.WithLabelValues(table, stage).Add(float64(n))
}

func (m *Metrics) RowsCommitted(table string, n int) {
	m.rowsCommitted.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) QuarantineWriteFailed(n int) {
	m.quarantineFail.Add(float64(n))
}

func (m *Metrics) StreamMessage(outcome string) {
	m.streamMessages.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware counts requests per chi route pattern. Unmatched requests are
// labelled "unmatched" to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
