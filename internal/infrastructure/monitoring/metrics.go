package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resource kinds used as the "kind" label
const (
	KindStylesheet = "stylesheet"
	KindScript     = "script"
	KindDocument   = "document"
)

// Cache tiers used as the "tier" label
const (
	TierApp    = "app"
	TierGlobal = "global"
)

// Metrics holds all Prometheus metrics of the host. All methods are safe on
// a nil receiver so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// Retrieval metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec
	CacheWrites  *prometheus.CounterVec

	// Application metrics
	AppsMounted prometheus.Gauge
	MountsTotal *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microhost_fetches_total",
				Help: "Total number of resource retrievals",
			},
			[]string{"kind", "status"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "microhost_fetch_duration_seconds",
				Help:    "Resource retrieval duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microhost_cache_lookups_total",
				Help: "Resource cache lookups by tier and result",
			},
			[]string{"kind", "tier", "result"},
		),
		CacheWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microhost_global_cache_writes_total",
				Help: "Global cache set-if-absent attempts by outcome",
			},
			[]string{"kind", "result"},
		),
		AppsMounted: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "microhost_apps_mounted",
				Help: "Number of currently mounted micro apps",
			},
		),
		MountsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microhost_mounts_total",
				Help: "Total number of mount attempts",
			},
			[]string{"status"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "microhost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "microhost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFetch records one settled retrieval
func (m *Metrics) RecordFetch(kind string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.FetchesTotal.WithLabelValues(kind, status).Inc()
	m.FetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCacheLookup records a lookup against one cache tier
func (m *Metrics) RecordCacheLookup(kind, tier string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(kind, tier, result).Inc()
}

// RecordCacheWrite records a set-if-absent attempt on the global cache
func (m *Metrics) RecordCacheWrite(kind string, stored bool) {
	if m == nil {
		return
	}
	result := "stored"
	if !stored {
		result = "ignored"
	}
	m.CacheWrites.WithLabelValues(kind, result).Inc()
}

// RecordMount records a mount attempt and adjusts the mounted gauge
func (m *Metrics) RecordMount(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.MountsTotal.WithLabelValues("error").Inc()
		return
	}
	m.MountsTotal.WithLabelValues("success").Inc()
	m.AppsMounted.Inc()
}

// RecordUnmount decrements the mounted gauge
func (m *Metrics) RecordUnmount() {
	if m == nil {
		return
	}
	m.AppsMounted.Dec()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
