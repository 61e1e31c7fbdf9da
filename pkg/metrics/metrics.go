// Package metrics defines the Prometheus metric collectors used by the
// extraction services and exposes an HTTP handler for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the extraction services.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestsInFlight  prometheus.Gauge
	ExtractionsTotal      *prometheus.CounterVec
	ExtractionLatency     *prometheus.HistogramVec
	RelativeTimesTotal    *prometheus.CounterVec
	CompoundSelectedTotal prometheus.Counter
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
	KBPhrases             prometheus.Gauge
	KBReloadsTotal        *prometheus.CounterVec
	RateLimitedTotal      prometheus.Counter
	EventsPublishedTotal  *prometheus.CounterVec
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all collectors and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reltime_extractions_total",
				Help: "Total extractions by result (resolved, empty, error).",
			},
			[]string{"result"},
		),
		ExtractionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reltime_extraction_latency_seconds",
				Help:    "Extraction latency in seconds.",
				Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
			},
			[]string{"cache_status"},
		),
		RelativeTimesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reltime_relative_times_total",
				Help: "Relative times extracted by frame and tense.",
			},
			[]string{"frame", "tense"},
		),
		CompoundSelectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reltime_compound_selected_total",
				Help: "Extractions where the compound reading replaced the simple one.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		KBPhrases: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "reltime_kb_phrases",
				Help: "Number of phrases in the active knowledge base.",
			},
		),
		KBReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reltime_kb_reloads_total",
				Help: "Knowledge base reloads by status.",
			},
			[]string{"status"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reltime_events_published_total",
				Help: "Extraction events published to Kafka by status.",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ExtractionsTotal,
		m.ExtractionLatency,
		m.RelativeTimesTotal,
		m.CompoundSelectedTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.KBPhrases,
		m.KBReloadsTotal,
		m.RateLimitedTotal,
		m.EventsPublishedTotal,
		m.CircuitBreakerState,
	)

	return m
}
