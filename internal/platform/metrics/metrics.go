// Package metrics provides Prometheus metrics for the CareTrack API.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the API server.
type Metrics struct {
	// HTTP request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Extract engine metrics
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram
	ExtractionEpisodes prometheus.Histogram

	// Lookup cache metrics
	LookupCacheHits   prometheus.Counter
	LookupCacheMisses prometheus.Counter

	// Downstream sink metrics
	SinkDeliveriesTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caretrack_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caretrack_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.ExtractionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caretrack_extractions_total",
			Help: "Total number of extract queries run",
		},
		[]string{"status"},
	)

	m.ExtractionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caretrack_extraction_duration_seconds",
			Help:    "Duration of extract queries in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	m.ExtractionEpisodes = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caretrack_extraction_episodes",
			Help:    "Number of episodes matched per extract query",
			Buckets: []float64{0, 1, 10, 50, 100, 500, 1000, 5000},
		},
	)

	m.LookupCacheHits = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "caretrack_lookup_cache_hits_total",
			Help: "Total number of lookup list cache hits",
		},
	)

	m.LookupCacheMisses = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "caretrack_lookup_cache_misses_total",
			Help: "Total number of lookup list cache misses",
		},
	)

	m.SinkDeliveriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caretrack_sink_deliveries_total",
			Help: "Total number of change notifications sent downstream",
		},
		[]string{"event", "status"},
	)

	return m
}

// RecordExtraction records one extract run with its outcome.
func (m *Metrics) RecordExtraction(status string, episodes int, duration time.Duration) {
	m.ExtractionsTotal.WithLabelValues(status).Inc()
	m.ExtractionDuration.Observe(duration.Seconds())
	m.ExtractionEpisodes.Observe(float64(episodes))
}

// RecordSinkDelivery records one downstream notification attempt.
func (m *Metrics) RecordSinkDelivery(event string, status string) {
	m.SinkDeliveriesTotal.WithLabelValues(event, status).Inc()
}

// RecordLookupCache records a lookup cache hit or miss.
func (m *Metrics) RecordLookupCache(hit bool) {
	if hit {
		m.LookupCacheHits.Inc()
		return
	}
	m.LookupCacheMisses.Inc()
}

// Middleware records request counts and latency per route. Uses the echo
// route template rather than the raw URL so path parameters do not blow
// up label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = 500
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			m.RequestsTotal.WithLabelValues(c.Request().Method, path, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
