// Package metrics exposes Prometheus metrics for the gateway: request
// outcomes, cache effectiveness, retry behavior, and conversion activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the gateway's metric instruments.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEntries   prometheus.Gauge
	cacheSizeBytes prometheus.Gauge

	retryAttempts  prometheus.Counter
	fallbacksTotal prometheus.Counter

	conversionsTotal   *prometheus.CounterVec
	conversionDuration prometheus.Histogram
}

// NewCollector creates and registers the gateway metrics on a fresh
// registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total proxied requests by route domain, method, and status",
			},
			[]string{"domain", "method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request handling duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"domain", "method"},
		),

		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Responses served from the cache",
		}),

		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that required an upstream fetch",
		}),

		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_entries",
			Help:      "Current number of cache entries",
		}),

		cacheSizeBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size_bytes",
			Help:      "Total size of cached bodies in bytes",
		}),

		retryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Upstream retry attempts triggered by rate limiting",
		}),

		fallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Fallback responses served after retry budget exhaustion",
		}),

		conversionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Document conversions by outcome",
			},
			[]string{"outcome"},
		),

		conversionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Document conversion duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.cacheHits,
		c.cacheMisses,
		c.cacheEntries,
		c.cacheSizeBytes,
		c.retryAttempts,
		c.fallbacksTotal,
		c.conversionsTotal,
		c.conversionDuration,
	)

	return c
}

// RecordRequest records one terminal pipeline branch.
func (c *Collector) RecordRequest(domain, method string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(domain, method, statusLabel(status)).Inc()
	c.requestDuration.WithLabelValues(domain, method).Observe(duration.Seconds())
}

// RecordCacheHit records a response served from the cache.
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss records a lookup that went upstream.
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// SetCacheStats updates the cache gauges.
func (c *Collector) SetCacheStats(entries int, sizeBytes int64) {
	c.cacheEntries.Set(float64(entries))
	c.cacheSizeBytes.Set(float64(sizeBytes))
}

// RecordRetryAttempt records one retry attempt.
func (c *Collector) RecordRetryAttempt() { c.retryAttempts.Inc() }

// RecordFallback records a fallback response after budget exhaustion.
func (c *Collector) RecordFallback() { c.fallbacksTotal.Inc() }

// RecordConversion records one conversion attempt.
func (c *Collector) RecordConversion(success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.conversionsTotal.WithLabelValues(outcome).Inc()
	c.conversionDuration.Observe(duration.Seconds())
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
