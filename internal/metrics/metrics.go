// Package metrics exposes Prometheus instrumentation for docsearch.
//
// All collectors live on a private registry. Every method is safe to call
// on a nil *Metrics, so components can be constructed without metrics in
// tests and tools.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/docsearch/internal/embedder"
)

const namespace = "docsearch"

// Metrics holds all collectors
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	searches          *prometheus.CounterVec
	documentsCreated  *prometheus.CounterVec
	embeddingDuration *prometheus.HistogramVec
	backfillDocuments *prometheus.CounterVec
	rateLimited       prometheus.Counter
	dispatchFailures  prometheus.Counter
}

// New creates collectors on a fresh registry, including Go runtime and process collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches by the path that produced results (vector, lexical) or error.",
		}, []string{"mode"}),
		documentsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_created_total",
			Help:      "Documents created, by whether the embedding was stored inline or deferred.",
		}, []string{"embedding"}),
		embeddingDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Embedding provider latency by provider and outcome.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider", "outcome"}),
		backfillDocuments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_documents_total",
			Help:      "Documents processed by backfill, by outcome.",
		}, []string{"outcome"}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		dispatchFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Background jobs that could not be scheduled.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP records one completed HTTP request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveSearch records a search outcome
func (m *Metrics) ObserveSearch(mode string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(mode).Inc()
}

// DocumentCreated records a create, embedded reports whether the vector was stored inline
func (m *Metrics) DocumentCreated(embedded bool) {
	if m == nil {
		return
	}
	label := "inline"
	if !embedded {
		label = "deferred"
	}
	m.documentsCreated.WithLabelValues(label).Inc()
}

// ObserveBackfill records one document processed by backfill
func (m *Metrics) ObserveBackfill(success bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.backfillDocuments.WithLabelValues(outcome).Inc()
}

// RateLimited records a rejected request
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// DispatchFailed records a job that could not be scheduled
func (m *Metrics) DispatchFailed() {
	if m == nil {
		return
	}
	m.dispatchFailures.Inc()
}

// RegisterGauge exposes the value returned by fn as a gauge
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn)
}

// RegisterCache exposes a CachedEmbedder's hit and miss counters
func (m *Metrics) RegisterCache(c *embedder.CachedEmbedder) {
	if m == nil || c == nil {
		return
	}
	f := promauto.With(m.registry)
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_cache_hits_total",
		Help:      "Embedding cache hits.",
	}, func() float64 {
		hits, _ := c.Stats()
		return float64(hits)
	})
	f.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "embedding_cache_misses_total",
		Help:      "Embedding cache misses.",
	}, func() float64 {
		_, misses := c.Stats()
		return float64(misses)
	})
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "embedding_cache_entries",
		Help:      "Vectors currently cached.",
	}, func() float64 {
		return float64(c.Size())
	})
}

// InstrumentEmbedder wraps e so every call is timed. It returns e unchanged on a nil receiver.
func (m *Metrics) InstrumentEmbedder(e embedder.Embedder) embedder.Embedder {
	if m == nil {
		return e
	}
	return &instrumentedEmbedder{Embedder: e, m: m}
}

type instrumentedEmbedder struct {
	embedder.Embedder
	m *Metrics
}

func (i *instrumentedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	v, err := i.Embedder.Embed(ctx, text)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	i.m.embeddingDuration.WithLabelValues(i.Provider(), outcome).Observe(time.Since(start).Seconds())
	return v, err
}
