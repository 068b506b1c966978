// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicodishanthj/laptop-insights/internal/common"
)

type spanKey struct{}

type span struct {
	name  string
	start time.Time
}

var (
	initOnce sync.Once
	registry *prometheus.Registry

	stageSeconds      *prometheus.HistogramVec
	requestsTotal     *prometheus.CounterVec
	factFailuresTotal prometheus.Counter
	embedCacheHits    prometheus.Counter
	embedCacheMisses  prometheus.Counter
	synthesisOutcomes *prometheus.CounterVec
)

func ensureInit() {
	initOnce.Do(func() {
		registry = prometheus.NewRegistry()
		stageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "laptop_pipeline_stage_seconds",
			Help:    "Latency of each RAG pipeline stage.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"})
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "laptop_pipeline_requests_total",
			Help: "Pipeline invocations partitioned by final outcome.",
		}, []string{"outcome"})
		factFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "laptop_fact_lookup_failures_total",
			Help: "Dynamic fact lookups that degraded to sentinel values.",
		})
		embedCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "laptop_embedding_cache_hits_total",
			Help: "Query embeddings served from the in-process cache.",
		})
		embedCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "laptop_embedding_cache_misses_total",
			Help: "Query embeddings computed by the embedding service.",
		})
		synthesisOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "laptop_synthesis_outcomes_total",
			Help: "Answer synthesis outcomes by kind.",
		}, []string{"kind"})
		registry.MustRegister(
			stageSeconds,
			requestsTotal,
			factFailuresTotal,
			embedCacheHits,
			embedCacheMisses,
			synthesisOutcomes,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Registry exposes the collector registry, mainly for tests.
func Registry() *prometheus.Registry {
	ensureInit()
	return registry
}

// Handler serves the registered collectors in the Prometheus text format.
func Handler() http.Handler {
	ensureInit()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func StartSpan(ctx context.Context, name string) (context.Context, func(attrs ...interface{})) {
	ensureInit()
	sp := &span{name: name, start: time.Now()}
	ctx = context.WithValue(ctx, spanKey{}, sp)
	logger := common.Logger()
	logger.Debug("trace: start", "span", name)
	return ctx, func(attrs ...interface{}) {
		duration := time.Since(sp.start)
		logger.Debug("trace: end", append([]interface{}{"span", name, "dur", duration}, attrs...)...)
	}
}

func SpanDuration(ctx context.Context) time.Duration {
	sp, _ := ctx.Value(spanKey{}).(*span)
	if sp == nil {
		return 0
	}
	return time.Since(sp.start)
}

func RecordStage(stage string, duration time.Duration) {
	ensureInit()
	stageSeconds.WithLabelValues(normalizeLabel(stage, "unknown")).Observe(duration.Seconds())
}

func RecordRequest(outcome string) {
	ensureInit()
	requestsTotal.WithLabelValues(normalizeLabel(outcome, "unknown")).Inc()
}

func RecordFactLookupFailure() {
	ensureInit()
	factFailuresTotal.Inc()
}

func RecordEmbeddingCache(hit bool) {
	ensureInit()
	if hit {
		embedCacheHits.Inc()
		return
	}
	embedCacheMisses.Inc()
}

func RecordSynthesis(kind string) {
	ensureInit()
	synthesisOutcomes.WithLabelValues(normalizeLabel(kind, "unknown")).Inc()
}

func normalizeLabel(value, fallback string) string {
	key := strings.TrimSpace(strings.ToLower(value))
	if key == "" {
		return fallback
	}
	return key
}
