package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ContextsCached  prometheus.Gauge
	CacheEvents     *prometheus.CounterVec
	PruneEvents     prometheus.Counter
	PersistFailures *prometheus.CounterVec
	IngestLatency   prometheus.Histogram
	PromptChars     prometheus.Histogram
	ChatTurns       *prometheus.CounterVec

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ContextsCached: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "contexts_cached",
			Help:      "Number of hydrated memory contexts held in process.",
		}),
		CacheEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_cache_events_total",
			Help:      "Context cache events by type (hit, miss, eviction).",
		}, []string{"event"}),
		PruneEvents: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_prune_events_total",
			Help:      "Number of history prune passes.",
		}),
		PersistFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Persistence write failures by document family.",
		}, []string{"doc"}),
		IngestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_latency_ms",
			Help:      "End-to-end AddMessage latency in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		PromptChars: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_chars",
			Help:      "Assembled contextual prompt size in characters.",
			Buckets:   []float64{200, 500, 1000, 2000, 4000, 8000},
		}),
		ChatTurns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		stages: newStageWindow(256),
	}
}

// ObserveStage records one pipeline stage duration into the rolling window
// backing the latency debug endpoint.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.Observe(stage, float64(d.Microseconds())/1000)
}

func (m *Metrics) SnapshotStages() StageSnapshot {
	return m.stages.Snapshot()
}

func (m *Metrics) ResetStages() {
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
