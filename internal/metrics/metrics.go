// Package metrics exposes Prometheus instrumentation for indexing and queries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes used as the "outcome" label
const (
	OutcomeAnswered     = "answered"
	OutcomeInsufficient = "insufficient"
	OutcomeError        = "error"
)

// Metrics holds the ragcore collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	documentsIndexed prometheus.Counter
	chunksIndexed    prometheus.Counter
	queries          *prometheus.CounterVec
	queryDuration    prometheus.Histogram
	indexEntries     prometheus.Gauge
}

// New registers the collectors with reg. Use a fresh prometheus.NewRegistry()
// per process (or per test) to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// DocumentsIndexed counts documents appended to the index.
		documentsIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore",
			Name:      "index_documents_total",
			Help:      "Total number of documents indexed",
		}),

		// ChunksIndexed counts chunks appended to the index.
		chunksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragcore",
			Name:      "index_chunks_total",
			Help:      "Total number of chunks embedded and indexed",
		}),

		// Queries counts orchestrator queries.
		// Labels: outcome (answered, insufficient, error)
		queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragcore",
			Name:      "queries_total",
			Help:      "Total number of RAG queries by outcome",
		}, []string{"outcome"}),

		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragcore",
			Name:      "query_duration_seconds",
			Help:      "Duration of RAG queries in seconds, retrieval and generation included",
			Buckets:   prometheus.DefBuckets,
		}),

		indexEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "ragcore",
			Name:      "index_entries",
			Help:      "Number of entries currently in the vector index",
		}),
	}
}

// ObserveIndexing records a completed (possibly partial) indexing run
func (m *Metrics) ObserveIndexing(documents, chunks int) {
	if m == nil {
		return
	}
	m.documentsIndexed.Add(float64(documents))
	m.chunksIndexed.Add(float64(chunks))
}

// ObserveQuery records one query and its latency
func (m *Metrics) ObserveQuery(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(d.Seconds())
}

// SetIndexEntries records the current index size
func (m *Metrics) SetIndexEntries(n int) {
	if m == nil {
		return
	}
	m.indexEntries.Set(float64(n))
}
