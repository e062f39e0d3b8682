// Package metrics holds the Prometheus collectors for indexing, embedding
// and search, plus the adapters that feed them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "minutes"

// Label values for the status label.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics is one set of collectors. Create it with New; nothing is
// registered globally.
type Metrics struct {
	EmbeddingRequests *prometheus.CounterVec
	EmbeddingDuration *prometheus.HistogramVec
	EmbeddingCache    *prometheus.CounterVec

	SearchRequests   *prometheus.CounterVec
	SearchDuration   prometheus.Histogram
	SearchResults    prometheus.Histogram
	SearchRejections *prometheus.CounterVec
	SubqueryFailures prometheus.Counter

	DocumentsIndexed prometheus.Counter
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests and library users without a
// metrics endpoint want.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		EmbeddingRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "embedding_requests_total",
				Help:      "Total number of embedding provider calls",
			},
			[]string{"operation", "status"},
		),
		EmbeddingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "embedding_request_duration_seconds",
				Help:      "Embedding provider call duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		EmbeddingCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "embedding_cache_total",
				Help:      "Embedding cache hits and misses",
			},
			[]string{"result"}, // "hit" / "miss"
		),
		SearchRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "search_requests_total",
				Help:      "Total number of search queries",
			},
			[]string{"status"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "search_duration_seconds",
				Help:      "Search duration in seconds, embedding included",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		SearchResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "search_results",
				Help:      "Number of results returned per search",
				Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
			},
		),
		SearchRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "search_rejected_candidates_total",
				Help:      "Neighbour candidates dropped during search",
			},
			[]string{"reason"},
		),
		SubqueryFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "search_subquery_failures_total",
				Help:      "Subqueries skipped because their embedding failed",
			},
		),
		DocumentsIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "documents_indexed_total",
				Help:      "Total number of documents committed to the corpus",
			},
		),
	}

	if err := m.Register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

// Register adds every collector to reg. It is all or nothing: when one
// collector is rejected the ones already added are unregistered again.
// A nil reg is a no-op.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	collectors := m.collectors()
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				reg.Unregister(done)
			}
			return err
		}
	}
	return nil
}

// Unregister removes every collector from reg.
func (m *Metrics) Unregister(reg prometheus.Registerer) {
	if reg == nil {
		return
	}
	for _, c := range m.collectors() {
		reg.Unregister(c)
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.EmbeddingRequests,
		m.EmbeddingDuration,
		m.EmbeddingCache,
		m.SearchRequests,
		m.SearchDuration,
		m.SearchResults,
		m.SearchRejections,
		m.SubqueryFailures,
		m.DocumentsIndexed,
	}
}
