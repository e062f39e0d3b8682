package metrics

import (
	"time"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/search"
)

// QueryMonitor records one search. It keeps the query's start time, so use
// a fresh monitor per call with search.Searcher.SearchWithMonitor.
type QueryMonitor struct {
	m       *Metrics
	started time.Time
}

var _ search.SearchMonitor = (*QueryMonitor)(nil)

// QueryMonitor returns a monitor for a single search call.
func (m *Metrics) QueryMonitor() *QueryMonitor {
	return &QueryMonitor{m: m}
}

func (q *QueryMonitor) Start(_ string) {
	q.started = time.Now()
}

func (q *QueryMonitor) AfterDecomposition(_ []core.Subquery)                   {}
func (q *QueryMonitor) AfterNeighborSearch(_ core.Subquery, _ []core.Neighbor) {}
func (q *QueryMonitor) Hit(_ core.Subquery, _ core.QueryResult)                {}

func (q *QueryMonitor) SubqueryFailed(_ core.Subquery, _ error) {
	q.m.SubqueryFailures.Inc()
}

func (q *QueryMonitor) Rejected(_ core.Subquery, _ core.Ordinal, reason string) {
	q.m.SearchRejections.WithLabelValues(reason).Inc()
}

func (q *QueryMonitor) Finish(results []core.QueryResult, err error) {
	if !q.started.IsZero() {
		q.m.SearchDuration.Observe(time.Since(q.started).Seconds())
	}
	if err != nil {
		q.m.SearchRequests.WithLabelValues(StatusError).Inc()
		return
	}
	q.m.SearchRequests.WithLabelValues(StatusOK).Inc()
	q.m.SearchResults.Observe(float64(len(results)))
}
