package search

import (
	"github.com/poiesic/minutes/core"
)

// Reasons passed to SearchMonitor.Rejected.
const (
	RejectOutOfRange = "out_of_range"
	RejectNoOwner    = "no_owner"
	RejectNoMatch    = "no_keyword_match"
	RejectDuplicate  = "duplicate_owner"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterDecomposition(subqueries []core.Subquery)
	AfterNeighborSearch(subquery core.Subquery, neighbors []core.Neighbor)
	SubqueryFailed(subquery core.Subquery, err error)
	Rejected(subquery core.Subquery, ordinal core.Ordinal, reason string)
	Hit(subquery core.Subquery, result core.QueryResult)
	Finish(results []core.QueryResult, err error)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                         {}
func (n *noopMonitor) AfterDecomposition(_ []core.Subquery)                   {}
func (n *noopMonitor) AfterNeighborSearch(_ core.Subquery, _ []core.Neighbor) {}
func (n *noopMonitor) SubqueryFailed(_ core.Subquery, _ error)                {}
func (n *noopMonitor) Rejected(_ core.Subquery, _ core.Ordinal, _ string)     {}
func (n *noopMonitor) Hit(_ core.Subquery, _ core.QueryResult)                {}
func (n *noopMonitor) Finish(_ []core.QueryResult, _ error)                   {}

// multiMonitor fans every hook out to several monitors in order.
type multiMonitor []SearchMonitor

// Monitors combines monitors into one. Nil entries are skipped.
func Monitors(monitors ...SearchMonitor) SearchMonitor {
	out := make(multiMonitor, 0, len(monitors))
	for _, m := range monitors {
		if m != nil {
			out = append(out, m)
		}
	}
	switch len(out) {
	case 0:
		return &noopMonitor{}
	case 1:
		return out[0]
	}
	return out
}

func (m multiMonitor) Start(query string) {
	for _, x := range m {
		x.Start(query)
	}
}

func (m multiMonitor) AfterDecomposition(subqueries []core.Subquery) {
	for _, x := range m {
		x.AfterDecomposition(subqueries)
	}
}

func (m multiMonitor) AfterNeighborSearch(subquery core.Subquery, neighbors []core.Neighbor) {
	for _, x := range m {
		x.AfterNeighborSearch(subquery, neighbors)
	}
}

func (m multiMonitor) SubqueryFailed(subquery core.Subquery, err error) {
	for _, x := range m {
		x.SubqueryFailed(subquery, err)
	}
}

func (m multiMonitor) Rejected(subquery core.Subquery, ordinal core.Ordinal, reason string) {
	for _, x := range m {
		x.Rejected(subquery, ordinal, reason)
	}
}

func (m multiMonitor) Hit(subquery core.Subquery, result core.QueryResult) {
	for _, x := range m {
		x.Hit(subquery, result)
	}
}

func (m multiMonitor) Finish(results []core.QueryResult, err error) {
	for _, x := range m {
		x.Finish(results, err)
	}
}
