package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

const (
	// DefaultResults is the result count used when a caller asks for n <= 0.
	DefaultResults = 5

	// DefaultOversample multiplies n to get the neighbour count fetched per
	// subquery, leaving room for the keyword filter to discard candidates.
	DefaultOversample = 20

	// UnknownDisplayName is reported for documents without a display name.
	UnknownDisplayName = "Unknown"
)

// Corpus is the read side of a corpus.Corpus.
type Corpus interface {
	Len() int
	View(fn func(storage.Reader) error) error
}

// Searcher provides hybrid semantic and keyword search over a corpus.
// It holds no mutable state and is safe for concurrent use.
type Searcher struct {
	corpus         Corpus
	embedder       ai.Embedder
	oversample     int
	defaultResults int
	timeout        time.Duration
	monitor        SearchMonitor
	logger         *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "searcher")
		return nil
	}
}

// WithOversample sets the factor applied to n when fetching neighbours.
func WithOversample(factor int) Option {
	return func(s *Searcher) error {
		if factor < 1 {
			return fmt.Errorf("%w: oversample must be at least 1, got %d", ErrInvalidOption, factor)
		}
		s.oversample = factor
		return nil
	}
}

// WithDefaultResults sets the result count used when a query asks for n <= 0.
func WithDefaultResults(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return fmt.Errorf("%w: default results must be at least 1, got %d", ErrInvalidOption, n)
		}
		s.defaultResults = n
		return nil
	}
}

// WithTimeout bounds each query, including its embedding calls.
// Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Searcher) error {
		if timeout < 0 {
			return fmt.Errorf("%w: negative timeout %s", ErrInvalidOption, timeout)
		}
		s.timeout = timeout
		return nil
	}
}

// WithMonitor installs a monitor that observes every query.
func WithMonitor(monitor SearchMonitor) Option {
	return func(s *Searcher) error {
		s.monitor = monitor
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(corpus Corpus, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if corpus == nil {
		return nil, ErrCorpusRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		corpus:         corpus,
		embedder:       embedder,
		oversample:     DefaultOversample,
		defaultResults: DefaultResults,
		logger:         slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns up to n results for query, at most one per owning entity,
// best first. n <= 0 selects the default count.
func (s *Searcher) Search(ctx context.Context, query string, n int) ([]core.QueryResult, error) {
	return s.SearchWithMonitor(ctx, query, n, nil)
}

// SearchWithMonitor is Search with an extra monitor for this call only. The
// monitor receives callbacks at each stage after any monitor installed with
// WithMonitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, n int, monitor SearchMonitor) ([]core.QueryResult, error) {
	monitor = Monitors(s.monitor, monitor)

	monitor.Start(query)
	results, err := s.search(ctx, query, n, monitor)
	monitor.Finish(results, err)

	return results, err
}

func (s *Searcher) search(ctx context.Context, query string, n int, monitor SearchMonitor) ([]core.QueryResult, error) {
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < MinQueryLength {
		return nil, fmt.Errorf("%w: %q", ErrQueryTooShort, query)
	}
	if n <= 0 {
		n = s.defaultResults
	}

	// Nothing to find; do not spend an embedding call.
	if s.corpus.Len() == 0 {
		s.logger.Debug("corpus is empty, skipping search", "query", trimmed)
		return []core.QueryResult{}, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	// 1. Decompose into subqueries; fragments are trimmed after splitting
	subqueries := Decompose(query)
	monitor.AfterDecomposition(subqueries)

	// 2. Embed every subquery before taking the read lock
	vectors, err := s.embedSubqueries(ctx, subqueries, monitor)
	if err != nil {
		return nil, err
	}

	// 3. Neighbour search, filter and merge against one consistent snapshot
	var results []core.QueryResult
	err = s.corpus.View(func(r storage.Reader) error {
		var err error
		results, err = s.collect(ctx, r, subqueries, vectors, n*s.oversample, monitor)
		return err
	})
	if err != nil {
		s.logger.Error("search failed", "query", trimmed, "err", err)
		return nil, err
	}

	// 4. Rank and truncate
	slices.SortStableFunc(results, func(a, b core.QueryResult) int {
		return cmp.Compare(a.Rank, b.Rank)
	})
	if len(results) > n {
		results = results[:n]
	}

	s.logger.Debug("search complete", "query", trimmed, "subqueries", len(subqueries), "results", len(results))
	return results, nil
}

// embedSubqueries embeds each subquery in order. A failed subquery is logged
// and left nil; the query fails only if every subquery fails or the context
// ends.
func (s *Searcher) embedSubqueries(ctx context.Context, subqueries []core.Subquery, monitor SearchMonitor) ([][]float32, error) {
	vectors := make([][]float32, len(subqueries))
	var lastErr error
	embedded := 0

	for i, subq := range subqueries {
		vec, err := s.embedder.EmbedText(ctx, string(subq))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %w", ai.ErrEmbedding, ctxErr)
			}
			s.logger.Warn("skipping subquery, embedding failed", "subquery", subq, "err", err)
			monitor.SubqueryFailed(subq, err)
			lastErr = err
			continue
		}
		vectors[i] = vec
		embedded++
	}

	if embedded == 0 && lastErr != nil {
		return nil, fmt.Errorf("all %d subqueries failed: %w", len(subqueries), lastErr)
	}
	return vectors, nil
}

func (s *Searcher) collect(
	ctx context.Context,
	r storage.Reader,
	subqueries []core.Subquery,
	vectors [][]float32,
	k int,
	monitor SearchMonitor,
) ([]core.QueryResult, error) {
	results := make([]core.QueryResult, 0)
	if r.Count() == 0 {
		return results, nil
	}
	seen := make(map[string]struct{})

	for i, subq := range subqueries {
		if vectors[i] == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		neighbors, err := r.Search(vectors[i], k)
		if err != nil {
			return nil, fmt.Errorf("neighbour search for %q: %w", subq, err)
		}
		monitor.AfterNeighborSearch(subq, neighbors)

		for rank, nb := range neighbors {
			rec, err := r.Get(nb.Ordinal)
			if err != nil {
				s.logger.Warn("vector has no document, skipping candidate", "ordinal", nb.Ordinal, "err", err)
				monitor.Rejected(subq, nb.Ordinal, RejectOutOfRange)
				continue
			}

			owner := rec.Metadata.OwningEntityID
			if owner == "" {
				monitor.Rejected(subq, nb.Ordinal, RejectNoOwner)
				continue
			}

			snippet, ok := extractSnippet(rec.Text, subq)
			if !ok {
				monitor.Rejected(subq, nb.Ordinal, RejectNoMatch)
				continue
			}

			// First hit wins: earlier subqueries and nearer neighbours keep their rank.
			if _, dup := seen[owner]; dup {
				monitor.Rejected(subq, nb.Ordinal, RejectDuplicate)
				continue
			}
			seen[owner] = struct{}{}

			result := core.QueryResult{
				OwningEntityID: owner,
				DisplayName:    displayName(rec),
				Snippet:        snippet,
				Rank:           rank,
			}
			results = append(results, result)
			monitor.Hit(subq, result)
		}
	}

	return results, nil
}

func displayName(rec core.DocumentRecord) string {
	if rec.Metadata.DisplayName == "" {
		return UnknownDisplayName
	}
	return rec.Metadata.DisplayName
}
