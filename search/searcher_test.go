package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/minutes/ai"
	"github.com/poiesic/minutes/ai/mock"
	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
	"github.com/poiesic/minutes/storage/corpus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 16

func newCorpus(t *testing.T, dim int) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Open(t.TempDir(), dim)
	require.NoError(t, err)
	return c
}

func addDoc(t *testing.T, c *corpus.Corpus, vec []float32, owner, name, text string) {
	t.Helper()
	_, err := c.Append(vec, core.DocumentRecord{
		ID:   fmt.Sprintf("doc-%d", c.Len()),
		Text: text,
		Metadata: core.Metadata{
			OwningEntityID: owner,
			DisplayName:    name,
		},
	})
	require.NoError(t, err)
}

// addEmbedded indexes text with the mock's deterministic vector.
func addEmbedded(t *testing.T, c *corpus.Corpus, owner, name, text string) {
	t.Helper()
	addDoc(t, c, mock.GenerateDeterministicVector(text, testDim), owner, name, text)
}

// fixedEmbedder maps known texts to fixed vectors.
func fixedEmbedder(vectors map[string][]float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder(2)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		vec, ok := vectors[text]
		if !ok {
			return nil, fmt.Errorf("%w: unexpected text %q", ai.ErrEmbedding, text)
		}
		return vec, nil
	}
	return embedder
}

func owners(results []core.QueryResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.OwningEntityID
	}
	return out
}

func TestNewSearcher(t *testing.T) {
	c := newCorpus(t, testDim)
	embedder := mock.NewMockEmbedder(testDim)

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(c, embedder)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with options", func(t *testing.T) {
		searcher, err := NewSearcher(c, embedder,
			WithLogger(slog.Default()),
			WithOversample(5),
			WithDefaultResults(3),
			WithTimeout(time.Second),
		)
		require.NoError(t, err)
		assert.Equal(t, 5, searcher.oversample)
		assert.Equal(t, 3, searcher.defaultResults)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(c, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher.logger)
	})

	t.Run("nil corpus", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrCorpusRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(c, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := NewSearcher(c, embedder, WithOversample(0))
		assert.ErrorIs(t, err, ErrInvalidOption)
		_, err = NewSearcher(c, embedder, WithDefaultResults(0))
		assert.ErrorIs(t, err, ErrInvalidOption)
		_, err = NewSearcher(c, embedder, WithTimeout(-time.Second))
		assert.ErrorIs(t, err, ErrInvalidOption)
	})
}

func TestSearch_FeifeiAndBudget(t *testing.T) {
	c := newCorpus(t, testDim)
	addEmbedded(t, c, "1", "m1.txt", "We discussed the Q3 budget with Alice and Feifei")
	addEmbedded(t, c, "2", "m2.txt", "Feifei gave a training workshop")

	searcher, err := NewSearcher(c, mock.NewMockEmbedder(testDim))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "Feifei and budget", 5)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"1", "2"}, owners(results))
	for _, r := range results {
		snippet := strings.ToLower(r.Snippet)
		assert.True(t, strings.Contains(snippet, "feifei") || strings.Contains(snippet, "budget"), r.Snippet)
		assert.True(t, strings.HasSuffix(r.Snippet, SnippetSuffix))
	}
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Rank, results[i].Rank)
	}
}

func TestSearch_NoMatch(t *testing.T) {
	c := newCorpus(t, testDim)
	addEmbedded(t, c, "1", "m1.txt", "We discussed the Q3 budget with Alice and Feifei")
	addEmbedded(t, c, "2", "m2.txt", "Feifei gave a training workshop")

	searcher, err := NewSearcher(c, mock.NewMockEmbedder(testDim))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "nonexistent_term_zzz", 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_EmptyCorpusSkipsEmbedding(t *testing.T) {
	embedder := mock.NewMockEmbedder(testDim)
	searcher, err := NewSearcher(newCorpus(t, testDim), embedder)
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "budget", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, embedder.CallCount())
}

func TestSearch_QueryTooShort(t *testing.T) {
	embedder := mock.NewMockEmbedder(testDim)
	searcher, err := NewSearcher(newCorpus(t, testDim), embedder)
	require.NoError(t, err)

	for _, q := range []string{"", "   ", "a", " b "} {
		_, err := searcher.Search(context.Background(), q, 5)
		assert.ErrorIs(t, err, ErrQueryTooShort, "query %q", q)
	}
	assert.Equal(t, 0, embedder.CallCount())
}

func TestSearch_RankFilterAndDedup(t *testing.T) {
	c := newCorpus(t, 2)
	addDoc(t, c, []float32{0, 0}, "a", "a.txt", "budget one")
	addDoc(t, c, []float32{1, 0}, "a", "a.txt", "budget two")
	addDoc(t, c, []float32{2, 0}, "b", "b.txt", "no match here")
	addDoc(t, c, []float32{3, 0}, "c", "", "the BUDGET")
	addDoc(t, c, []float32{4, 0}, "", "orphan.txt", "budget orphan")

	embedder := fixedEmbedder(map[string][]float32{"budget": {0, 0}})
	searcher, err := NewSearcher(c, embedder)
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "Budget", 0)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, core.QueryResult{OwningEntityID: "a", DisplayName: "a.txt", Snippet: "budget one...", Rank: 0}, results[0])
	assert.Equal(t, core.QueryResult{OwningEntityID: "c", DisplayName: UnknownDisplayName, Snippet: "the BUDGET...", Rank: 3}, results[1])
}

func TestSearch_MergeAcrossSubqueries(t *testing.T) {
	c := newCorpus(t, 2)
	addDoc(t, c, []float32{10, 0}, "y", "y.txt", "alpha notes")
	addDoc(t, c, []float32{0, 0}, "z", "z.txt", "beta notes")
	addDoc(t, c, []float32{6, 0}, "x", "x.txt", "alpha and beta")

	embedder := fixedEmbedder(map[string][]float32{
		"alpha": {10, 0},
		"beta":  {0, 0},
	})
	searcher, err := NewSearcher(c, embedder)
	require.NoError(t, err)

	t.Run("stable by rank", func(t *testing.T) {
		results, err := searcher.Search(context.Background(), "alpha and beta", 5)
		require.NoError(t, err)

		require.Len(t, results, 3)
		assert.Equal(t, []string{"y", "z", "x"}, owners(results))
		assert.Equal(t, []int{0, 0, 1}, []int{results[0].Rank, results[1].Rank, results[2].Rank})
		assert.Equal(t, "alpha and beta...", results[2].Snippet, "x keeps the snippet of its first subquery")
	})

	t.Run("truncated to n", func(t *testing.T) {
		results, err := searcher.Search(context.Background(), "alpha, beta", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"y", "z"}, owners(results))
	})
}

func TestSearch_PartialEmbeddingFailure(t *testing.T) {
	c := newCorpus(t, 2)
	addDoc(t, c, []float32{0, 0}, "1", "m1.txt", "Feifei gave a training workshop")

	embedder := fixedEmbedder(map[string][]float32{"feifei": {0, 0}})
	monitor := &recordingMonitor{}
	searcher, err := NewSearcher(c, embedder, WithMonitor(monitor))
	require.NoError(t, err)

	results, err := searcher.Search(context.Background(), "budget and feifei", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, owners(results))

	assert.Equal(t, []core.Subquery{"budget"}, monitor.failed)
}

func TestSearch_AllSubqueriesFail(t *testing.T) {
	c := newCorpus(t, 2)
	addDoc(t, c, []float32{0, 0}, "1", "m1.txt", "text")

	embedder := mock.NewMockEmbedder(2)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("%w: provider down", ai.ErrEmbedding)
	}
	searcher, err := NewSearcher(c, embedder)
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "alpha and beta", 5)
	assert.ErrorIs(t, err, ai.ErrEmbedding)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestSearch_Timeout(t *testing.T) {
	c := newCorpus(t, 2)
	addDoc(t, c, []float32{0, 0}, "1", "m1.txt", "text")

	embedder := mock.NewMockEmbedder(2)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	searcher, err := NewSearcher(c, embedder, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "alpha and beta", 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, embedder.CallCount(), "timeout aborts remaining subqueries")
}

func TestSearch_DimensionMismatch(t *testing.T) {
	c := newCorpus(t, 2)
	addDoc(t, c, []float32{0, 0}, "1", "m1.txt", "text")

	searcher, err := NewSearcher(c, mock.NewMockEmbedder(3))
	require.NoError(t, err)

	_, err = searcher.Search(context.Background(), "text", 5)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestSearch_SkipsOutOfRangeCandidates(t *testing.T) {
	src := &gappedCorpus{
		docs: map[core.Ordinal]core.DocumentRecord{
			1: {ID: "b", Text: "budget", Metadata: core.Metadata{OwningEntityID: "2", DisplayName: "b.txt"}},
		},
		neighbors: []core.Neighbor{{Ordinal: 0}, {Ordinal: 1}},
	}
	monitor := &recordingMonitor{}
	searcher, err := NewSearcher(src, mock.NewMockEmbedder(2))
	require.NoError(t, err)

	results, err := searcher.SearchWithMonitor(context.Background(), "budget", 5, monitor)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].OwningEntityID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, []string{RejectOutOfRange}, monitor.rejected)
}

func TestSearch_Monitor(t *testing.T) {
	c := newCorpus(t, 2)
	addDoc(t, c, []float32{0, 0}, "1", "m1.txt", "budget review")
	addDoc(t, c, []float32{1, 0}, "1", "m1.txt", "budget again")
	addDoc(t, c, []float32{2, 0}, "2", "m2.txt", "hiring")

	installed := &recordingMonitor{}
	perCall := &recordingMonitor{}
	searcher, err := NewSearcher(c, fixedEmbedder(map[string][]float32{"budget": {0, 0}}), WithMonitor(installed))
	require.NoError(t, err)

	_, err = searcher.SearchWithMonitor(context.Background(), "budget", 5, perCall)
	require.NoError(t, err)

	for _, m := range []*recordingMonitor{installed, perCall} {
		assert.Equal(t, "budget", m.query)
		assert.Equal(t, []core.Subquery{"budget"}, m.subqueries)
		assert.Equal(t, 1, m.neighborSearches)
		assert.Equal(t, 1, m.hits)
		assert.ElementsMatch(t, []string{RejectDuplicate, RejectNoMatch}, m.rejected)
		assert.Len(t, m.finished, 1)
		assert.NoError(t, m.finishErr)
	}
}

func TestSearch_LeadingSeparator(t *testing.T) {
	c := newCorpus(t, 2)
	addDoc(t, c, []float32{0, 0}, "1", "m1.txt", "The budget was approved")

	monitor := &recordingMonitor{}
	searcher, err := NewSearcher(c, fixedEmbedder(map[string][]float32{"budget": {0, 0}}))
	require.NoError(t, err)

	results, err := searcher.SearchWithMonitor(context.Background(), " and budget", 5, monitor)
	require.NoError(t, err)
	assert.Equal(t, []core.Subquery{"budget"}, monitor.subqueries)
	assert.Equal(t, []string{"1"}, owners(results))
}

func TestSearch_ConcurrentQueriesAndWrites(t *testing.T) {
	c := newCorpus(t, testDim)
	addEmbedded(t, c, "0", "m0.txt", "budget meeting 0")

	searcher, err := NewSearcher(c, mock.NewMockEmbedder(testDim))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 10; i++ {
			text := fmt.Sprintf("budget meeting %d", i)
			_, err := c.Append(mock.GenerateDeterministicVector(text, testDim), core.DocumentRecord{
				ID:       fmt.Sprint(i),
				Text:     text,
				Metadata: core.Metadata{OwningEntityID: fmt.Sprint(i), DisplayName: "m.txt"},
			})
			assert.NoError(t, err)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				results, err := searcher.Search(context.Background(), "budget", 20)
				assert.NoError(t, err)
				assert.NotEmpty(t, results)
			}
		}()
	}
	wg.Wait()

	results, err := searcher.Search(context.Background(), "budget", 20)
	require.NoError(t, err)
	assert.Len(t, results, 11)
}

func TestSearch_RoundTripAfterReopen(t *testing.T) {
	dir := t.TempDir()
	c, err := corpus.Open(dir, testDim)
	require.NoError(t, err)
	addEmbedded(t, c, "1", "m1.txt", "We discussed the Q3 budget with Alice and Feifei")
	addEmbedded(t, c, "2", "m2.txt", "Feifei gave a training workshop")
	addEmbedded(t, c, "3", "m3.txt", "Budget freeze announced")

	before, err := NewSearcher(c, mock.NewMockEmbedder(testDim))
	require.NoError(t, err)
	want, err := before.Search(context.Background(), "feifei, budget", 5)
	require.NoError(t, err)

	reopened, err := corpus.Open(dir, testDim)
	require.NoError(t, err)
	after, err := NewSearcher(reopened, mock.NewMockEmbedder(testDim))
	require.NoError(t, err)
	got, err := after.Search(context.Background(), "feifei, budget", 5)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

type recordingMonitor struct {
	query            string
	subqueries       []core.Subquery
	neighborSearches int
	failed           []core.Subquery
	rejected         []string
	hits             int
	finished         [][]core.QueryResult
	finishErr        error
}

func (m *recordingMonitor) Start(query string) { m.query = query }
func (m *recordingMonitor) AfterDecomposition(subqueries []core.Subquery) {
	m.subqueries = subqueries
}
func (m *recordingMonitor) AfterNeighborSearch(_ core.Subquery, _ []core.Neighbor) {
	m.neighborSearches++
}
func (m *recordingMonitor) SubqueryFailed(subquery core.Subquery, _ error) {
	m.failed = append(m.failed, subquery)
}
func (m *recordingMonitor) Rejected(_ core.Subquery, _ core.Ordinal, reason string) {
	m.rejected = append(m.rejected, reason)
}
func (m *recordingMonitor) Hit(_ core.Subquery, _ core.QueryResult) { m.hits++ }
func (m *recordingMonitor) Finish(results []core.QueryResult, err error) {
	m.finished = append(m.finished, results)
	m.finishErr = err
}

// gappedCorpus returns neighbours for ordinals that have no document.
type gappedCorpus struct {
	docs      map[core.Ordinal]core.DocumentRecord
	neighbors []core.Neighbor
}

func (g *gappedCorpus) Len() int { return len(g.neighbors) }

func (g *gappedCorpus) View(fn func(storage.Reader) error) error { return fn(g) }

func (g *gappedCorpus) Count() int     { return len(g.neighbors) }
func (g *gappedCorpus) Dimension() int { return 2 }
func (g *gappedCorpus) Search(_ []float32, k int) ([]core.Neighbor, error) {
	return g.neighbors[:min(k, len(g.neighbors))], nil
}
func (g *gappedCorpus) Get(ordinal core.Ordinal) (core.DocumentRecord, error) {
	rec, ok := g.docs[ordinal]
	if !ok {
		return core.DocumentRecord{}, fmt.Errorf("%w: %d", storage.ErrOutOfRange, ordinal)
	}
	return rec, nil
}
