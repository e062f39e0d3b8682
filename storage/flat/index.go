package flat

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"slices"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// Index is an exact nearest-neighbour index over squared Euclidean distance.
// Vectors are stored contiguously in insertion order.
type Index struct {
	dim  int
	data []float32
}

var _ storage.VectorIndex = (*Index)(nil)

// New creates an empty index for vectors of length dim.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", storage.ErrDimensionMismatch, dim)
	}
	return &Index{dim: dim}, nil
}

// Load reads an index written by Persist. A missing file yields an empty
// index. A file whose dimension differs from dim fails with
// storage.ErrDimensionMismatch; any other defect fails with storage.ErrIndexLoad.
func Load(path string, dim int) (*Index, error) {
	idx, err := New(dim)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrIndexLoad, err)
	}

	header, values, err := storage.UnmarshalIndex(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrIndexLoad, path, err)
	}
	if header.Dimension != dim {
		return nil, fmt.Errorf("%w: %s holds %d-dimensional vectors, expected %d", storage.ErrDimensionMismatch, path, header.Dimension, dim)
	}
	idx.data = values
	return idx, nil
}

// Insert appends a copy of vec and returns its ordinal.
func (x *Index) Insert(vec []float32) (core.Ordinal, error) {
	if len(vec) != x.dim {
		return 0, fmt.Errorf("%w: got %d, index holds %d", storage.ErrDimensionMismatch, len(vec), x.dim)
	}
	ordinal := core.Ordinal(x.Count())
	x.data = append(x.data, vec...)
	return ordinal, nil
}

// Search returns the k nearest vectors to query, closest first. Equal
// distances are ordered by ordinal. Fewer than k neighbours are returned when
// the index is smaller than k.
func (x *Index) Search(query []float32, k int) ([]core.Neighbor, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d values, index holds %d", storage.ErrDimensionMismatch, len(query), x.dim)
	}
	count := x.Count()
	if count == 0 || k <= 0 {
		return []core.Neighbor{}, nil
	}

	neighbors := make([]core.Neighbor, 0, count)
	for i := 0; i < count; i++ {
		d := squaredL2(query, x.vector(i))
		if math.IsNaN(float64(d)) {
			continue
		}
		neighbors = append(neighbors, core.Neighbor{Ordinal: core.Ordinal(i), Distance: d})
	}

	slices.SortFunc(neighbors, func(a, b core.Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// Count returns the number of stored vectors.
func (x *Index) Count() int {
	return len(x.data) / x.dim
}

// Dimension returns the vector length.
func (x *Index) Dimension() int {
	return x.dim
}

// Truncate drops all vectors with ordinal >= n.
func (x *Index) Truncate(n int) error {
	if n < 0 || n > x.Count() {
		return fmt.Errorf("%w: truncate to %d of %d", storage.ErrOutOfRange, n, x.Count())
	}
	x.data = x.data[:n*x.dim]
	return nil
}

// Persist writes the index to path through a temporary file.
func (x *Index) Persist(path string) error {
	header := storage.IndexHeader{
		Version:   storage.IndexFormatVersion,
		Metric:    storage.MetricL2,
		Dimension: x.dim,
		Count:     x.Count(),
	}
	data, err := storage.MarshalIndex(header, x.data)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(path, data)
}

func (x *Index) vector(i int) []float32 {
	return x.data[i*x.dim : (i+1)*x.dim]
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
