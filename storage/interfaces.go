package storage

import (
	"github.com/poiesic/minutes/core"
)

// VectorIndex is a dense-vector index supporting exact nearest-neighbour search.
// Entries are addressed by the ordinal returned from Insert; ordinals start at
// zero and increase by one per insert.
//
// Implementations are not required to be safe for concurrent mutation.
// Corpus provides the locking.
type VectorIndex interface {
	// Insert appends vec and returns its ordinal.
	// Returns ErrDimensionMismatch if len(vec) differs from Dimension().
	Insert(vec []float32) (core.Ordinal, error)

	// Search returns up to k neighbours of query ordered by ascending distance.
	// Returns an empty slice when the index is empty.
	Search(query []float32, k int) ([]core.Neighbor, error)

	// Count returns the number of stored vectors.
	Count() int

	// Dimension returns the fixed vector length.
	Dimension() int

	// Truncate drops every entry with ordinal >= n.
	Truncate(n int) error

	// Persist writes the index to path, replacing any previous file.
	Persist(path string) error
}

// DocumentStore is an append-only list of documents parallel to a VectorIndex.
// The document at ordinal i belongs to the vector at ordinal i.
type DocumentStore interface {
	// Append adds rec and returns its ordinal.
	Append(rec core.DocumentRecord) core.Ordinal

	// Get returns the record at ordinal.
	// Returns ErrOutOfRange if no such record exists.
	Get(ordinal core.Ordinal) (core.DocumentRecord, error)

	// Len returns the number of stored records.
	Len() int

	// Truncate drops every record with ordinal >= n.
	Truncate(n int) error

	// Persist writes the store to path, replacing any previous file.
	Persist(path string) error
}

// Reader is the read-only view of a paired index and store.
type Reader interface {
	Count() int
	Search(query []float32, k int) ([]core.Neighbor, error)
	Get(ordinal core.Ordinal) (core.DocumentRecord, error)
	Dimension() int
}
