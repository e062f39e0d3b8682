// Package jsonstore implements storage.DocumentStore as an in-memory list
// persisted to a single JSON array.
package jsonstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage"
)

// Store holds document records in ordinal order.
type Store struct {
	records []core.DocumentRecord
}

var _ storage.DocumentStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Load reads a store written by Persist. A missing or empty file yields an
// empty store; anything that is not a JSON array of records fails with
// storage.ErrMetadataLoad.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrMetadataLoad, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	var records []core.DocumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrMetadataLoad, path, err)
	}
	return &Store{records: records}, nil
}

// Append adds rec and returns its ordinal.
func (s *Store) Append(rec core.DocumentRecord) core.Ordinal {
	s.records = append(s.records, rec)
	return core.Ordinal(len(s.records) - 1)
}

// Get returns the record at ordinal.
func (s *Store) Get(ordinal core.Ordinal) (core.DocumentRecord, error) {
	if ordinal < 0 || int(ordinal) >= len(s.records) {
		return core.DocumentRecord{}, fmt.Errorf("%w: %d (store holds %d)", storage.ErrOutOfRange, ordinal, len(s.records))
	}
	return s.records[ordinal], nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Truncate drops every record with ordinal >= n.
func (s *Store) Truncate(n int) error {
	if n < 0 || n > len(s.records) {
		return fmt.Errorf("%w: truncate to %d of %d", storage.ErrOutOfRange, n, len(s.records))
	}
	clear(s.records[n:])
	s.records = s.records[:n]
	return nil
}

// Persist writes all records to path as an indented JSON array.
func (s *Store) Persist(path string) error {
	records := s.records
	if records == nil {
		records = []core.DocumentRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return storage.WriteFileAtomic(path, data)
}
