// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/minutes/core"
)

const (
	// DefaultBatchSize is the default number of documents embedded per call
	DefaultBatchSize = 100
)

// Source is a read-only list of documents in ordinal order.
// *jsonstore.Store satisfies it.
type Source interface {
	Len() int
	Get(ordinal core.Ordinal) (core.DocumentRecord, error)
}

// RecordIterator walks a Source in fixed-size batches.
type RecordIterator struct {
	source    Source
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// A batchSize <= 0 selects DefaultBatchSize.
func NewRecordIterator(source Source, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{source: source, batchSize: batchSize}
}

// ForEach calls fn for each batch in ordinal order. Iteration stops on the
// first error from fn or when the context ends; the context is checked
// before every batch.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]core.DocumentRecord) error) error {
	total := it.source.Len()
	for start := 0; start < total; start += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+it.batchSize, total)
		batch := make([]core.DocumentRecord, 0, end-start)
		for i := start; i < end; i++ {
			rec, err := it.source.Get(core.Ordinal(i))
			if err != nil {
				return fmt.Errorf("read document %d: %w", i, err)
			}
			batch = append(batch, rec)
		}

		if err := fn(batch); err != nil {
			return err
		}
	}
	return nil
}
