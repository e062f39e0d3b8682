package reembed

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/poiesic/minutes/core"
	"github.com/poiesic/minutes/storage/jsonstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(i int) core.DocumentRecord {
	return core.DocumentRecord{
		ID:   fmt.Sprintf("doc-%d", i),
		Text: fmt.Sprintf("meeting %d discussed item %d", i, i),
		Metadata: core.Metadata{
			OwningEntityID: fmt.Sprint(i),
			DisplayName:    fmt.Sprintf("meeting-%d.txt", i),
		},
	}
}

func newSource(n int) *jsonstore.Store {
	store := jsonstore.New()
	for i := range n {
		store.Append(record(i))
	}
	return store
}

func TestRecordIterator_Batches(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		batchSize int
		want      []int
	}{
		{"exact multiple", 9, 3, []int{3, 3, 3}},
		{"remainder", 10, 4, []int{4, 4, 2}},
		{"single batch", 5, 100, []int{5}},
		{"empty source", 0, 10, nil},
		{"default batch size", 150, 0, []int{100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := NewRecordIterator(newSource(tt.total), tt.batchSize)

			var sizes []int
			var ids []string
			err := it.ForEach(context.Background(), func(batch []core.DocumentRecord) error {
				sizes = append(sizes, len(batch))
				for _, rec := range batch {
					ids = append(ids, rec.ID)
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sizes)
			require.Len(t, ids, tt.total)
			for i, id := range ids {
				assert.Equal(t, fmt.Sprintf("doc-%d", i), id, "ordinal order is preserved")
			}
		})
	}
}

func TestRecordIterator_StopsOnError(t *testing.T) {
	it := NewRecordIterator(newSource(10), 2)
	boom := errors.New("boom")

	calls := 0
	err := it.ForEach(context.Background(), func([]core.DocumentRecord) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestRecordIterator_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	it := NewRecordIterator(newSource(10), 2)

	calls := 0
	err := it.ForEach(ctx, func([]core.DocumentRecord) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
